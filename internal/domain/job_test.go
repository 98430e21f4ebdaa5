package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/jobworker/internal/domain"
)

func TestJobErrorNilWhenUnset(t *testing.T) {
	j := domain.Job{}
	rec, err := j.Error()
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestJobErrorUnmarshalsRecord(t *testing.T) {
	j := domain.Job{ErrorJSON: []byte(`{"kind":"timeout","message":"deadline exceeded","attempt_no":2,"timestamp":"2026-01-01T00:00:00Z"}`)}

	rec, err := j.Error()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "timeout", rec.Kind)
	assert.Equal(t, 2, rec.AttemptNo)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), rec.Timestamp)
}

func TestJobErrorPropagatesUnmarshalError(t *testing.T) {
	j := domain.Job{ErrorJSON: []byte(`not json`)}
	_, err := j.Error()
	require.Error(t, err)
}
