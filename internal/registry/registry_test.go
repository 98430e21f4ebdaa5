package registry_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/jobworker/internal/jobcontext"
	"github.com/kestrelhq/jobworker/internal/registry"
)

func noopHandler(context.Context, jobcontext.Context, json.RawMessage) (json.RawMessage, error) {
	return nil, nil
}

func TestRegisterAndLookup(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(registry.Registration{JobType: "echo", Handler: noopHandler, MaxAttempts: 3}))

	got, ok := reg.Lookup("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", got.JobType)
	assert.Equal(t, 1, reg.Len())
}

func TestLookupMissReturnsFalse(t *testing.T) {
	reg := registry.New()
	_, ok := reg.Lookup("does-not-exist")
	assert.False(t, ok)
}

func TestRegisterDuplicateJobType(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(registry.Registration{JobType: "echo", Handler: noopHandler, MaxAttempts: 1}))

	err := reg.Register(registry.Registration{JobType: "echo", Handler: noopHandler, MaxAttempts: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrDuplicateJobType))
}

func TestRegisterRejectsInvalidRegistrations(t *testing.T) {
	tests := []struct {
		name string
		reg  registry.Registration
	}{
		{"empty job type", registry.Registration{Handler: noopHandler, MaxAttempts: 1}},
		{"nil handler", registry.Registration{JobType: "x", MaxAttempts: 1}},
		{"zero max attempts", registry.Registration{JobType: "x", Handler: noopHandler, MaxAttempts: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := registry.New()
			require.Error(t, reg.Register(tt.reg))
		})
	}
}

func TestRegisterAfterSealFails(t *testing.T) {
	reg := registry.New()
	reg.Seal()

	err := reg.Register(registry.Registration{JobType: "echo", Handler: noopHandler, MaxAttempts: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrSealed))
}
