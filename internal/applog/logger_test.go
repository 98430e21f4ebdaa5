package applog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/kestrelhq/jobworker/internal/applog"
	"github.com/kestrelhq/jobworker/internal/correlation"
	sharedlog "github.com/kestrelhq/jobworker/shared/logger"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer) *applog.Logger {
	return &applog.Logger{Logger: &sharedlog.Logger{Logger: slog.New(slog.NewJSONHandler(buf, nil))}}
}

func TestNewJSONFormat(t *testing.T) {
	logger, err := applog.New(&applog.Config{Level: "info", Format: "json"})
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestWithTraceAttachesID(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	ctx := correlation.WithTraceID(context.Background(), "trace-abc")
	logger.WithTrace(ctx).Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "trace-abc", record["trace_id"])
}

func TestWithTraceNoopWithoutID(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.WithTrace(context.Background()).Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	_, hasTrace := record["trace_id"]
	require.False(t, hasTrace)
}
