// Package applog adds this codebase's correlation-id and job-identity
// logging conventions on top of shared/logger. It never reimplements the
// handler setup: Config and New are thin pass-throughs so every process
// in the module gets the same Format-driven choice between the JSON
// handler and the tinted console handler from a single place.
package applog

import (
	"context"
	"log/slog"

	"github.com/kestrelhq/jobworker/internal/correlation"
	"github.com/kestrelhq/jobworker/shared/logger"
)

// Config controls how New builds a Logger.
type Config = logger.Config

// Logger wraps shared/logger.Logger with context-aware helpers for this
// process's correlation-id and job-identity conventions.
type Logger struct {
	*logger.Logger
}

// New builds a Logger from cfg.
func New(cfg *Config) (*Logger, error) {
	base, err := logger.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: base}, nil
}

// NewDefault returns a console logger at info level, for tests and
// one-off tools that don't load a Config.
func NewDefault() *Logger {
	return &Logger{Logger: logger.NewDefault()}
}

// With returns a Logger with additional key-value attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithTrace attaches the trace id carried by ctx, if any (satisfies P7:
// every log line emitted during an attempt carries the same trace id the
// handler saw).
func (l *Logger) WithTrace(ctx context.Context) *Logger {
	id, ok := correlation.TraceID(ctx)
	if !ok {
		return l
	}
	return l.With(slog.String("trace_id", id))
}

// WithJob attaches the standard job-identity fields used across every
// log line the executor emits.
func (l *Logger) WithJob(jobID, jobType, tenantID string, attemptNo int) *Logger {
	return l.With(
		slog.String("job_id", jobID),
		slog.String("job_type", jobType),
		slog.String("tenant_id", tenantID),
		slog.Int("attempt_no", attemptNo),
	)
}
