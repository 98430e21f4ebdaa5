// Package executor implements the Job Executor (spec §4.4): for one
// claimed job it establishes a trace id, validates the payload, runs the
// handler under a heartbeat and a timeout, classifies the outcome, and
// issues exactly one terminal call.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kestrelhq/jobworker/internal/applog"
	"github.com/kestrelhq/jobworker/internal/classify"
	"github.com/kestrelhq/jobworker/internal/correlation"
	"github.com/kestrelhq/jobworker/internal/domain"
	"github.com/kestrelhq/jobworker/internal/events"
	"github.com/kestrelhq/jobworker/internal/heartbeat"
	"github.com/kestrelhq/jobworker/internal/jobcontext"
	"github.com/kestrelhq/jobworker/internal/registry"
	"github.com/kestrelhq/jobworker/internal/store"
)

// Dependencies configures an Executor.
type Dependencies struct {
	Store             store.Store
	Registry          *registry.Registry
	Logger            *applog.Logger
	WorkerID          string
	HeartbeatInterval time.Duration
	DefaultTimeout    time.Duration
	Events            events.Publisher // may be nil
}

// Executor runs one claimed job to its terminal outcome.
type Executor struct {
	deps Dependencies
}

// New builds an Executor.
func New(deps Dependencies) *Executor {
	return &Executor{deps: deps}
}

type handlerResult struct {
	out json.RawMessage
	err error
}

// Execute runs job to completion and reports its outcome to the store.
// It never panics out to the caller: any failure, including a failure
// to reach the store itself, is logged and swallowed (double-completion
// safety, spec §4.4).
func (e *Executor) Execute(ctx context.Context, job domain.Job) {
	traceID := extractTraceID(job.Payload)
	if traceID == "" {
		traceID = correlation.New()
	}
	ctx = correlation.WithTraceID(ctx, traceID)
	log := e.deps.Logger.WithTrace(ctx).WithJob(job.ID, job.Type, job.TenantID, job.Attempts)

	reg, ok := e.deps.Registry.Lookup(job.Type)
	if !ok {
		e.shortCircuit(ctx, log, job, fmt.Errorf("%w: %s", registry.ErrNoHandler, job.Type))
		return
	}

	if reg.Validate != nil {
		if verr := reg.Validate(job.Payload); verr != nil {
			e.shortCircuit(ctx, log, job, classify.NewValidationError(verr))
			return
		}
	}

	hbCtx, hbCancel := context.WithCancel(context.Background())
	defer hbCancel()
	driver := heartbeat.New(e.deps.Store, e.deps.Logger.WithTrace(ctx), job.ID, e.deps.WorkerID, e.deps.HeartbeatInterval)
	go driver.Run(hbCtx)

	timeout := reg.Timeout
	if timeout <= 0 {
		timeout = e.deps.DefaultTimeout
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	jc := jobcontext.Context{
		JobID:     job.ID,
		TenantID:  job.TenantID,
		AttemptNo: job.Attempts,
		TraceID:   traceID,
	}

	resultCh := make(chan handlerResult, 1)
	go func() {
		out, err := reg.Handler(jobCtx, jc, job.Payload)
		resultCh <- handlerResult{out: out, err: err}
	}()

	var herr error
	var out json.RawMessage
	select {
	case r := <-resultCh:
		out, herr = r.out, r.err
	case <-jobCtx.Done():
		// Cooperative cancellation is best-effort: the handler goroutine
		// above may still be running and may still complete its remote
		// side effect. We report failed to the queue regardless
		// (at-least-once tradeoff, spec §4.4 Timeout semantics).
		herr = jobCtx.Err()
	}

	// Stop the heartbeat before the terminal call so no heartbeat is
	// issued after a successful terminal write (P3).
	hbCancel()

	if herr == nil {
		log.Info("job succeeded")
		if err := e.deps.Store.Complete(ctx, store.CompleteInput{
			JobID:    job.ID,
			WorkerID: e.deps.WorkerID,
			Status:   domain.StatusSucceeded,
			Result:   out,
		}); err != nil {
			log.Error("failed to record success; lease will expire and the job may be re-claimed", slog.Any("error", err))
		}
		if e.deps.Events != nil {
			e.deps.Events.PublishTerminal(ctx, job, nil)
		}
		return
	}

	rec := classify.Classify(herr, job.Attempts, time.Now())
	log.Error("job failed",
		slog.String("kind", string(rec.Kind)),
		slog.Bool("retryable", rec.Retryable),
		slog.Any("error", herr),
	)

	if err := e.deps.Store.Complete(ctx, store.CompleteInput{
		JobID:     job.ID,
		WorkerID:  e.deps.WorkerID,
		Status:    domain.StatusFailed,
		Error:     rec.ToDomain(),
		Retryable: rec.Retryable,
	}); err != nil {
		log.Error("failed to record failure; lease will expire and the job may be re-claimed", slog.Any("error", err))
	}
	if e.deps.Events != nil {
		e.deps.Events.PublishTerminal(ctx, job, &rec)
	}
}

// shortCircuit handles the two non-retryable, handler-never-invoked
// outcomes: unknown job type and failed validation (steps 2-3 of §4.4).
func (e *Executor) shortCircuit(ctx context.Context, log *applog.Logger, job domain.Job, err error) {
	rec := classify.Classify(err, job.Attempts, time.Now())
	log.Warn("job short-circuited before dispatch",
		slog.String("kind", string(rec.Kind)),
		slog.Any("error", err),
	)

	if cerr := e.deps.Store.Complete(ctx, store.CompleteInput{
		JobID:     job.ID,
		WorkerID:  e.deps.WorkerID,
		Status:    domain.StatusFailed,
		Error:     rec.ToDomain(),
		Retryable: rec.Retryable,
	}); cerr != nil {
		log.Error("failed to record short-circuited failure", slog.Any("error", cerr))
	}
	if e.deps.Events != nil {
		e.deps.Events.PublishTerminal(ctx, job, &rec)
	}
}

func extractTraceID(payload json.RawMessage) string {
	var probe struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.TraceID
}
