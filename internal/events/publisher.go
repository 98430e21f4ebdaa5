// Package events publishes terminal job outcomes onto RabbitMQ for
// downstream notification consumers (webhooks, dashboards). This sits
// outside the worker's correctness contract: the claim/heartbeat/complete
// protocol never depends on it, and a publish failure is logged and
// swallowed rather than affecting the job's recorded outcome.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/kestrelhq/jobworker/internal/applog"
	"github.com/kestrelhq/jobworker/internal/classify"
	"github.com/kestrelhq/jobworker/internal/domain"
	"github.com/kestrelhq/jobworker/shared/rabbitmq"
)

// Publisher emits a notification after a job reaches a terminal state
// for the current attempt.
type Publisher interface {
	PublishTerminal(ctx context.Context, job domain.Job, rec *classify.Record)
}

// Terminal event names published to the exchange. These describe what
// happened to the attempt, distinct from the job row's own Status: a
// retryable failure publishes job.failed even though the row itself goes
// back to StatusQueued for the next attempt.
const (
	EventSucceeded = "job.succeeded"
	EventFailed    = "job.failed"
	EventDead      = "job.dead"
)

// terminalEvent is the wire shape published to the exchange.
type terminalEvent struct {
	JobID      string              `json:"job_id"`
	TenantID   string              `json:"tenant_id"`
	Type       string              `json:"type"`
	Event      string              `json:"event"`
	Status     domain.Status       `json:"status"`
	Attempts   int                 `json:"attempts"`
	Error      *domain.ErrorRecord `json:"error,omitempty"`
	FinishedAt time.Time           `json:"finished_at"`
}

// buildTerminalEvent picks the event name and recorded row status for a
// completed attempt. A retryable failure is job.failed even though the
// row itself returns to StatusQueued for the next attempt; only a
// non-retryable failure is job.dead.
func buildTerminalEvent(job domain.Job, rec *classify.Record, now time.Time) terminalEvent {
	status := domain.StatusSucceeded
	event := EventSucceeded
	var errRec *domain.ErrorRecord
	if rec != nil {
		errRec = rec.ToDomain()
		if rec.Retryable {
			status = domain.StatusQueued
			event = EventFailed
		} else {
			status = domain.StatusDead
			event = EventDead
		}
	}

	return terminalEvent{
		JobID:      job.ID,
		TenantID:   job.TenantID,
		Type:       job.Type,
		Event:      event,
		Status:     status,
		Attempts:   job.Attempts,
		Error:      errRec,
		FinishedAt: now,
	}
}

// RabbitPublisher publishes terminalEvent messages over an
// already-connected rabbitmq.Client.
type RabbitPublisher struct {
	client *rabbitmq.Client
	logger *applog.Logger
}

// NewRabbitPublisher builds a Publisher bound to client.
func NewRabbitPublisher(client *rabbitmq.Client, logger *applog.Logger) *RabbitPublisher {
	return &RabbitPublisher{client: client, logger: logger}
}

// PublishTerminal publishes the outcome of one attempt. Errors are
// logged, never returned: a notification-side outage must never affect
// whether the worker reports its own job outcome successfully.
func (p *RabbitPublisher) PublishTerminal(ctx context.Context, job domain.Job, rec *classify.Record) {
	evt := buildTerminalEvent(job, rec, time.Now())

	body, err := json.Marshal(evt)
	if err != nil {
		p.logger.Error("failed to marshal terminal event", slog.String("job_id", job.ID), slog.Any("error", err))
		return
	}

	if err := p.client.PublishWithRetry(ctx, body, "application/json"); err != nil {
		p.logger.Warn("failed to publish terminal event", slog.String("job_id", job.ID), slog.Any("error", err))
	}
}

// NoopPublisher discards every event; used when no RabbitMQ connection
// was configured, and in tests.
type NoopPublisher struct{}

func (NoopPublisher) PublishTerminal(context.Context, domain.Job, *classify.Record) {}
