// Package store implements the Queue Client (spec §4.1, §6): the three
// RPCs a worker uses to claim, heartbeat, and complete jobs, plus the
// administrative operations (cancel, reschedule, list, get) exposed
// symmetrically. The store is the single source of truth for job state;
// the worker only ever holds a transient lease.
package store

import (
	"context"
	"time"

	"github.com/kestrelhq/jobworker/internal/domain"
)

// Store is the subset of the queue contract the worker core needs:
// claim, heartbeat, and complete. Kept as an interface so the executor,
// heartbeat driver, and supervisor can be tested against a fake.
type Store interface {
	Claim(ctx context.Context, workerID string, limit int) ([]domain.Job, error)
	Heartbeat(ctx context.Context, jobID, workerID string) error
	Complete(ctx context.Context, in CompleteInput) error
}

// AdminStore is the administrative surface (§6): cancel, reschedule,
// list, get. Not used by the worker core itself, but implemented by the same
// PostgresStore and exposed by internal/adminapi.
type AdminStore interface {
	Cancel(ctx context.Context, jobID, tenantID string) error
	Reschedule(ctx context.Context, jobID, tenantID string, runAt time.Time) error
	List(ctx context.Context, filter ListFilter) ([]domain.Job, error)
	Get(ctx context.Context, jobID, tenantID string) (domain.Job, error)
}

// CompleteInput is the terminal-transition request for one attempt.
// Status is the executor's verdict (succeeded or failed); the store
// alone decides whether a failed attempt is requeued or marked dead,
// per the store-decides model adopted in spec §9 Open Question O1.
type CompleteInput struct {
	JobID       string
	WorkerID    string
	Status      domain.Status // StatusSucceeded or StatusFailed
	Result      []byte        // JSON, succeeded only
	Error       *domain.ErrorRecord
	Retryable   bool // ignored when Status == StatusSucceeded
	ArtifactRef string
}

// ListFilter narrows an administrative List call.
type ListFilter struct {
	TenantID string
	JobType  string
	Status   domain.Status
	Limit    int
	Before   time.Time // pagination cursor on (created_at, id)
	BeforeID string
}
