// Package domain holds the job entity shared by the queue store, executor,
// and administrative API.
package domain

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Status is a job's execution state. The set is closed; see spec §3.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusDead      Status = "dead"
	StatusCanceled  Status = "canceled"
)

// ErrorRecord is the structured outcome of a failed attempt, produced by
// the classifier and persisted verbatim on the job row.
type ErrorRecord struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	AttemptNo int       `json:"attempt_no"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
}

// Job is one unit of work as stored by the queue. Payload, Result and
// Error travel as raw JSON; the executor and handlers are the only code
// that interprets their shape.
type Job struct {
	ID             string          `db:"id" json:"id"`
	TenantID       string          `db:"tenant_id" json:"tenant_id"`
	Type           string          `db:"type" json:"type"`
	Payload        json.RawMessage `db:"payload" json:"payload"`
	Status         Status          `db:"status" json:"status"`
	Attempts       int             `db:"attempts" json:"attempts"`
	MaxAttempts    int             `db:"max_attempts" json:"max_attempts"`
	RunAt          time.Time       `db:"run_at" json:"run_at"`
	LockedBy       sql.NullString  `db:"locked_by" json:"-"`
	LockedAt       sql.NullTime    `db:"locked_at" json:"-"`
	HeartbeatAt    sql.NullTime    `db:"heartbeat_at" json:"-"`
	ResultJSON     json.RawMessage `db:"result" json:"result,omitempty"`
	ErrorJSON      json.RawMessage `db:"error" json:"error,omitempty"`
	IdempotencyKey sql.NullString  `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// Error unmarshals the stored error record, if any.
func (j *Job) Error() (*ErrorRecord, error) {
	if len(j.ErrorJSON) == 0 {
		return nil, nil
	}
	var rec ErrorRecord
	if err := json.Unmarshal(j.ErrorJSON, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// AttemptRecord is one append-only row in the attempt history (I4).
type AttemptRecord struct {
	JobID      string       `db:"job_id"`
	AttemptNo  int          `db:"attempt_no"`
	StartedAt  time.Time    `db:"started_at"`
	FinishedAt sql.NullTime `db:"finished_at"`
	Error      sql.NullString
}
