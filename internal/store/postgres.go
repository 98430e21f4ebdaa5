package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kestrelhq/jobworker/internal/applog"
	"github.com/kestrelhq/jobworker/internal/domain"
	"github.com/kestrelhq/jobworker/shared/postgresql"
)

// Retry backoff constants live on the store side, per spec §4.7: the
// worker never computes backoff, it only reports retryable/not.
const (
	backoffBaseSeconds = 30
	backoffCapSeconds  = 3600
)

// PostgresStore is the Store and AdminStore implementation backed by a
// Postgres "jobs" table, claiming with SELECT ... FOR UPDATE SKIP LOCKED
// so concurrent workers never double-claim (P2).
type PostgresStore struct {
	db     *sqlx.DB
	logger *applog.Logger
}

// NewPostgresStore builds a store over an already-connected client.
func NewPostgresStore(client *postgresql.Client, logger *applog.Logger) *PostgresStore {
	return &PostgresStore{db: client.GetDB(), logger: logger}
}

const jobColumns = `id, tenant_id, type, payload, status, attempts, max_attempts, run_at,
	locked_by, locked_at, heartbeat_at, result, error, idempotency_key, created_at, updated_at`

// Claim atomically transitions up to limit queued, due, under-attempt
// jobs to running and assigns them to workerID (spec §4.1, I5).
func (s *PostgresStore) Claim(ctx context.Context, workerID string, limit int) ([]domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = 'running',
		    locked_by = $1,
		    locked_at = now(),
		    heartbeat_at = now(),
		    attempts = attempts + 1,
		    updated_at = now()
		WHERE id IN (
			SELECT id FROM jobs
			WHERE status = 'queued' AND run_at <= now() AND attempts < max_attempts
			ORDER BY run_at ASC, created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	rows, err := s.db.QueryxContext(ctx, query, workerID, limit)
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		var job domain.Job
		if err := rows.StructScan(&job); err != nil {
			return nil, fmt.Errorf("claim: scan: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}

	s.logger.Debug("claimed jobs", slog.String("worker_id", workerID), slog.Int("count", len(jobs)))
	return jobs, nil
}

// Heartbeat refreshes the lease on a running job. Returns
// domain.ErrLeaseLost if workerID no longer owns it (I3).
func (s *PostgresStore) Heartbeat(ctx context.Context, jobID, workerID string) error {
	query := `UPDATE jobs SET heartbeat_at = now(), updated_at = now() WHERE id = $1 AND locked_by = $2 AND status = 'running'`

	res, err := s.db.ExecContext(ctx, query, jobID, workerID)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("heartbeat: %w", domain.ErrLeaseLost)
	}
	return nil
}

// Complete performs the terminal transition for one attempt. On a
// failed, retryable attempt with attempts remaining it requeues with
// backoff; otherwise (non-retryable, or attempts exhausted) it marks
// the job dead. Rejects the call if workerID does not hold the lease.
func (s *PostgresStore) Complete(ctx context.Context, in CompleteInput) error {
	succeeded := in.Status == domain.StatusSucceeded

	var resultJSON, errorJSON []byte
	if succeeded && in.Result != nil {
		resultJSON = in.Result
	}
	if !succeeded && in.Error != nil {
		b, err := json.Marshal(in.Error)
		if err != nil {
			return fmt.Errorf("complete: marshal error record: %w", err)
		}
		errorJSON = b
	}

	query := `
		UPDATE jobs
		SET
			status = CASE
				WHEN $2::boolean THEN 'succeeded'
				WHEN $3::boolean AND attempts < max_attempts THEN 'queued'
				ELSE 'dead'
			END,
			result = CASE WHEN $2::boolean THEN $4::jsonb ELSE result END,
			error = CASE WHEN $2::boolean THEN NULL ELSE $5::jsonb END,
			run_at = CASE
				WHEN $2::boolean THEN run_at
				WHEN $3::boolean AND attempts < max_attempts
					THEN now() + LEAST(make_interval(secs => $6), make_interval(secs => $7 * power(2, GREATEST(attempts - 1, 0))))
				ELSE run_at
			END,
			locked_by = NULL,
			locked_at = NULL,
			heartbeat_at = NULL,
			updated_at = now()
		WHERE id = $1 AND locked_by = $8 AND status = 'running'
	`

	res, err := s.db.ExecContext(ctx, query,
		in.JobID,
		succeeded,
		in.Retryable,
		nullJSON(resultJSON),
		nullJSON(errorJSON),
		backoffCapSeconds,
		backoffBaseSeconds,
		in.WorkerID,
	)
	if err != nil {
		return fmt.Errorf("complete: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("complete: %w", domain.ErrLeaseLost)
	}
	return nil
}

// Cancel marks a non-terminal job canceled on behalf of its tenant.
func (s *PostgresStore) Cancel(ctx context.Context, jobID, tenantID string) error {
	query := `
		UPDATE jobs SET status = 'canceled', updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		  AND status NOT IN ('succeeded', 'failed', 'dead', 'canceled')
	`
	res, err := s.db.ExecContext(ctx, query, jobID, tenantID)
	if err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("cancel: %w", domain.ErrNotCancelable)
	}
	return nil
}

// Reschedule moves a job's earliest eligible run time, re-queueing it.
func (s *PostgresStore) Reschedule(ctx context.Context, jobID, tenantID string, runAt time.Time) error {
	query := `
		UPDATE jobs SET run_at = $3, status = 'queued', updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`
	res, err := s.db.ExecContext(ctx, query, jobID, tenantID, runAt)
	if err != nil {
		return fmt.Errorf("reschedule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reschedule: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("reschedule: %w", domain.ErrJobNotFound)
	}
	return nil
}

// Get fetches a single job by id, scoped to tenantID, administrative use
// only. Returns domain.ErrJobNotFound when no matching row exists.
func (s *PostgresStore) Get(ctx context.Context, jobID, tenantID string) (domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1 AND tenant_id = $2`

	var job domain.Job
	if err := s.db.GetContext(ctx, &job, query, jobID, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Job{}, fmt.Errorf("get: %w", domain.ErrJobNotFound)
		}
		return domain.Job{}, fmt.Errorf("get: %w", err)
	}
	return job, nil
}

// List returns jobs matching filter, administrative use only.
func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]domain.Job, error) {
	conditions := []string{}
	args := []interface{}{}

	if filter.TenantID != "" {
		conditions = append(conditions, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if filter.JobType != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, filter.JobType)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if !filter.Before.IsZero() {
		conditions = append(conditions, "(created_at, id) < (?, ?)")
		args = append(args, filter.Before, filter.BeforeID)
	}

	query := "SELECT " + jobColumns + " FROM jobs"
	if len(conditions) > 0 {
		query += " WHERE " + conditions[0]
		for _, c := range conditions[1:] {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	query = s.db.Rebind(query)

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return jobs, nil
}

func nullJSON(b []byte) interface{} {
	if b == nil {
		return sql.NullString{}
	}
	return string(b)
}
