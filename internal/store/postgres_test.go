package store

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/jobworker/internal/applog"
	"github.com/kestrelhq/jobworker/internal/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sqlxDB := sqlx.NewDb(db, "postgres")
	return &PostgresStore{db: sqlxDB, logger: applog.NewDefault()}, mock
}

func jobRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tenant_id", "type", "payload", "status", "attempts", "max_attempts", "run_at",
		"locked_by", "locked_at", "heartbeat_at", "result", "error", "idempotency_key", "created_at", "updated_at",
	})
}

func TestClaimReturnsClaimedJobs(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	rows := jobRows().AddRow(
		"job-1", "tenant-1", "echo.v1", []byte(`{}`), "running", 1, 3, now,
		"worker-1", now, now, []byte(`null`), []byte(`null`), nil, now, now,
	)
	mock.ExpectQuery(`UPDATE jobs`).WithArgs("worker-1", 10).WillReturnRows(rows)

	jobs, err := s.Claim(context.Background(), "worker-1", 10)

	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-1", jobs[0].ID)
	assert.Equal(t, domain.StatusRunning, jobs[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimReturnsEmptyWhenNothingDue(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`UPDATE jobs`).WithArgs("worker-1", 10).WillReturnRows(jobRows())

	jobs, err := s.Claim(context.Background(), "worker-1", 10)

	require.NoError(t, err)
	assert.Empty(t, jobs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHeartbeatReturnsLeaseLostWhenNoRowsAffected(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE jobs SET heartbeat_at`).
		WithArgs("job-1", "worker-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Heartbeat(context.Background(), "job-1", "worker-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLeaseLost))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHeartbeatSucceedsWhenLeaseHeld(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE jobs SET heartbeat_at`).
		WithArgs("job-1", "worker-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Heartbeat(context.Background(), "job-1", "worker-1")

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteReturnsLeaseLostWhenNoRowsAffected(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE jobs`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Complete(context.Background(), CompleteInput{
		JobID: "job-1", WorkerID: "worker-1", Status: domain.StatusSucceeded,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLeaseLost))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteSucceedsWhenLeaseHeld(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE jobs`).WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Complete(context.Background(), CompleteInput{
		JobID: "job-1", WorkerID: "worker-1", Status: domain.StatusSucceeded, Result: []byte(`{"ok":true}`),
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelReturnsNotCancelableWhenNoRowsAffected(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE jobs SET status = 'canceled'`).
		WithArgs("job-1", "tenant-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Cancel(context.Background(), "job-1", "tenant-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotCancelable))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleReturnsJobNotFoundWhenNoRowsAffected(t *testing.T) {
	s, mock := newMockStore(t)
	runAt := time.Now().Add(time.Hour)
	mock.ExpectExec(`UPDATE jobs SET run_at`).
		WithArgs("job-1", "tenant-1", runAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Reschedule(context.Background(), "job-1", "tenant-1", runAt)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrJobNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReturnsJob(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	rows := jobRows().AddRow(
		"job-1", "tenant-1", "echo.v1", []byte(`{}`), "succeeded", 1, 3, now,
		nil, nil, nil, []byte(`{"ok":true}`), []byte(`null`), nil, now, now,
	)
	mock.ExpectQuery(`SELECT .* FROM jobs WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs("job-1", "tenant-1").
		WillReturnRows(rows)

	job, err := s.Get(context.Background(), "job-1", "tenant-1")

	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, domain.StatusSucceeded, job.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReturnsJobNotFoundWhenNoRows(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .* FROM jobs WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs("job-1", "tenant-1").
		WillReturnRows(jobRows())

	_, err := s.Get(context.Background(), "job-1", "tenant-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrJobNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAppliesFilters(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	rows := jobRows().AddRow(
		"job-1", "tenant-1", "echo.v1", []byte(`{}`), "succeeded", 1, 3, now,
		nil, nil, nil, []byte(`{"ok":true}`), []byte(`null`), nil, now, now,
	)
	mock.ExpectQuery(`SELECT .* FROM jobs WHERE tenant_id = \$1 AND type = \$2 ORDER BY`).
		WithArgs("tenant-1", "echo.v1", 20).
		WillReturnRows(rows)

	jobs, err := s.List(context.Background(), ListFilter{TenantID: "tenant-1", JobType: "echo.v1", Limit: 20})

	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-1", jobs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
