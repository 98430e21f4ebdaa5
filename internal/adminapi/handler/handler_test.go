package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/jobworker/internal/adminapi/handler"
	"github.com/kestrelhq/jobworker/internal/applog"
	"github.com/kestrelhq/jobworker/internal/domain"
	"github.com/kestrelhq/jobworker/internal/store"
)

type fakeAdminStore struct {
	jobs          []domain.Job
	getJob        domain.Job
	getErr        error
	cancelErr     error
	rescheduleErr error
	lastCancelID  string
	lastReschedAt time.Time
}

// Get wraps its sentinel error the same way store.PostgresStore does
// ("get: %w"), matching the Cancel/Reschedule fakes below.
func (f *fakeAdminStore) Get(_ context.Context, jobID, tenantID string) (domain.Job, error) {
	if f.getErr != nil {
		return domain.Job{}, fmt.Errorf("get: %w", f.getErr)
	}
	return f.getJob, nil
}

// Cancel and Reschedule wrap their sentinel errors the same way
// store.PostgresStore does ("cancel: %w" / "reschedule: %w"), so these
// tests exercise the handler's errors.Is unwrapping rather than relying
// on direct sentinel equality that production never sees.
func (f *fakeAdminStore) Cancel(_ context.Context, jobID, tenantID string) error {
	f.lastCancelID = jobID
	if f.cancelErr == nil {
		return nil
	}
	return fmt.Errorf("cancel: %w", f.cancelErr)
}

func (f *fakeAdminStore) Reschedule(_ context.Context, jobID, tenantID string, runAt time.Time) error {
	f.lastReschedAt = runAt
	if f.rescheduleErr == nil {
		return nil
	}
	return fmt.Errorf("reschedule: %w", f.rescheduleErr)
}

func (f *fakeAdminStore) List(context.Context, store.ListFilter) ([]domain.Job, error) {
	return f.jobs, nil
}

func newHandler(t *testing.T, fs *fakeAdminStore) *handler.JobHandler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return handler.NewJobHandler(handler.Dependencies{Logger: applog.NewDefault(), Store: fs})
}

func TestListJobsReturnsDTOs(t *testing.T) {
	job := domain.Job{ID: uuid.NewString(), TenantID: "tenant-1", Type: "echo", Status: domain.StatusQueued, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	fs := &fakeAdminStore{jobs: []domain.Job{job}}
	h := newHandler(t, fs)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/jobs?tenant_id=tenant-1", nil)

	h.ListJobs(c)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Jobs []struct {
			JobID string `json:"job_id"`
		} `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, job.ID, resp.Jobs[0].JobID)
}

func TestGetJobReturnsDTO(t *testing.T) {
	id := uuid.NewString()
	job := domain.Job{ID: id, TenantID: "tenant-1", Type: "echo", Status: domain.StatusSucceeded, ResultJSON: json.RawMessage(`{"ok":true}`), CreatedAt: time.Now(), UpdatedAt: time.Now()}
	fs := &fakeAdminStore{getJob: job}
	h := newHandler(t, fs)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "job_id", Value: id}}
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+id+"?tenant_id=tenant-1", nil)

	h.GetJob(c)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		JobID  string          `json:"job_id"`
		Result json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.JobID)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Result))
}

func TestGetJobRejectsInvalidUUID(t *testing.T) {
	h := newHandler(t, &fakeAdminStore{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "job_id", Value: "not-a-uuid"}}
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/jobs/not-a-uuid?tenant_id=t1", nil)

	h.GetJob(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetJobRequiresTenantID(t *testing.T) {
	id := uuid.NewString()
	h := newHandler(t, &fakeAdminStore{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "job_id", Value: id}}
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+id, nil)

	h.GetJob(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetJobNotFoundReturnsNotFound(t *testing.T) {
	id := uuid.NewString()
	fs := &fakeAdminStore{getErr: domain.ErrJobNotFound}
	h := newHandler(t, fs)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "job_id", Value: id}}
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+id+"?tenant_id=t1", nil)

	h.GetJob(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelJobRejectsInvalidUUID(t *testing.T) {
	h := newHandler(t, &fakeAdminStore{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "job_id", Value: "not-a-uuid"}}
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/jobs/not-a-uuid/cancel", strings.NewReader(`{"tenant_id":"t1"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.CancelJob(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelJobNotCancelableReturnsConflict(t *testing.T) {
	fs := &fakeAdminStore{cancelErr: domain.ErrNotCancelable}
	h := newHandler(t, fs)

	id := uuid.NewString()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "job_id", Value: id}}
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/jobs/"+id+"/cancel", strings.NewReader(`{"tenant_id":"t1"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.CancelJob(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, id, fs.lastCancelID)
}

func TestCancelJobNotFoundReturnsNotFound(t *testing.T) {
	fs := &fakeAdminStore{cancelErr: domain.ErrJobNotFound}
	h := newHandler(t, fs)

	id := uuid.NewString()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "job_id", Value: id}}
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/jobs/"+id+"/cancel", strings.NewReader(`{"tenant_id":"t1"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.CancelJob(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRescheduleJobNotFoundReturnsNotFound(t *testing.T) {
	fs := &fakeAdminStore{rescheduleErr: domain.ErrJobNotFound}
	h := newHandler(t, fs)

	id := uuid.NewString()
	runAt := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	body := `{"tenant_id":"t1","run_at":"` + runAt + `"}`

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "job_id", Value: id}}
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/jobs/"+id+"/reschedule", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.RescheduleJob(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRescheduleJobParsesRunAt(t *testing.T) {
	fs := &fakeAdminStore{}
	h := newHandler(t, fs)

	id := uuid.NewString()
	runAt := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	body := `{"tenant_id":"t1","run_at":"` + runAt + `"}`

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "job_id", Value: id}}
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/jobs/"+id+"/reschedule", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.RescheduleJob(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, runAt, fs.lastReschedAt.Format(time.RFC3339))
}

func TestRescheduleJobRejectsBadTimestamp(t *testing.T) {
	h := newHandler(t, &fakeAdminStore{})

	id := uuid.NewString()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "job_id", Value: id}}
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/jobs/"+id+"/reschedule", strings.NewReader(`{"tenant_id":"t1","run_at":"not-a-time"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.RescheduleJob(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
