// Package handler implements the administrative HTTP surface named in
// spec §6: list_jobs, cancel_job, reschedule_job, plus get_job, exposed symmetrically
// alongside the worker core's own RPCs against the same store.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kestrelhq/jobworker/internal/adminapi/dto"
	"github.com/kestrelhq/jobworker/internal/applog"
	"github.com/kestrelhq/jobworker/internal/domain"
	"github.com/kestrelhq/jobworker/internal/store"
)

// Dependencies holds everything JobHandler needs.
type Dependencies struct {
	Logger *applog.Logger
	Store  store.AdminStore
}

// JobHandler serves the administrative job endpoints.
type JobHandler struct {
	logger *applog.Logger
	store  store.AdminStore
}

// NewJobHandler builds a JobHandler.
func NewJobHandler(deps Dependencies) *JobHandler {
	return &JobHandler{logger: deps.Logger, store: deps.Store}
}

func toDTO(j domain.Job) dto.JobDTO {
	return dto.JobDTO{
		JobID:       j.ID,
		TenantID:    j.TenantID,
		JobType:     j.Type,
		Payload:     j.Payload,
		Status:      string(j.Status),
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		RunAt:       j.RunAt.Format(time.RFC3339),
		CreatedAt:   j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   j.UpdatedAt.Format(time.RFC3339),
		Result:      j.ResultJSON,
	}
}

// GetJob handles GET /api/v1/jobs/:job_id, the admin-surface analogue of
// the SDK's get_job/get_result calls: one row carries both the job's
// current state and its result payload, so one RPC serves both.
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid UUID"})
		return
	}

	var req dto.GetJobRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required"})
		return
	}

	job, err := h.store.Get(c.Request.Context(), jobID, req.TenantID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		h.logger.Error("get job failed", slog.String("job_id", jobID), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}

	c.JSON(http.StatusOK, toDTO(job))
}

// ListJobs handles GET /api/v1/jobs.
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := decodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
		return
	}

	filter := store.ListFilter{
		TenantID: req.TenantID,
		JobType:  req.JobType,
		Status:   domain.Status(req.Status),
		Limit:    req.PageSize + 1,
	}
	if cursor != nil {
		filter.Before = cursor.CreatedAt
		filter.BeforeID = cursor.JobID
	}

	jobs, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("list jobs failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	resp := dto.ListJobsResponse{Jobs: make([]dto.JobDTO, len(jobs))}
	for i, j := range jobs {
		resp.Jobs[i] = toDTO(j)
	}
	if hasMore {
		last := jobs[len(jobs)-1]
		resp.NextCursor = encodeJobCursor(&jobCursor{CreatedAt: last.CreatedAt, JobID: last.ID})
	}

	c.JSON(http.StatusOK, resp)
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel.
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid UUID"})
		return
	}

	var req dto.CancelJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required"})
		return
	}

	if err := h.store.Cancel(c.Request.Context(), jobID, req.TenantID); err != nil {
		switch {
		case errors.Is(err, domain.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		case errors.Is(err, domain.ErrNotCancelable):
			c.JSON(http.StatusConflict, gin.H{"error": "job is no longer cancelable"})
		default:
			h.logger.Error("cancel job failed", slog.String("job_id", jobID), slog.Any("error", err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel job"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"job_id": jobID, "status": string(domain.StatusCanceled)})
}

// RescheduleJob handles POST /api/v1/jobs/:job_id/reschedule.
func (h *JobHandler) RescheduleJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid UUID"})
		return
	}

	var req dto.RescheduleJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id and run_at are required"})
		return
	}

	runAt, err := time.Parse(time.RFC3339, req.RunAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run_at must be RFC3339"})
		return
	}

	if err := h.store.Reschedule(c.Request.Context(), jobID, req.TenantID, runAt); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		h.logger.Error("reschedule job failed", slog.String("job_id", jobID), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reschedule job"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job_id": jobID, "run_at": runAt.Format(time.RFC3339)})
}
