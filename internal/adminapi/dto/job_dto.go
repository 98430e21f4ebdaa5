// Package dto holds the wire shapes for the administrative HTTP surface.
package dto

import "encoding/json"

// JobDTO is the public representation of a domain.Job.
type JobDTO struct {
	JobID       string          `json:"job_id"`
	TenantID    string          `json:"tenant_id"`
	JobType     string          `json:"job_type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	RunAt       string          `json:"run_at"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// GetJobRequest is the query-string shape for GET /api/v1/jobs/:job_id.
type GetJobRequest struct {
	TenantID string `form:"tenant_id" binding:"required"`
}

// ListJobsRequest is the query-string shape for GET /api/v1/jobs.
type ListJobsRequest struct {
	TenantID string `form:"tenant_id" binding:"required"`
	JobType  string `form:"job_type"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

// ListJobsResponse is the response shape for GET /api/v1/jobs.
type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// RescheduleJobRequest is the body for POST /api/v1/jobs/:job_id/reschedule.
type RescheduleJobRequest struct {
	TenantID string `json:"tenant_id" binding:"required"`
	RunAt    string `json:"run_at" binding:"required"` // RFC3339
}

// CancelJobRequest is the body for POST /api/v1/jobs/:job_id/cancel.
type CancelJobRequest struct {
	TenantID string `json:"tenant_id" binding:"required"`
}
