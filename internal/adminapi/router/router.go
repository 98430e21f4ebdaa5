// Package router wires the administrative HTTP surface's gin routes.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kestrelhq/jobworker/internal/adminapi/handler"
)

// New builds the gin.Engine serving list_jobs, get_job, cancel_job, and
// reschedule_job against deps.Store.
func New(deps handler.Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "jobworker-adminapi"})
	})

	jobHandler := handler.NewJobHandler(deps)

	v1 := r.Group("/api/v1")
	jobs := v1.Group("/jobs")
	{
		jobs.GET("", jobHandler.ListJobs)
		jobs.GET("/:job_id", jobHandler.GetJob)
		jobs.POST("/:job_id/cancel", jobHandler.CancelJob)
		jobs.POST("/:job_id/reschedule", jobHandler.RescheduleJob)
	}

	return r
}
