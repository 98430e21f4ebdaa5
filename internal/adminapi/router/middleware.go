package router

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kestrelhq/jobworker/internal/applog"
)

// LoggerMiddleware logs each request with the process's structured logger.
func LoggerMiddleware(logger *applog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("http request",
			slog.Int("status", c.Writer.Status()),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Duration("latency", time.Since(start)),
		)

		for _, e := range c.Errors {
			logger.Error("request error", slog.String("error", e.Error()))
		}
	}
}
