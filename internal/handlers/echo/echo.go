// Package echo registers one illustrative job type, echo.v1, so
// cmd/worker has something to claim and run out of the box. Concrete
// business handlers are out of scope; this one exists only to exercise
// the registration path end to end.
package echo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kestrelhq/jobworker/internal/jobcontext"
	"github.com/kestrelhq/jobworker/internal/registry"
)

type payload struct {
	Message string `json:"message"`
}

func validate(raw json.RawMessage) error {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	if p.Message == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}

func handle(_ context.Context, jc jobcontext.Context, raw json.RawMessage) (json.RawMessage, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	out, err := json.Marshal(map[string]string{
		"echoed":  p.Message,
		"job_id":  jc.JobID,
		"trace":   jc.TraceID,
		"handled": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Registration returns the echo.v1 registry.Registration.
func Registration() registry.Registration {
	return registry.Registration{
		JobType:     "echo.v1",
		Handler:     handle,
		Validate:    validate,
		Timeout:     10 * time.Second,
		MaxAttempts: 3,
	}
}
