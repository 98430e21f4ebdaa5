// Package classify implements the Error Classifier (spec §4.7): it maps
// an error returned from anywhere in a job attempt onto the closed
// {kind, retryable} set the queue store's complete() call needs.
package classify

import (
	"context"
	"errors"
	"time"

	"github.com/kestrelhq/jobworker/internal/domain"
	"github.com/kestrelhq/jobworker/internal/registry"
)

// Kind is one of the six closed error kinds from spec §4.7.
type Kind string

const (
	KindValidationFailed Kind = "ValidationFailed"
	KindNoHandler        Kind = "NoHandler"
	KindTimeout          Kind = "Timeout"
	KindHandlerError     Kind = "HandlerError"
	KindQueueError       Kind = "QueueError"
	KindLeaseLost        Kind = "LeaseLost"
)

// Record is the structured outcome handed to Store.Complete as the
// error field.
type Record struct {
	Kind      Kind
	Message   string
	AttemptNo int
	Timestamp time.Time
	Detail    string
	Retryable bool
}

// ToDomain converts a Record to the persisted shape.
func (r Record) ToDomain() *domain.ErrorRecord {
	return &domain.ErrorRecord{
		Kind:      string(r.Kind),
		Message:   r.Message,
		AttemptNo: r.AttemptNo,
		Timestamp: r.Timestamp,
		Detail:    r.Detail,
	}
}

// terminalError marks a handler error as non-retryable even though it
// isn't one of the structural kinds (validation, no-handler, timeout).
// Handlers obtain one via Terminal.
type terminalError struct{ err error }

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal wraps err so the classifier reports HandlerError with
// retryable=false instead of the default retryable=true.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// ValidationError is returned by a registered Validate function to
// signal a malformed or rejected payload.
type ValidationError struct{ err error }

func (e *ValidationError) Error() string { return e.err.Error() }
func (e *ValidationError) Unwrap() error { return e.err }

// NewValidationError wraps err as a validation failure.
func NewValidationError(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{err: err}
}

// queueTransportError marks an error as coming from the queue store's
// transport layer (connection/protocol failure) rather than a rejected
// operation such as a lost lease.
type queueTransportError struct{ err error }

func (e *queueTransportError) Error() string { return e.err.Error() }
func (e *queueTransportError) Unwrap() error { return e.err }

// NewQueueError wraps a queue-store transport error.
func NewQueueError(err error) error {
	if err == nil {
		return nil
	}
	return &queueTransportError{err: err}
}

// Classify maps err onto a Record. now and attemptNo are threaded in by
// the caller rather than read from the clock here, so tests are
// deterministic.
func Classify(err error, attemptNo int, now time.Time) Record {
	base := Record{AttemptNo: attemptNo, Timestamp: now}

	if errors.Is(err, registry.ErrNoHandler) {
		base.Kind = KindNoHandler
		base.Message = err.Error()
		base.Retryable = false
		return base
	}

	var validation *ValidationError
	if errors.As(err, &validation) {
		base.Kind = KindValidationFailed
		base.Message = err.Error()
		base.Retryable = false
		return base
	}

	if errors.Is(err, context.DeadlineExceeded) {
		base.Kind = KindTimeout
		base.Message = "handler exceeded its registered timeout"
		base.Retryable = true
		return base
	}

	if errors.Is(err, domain.ErrLeaseLost) {
		base.Kind = KindLeaseLost
		base.Message = err.Error()
		base.Retryable = true
		return base
	}

	var queueErr *queueTransportError
	if errors.As(err, &queueErr) {
		base.Kind = KindQueueError
		base.Message = err.Error()
		base.Retryable = true
		return base
	}

	base.Kind = KindHandlerError
	base.Message = err.Error()

	var term *terminalError
	base.Retryable = !errors.As(err, &term)
	return base
}
