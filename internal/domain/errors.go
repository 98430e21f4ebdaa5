package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrLeaseLost is returned by the store when a worker attempts to
	// heartbeat or complete a job it no longer owns the lease for (I3).
	ErrLeaseLost = errors.New("lease lost: job not owned by this worker")

	// ErrNotCancelable is returned when a cancel is attempted on a job
	// already in a terminal status.
	ErrNotCancelable = errors.New("job is in a terminal status and cannot be canceled")
)
