// Package registry implements the Handler Registry (spec §4.2): an
// immutable-after-construction map from job type to handler.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kestrelhq/jobworker/internal/jobcontext"
)

var (
	// ErrDuplicateJobType is returned by Register when a job type has
	// already been registered. Registration happens at startup, so this
	// is always a fatal configuration error.
	ErrDuplicateJobType = errors.New("job type already registered")

	// ErrSealed is returned by Register once the registry has been
	// sealed; registration only happens before Seal is called.
	ErrSealed = errors.New("registry is sealed, cannot register new handlers")

	// ErrNoHandler is classified by internal/classify into the
	// NoHandler kind; the executor wraps it with the job type when
	// Lookup reports a miss.
	ErrNoHandler = errors.New("no handler registered for job type")
)

// Handler executes one job attempt and returns its result, or an error.
type Handler func(ctx context.Context, jc jobcontext.Context, payload json.RawMessage) (json.RawMessage, error)

// Validator validates a payload before the handler runs. A non-nil
// return is wrapped by the executor into a classify.ValidationError.
type Validator func(payload json.RawMessage) error

// Registration is one job type's full handler configuration.
type Registration struct {
	JobType     string
	Handler     Handler
	Validate    Validator
	Timeout     time.Duration
	MaxAttempts int
}

// Registry maps job type to Registration. Register and Lookup are
// guarded by a read-write mutex, so Lookup is safe for concurrent use;
// Register only runs during process startup, before Seal.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Registration
	sealed  bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Registration)}
}

// Register adds reg to the registry. Returns ErrDuplicateJobType if
// reg.JobType was already registered, ErrSealed once the registry has
// been sealed.
func (r *Registry) Register(reg Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrSealed
	}
	if reg.JobType == "" {
		return fmt.Errorf("registry: job type must not be empty")
	}
	if reg.Handler == nil {
		return fmt.Errorf("registry: handler for job type %q must not be nil", reg.JobType)
	}
	if reg.MaxAttempts < 1 {
		return fmt.Errorf("registry: max attempts for job type %q must be >= 1", reg.JobType)
	}
	if _, exists := r.entries[reg.JobType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJobType, reg.JobType)
	}

	r.entries[reg.JobType] = reg
	return nil
}

// Seal marks the registry immutable. Subsequent Register calls fail.
// cmd/worker calls this once at the end of startup.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Lookup returns the registration for jobType, if any.
func (r *Registry) Lookup(jobType string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[jobType]
	return reg, ok
}

// Len returns the number of registered job types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
