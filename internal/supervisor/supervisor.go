// Package supervisor implements the Poll Loop / Supervisor (spec §4.6):
// the top-level state machine that claims batches, fans jobs out to
// executors up to a concurrency cap, and drains in flight work on
// shutdown without losing heartbeats.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kestrelhq/jobworker/internal/applog"
	"github.com/kestrelhq/jobworker/internal/domain"
	"github.com/kestrelhq/jobworker/internal/executor"
	"github.com/kestrelhq/jobworker/internal/store"
)

// State is one of the supervisor's four lifecycle states.
type State string

const (
	StateStarting State = "starting"
	StatePolling  State = "polling"
	StateDraining State = "draining"
	StateStopped  State = "stopped"
)

// Config controls polling cadence and concurrency.
type Config struct {
	WorkerID      string
	PollInterval  time.Duration
	ClaimLimit    int
	MaxConcurrent int
	ShutdownGrace time.Duration
}

// Supervisor runs the poll loop against a Store, dispatching claimed
// jobs to an Executor.
type Supervisor struct {
	cfg    Config
	store  store.Store
	exec   *executor.Executor
	logger *applog.Logger

	mu     sync.Mutex
	state  State
	active int
	wg     sync.WaitGroup
}

// New builds a Supervisor.
func New(cfg Config, st store.Store, exec *executor.Executor, logger *applog.Logger) *Supervisor {
	return &Supervisor{cfg: cfg, store: st, exec: exec, logger: logger, state: StateStarting}
}

// State returns the supervisor's current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Supervisor) activeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Run polls until ctx is canceled (shutdown signal), then drains
// in-flight executors for up to cfg.ShutdownGrace before returning
// (P5). It never returns a transport error from claim: those are
// logged and retried after the poll interval.
func (s *Supervisor) Run(ctx context.Context) error {
	s.setState(StatePolling)
	s.logger.Info("supervisor entering polling state", slog.String("worker_id", s.cfg.WorkerID))

	for {
		select {
		case <-ctx.Done():
			return s.drain()
		default:
		}

		active := s.activeCount()
		if active >= s.cfg.MaxConcurrent {
			sleepContext(ctx, s.cfg.PollInterval)
			continue
		}

		limit := s.cfg.ClaimLimit
		if room := s.cfg.MaxConcurrent - active; room < limit {
			limit = room
		}

		jobs, err := s.store.Claim(ctx, s.cfg.WorkerID, limit)
		if err != nil {
			s.logger.Error("claim failed, will retry after poll interval", slog.Any("error", err))
			sleepContext(ctx, s.cfg.PollInterval)
			continue
		}

		if len(jobs) == 0 {
			sleepContext(ctx, s.cfg.PollInterval)
			continue
		}

		for _, job := range jobs {
			s.dispatch(job)
		}
	}
}

// RunOnce claims exactly one batch, runs every returned job to
// completion concurrently, and returns once they have all finished. It
// never enters Draining: there is nothing to drain once the batch is
// done.
func (s *Supervisor) RunOnce(ctx context.Context) error {
	s.setState(StatePolling)

	limit := s.cfg.ClaimLimit
	if s.cfg.MaxConcurrent < limit {
		limit = s.cfg.MaxConcurrent
	}

	jobs, err := s.store.Claim(ctx, s.cfg.WorkerID, limit)
	if err != nil {
		s.setState(StateStopped)
		return fmt.Errorf("run-once: claim: %w", err)
	}

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(j domain.Job) {
			defer wg.Done()
			s.exec.Execute(context.Background(), j)
		}(job)
	}
	wg.Wait()

	s.setState(StateStopped)
	return nil
}

// dispatch spawns a fresh executor task for job without awaiting it;
// fan-out is concurrent up to cfg.MaxConcurrent (spec §4.6).
func (s *Supervisor) dispatch(job domain.Job) {
	s.mu.Lock()
	s.active++
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer func() {
			s.mu.Lock()
			s.active--
			s.mu.Unlock()
			s.wg.Done()
		}()
		// Detached from the poll loop's context: a shutdown signal must
		// stop new claims without yanking the handler mid-flight. The
		// executor's own timeout context still bounds its wall clock.
		s.exec.Execute(context.Background(), job)
	}()
}

// drain stops claiming and waits up to cfg.ShutdownGrace for active
// executors to finish; anything still running after the grace period
// is abandoned (its lease will later expire in the store).
func (s *Supervisor) drain() error {
	s.setState(StateDraining)
	s.logger.Info("shutdown signal received, draining in-flight jobs",
		slog.Duration("grace", s.cfg.ShutdownGrace),
		slog.Int("active", s.activeCount()),
	)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all in-flight jobs finished before shutdown grace elapsed")
	case <-time.After(s.cfg.ShutdownGrace):
		s.logger.Warn("shutdown grace period elapsed, abandoning in-flight jobs",
			slog.Int("still_active", s.activeCount()),
		)
	}

	s.setState(StateStopped)
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
