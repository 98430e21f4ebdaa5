// Package heartbeat implements the Heartbeat Driver (spec §4.5): a
// background task bound to one job's lifetime that refreshes its lease
// at a fixed cadence until the executor cancels it.
package heartbeat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kestrelhq/jobworker/internal/applog"
	"github.com/kestrelhq/jobworker/internal/domain"
)

// Store is the subset of store.Store the driver needs.
type Store interface {
	Heartbeat(ctx context.Context, jobID, workerID string) error
}

// Driver sends periodic heartbeats for one job attempt.
type Driver struct {
	store    Store
	logger   *applog.Logger
	jobID    string
	workerID string
	cadence  time.Duration
}

// New builds a Driver for one job attempt. A single missed tick only
// leaves the lease intact when cadence*2 < store_lease_ttl; neither New
// nor configuration validation checks that relation.
func New(store Store, logger *applog.Logger, jobID, workerID string, cadence time.Duration) *Driver {
	return &Driver{store: store, logger: logger, jobID: jobID, workerID: workerID, cadence: cadence}
}

// Run blocks, sending a heartbeat every cadence, until ctx is canceled.
// Cancellation is only observed between ticks, never mid-RPC, per §4.5.
// On LeaseLost or any transport failure it logs a warning and keeps
// trying; the executor's terminal call is what ultimately arbitrates
// whether the lease still belongs to this worker (§9 Open Question O2).
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cadence)
	defer ticker.Stop()

	log := d.logger.With(slog.String("job_id", d.jobID), slog.String("worker_id", d.workerID))
	log.Debug("heartbeat driver started", slog.Duration("cadence", d.cadence))

	for {
		select {
		case <-ctx.Done():
			log.Debug("heartbeat driver stopped")
			return
		case <-ticker.C:
			// Heartbeat RPCs run on a context rooted independently of ctx,
			// so a cancellation racing the ticker aborts the loop on the
			// next select, not the RPC already in flight.
			rpcCtx, rpcCancel := context.WithTimeout(context.Background(), d.cadence)
			err := d.store.Heartbeat(rpcCtx, d.jobID, d.workerID)
			rpcCancel()
			if err != nil {
				if errors.Is(err, domain.ErrLeaseLost) {
					log.Warn("heartbeat rejected, lease lost", slog.Any("error", err))
					continue
				}
				log.Warn("heartbeat failed, will retry next tick", slog.Any("error", err))
			}
		}
	}
}
