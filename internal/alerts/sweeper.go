package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kasir-kopi/internal/inventory"
	"github.com/noah-isme/kasir-kopi/internal/lock"
	"github.com/noah-isme/kasir-kopi/internal/obs"
)

const sweepLockName = "low-stock-sweep"

// LowStockLister lists ingredients at or below their threshold.
type LowStockLister interface {
	LowStock(ctx context.Context) ([]inventory.Ingredient, error)
}

// Sweeper periodically scans inventory for low stock that no settlement
// reported, such as a manual correction made while the worker was down.
type Sweeper struct {
	Inventory LowStockLister
	Enqueuer  *Enqueuer
	Locker    lock.Locker
	LockTTL   time.Duration
	Log       zerolog.Logger
}

// Sweep enqueues a task per low ingredient and returns how many were new.
// When another worker holds the sweep lock it does nothing.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	enqueued := 0
	err := s.Locker.TryWithLock(ctx, sweepLockName, ttl, func(ctx context.Context) error {
		low, err := s.Inventory.LowStock(ctx)
		if err != nil {
			return err
		}
		for _, ing := range low {
			ok, err := s.Enqueuer.Enqueue(ctx, ing.ID)
			if err != nil {
				return err
			}
			if ok {
				enqueued++
				obs.ObserveLowStockAlert("sweep")
			}
		}
		return nil
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		s.Log.Debug().Msg("low stock sweep already running elsewhere")
		return 0, nil
	}
	if err != nil {
		return enqueued, err
	}
	s.Log.Info().Int("enqueued", enqueued).Msg("low stock sweep finished")
	return enqueued, nil
}

// HandleSweep adapts Sweep to an asynq handler.
func (s *Sweeper) HandleSweep(ctx context.Context, _ *asynq.Task) error {
	_, err := s.Sweep(ctx)
	return err
}

// Register mounts the alert task handlers on mux.
func Register(mux *asynq.ServeMux, p *Processor, s *Sweeper) {
	mux.HandleFunc(TypeLowStock, p.HandleLowStock)
	mux.HandleFunc(TypeLowStockSweep, s.HandleSweep)
}
