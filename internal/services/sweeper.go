package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/orderdesk/internal/metrics"
)

const sweepLockKey = "orderdesk:sweeper:lock"

// Locker grants a short exclusive lease so that only one instance sweeps per tick.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Sweeper runs AutoFinalizeSweep on a fixed interval.
type Sweeper struct {
	orders   *OrderService
	locker   Locker
	interval time.Duration
	log      *slog.Logger
}

// NewSweeper builds a Sweeper. locker may be nil for single-instance deployments.
func NewSweeper(orders *OrderService, locker Locker, interval time.Duration, log *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{orders: orders, locker: locker, interval: interval, log: log}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// Failed runs are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info("order sweeper started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("order sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			s.log.Info("order sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single sweep and returns how many orders were finalized.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	if s.locker != nil {
		// The lease is left to expire so a second instance skips this tick.
		ok, err := s.locker.TryLock(ctx, sweepLockKey, s.interval/2)
		if err != nil {
			s.log.Warn("sweeper lock unavailable, sweeping anyway", "error", err)
		} else if !ok {
			metrics.SweepRuns.WithLabelValues("skipped").Inc()
			return 0, nil
		}
	}

	start := time.Now()
	moved, err := s.orders.AutoFinalizeSweep(ctx)
	metrics.SweepDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SweepRuns.WithLabelValues("error").Inc()
		return moved, err
	}
	metrics.SweepRuns.WithLabelValues("ok").Inc()
	if moved > 0 {
		s.log.Info("orders finalized", "count", moved)
	}
	return moved, nil
}
