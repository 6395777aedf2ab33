// Package scheduler runs the daily account snapshot rollup on a timer.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/trogers1052/trade-ledger/internal/ledger"
)

// Roller snapshots every trading account for one date
type Roller interface {
	RollupAll(ctx context.Context, date time.Time) (int, error)
}

// Scheduler triggers RollupAll once at start and then every interval
type Scheduler struct {
	roller   Roller
	interval time.Duration
	now      func() time.Time
}

// New creates a Scheduler. A non-positive interval yields a scheduler whose
// Start returns immediately.
func New(roller Roller, interval time.Duration) *Scheduler {
	return &Scheduler{roller: roller, interval: interval, now: time.Now}
}

// Start blocks until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		slog.Info("snapshot scheduler disabled")
		return
	}
	slog.Info("snapshot scheduler started", "interval", s.interval)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("snapshot scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce rolls up today's snapshots. Failures are logged; the next tick
// retries them.
func (s *Scheduler) RunOnce(ctx context.Context) {
	date := ledger.SnapshotDate(s.now())
	n, err := s.roller.RollupAll(ctx, date)
	if err != nil {
		slog.Error("snapshot rollup incomplete", "date", date.Format(time.DateOnly), "snapshots", n, "err", err)
		return
	}
	slog.Info("snapshot rollup complete", "date", date.Format(time.DateOnly), "snapshots", n)
}
