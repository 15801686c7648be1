package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/custodia-labs/sercha-relay/internal/core/ports/driven"
)

// DefaultSweepInterval is used when SweeperConfig.Interval is not set.
const DefaultSweepInterval = time.Minute

// Sweeper periodically removes expired entries from stores that do not
// expire keys on their own.
type Sweeper struct {
	store    driven.Sweepable
	interval time.Duration
	logger   *slog.Logger
}

// SweeperConfig holds configuration for the sweeper.
type SweeperConfig struct {
	Store    driven.Sweepable
	Interval time.Duration
	Logger   *slog.Logger
}

// NewSweeper creates a new sweeper.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	return &Sweeper{
		store:    cfg.Store,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
// Sweep failures are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("sweeper starting", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single cleanup pass and returns the number of entries
// removed.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	n, err := s.store.Cleanup(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("sweep failed", "error", err)
		}
		return 0
	}
	if n > 0 {
		s.logger.Debug("swept expired entries", "count", n)
	}
	return n
}
