package chat

import (
	"context"
	"time"

	"powpow/pkg/logger"
)

// IdleSweeper is the engine surface used by the sweeper
type IdleSweeper interface {
	SweepIdle(now time.Time) []string
}

// Sweeper periodically removes idle players. The engine serializes the
// sweep against in-flight commands.
type Sweeper struct {
	engine   IdleSweeper
	interval time.Duration

	// OnSweep is called with the identities removed by each sweep
	OnSweep func(removed []string)
}

// NewSweeper creates a sweeper running every interval
func NewSweeper(engine IdleSweeper, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{engine: engine, interval: interval}
}

// Run sweeps until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Component("sweeper").WithField("interval", s.interval).Info("Idle sweeper started")

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.SweepOnce(now)
		}
	}
}

// SweepOnce runs a single sweep
func (s *Sweeper) SweepOnce(now time.Time) []string {
	removed := s.engine.SweepIdle(now)
	if len(removed) > 0 && s.OnSweep != nil {
		s.OnSweep(removed)
	}
	return removed
}
