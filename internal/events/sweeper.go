package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type expirer interface {
	DeactivateExpiredEvents(ctx context.Context) (int64, error)
}

// Sweeper periodically deactivates events whose date has passed.
type Sweeper struct {
	engine   expirer
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper creates a sweeper. interval must be positive.
func NewSweeper(engine expirer, interval time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Sweeper{engine: engine, interval: interval, logger: logger}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("event sweeper started", zap.Duration("interval", s.interval))
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("event sweeper stopped")
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.engine.DeactivateExpiredEvents(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("event sweep failed", zap.Error(err))
	}
}
