package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	TempMaxAge    = 24 * time.Hour
	SweepInterval = time.Hour
)

// Sweeper periodically removes staged uploads that were never attached to a
// session.
type Sweeper struct {
	store    Store
	logger   zerolog.Logger
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(store Store, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		logger:   logger,
		maxAge:   TempMaxAge,
		interval: SweepInterval,
		now:      time.Now,
	}
}

// SweepOnce deletes staged photos older than the max age.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	n, err := s.store.DeleteOlderThan(ctx, TempPrefix, s.now().Add(-s.maxAge))
	if err != nil {
		s.logger.Warn().Err(err).Msg("temp photo sweep failed")
		return n, err
	}
	if n > 0 {
		s.logger.Info().Int("removed", n).Msg("temp photos swept")
	}
	return n, nil
}

// Run sweeps once immediately, then on every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.SweepOnce(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}
