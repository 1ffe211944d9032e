package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Runner interface {
	Run(ctx context.Context) (Result, error)
}

// Scheduler runs an ingestion pass immediately and then once per interval
// until its context is cancelled.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   zerolog.Logger
}

func NewScheduler(runner Runner, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{runner: runner, interval: interval, logger: logger}
}

// Start blocks until ctx is done. Run errors are logged and the loop keeps
// going.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("ingestion scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("ingestion scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.runner.Run(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scheduled ingestion run failed")
	}
}
