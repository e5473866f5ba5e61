package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler triggers ingest cycles on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	pipeline  *Pipeline
	interval  time.Duration
	logger    *slog.Logger
}

// NewScheduler creates a Scheduler around a pipeline.
func NewScheduler(p *Pipeline, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		pipeline:  p,
		interval:  interval,
		logger:    logger,
	}
}

// Start runs one immediate cycle and schedules the periodic job.
func (s *Scheduler) Start(ctx context.Context) error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		cycleCtx, cancel := context.WithTimeout(ctx, s.interval)
		defer cancel()

		if err := s.pipeline.Cycle(cycleCtx); err != nil {
			s.logger.Error("scheduled ingest cycle failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
