// Package sched owns the watch loop: an immediate run, then runs on a fixed
// interval until the context is cancelled.
package sched

import (
	"context"
	"log/slog"
	"time"

	"jobwatch/internal/runner"
)

// Runner is the unit of work the scheduler triggers each tick.
type Runner interface {
	RunAll(ctx context.Context) []runner.Result
}

// Scheduler ticks on an interval and triggers a full run each time.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
}

// New creates a scheduler that runs all sources at the given interval.
func New(r Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   r,
		interval: interval,
		logger:   logger,
	}
}

// Run starts the watch loop. It runs one immediate cycle, then ticks on the
// configured interval. It returns nil when ctx is cancelled (graceful
// shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting watch loop", "interval", s.interval.String())

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down watch loop")
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	results := s.runner.RunAll(ctx)
	for _, res := range results {
		if res.Outcome == runner.OutcomeFailed {
			s.logger.Error("source run failed", "source", res.Source, "state", res.State, "error", res.Err)
		}
	}
}
