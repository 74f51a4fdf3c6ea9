// Package scheduler drives the periodic workflow cadence off the wall
// clock. Slots are keyed to absolute minutes of the hour rather than
// relative timers so every instance fires at the same, predictable times.
package scheduler

import (
	"context"
	"time"

	"NewsPulse/internal/domain/repository"
	"NewsPulse/pkg/logger"
)

// Clock abstracts wall-clock time so the cadence is testable.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RealClock returns the wall-clock implementation.
func RealClock() Clock { return realClock{} }

// Tasks are the workflows the scheduler dispatches. Anomaly is
// fire-and-forget; the others run inline and their overrun delays the next
// slot rather than stacking concurrent cycles.
type Tasks struct {
	Collect      func(ctx context.Context) error
	ShortHorizon func(ctx context.Context) error
	LongHorizon  func(ctx context.Context) error
	Anomaly      func(ctx context.Context)
}

// Config tunes the polling cadence.
type Config struct {
	Poll     time.Duration // idle poll interval
	Cooldown time.Duration // sleep after a matched slot, must exceed the slot minute
}

// Scheduler polls the wall clock and fires the slot whose minute matches.
// Collection minutes (2, 22, 42) run collection followed by both prediction
// horizons; the in-between minutes 12, 32, 52 run short-horizon alone, so
// short-horizon fires every 10 minutes. A slot that overruns past later
// slots simply misses them; the next wall-clock match picks the cadence
// back up with fresh data.
type Scheduler struct {
	clock   Clock
	tasks   Tasks
	metrics repository.Metrics
	logger  *logger.Logger
	cfg     Config
}

// New creates a scheduler. A nil clock defaults to the wall clock.
func New(clock Clock, tasks Tasks, metrics repository.Metrics, lgr *logger.Logger, cfg Config) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	if cfg.Poll <= 0 {
		cfg.Poll = time.Second
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	return &Scheduler{
		clock:   clock,
		tasks:   tasks,
		metrics: metrics,
		logger:  lgr,
		cfg:     cfg,
	}
}

// Run loops until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if matched := s.tick(ctx); matched {
			// Unconditional cooldown so the same minute never double-fires.
			if err := s.clock.Sleep(ctx, s.cfg.Cooldown); err != nil {
				return err
			}
			continue
		}

		if err := s.clock.Sleep(ctx, s.cfg.Poll); err != nil {
			return err
		}
	}
}

// tick evaluates the current minute and runs at most one slot.
func (s *Scheduler) tick(ctx context.Context) bool {
	minute := s.clock.Now().Minute()

	switch {
	case minute%20 == 2:
		s.metrics.RecordCycle("collection")
		s.runSlot(ctx, "collection", s.tasks.Collect)
		s.runSlot(ctx, "short_horizon", s.tasks.ShortHorizon)
		s.runSlot(ctx, "long_horizon", s.tasks.LongHorizon)
	case minute%10 == 2:
		s.metrics.RecordCycle("short_horizon")
		s.runSlot(ctx, "short_horizon", s.tasks.ShortHorizon)
	default:
		return false
	}

	if s.tasks.Anomaly != nil {
		go s.tasks.Anomaly(ctx)
	}
	return true
}

func (s *Scheduler) runSlot(ctx context.Context, slot string, task func(ctx context.Context) error) {
	if task == nil {
		return
	}
	start := s.clock.Now()
	if err := task(ctx); err != nil {
		s.metrics.RecordError("slot_" + slot)
		s.logger.Error("slot failed",
			logger.String("slot", slot),
			logger.Error(err))
		return
	}
	s.logger.Info("slot complete",
		logger.String("slot", slot),
		logger.Duration("took", s.clock.Now().Sub(start)))
}
