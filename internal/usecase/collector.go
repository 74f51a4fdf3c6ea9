package usecase

import (
	"context"
	"time"

	"NewsPulse/internal/domain/models"
	"NewsPulse/internal/domain/repository"
	"NewsPulse/pkg/logger"
)

// CollectorConfig tunes the collection cycle.
type CollectorConfig struct {
	Lookback  time.Duration // trailing fetch window per pass
	Passes    int           // passes per cycle, tolerating upstream publish latency
	PassDelay time.Duration // delay between passes
}

// Collector polls the event source and feeds untagged events into the
// pipeline. A failure in one event or one partition never aborts its
// siblings.
type Collector struct {
	source   repository.EventSource
	pipeline *Pipeline
	metrics  repository.Metrics
	logger   *logger.Logger
	cfg      CollectorConfig
}

// NewCollector creates the collection cycle runner.
func NewCollector(source repository.EventSource, pipeline *Pipeline, metrics repository.Metrics, lgr *logger.Logger, cfg CollectorConfig) *Collector {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 30 * time.Minute
	}
	if cfg.Passes <= 0 {
		cfg.Passes = 3
	}
	if cfg.PassDelay <= 0 {
		cfg.PassDelay = 15 * time.Second
	}
	return &Collector{
		source:   source,
		pipeline: pipeline,
		metrics:  metrics,
		logger:   lgr,
		cfg:      cfg,
	}
}

// RunIngestionCycle performs the configured number of collection passes.
// Safe to invoke repeatedly; the pipeline's dedup set makes overlapping
// windows cheap.
func (c *Collector) RunIngestionCycle(ctx context.Context) error {
	for pass := 0; pass < c.cfg.Passes; pass++ {
		if pass > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.PassDelay):
			}
		}
		c.runPass(ctx, pass)
	}
	return nil
}

func (c *Collector) runPass(ctx context.Context, pass int) {
	end := time.Now().UTC()
	start := end.Add(-c.cfg.Lookback)

	for _, class := range models.AllSymbolClasses {
		events, err := c.source.Fetch(ctx, class, start, end)
		if err != nil {
			c.logger.Warn("collection fetch failed",
				logger.String("class", class.String()),
				logger.Int("pass", pass),
				logger.Error(err))
			c.metrics.RecordError("collect_fetch")
			continue
		}

		handled := 0
		for _, ev := range events {
			if ev.Tag != models.TagUnprocessed {
				continue
			}
			if outcome := c.pipeline.Process(ctx, ev); outcome != OutcomeSkipped {
				handled++
			}
		}

		if handled > 0 {
			c.logger.Info("collection pass complete",
				logger.String("class", class.String()),
				logger.Int("pass", pass),
				logger.Int("fetched", len(events)),
				logger.Int("handled", handled))
		}
	}
}
