package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"NewsPulse/internal/domain/models"
	"NewsPulse/internal/domain/repository"
	"NewsPulse/pkg/logger"
	"NewsPulse/pkg/retry"
)

// Outcome is the terminal state of one pipeline invocation.
type Outcome string

const (
	OutcomePersisted Outcome = "persisted"
	OutcomeNoise     Outcome = "noise"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped" // dedup hit, no write-back
)

// PipelineConfig tunes the per-event state machine.
type PipelineConfig struct {
	Retry        retry.Policy
	StageTimeout time.Duration
}

// Pipeline drives one raw event through FILTER, ENRICH, SCORE, and a
// terminal write-back. Every accepted event reaches exactly one of
// persisted/noise/failed; an unexpected stage error still produces a
// failed write-back rather than a silent drop.
type Pipeline struct {
	source   repository.EventSource
	filter   repository.RelevanceFilter
	scorer   repository.EventScorer
	enricher repository.Enricher
	archive  repository.Archive
	metrics  repository.Metrics
	logger   *logger.Logger
	cfg      PipelineConfig

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewPipeline creates the ingestion pipeline. archive may be nil.
func NewPipeline(
	source repository.EventSource,
	filter repository.RelevanceFilter,
	scorer repository.EventScorer,
	enricher repository.Enricher,
	archive repository.Archive,
	metrics repository.Metrics,
	lgr *logger.Logger,
	cfg PipelineConfig,
) *Pipeline {
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.Default()
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 20 * time.Second
	}
	return &Pipeline{
		source:   source,
		filter:   filter,
		scorer:   scorer,
		enricher: enricher,
		archive:  archive,
		metrics:  metrics,
		logger:   lgr,
		cfg:      cfg,
		seen:     make(map[string]struct{}),
	}
}

// Process runs one event to a terminal outcome. Calling it again with the
// same id within this process is a no-op. The in-memory dedup set does not
// survive restarts; the durable dedup signal is the upstream tag.
func (p *Pipeline) Process(ctx context.Context, ev *models.RawEvent) Outcome {
	if ev.ID == "" {
		p.logger.Error("event rejected: missing id", logger.String("title", ev.Title))
		p.metrics.RecordError("missing_id")
		return OutcomeFailed
	}

	if !p.markSeen(ev.ID) {
		return OutcomeSkipped
	}

	outcome := p.run(ctx, ev)
	p.metrics.RecordOutcome(string(outcome))
	return outcome
}

// markSeen is the race-free add-if-absent on the dedup set.
func (p *Pipeline) markSeen(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.seen[id]; ok {
		return false
	}
	p.seen[id] = struct{}{}
	return true
}

// run is the catch-all boundary: any panic or unhandled stage error becomes
// a FAILED write-back so the event never retries forever upstream.
func (p *Pipeline) run(ctx context.Context, ev *models.RawEvent) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline panic",
				logger.String("id", ev.ID),
				logger.Any("panic", r))
			p.writeFailed(ctx, ev, fmt.Sprintf("internal error: %v", r))
			outcome = OutcomeFailed
		}
	}()

	// FILTER: retried; exhaustion degrades to not-relevant (fail closed).
	verdict := p.runFilter(ctx, ev)
	if !verdict.Relevant {
		return p.writeNoise(ctx, ev, verdict.Reason)
	}

	// ENRICH: best effort, falls through with the original text.
	content, enriched := p.runEnrich(ctx, ev)

	// SCORE: retried; exhaustion is FAILED, distinct from noise.
	score, err := p.runScore(ctx, ev, content)
	if err != nil {
		p.logger.Warn("scoring exhausted, marking failed",
			logger.String("id", ev.ID),
			logger.Error(err))
		p.writeFailed(ctx, ev, "")
		return OutcomeFailed
	}

	return p.persist(ctx, ev, score, content, enriched)
}

func (p *Pipeline) runFilter(ctx context.Context, ev *models.RawEvent) *models.Verdict {
	var verdict *models.Verdict
	start := time.Now()
	err := p.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
		defer cancel()
		v, err := p.filter.Filter(callCtx, ev.Text(), ev.Source)
		if err != nil {
			return err
		}
		verdict = v
		return nil
	})
	p.metrics.RecordLatency("filter", time.Since(start).Seconds())
	if err != nil {
		p.logger.Warn("filter exhausted, treating as noise",
			logger.String("id", ev.ID),
			logger.Error(err))
		p.metrics.RecordError("filter")
		return &models.Verdict{Relevant: false, Reason: "filter unavailable"}
	}
	return verdict
}

func (p *Pipeline) runEnrich(ctx context.Context, ev *models.RawEvent) (string, bool) {
	if ev.Link == "" {
		return ev.Text(), false
	}
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	text, err := p.enricher.Enrich(callCtx, ev.Link)
	if err != nil {
		p.logger.Debug("enrich failed, keeping original content",
			logger.String("id", ev.ID),
			logger.Error(err))
		return ev.Text(), false
	}
	return text, true
}

func (p *Pipeline) runScore(ctx context.Context, ev *models.RawEvent, content string) (*models.Score, error) {
	var score *models.Score
	start := time.Now()
	err := p.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
		defer cancel()
		s, err := p.scorer.Score(callCtx, content, ev.Source)
		if err != nil {
			return err
		}
		score = s
		return nil
	})
	p.metrics.RecordLatency("score", time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordError("score")
		return nil, err
	}
	return score, nil
}

func (p *Pipeline) persist(ctx context.Context, ev *models.RawEvent, score *models.Score, content string, enriched bool) Outcome {
	upd := &models.EventUpdate{
		Tag:     models.TagPtr(score.Direction.Tag()),
		Summary: score.Summary,
	}
	if enriched {
		upd.Content = content
	}

	if err := p.source.Update(ctx, ev.ID, upd); err != nil {
		p.logger.Error("persist write-back failed",
			logger.String("id", ev.ID),
			logger.Error(err))
		p.metrics.RecordError("writeback")
		return OutcomeFailed
	}

	if p.archive != nil {
		if err := p.archive.ArchiveEvent(ctx, ev, score); err != nil {
			p.logger.Warn("event archive failed",
				logger.String("id", ev.ID),
				logger.Error(err))
		}
	}

	p.logger.Info("event persisted",
		logger.String("id", ev.ID),
		logger.String("direction", string(score.Direction)),
		logger.String("impact", string(score.Impact)))
	return OutcomePersisted
}

func (p *Pipeline) writeNoise(ctx context.Context, ev *models.RawEvent, reason string) Outcome {
	upd := &models.EventUpdate{
		Tag:     models.TagPtr(models.TagNoise),
		Summary: reason,
	}
	if err := p.source.Update(ctx, ev.ID, upd); err != nil {
		p.logger.Error("noise write-back failed",
			logger.String("id", ev.ID),
			logger.Error(err))
		p.metrics.RecordError("writeback")
		return OutcomeFailed
	}
	return OutcomeNoise
}

func (p *Pipeline) writeFailed(ctx context.Context, ev *models.RawEvent, reason string) {
	upd := &models.EventUpdate{
		Tag:     models.TagPtr(models.TagNoise),
		Summary: reason,
	}
	if err := p.source.Update(ctx, ev.ID, upd); err != nil {
		p.logger.Error("failure write-back failed",
			logger.String("id", ev.ID),
			logger.Error(err))
		p.metrics.RecordError("writeback")
	}
}
