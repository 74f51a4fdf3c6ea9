package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPulse/internal/domain/models"
	"NewsPulse/internal/domain/repository"
	"NewsPulse/pkg/logger"
	"NewsPulse/pkg/retry"
)

func testPipeline(src *fakeSource, filter *fakeFilter, scorer *fakeScorer, enricher *fakeEnricher, archive repository.Archive, metrics *fakeMetrics) *Pipeline {
	return NewPipeline(src, filter, scorer, enricher, archive, metrics, logger.Nop(), PipelineConfig{
		Retry:        retry.Policy{MaxAttempts: 3},
		StageTimeout: time.Second,
	})
}

func pipelineEvent() *models.RawEvent {
	return &models.RawEvent{
		ID:         "ev-1",
		Class:      models.ClassBTC,
		Source:     "wire",
		Title:      "ETF approved",
		Content:    "Spot ETF approved by the regulator.",
		Link:       "https://example.com/etf",
		OccurredAt: time.Now().UTC(),
	}
}

func TestPipelinePersistsRelevantEvent(t *testing.T) {
	ev := pipelineEvent()
	src := newFakeSource(ev)
	scorer := &fakeScorer{score: &models.Score{
		Summary:   "ETF approval, strongly positive",
		Direction: models.DirectionBullish,
		Impact:    models.ImpactHigh,
		Magnitude: 0.9,
	}}
	enricher := &fakeEnricher{text: "full article body"}
	archive := &fakeArchive{}
	metrics := newFakeMetrics()
	p := testPipeline(src, &fakeFilter{}, scorer, enricher, archive, metrics)

	outcome := p.Process(context.Background(), ev)

	assert.Equal(t, OutcomePersisted, outcome)
	require.Equal(t, 1, src.updateCount())

	upd := src.lastUpdate()
	assert.Equal(t, "ev-1", upd.id)
	require.NotNil(t, upd.upd.Tag)
	assert.Equal(t, models.TagBullish, *upd.upd.Tag)
	assert.Equal(t, "ETF approval, strongly positive", upd.upd.Summary)
	assert.Equal(t, "full article body", upd.upd.Content)
	assert.Equal(t, "full article body", scorer.lastText)
	assert.Equal(t, 1, archive.events)
	assert.Equal(t, 1, metrics.outcomes[string(OutcomePersisted)])
	assert.Equal(t, 1, metrics.latency["filter"])
	assert.Equal(t, 1, metrics.latency["score"])
}

func TestPipelineDedupSkipsSecondAttempt(t *testing.T) {
	ev := pipelineEvent()
	src := newFakeSource(ev)
	p := testPipeline(src, &fakeFilter{}, &fakeScorer{}, &fakeEnricher{text: "body"}, nil, newFakeMetrics())

	first := p.Process(context.Background(), ev)
	second := p.Process(context.Background(), ev)

	assert.Equal(t, OutcomePersisted, first)
	assert.Equal(t, OutcomeSkipped, second)
	assert.Equal(t, 1, src.updateCount(), "dedup hit must not write back")
}

func TestPipelineIrrelevantEventIsNoise(t *testing.T) {
	ev := pipelineEvent()
	src := newFakeSource(ev)
	filter := &fakeFilter{verdict: &models.Verdict{Relevant: false, Reason: "celebrity gossip"}}
	scorer := &fakeScorer{}
	p := testPipeline(src, filter, scorer, &fakeEnricher{}, nil, newFakeMetrics())

	outcome := p.Process(context.Background(), ev)

	assert.Equal(t, OutcomeNoise, outcome)
	assert.Zero(t, scorer.calls, "noise must not reach scoring")

	upd := src.lastUpdate()
	require.NotNil(t, upd.upd.Tag)
	assert.Equal(t, models.TagNoise, *upd.upd.Tag)
	assert.Equal(t, "celebrity gossip", upd.upd.Summary)
}

func TestPipelineFilterExhaustionFailsClosed(t *testing.T) {
	ev := pipelineEvent()
	src := newFakeSource(ev)
	filter := &fakeFilter{err: errors.New("filter down")}
	scorer := &fakeScorer{}
	metrics := newFakeMetrics()
	p := testPipeline(src, filter, scorer, &fakeEnricher{}, nil, metrics)

	outcome := p.Process(context.Background(), ev)

	assert.Equal(t, OutcomeNoise, outcome)
	assert.Equal(t, 3, filter.calls, "filter retried to exhaustion")
	assert.Zero(t, scorer.calls)
	assert.Equal(t, 1, metrics.errs["filter"])

	upd := src.lastUpdate()
	require.NotNil(t, upd.upd.Tag)
	assert.Equal(t, models.TagNoise, *upd.upd.Tag)
}

func TestPipelineFilterRecoversWithinBudget(t *testing.T) {
	ev := pipelineEvent()
	src := newFakeSource(ev)
	filter := &fakeFilter{failures: 2}
	p := testPipeline(src, filter, &fakeScorer{}, &fakeEnricher{text: "body"}, nil, newFakeMetrics())

	outcome := p.Process(context.Background(), ev)

	assert.Equal(t, OutcomePersisted, outcome)
	assert.Equal(t, 3, filter.calls)
}

func TestPipelineScoreExhaustionIsFailed(t *testing.T) {
	ev := pipelineEvent()
	src := newFakeSource(ev)
	scorer := &fakeScorer{err: errors.New("scoring down")}
	metrics := newFakeMetrics()
	p := testPipeline(src, &fakeFilter{}, scorer, &fakeEnricher{text: "body"}, nil, metrics)

	outcome := p.Process(context.Background(), ev)

	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, 3, scorer.calls)
	assert.Equal(t, 1, metrics.outcomes[string(OutcomeFailed)])

	// Still exactly one terminal write-back.
	require.Equal(t, 1, src.updateCount())
	upd := src.lastUpdate()
	require.NotNil(t, upd.upd.Tag)
	assert.Equal(t, models.TagNoise, *upd.upd.Tag)
}

func TestPipelineEnrichFailureFallsBackToOriginal(t *testing.T) {
	ev := pipelineEvent()
	src := newFakeSource(ev)
	scorer := &fakeScorer{}
	enricher := &fakeEnricher{err: errors.New("403")}
	p := testPipeline(src, &fakeFilter{}, scorer, enricher, nil, newFakeMetrics())

	outcome := p.Process(context.Background(), ev)

	assert.Equal(t, OutcomePersisted, outcome)
	assert.Equal(t, ev.Content, scorer.lastText)
	assert.Empty(t, src.lastUpdate().upd.Content, "unenriched content is not written back")
}

func TestPipelinePanicProducesFailedWriteBack(t *testing.T) {
	ev := pipelineEvent()
	src := newFakeSource(ev)
	scorer := &fakeScorer{panics: true}
	p := testPipeline(src, &fakeFilter{}, scorer, &fakeEnricher{text: "body"}, nil, newFakeMetrics())

	outcome := p.Process(context.Background(), ev)

	assert.Equal(t, OutcomeFailed, outcome)
	require.Equal(t, 1, src.updateCount())
	upd := src.lastUpdate()
	require.NotNil(t, upd.upd.Tag)
	assert.Equal(t, models.TagNoise, *upd.upd.Tag)
	assert.Contains(t, upd.upd.Summary, "internal error")
}

func TestPipelineMissingIDNeverWritesBack(t *testing.T) {
	src := newFakeSource()
	metrics := newFakeMetrics()
	p := testPipeline(src, &fakeFilter{}, &fakeScorer{}, &fakeEnricher{}, nil, metrics)

	outcome := p.Process(context.Background(), &models.RawEvent{Title: "orphan"})

	assert.Equal(t, OutcomeFailed, outcome)
	assert.Zero(t, src.updateCount())
	assert.Equal(t, 1, metrics.errs["missing_id"])
}

func TestPipelineWriteBackFailureIsFailed(t *testing.T) {
	ev := pipelineEvent()
	src := newFakeSource(ev)
	src.updateErr = errors.New("store offline")
	p := testPipeline(src, &fakeFilter{}, &fakeScorer{}, &fakeEnricher{text: "body"}, nil, newFakeMetrics())

	outcome := p.Process(context.Background(), ev)

	assert.Equal(t, OutcomeFailed, outcome)
}
