package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"NewsPulse/internal/domain/models"
	"NewsPulse/pkg/logger"
	"NewsPulse/pkg/retry"
)

func testCollector(src *fakeSource, metrics *fakeMetrics, cfg CollectorConfig) (*Collector, *fakeScorer) {
	scorer := &fakeScorer{}
	pipeline := NewPipeline(src, &fakeFilter{}, scorer, &fakeEnricher{err: errors.New("skip")}, nil, metrics, logger.Nop(), PipelineConfig{
		Retry:        retry.None(),
		StageTimeout: time.Second,
	})
	return NewCollector(src, pipeline, metrics, logger.Nop(), cfg), scorer
}

func TestCollectorProcessesOnlyUntaggedEvents(t *testing.T) {
	now := time.Now().UTC()
	fresh := &models.RawEvent{ID: "fresh", Class: models.ClassBTC, Title: "new", OccurredAt: now.Add(-time.Minute)}
	tagged := &models.RawEvent{ID: "tagged", Class: models.ClassBTC, Title: "done", OccurredAt: now.Add(-2 * time.Minute), Tag: models.TagBullish}
	src := newFakeSource(fresh, tagged)

	c, scorer := testCollector(src, newFakeMetrics(), CollectorConfig{Passes: 1})
	assert.NoError(t, c.RunIngestionCycle(context.Background()))

	assert.Equal(t, 1, scorer.calls)
	assert.Equal(t, 1, src.updateCount())
	assert.Equal(t, "fresh", src.lastUpdate().id)
}

func TestCollectorPartitionFailureDoesNotAbortSiblings(t *testing.T) {
	now := time.Now().UTC()
	ethEvent := &models.RawEvent{ID: "eth-1", Class: models.ClassETH, Title: "eth news", OccurredAt: now.Add(-time.Minute)}
	src := newFakeSource(ethEvent)
	src.fetchErr[models.ClassBTC] = errors.New("partition down")
	metrics := newFakeMetrics()

	c, _ := testCollector(src, metrics, CollectorConfig{Passes: 1})
	assert.NoError(t, c.RunIngestionCycle(context.Background()))

	assert.Equal(t, 1, src.updateCount(), "healthy partition still processed")
	assert.Equal(t, 1, metrics.errs["collect_fetch"])
}

func TestCollectorRunsConfiguredPasses(t *testing.T) {
	src := newFakeSource()
	c, _ := testCollector(src, newFakeMetrics(), CollectorConfig{Passes: 3, PassDelay: time.Millisecond})

	assert.NoError(t, c.RunIngestionCycle(context.Background()))
	assert.Equal(t, 3*len(models.AllSymbolClasses), src.fetchCalls)
}

func TestCollectorOverlappingCyclesAreCheap(t *testing.T) {
	now := time.Now().UTC()
	ev := &models.RawEvent{ID: "dup", Class: models.ClassBTC, Title: "t", OccurredAt: now.Add(-time.Minute)}
	src := newFakeSource(ev)

	c, scorer := testCollector(src, newFakeMetrics(), CollectorConfig{Passes: 1})
	assert.NoError(t, c.RunIngestionCycle(context.Background()))
	assert.NoError(t, c.RunIngestionCycle(context.Background()))

	assert.Equal(t, 1, scorer.calls, "second cycle hits the dedup set")
}

func TestCollectorHonorsContextCancellation(t *testing.T) {
	src := newFakeSource()
	c, _ := testCollector(src, newFakeMetrics(), CollectorConfig{Passes: 3, PassDelay: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, c.RunIngestionCycle(ctx))
	assert.Equal(t, len(models.AllSymbolClasses), src.fetchCalls, "only the first pass ran")
}
