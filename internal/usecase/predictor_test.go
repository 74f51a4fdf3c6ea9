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
	"NewsPulse/internal/ledger"
	"NewsPulse/pkg/logger"
)

func testPredictor(src *fakeSource, prices *fakePrices, fp *fakePredictor, bus repository.SignalBus, archive repository.Archive) *Predictor {
	metrics := newFakeMetrics()
	backtester := NewBacktester(src, prices, nil, metrics, logger.Nop(), BacktestConfig{})
	writer := NewLedgerWriter(src, metrics, logger.Nop(), LedgerWriterConfig{})
	return NewPredictor(src, prices, fp, backtester, writer, bus, archive, metrics, logger.Nop(), PredictorConfig{})
}

func scoredEvent(id string, class models.SymbolClass, at time.Time, tag int, summary string) *models.RawEvent {
	return &models.RawEvent{
		ID:         id,
		Class:      class,
		Title:      "title " + id,
		OccurredAt: at,
		Tag:        tag,
		Summary:    summary,
	}
}

func TestShortHorizonPredictionEndToEnd(t *testing.T) {
	now := time.Now().UTC()
	anchor := scoredEvent("anchor", models.ClassBTC, now.Add(-5*time.Minute), models.TagBullish, "ETF inflows accelerate")
	older := scoredEvent("older", models.ClassETH, now.Add(-40*time.Minute), models.TagBearish, "exchange outage")
	unscored := scoredEvent("raw", models.ClassBTC, now.Add(-10*time.Minute), models.TagUnprocessed, "")
	src := newFakeSource(anchor, older, unscored)

	prices := &fakePrices{bars: []*models.PriceBar{
		{BucketStart: now.Add(-15 * time.Minute).Unix(), Open: 100, Close: 102},
	}}
	fp := &fakePredictor{sig: &models.Signal{
		ProducedAt: now,
		Direction:  models.DirectionBullish,
		Confidence: 0.85,
		Rationale:  "flows dominate",
	}}
	bus := &fakeBus{}
	archive := &fakeArchive{}
	p := testPredictor(src, prices, fp, bus, archive)

	require.NoError(t, p.RunShortHorizonPrediction(context.Background()))
	require.Equal(t, 1, fp.calls)

	req := fp.lastReq
	assert.Equal(t, models.HorizonShort, req.Horizon)
	assert.Equal(t, "BTCUSDT", req.Symbol)
	assert.Contains(t, req.EventContext, "[BULLISH] ETF inflows accelerate")
	assert.Contains(t, req.EventContext, "[BEARISH] exchange outage")
	assert.NotContains(t, req.EventContext, "raw", "unscored events stay out of the context")
	assert.Contains(t, req.MarketContext, "BTCUSDT")
	assert.Contains(t, req.MarketContext, "+2.00%")
	assert.NotEmpty(t, req.Feedback)

	entries := ledger.Signals(src.stored("anchor").AnalysisRaw, models.HorizonShort)
	require.Len(t, entries, 1)
	assert.Equal(t, "flows dominate", entries[0].Reasoning)

	require.Len(t, bus.published, 1)
	assert.Equal(t, models.HorizonShort, bus.published[0].HorizonClass)
	assert.Equal(t, 1, archive.signals)
}

func TestShortHorizonNoScoredEventsIsNoOp(t *testing.T) {
	now := time.Now().UTC()
	src := newFakeSource(scoredEvent("raw", models.ClassBTC, now.Add(-time.Hour), models.TagUnprocessed, ""))
	fp := &fakePredictor{}
	p := testPredictor(src, &fakePrices{}, fp, nil, nil)

	require.NoError(t, p.RunShortHorizonPrediction(context.Background()))
	assert.Zero(t, fp.calls)
	assert.Zero(t, src.updateCount())
}

func TestShortHorizonPredictFailurePropagates(t *testing.T) {
	now := time.Now().UTC()
	src := newFakeSource(scoredEvent("anchor", models.ClassBTC, now.Add(-time.Minute), models.TagNeutral, "s"))
	fp := &fakePredictor{err: errors.New("model timeout")}
	p := testPredictor(src, &fakePrices{}, fp, nil, nil)

	err := p.RunShortHorizonPrediction(context.Background())
	require.Error(t, err)
	assert.Zero(t, src.updateCount(), "failed prediction never writes back")
}

func TestLongHorizonAppendsToTrendList(t *testing.T) {
	now := time.Now().UTC()
	anchor := scoredEvent("anchor", models.ClassBTC, now.Add(-2*time.Hour), models.TagBearish, "regulatory pressure")
	src := newFakeSource(anchor)
	fp := &fakePredictor{sig: &models.Signal{
		ProducedAt: now,
		Direction:  models.DirectionBearish,
		Confidence: 0.7,
		Rationale:  "trend continuation",
	}}
	p := testPredictor(src, &fakePrices{}, fp, nil, nil)

	require.NoError(t, p.RunLongHorizonPrediction(context.Background()))

	raw := src.stored("anchor").AnalysisRaw
	assert.Empty(t, ledger.Signals(raw, models.HorizonShort))
	entries := ledger.Signals(raw, models.HorizonLong)
	require.Len(t, entries, 1)
	assert.Equal(t, "trend continuation", entries[0].Reasoning)
}

func TestBusAndArchiveFailuresAreSoft(t *testing.T) {
	now := time.Now().UTC()
	src := newFakeSource(scoredEvent("anchor", models.ClassBTC, now.Add(-time.Minute), models.TagBullish, "s"))
	fp := &fakePredictor{sig: &models.Signal{ProducedAt: now, Direction: models.DirectionBullish, Confidence: 0.6, Rationale: "r"}}
	bus := &fakeBus{err: errors.New("broker down")}
	archive := &fakeArchive{err: errors.New("store down")}
	p := testPredictor(src, &fakePrices{}, fp, bus, archive)

	assert.NoError(t, p.RunShortHorizonPrediction(context.Background()))
}

func TestFormatEventsCapsAndOrders(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := make([]*models.RawEvent, 0, 30)
	for i := 0; i < 30; i++ {
		events = append(events, scoredEvent("e", models.ClassBTC, base.Add(-time.Duration(i)*time.Minute), models.TagNeutral, "s"))
	}

	out := formatEvents(events, base, 25)
	assert.Equal(t, 25, len(splitLines(out)))
	assert.Contains(t, out, "- [0m ago] [NEUTRAL] s")
}

func TestFormatEventsFallsBackToTitle(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := &models.RawEvent{Title: "headline only", OccurredAt: base.Add(-90 * time.Second), Tag: models.TagBearish}

	out := formatEvents([]*models.RawEvent{ev}, base, 25)
	assert.Equal(t, "- [1m ago] [BEARISH] headline only", out)
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return append(lines, s[start:])
}
