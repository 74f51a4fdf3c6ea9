package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPulse/internal/domain/models"
	"NewsPulse/internal/ledger"
	"NewsPulse/pkg/logger"
)

const barWidth = 15 * time.Minute

// window brackets base generously so only the explicit window tests care
// about its edges.
func window(base time.Time) (time.Time, time.Time) {
	return base.Add(-12 * time.Hour), base.Add(12 * time.Hour)
}

// barAt builds a bar on the 15m grid.
func barAt(bucket int64, open, close float64) *models.PriceBar {
	return &models.PriceBar{BucketStart: bucket, Open: open, Close: close}
}

// eventWithSignal builds an event whose ledger holds one short-horizon entry
// produced at the given time.
func eventWithSignal(t *testing.T, id string, producedAt time.Time, dir models.Direction) *models.RawEvent {
	t.Helper()
	raw, err := ledger.Append("", &models.Signal{
		ProducedAt: producedAt,
		Direction:  dir,
		Confidence: 0.8,
		Rationale:  "r",
	}, models.HorizonShort, 0)
	require.NoError(t, err)
	return &models.RawEvent{ID: id, Class: models.ClassBTC, OccurredAt: producedAt, Tag: models.TagBullish, AnalysisRaw: raw}
}

func TestEvaluateScoresAgainstRealizedMove(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) // on the grid
	bucket := base.Unix()
	target := bucket + 3600

	bars := []*models.PriceBar{
		barAt(bucket, 100, 101),
		barAt(target, 104, 105), // close 105 > open 100: realized bullish
	}

	events := []*models.RawEvent{
		eventWithSignal(t, "hit", base.Add(3*time.Minute), models.DirectionBullish),
		eventWithSignal(t, "miss", base.Add(7*time.Minute), models.DirectionBearish),
	}

	start, end := window(base)
	rec := Evaluate(events, bars, start, end, barWidth, time.Hour)
	assert.Equal(t, 2, rec.Evaluated)
	assert.Equal(t, 1, rec.Correct)
	assert.InDelta(t, 0.5, rec.Accuracy, 1e-9)
}

func TestEvaluateIgnoresPredictionsOutsideWindow(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stale := base.Add(-48 * time.Hour).Truncate(barWidth)

	// Bars exist for both predictions; only the window separates them.
	bars := []*models.PriceBar{
		barAt(base.Unix(), 100, 101),
		barAt(base.Unix()+3600, 104, 105),
		barAt(stale.Unix(), 100, 101),
		barAt(stale.Unix()+3600, 104, 105),
	}
	events := []*models.RawEvent{
		eventWithSignal(t, "in-window", base.Add(time.Minute), models.DirectionBullish),
		eventWithSignal(t, "stale", stale.Add(time.Minute), models.DirectionBullish),
	}

	start, end := window(base)
	rec := Evaluate(events, bars, start, end, barWidth, time.Hour)
	assert.Equal(t, 1, rec.Evaluated)
	assert.Equal(t, 1, rec.Correct)
}

func TestEvaluateSkipsNeutralPredictions(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	bars := []*models.PriceBar{
		barAt(base.Unix(), 100, 101),
		barAt(base.Unix()+3600, 104, 105),
	}
	events := []*models.RawEvent{
		eventWithSignal(t, "n", base.Add(time.Minute), models.DirectionNeutral),
	}

	start, end := window(base)
	rec := Evaluate(events, bars, start, end, barWidth, time.Hour)
	assert.Zero(t, rec.Evaluated)
}

func TestEvaluateBarGapSkipsOnlyThatPrediction(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	bucketA := base.Unix()
	bucketB := base.Add(30 * time.Minute).Unix()

	// bucketA has no target bar one hour later; bucketB does.
	bars := []*models.PriceBar{
		barAt(bucketA, 100, 101),
		barAt(bucketB, 102, 103),
		barAt(bucketB+3600, 90, 95), // close 95 < open 102: realized bearish
	}
	events := []*models.RawEvent{
		eventWithSignal(t, "gapped", base.Add(time.Minute), models.DirectionBullish),
		eventWithSignal(t, "scored", base.Add(31*time.Minute), models.DirectionBearish),
	}

	start, end := window(base)
	rec := Evaluate(events, bars, start, end, barWidth, time.Hour)
	assert.Equal(t, 1, rec.Evaluated)
	assert.Equal(t, 1, rec.Correct)
}

func TestEvaluateLegacyLedgerFallback(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	bars := []*models.PriceBar{
		barAt(base.Unix(), 100, 101),
		barAt(base.Unix()+3600, 104, 105),
	}
	ev := &models.RawEvent{
		ID:          "legacy",
		OccurredAt:  base.Add(2 * time.Minute),
		Tag:         models.TagBullish,
		AnalysisRaw: "some note || ⚡【1H_PREDICTION】:0.8|BULLISH|old reasoning",
	}

	start, end := window(base)
	rec := Evaluate([]*models.RawEvent{ev}, bars, start, end, barWidth, time.Hour)
	assert.Equal(t, 1, rec.Evaluated)
	assert.Equal(t, 1, rec.Correct)
}

func TestFeedbackBands(t *testing.T) {
	assert.Contains(t, Feedback(nil), "not enough historical predictions")
	assert.Contains(t, Feedback(&models.BacktestRecord{}), "not enough historical predictions")

	low := Feedback(&models.BacktestRecord{Evaluated: 10, Correct: 3, Accuracy: 0.3})
	assert.Contains(t, low, "Warning")

	mid := Feedback(&models.BacktestRecord{Evaluated: 10, Correct: 6, Accuracy: 0.6})
	assert.NotContains(t, mid, "Warning")
	assert.Contains(t, mid, "hit rate 60%")

	high := Feedback(&models.BacktestRecord{Evaluated: 10, Correct: 8, Accuracy: 0.8})
	assert.Contains(t, high, "keep the current approach")
}

func TestBacktesterRunSetsAccuracyGauge(t *testing.T) {
	base := time.Now().UTC().Add(-2 * time.Hour).Truncate(barWidth)
	ev := eventWithSignal(t, "ev", base.Add(time.Minute), models.DirectionBullish)
	src := newFakeSource(ev)
	prices := &fakePrices{bars: []*models.PriceBar{
		barAt(base.Unix(), 100, 101),
		barAt(base.Unix()+3600, 104, 105),
	}}
	archive := &fakeArchive{}
	metrics := newFakeMetrics()

	b := NewBacktester(src, prices, archive, metrics, logger.Nop(), BacktestConfig{})
	rec, feedback := b.Run(context.Background(), models.ClassBTC)

	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.Evaluated)
	assert.InDelta(t, 1.0, metrics.accuracy["BTCUSDT"], 1e-9)
	assert.Equal(t, 1, archive.backtests)
	assert.Contains(t, feedback, "1 predictions evaluated")
}

func TestBacktesterRunWithoutDataReturnsInsufficientFeedback(t *testing.T) {
	src := newFakeSource()
	prices := &fakePrices{}
	b := NewBacktester(src, prices, nil, newFakeMetrics(), logger.Nop(), BacktestConfig{})

	rec, feedback := b.Run(context.Background(), models.ClassBTC)
	assert.Nil(t, rec)
	assert.Contains(t, feedback, "not enough historical predictions")
}
