package usecase

import (
	"context"
	"fmt"
	"time"

	"NewsPulse/internal/domain/models"
	"NewsPulse/internal/domain/repository"
	"NewsPulse/internal/ledger"
	"NewsPulse/pkg/logger"
	"NewsPulse/pkg/util"
)

// BacktestConfig fixes the price grid and the evaluation horizon.
type BacktestConfig struct {
	BarWidth time.Duration // price bar grid width
	Horizon  time.Duration // prediction horizon being scored
	Window   time.Duration // trailing event window
	Interval string        // upstream kline interval string, e.g. "15m"
	BarLimit int
}

// Backtester scores past short-horizon predictions against realized price
// moves and feeds the result back into the next prediction.
type Backtester struct {
	source  repository.EventSource
	prices  repository.PriceSeries
	archive repository.Archive
	metrics repository.Metrics
	logger  *logger.Logger
	cfg     BacktestConfig
}

// NewBacktester creates a backtester. archive may be nil.
func NewBacktester(
	source repository.EventSource,
	prices repository.PriceSeries,
	archive repository.Archive,
	metrics repository.Metrics,
	lgr *logger.Logger,
	cfg BacktestConfig,
) *Backtester {
	if cfg.BarWidth <= 0 {
		cfg.BarWidth = 15 * time.Minute
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = time.Hour
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.Interval == "" {
		cfg.Interval = "15m"
	}
	if cfg.BarLimit <= 0 {
		cfg.BarLimit = 100
	}
	return &Backtester{
		source:  source,
		prices:  prices,
		archive: archive,
		metrics: metrics,
		logger:  lgr,
		cfg:     cfg,
	}
}

// Run evaluates the trailing window for one partition and returns the record
// plus a human-readable feedback string consumed by the short-horizon
// prediction prompt.
func (b *Backtester) Run(ctx context.Context, class models.SymbolClass) (*models.BacktestRecord, string) {
	symbol := class.Symbol()
	end := time.Now().UTC()
	start := end.Add(-b.cfg.Window)

	events, err := b.source.Fetch(ctx, class, start, end)
	if err != nil {
		b.logger.Warn("backtest fetch failed", logger.Error(err))
		return nil, insufficientDataFeedback
	}

	bars, err := b.prices.Klines(ctx, symbol, b.cfg.Interval, b.cfg.BarLimit)
	if err != nil {
		b.logger.Warn("backtest klines failed", logger.Error(err))
		return nil, insufficientDataFeedback
	}
	if len(events) == 0 || len(bars) == 0 {
		return nil, insufficientDataFeedback
	}

	rec := Evaluate(events, bars, start, end, b.cfg.BarWidth, b.cfg.Horizon)
	if rec.Evaluated == 0 {
		return rec, insufficientDataFeedback
	}

	b.metrics.SetAccuracy(symbol, rec.Accuracy)
	if b.archive != nil {
		if err := b.archive.ArchiveBacktest(ctx, symbol, rec); err != nil {
			b.logger.Warn("backtest archive failed", logger.Error(err))
		}
	}

	b.logger.Info("backtest complete",
		logger.String("symbol", symbol),
		logger.Int("evaluated", rec.Evaluated),
		logger.Int("correct", rec.Correct),
		logger.Float64("accuracy", rec.Accuracy))

	return rec, Feedback(rec)
}

const insufficientDataFeedback = "Backtest: not enough historical predictions to evaluate; proceed with the usual strategy."

// Feedback renders the record into the string handed to the predictor.
func Feedback(rec *models.BacktestRecord) string {
	if rec == nil || rec.Evaluated == 0 {
		return insufficientDataFeedback
	}
	s := fmt.Sprintf("Backtest: %d predictions evaluated over the last 24h, hit rate %.0f%%.",
		rec.Evaluated, rec.Accuracy*100)
	switch {
	case rec.Accuracy < 0.5:
		s += " Warning: accuracy is below coin-flip; watch for directional bias and weigh price momentum more."
	case rec.Accuracy > 0.7:
		s += " Recent predictions track the market closely; keep the current approach."
	}
	return s
}

// Evaluate aligns every short-horizon signal produced inside [start, end] to
// the price grid and scores it against the realized move one horizon later.
// An event's ledger can hold entries older than the window it was fetched
// for, so the window is checked per prediction. Gaps in the bar series skip
// the single prediction, never abort the run. Neutral predictions are not
// scoreable and are skipped.
func Evaluate(events []*models.RawEvent, bars []*models.PriceBar, start, end time.Time, barWidth, horizon time.Duration) *models.BacktestRecord {
	index := models.BarIndex(bars)
	horizonSec := int64(horizon.Seconds())

	rec := &models.BacktestRecord{}
	for _, ev := range events {
		for _, pred := range extractPredictions(ev) {
			if pred.direction == models.DirectionNeutral {
				continue
			}
			if pred.producedAt.Before(start) || pred.producedAt.After(end) {
				continue
			}

			bucket := util.FloorToBucket(pred.producedAt, barWidth)
			target := bucket + horizonSec

			startBar, okStart := index[bucket]
			targetBar, okTarget := index[target]
			if !okStart || !okTarget {
				continue
			}

			realized := realizedDirection(targetBar.Close - startBar.Open)
			rec.Evaluated++
			if pred.direction == realized {
				rec.Correct++
			}
		}
	}

	if rec.Evaluated > 0 {
		rec.Accuracy = float64(rec.Correct) / float64(rec.Evaluated)
	}
	return rec
}

type prediction struct {
	direction  models.Direction
	producedAt time.Time
}

// extractPredictions pulls scoreable short-horizon predictions out of one
// event's ledger. Legacy pipe-delimited ledgers yield at most one prediction
// whose producedAt is approximated by the event's own timestamp, a known
// imprecision of the migration path.
func extractPredictions(ev *models.RawEvent) []prediction {
	entries := ledger.Signals(ev.AnalysisRaw, models.HorizonShort)
	if len(entries) == 0 {
		if dir, ok := ledger.LegacyDirection(ev.AnalysisRaw); ok {
			return []prediction{{direction: dir, producedAt: ev.OccurredAt}}
		}
		return nil
	}

	preds := make([]prediction, 0, len(entries))
	for i := range entries {
		at, ok := entries[i].ProducedAt()
		if !ok {
			continue
		}
		preds = append(preds, prediction{
			direction:  models.Direction(entries[i].Direction),
			producedAt: at,
		})
	}
	return preds
}

func realizedDirection(delta float64) models.Direction {
	switch {
	case delta > 0:
		return models.DirectionBullish
	case delta < 0:
		return models.DirectionBearish
	default:
		return models.DirectionNeutral
	}
}
