package repository

import (
	"context"
	"time"

	"NewsPulse/internal/domain/models"
)

// EventSource is the external store of raw events. It has no transactional
// API: Update overwrites fields, so writers must re-read immediately before
// writing (see the ledger write-back protocol).
type EventSource interface {
	Fetch(ctx context.Context, class models.SymbolClass, start, end time.Time) ([]*models.RawEvent, error)
	Update(ctx context.Context, id string, upd *models.EventUpdate) error
}

// PriceSeries provides fixed-interval price bars for one symbol.
type PriceSeries interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]*models.PriceBar, error)
}

// RelevanceFilter decides whether a raw event is worth scoring.
type RelevanceFilter interface {
	Filter(ctx context.Context, content, source string) (*models.Verdict, error)
}

// EventScorer turns a relevant event into a structured score.
type EventScorer interface {
	Score(ctx context.Context, content, source string) (*models.Score, error)
}

// SignalPredictor produces a directional prediction from the assembled
// context. Opaque, possibly slow, possibly failing.
type SignalPredictor interface {
	Predict(ctx context.Context, req *models.PredictionRequest) (*models.Signal, error)
}

// Enricher fetches the event's source page body. Best effort: callers fall
// back to the original content on any failure.
type Enricher interface {
	Enrich(ctx context.Context, link string) (string, error)
}

// Archive persists processed events, produced signals, and backtest runs to
// the local analytical store. All writes are best effort and never gate a
// pipeline or workflow outcome.
type Archive interface {
	ArchiveEvent(ctx context.Context, ev *models.RawEvent, score *models.Score) error
	ArchiveSignal(ctx context.Context, eventID string, sig *models.Signal) error
	ArchiveBacktest(ctx context.Context, symbol string, rec *models.BacktestRecord) error
	Close() error
}

// SignalBus broadcasts produced signals to downstream consumers.
type SignalBus interface {
	PublishSignal(ctx context.Context, eventID string, sig *models.Signal) error
	Close() error
}

// Metrics records operational counters and gauges.
type Metrics interface {
	RecordOutcome(outcome string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordCycle(slot string)
	RecordSignal(horizon string)
	SetAccuracy(symbol string, accuracy float64)
}
