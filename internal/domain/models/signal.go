package models

import "time"

// Direction of a scored event or a produced prediction.
type Direction string

const (
	DirectionBullish Direction = "BULLISH"
	DirectionBearish Direction = "BEARISH"
	DirectionNeutral Direction = "NEUTRAL"
)

// Tag maps a direction to its event source tag value.
func (d Direction) Tag() int {
	switch d {
	case DirectionBullish:
		return TagBullish
	case DirectionBearish:
		return TagBearish
	default:
		return TagNeutral
	}
}

// Impact classifies the expected market impact of an event.
type Impact string

const (
	ImpactHigh   Impact = "HIGH"
	ImpactMedium Impact = "MEDIUM"
	ImpactLow    Impact = "LOW"
)

// Horizon is the prediction time frame class.
type Horizon string

const (
	HorizonShort Horizon = "SHORT" // ~1h
	HorizonLong  Horizon = "LONG"  // ~24h
)

// ListName returns the ledger list the horizon's signals are stored under.
// The names match what historical producers have already written.
func (h Horizon) ListName() string {
	if h == HorizonLong {
		return "trend_signals"
	}
	return "short_term_signals"
}

// Score is the transient result of the scoring stage.
type Score struct {
	Summary   string
	Direction Direction
	Impact    Impact
	Magnitude float64 // -1 (max bearish) .. 1 (max bullish)
}

// Signal is one directional prediction. Immutable once produced.
type Signal struct {
	ProducedAt    time.Time
	HorizonClass  Horizon
	Direction     Direction
	Confidence    float64 // 0..1
	Rationale     string
	DeepRationale string
}

// PredictionRequest bundles the context handed to the prediction
// collaborator: formatted recent events, price action, and the rolling
// backtest feedback.
type PredictionRequest struct {
	Horizon       Horizon
	Symbol        string
	EventContext  string
	MarketContext string
	Feedback      string
}

// BacktestRecord summarizes one backtest run. Derived, never persisted as
// a source of truth.
type BacktestRecord struct {
	Evaluated int
	Correct   int
	Accuracy  float64
}
