package models

import "time"

// Tag values used by the event source to mark processing state.
// 0 means the event has not been touched yet; 1-3 encode the scored
// direction; 4 marks noise or a permanently failed item.
const (
	TagUnprocessed = 0
	TagBullish     = 1
	TagNeutral     = 2
	TagBearish     = 3
	TagNoise       = 4
)

// SymbolClass identifies an event source partition.
type SymbolClass int

const (
	ClassBTC SymbolClass = 1
	ClassETH SymbolClass = 2
)

// AllSymbolClasses lists every partition the collector polls.
var AllSymbolClasses = []SymbolClass{ClassBTC, ClassETH}

// Symbol returns the exchange trading pair for a partition.
func (c SymbolClass) Symbol() string {
	switch c {
	case ClassETH:
		return "ETHUSDT"
	default:
		return "BTCUSDT"
	}
}

func (c SymbolClass) String() string {
	switch c {
	case ClassBTC:
		return "BTC"
	case ClassETH:
		return "ETH"
	default:
		return "UNKNOWN"
	}
}

// RawEvent is one record fetched from the event source. Identity is ID,
// assigned upstream; the struct is never mutated locally once fetched.
type RawEvent struct {
	ID          string
	Class       SymbolClass
	Source      string
	Title       string
	Content     string
	Link        string
	OccurredAt  time.Time
	Tag         int
	Summary     string
	AnalysisRaw string
}

// Text returns the best available body for scoring: content when present,
// otherwise the title.
func (e *RawEvent) Text() string {
	if e.Content != "" {
		return e.Content
	}
	return e.Title
}

// Processed reports whether the event already carries a directional tag.
func (e *RawEvent) Processed() bool {
	return e.Tag == TagBullish || e.Tag == TagNeutral || e.Tag == TagBearish
}

// EventUpdate carries the write-back fields for one event. Nil/empty fields
// are omitted from the upstream call.
type EventUpdate struct {
	Tag         *int
	Summary     string
	AnalysisRaw string
	Content     string
}

// TagPtr is a convenience for building EventUpdate literals.
func TagPtr(tag int) *int { return &tag }

// Verdict is the transient result of the relevance filter. Not persisted.
type Verdict struct {
	Relevant bool
	Reason   string
}
