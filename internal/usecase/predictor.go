package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"NewsPulse/internal/domain/models"
	"NewsPulse/internal/domain/repository"
	"NewsPulse/pkg/logger"
)

// PredictorConfig tunes anchor selection and context assembly.
type PredictorConfig struct {
	SearchWindow     time.Duration // anchor search window
	ContextWindow    time.Duration // short-horizon context before the anchor
	LongWindow       time.Duration // long-horizon summary window
	MaxContextEvents int
	Interval         string // kline interval for market context
}

// Predictor runs the short- and long-horizon prediction workflows. Both
// anchor on the most recent scored event, assemble a context for the
// prediction collaborator, and append the resulting signal through the
// ledger write-back protocol.
type Predictor struct {
	source     repository.EventSource
	prices     repository.PriceSeries
	predictor  repository.SignalPredictor
	backtester *Backtester
	writer     *LedgerWriter
	bus        repository.SignalBus
	archive    repository.Archive
	metrics    repository.Metrics
	logger     *logger.Logger
	cfg        PredictorConfig
}

// NewPredictor creates the prediction workflows. bus and archive may be nil.
func NewPredictor(
	source repository.EventSource,
	prices repository.PriceSeries,
	predictor repository.SignalPredictor,
	backtester *Backtester,
	writer *LedgerWriter,
	bus repository.SignalBus,
	archive repository.Archive,
	metrics repository.Metrics,
	lgr *logger.Logger,
	cfg PredictorConfig,
) *Predictor {
	if cfg.SearchWindow <= 0 {
		cfg.SearchWindow = 12 * time.Hour
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 75 * time.Minute
	}
	if cfg.LongWindow <= 0 {
		cfg.LongWindow = 24 * time.Hour
	}
	if cfg.MaxContextEvents <= 0 {
		cfg.MaxContextEvents = 25
	}
	if cfg.Interval == "" {
		cfg.Interval = "15m"
	}
	return &Predictor{
		source:     source,
		prices:     prices,
		predictor:  predictor,
		backtester: backtester,
		writer:     writer,
		bus:        bus,
		archive:    archive,
		metrics:    metrics,
		logger:     lgr,
		cfg:        cfg,
	}
}

// RunShortHorizonPrediction anchors on the freshest scored event, gathers
// the preceding context window plus live price action and the backtest
// feedback, and appends a short-horizon signal to the anchor's ledger.
func (p *Predictor) RunShortHorizonPrediction(ctx context.Context) error {
	anchor := p.findAnchor(ctx, p.cfg.SearchWindow)
	if anchor == nil {
		p.logger.Warn("short-horizon: no scored events in search window")
		return nil
	}

	_, feedback := p.backtester.Run(ctx, models.ClassBTC)
	market := p.marketContext(ctx, models.ClassBTC.Symbol())
	events := p.contextEvents(ctx, anchor.OccurredAt.Add(-p.cfg.ContextWindow), anchor.OccurredAt)

	req := &models.PredictionRequest{
		Horizon:       models.HorizonShort,
		Symbol:        models.ClassBTC.Symbol(),
		EventContext:  formatEvents(events, anchor.OccurredAt, p.cfg.MaxContextEvents),
		MarketContext: market,
		Feedback:      feedback,
	}

	start := time.Now()
	sig, err := p.predictor.Predict(ctx, req)
	p.metrics.RecordLatency("predict_short", time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordError("predict_short")
		return fmt.Errorf("short-horizon predict: %w", err)
	}
	sig.HorizonClass = models.HorizonShort

	return p.deliver(ctx, anchor, sig)
}

// RunLongHorizonPrediction synthesizes the trailing day of processed
// summaries into a macro trend signal.
func (p *Predictor) RunLongHorizonPrediction(ctx context.Context) error {
	anchor := p.findAnchor(ctx, p.cfg.SearchWindow)
	if anchor == nil {
		p.logger.Warn("long-horizon: no scored events in search window")
		return nil
	}

	end := time.Now().UTC()
	events := p.contextEvents(ctx, end.Add(-p.cfg.LongWindow), end)

	req := &models.PredictionRequest{
		Horizon:       models.HorizonLong,
		Symbol:        models.ClassBTC.Symbol(),
		EventContext:  formatEvents(events, end, p.cfg.MaxContextEvents),
		MarketContext: p.marketContext(ctx, models.ClassBTC.Symbol()),
	}

	start := time.Now()
	sig, err := p.predictor.Predict(ctx, req)
	p.metrics.RecordLatency("predict_long", time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordError("predict_long")
		return fmt.Errorf("long-horizon predict: %w", err)
	}
	sig.HorizonClass = models.HorizonLong

	return p.deliver(ctx, anchor, sig)
}

// deliver runs the write-back protocol, then broadcasts and archives the
// signal best effort.
func (p *Predictor) deliver(ctx context.Context, anchor *models.RawEvent, sig *models.Signal) error {
	if err := p.writer.AppendSignal(ctx, anchor, sig); err != nil {
		return err
	}

	if p.bus != nil {
		if err := p.bus.PublishSignal(ctx, anchor.ID, sig); err != nil {
			p.logger.Warn("signal publish failed",
				logger.String("id", anchor.ID),
				logger.Error(err))
		}
	}
	if p.archive != nil {
		if err := p.archive.ArchiveSignal(ctx, anchor.ID, sig); err != nil {
			p.logger.Warn("signal archive failed",
				logger.String("id", anchor.ID),
				logger.Error(err))
		}
	}
	return nil
}

// findAnchor returns the most recently scored event across all partitions
// within the trailing window, or nil.
func (p *Predictor) findAnchor(ctx context.Context, window time.Duration) *models.RawEvent {
	end := time.Now().UTC()
	events := p.fetchAll(ctx, end.Add(-window), end)

	var anchor *models.RawEvent
	for _, ev := range events {
		if !ev.Processed() {
			continue
		}
		if anchor == nil || ev.OccurredAt.After(anchor.OccurredAt) {
			anchor = ev
		}
	}
	return anchor
}

// contextEvents returns the scored events of [start, end] across all
// partitions, newest first.
func (p *Predictor) contextEvents(ctx context.Context, start, end time.Time) []*models.RawEvent {
	events := p.fetchAll(ctx, start, end)
	scored := events[:0]
	for _, ev := range events {
		if ev.Processed() {
			scored = append(scored, ev)
		}
	}
	sort.Slice(scored, func(i, j int) bool {
		return scored[i].OccurredAt.After(scored[j].OccurredAt)
	})
	return scored
}

func (p *Predictor) fetchAll(ctx context.Context, start, end time.Time) []*models.RawEvent {
	var all []*models.RawEvent
	for _, class := range models.AllSymbolClasses {
		events, err := p.source.Fetch(ctx, class, start, end)
		if err != nil {
			p.logger.Warn("context fetch failed",
				logger.String("class", class.String()),
				logger.Error(err))
			continue
		}
		all = append(all, events...)
	}
	return all
}

// marketContext summarizes the latest bar's move for the prompt.
func (p *Predictor) marketContext(ctx context.Context, symbol string) string {
	bars, err := p.prices.Klines(ctx, symbol, p.cfg.Interval, 3)
	if err != nil || len(bars) == 0 {
		return "Current market price data unavailable."
	}
	latest := bars[len(bars)-1]
	if latest.Open == 0 {
		return "Current market price data unavailable."
	}
	pct := (latest.Close - latest.Open) / latest.Open * 100
	return fmt.Sprintf("%s %s bar: %+.2f%% (close %v)", symbol, p.cfg.Interval, pct, latest.Close)
}

var tagNames = map[int]string{
	models.TagBullish: "BULLISH",
	models.TagNeutral: "NEUTRAL",
	models.TagBearish: "BEARISH",
	models.TagNoise:   "NOISE",
}

// formatEvents renders events as prompt lines with minute-precision age
// relative to base.
func formatEvents(events []*models.RawEvent, base time.Time, limit int) string {
	if len(events) > limit {
		events = events[:limit]
	}

	lines := make([]string, 0, len(events))
	for _, ev := range events {
		name, ok := tagNames[ev.Tag]
		if !ok {
			name = "UNKNOWN"
		}
		body := ev.Summary
		if body == "" {
			body = ev.Title
		}
		minutesAgo := int(base.Sub(ev.OccurredAt).Minutes())
		if minutesAgo < 0 {
			minutesAgo = 0
		}
		lines = append(lines, fmt.Sprintf("- [%dm ago] [%s] %s", minutesAgo, name, body))
	}
	return strings.Join(lines, "\n")
}
