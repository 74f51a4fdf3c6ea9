package usecase

import (
	"context"
	"fmt"
	"time"

	"NewsPulse/internal/domain/models"
	"NewsPulse/internal/domain/repository"
	"NewsPulse/pkg/logger"
	"NewsPulse/pkg/queue"
)

// AnomalyConfig tunes the volume-spike detector.
type AnomalyConfig struct {
	Interval     string        // bar interval, e.g. "15m"
	BaselineBars int           // trailing bars averaged as the baseline
	Threshold    float64       // relative deviation that counts as anomalous
	Confidence   float64       // confidence attached to anomaly signals
	SearchWindow time.Duration // anchor search window for the ledger write
}

// AnomalyDetector compares the latest bar's volume against its trailing
// average. A spike reads as bullish conviction, a collapse as bearish, and
// the resulting signal goes through the same ledger write-back as any
// prediction.
type AnomalyDetector struct {
	source  repository.EventSource
	prices  repository.PriceSeries
	writer  *LedgerWriter
	bus     repository.SignalBus
	metrics repository.Metrics
	logger  *logger.Logger
	cfg     AnomalyConfig
}

// NewAnomalyDetector creates the detector. bus may be nil.
func NewAnomalyDetector(
	source repository.EventSource,
	prices repository.PriceSeries,
	writer *LedgerWriter,
	bus repository.SignalBus,
	metrics repository.Metrics,
	lgr *logger.Logger,
	cfg AnomalyConfig,
) *AnomalyDetector {
	if cfg.Interval == "" {
		cfg.Interval = "15m"
	}
	if cfg.BaselineBars <= 0 {
		cfg.BaselineBars = 96
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.5
	}
	if cfg.Confidence <= 0 {
		cfg.Confidence = 0.9
	}
	if cfg.SearchWindow <= 0 {
		cfg.SearchWindow = 12 * time.Hour
	}
	return &AnomalyDetector{
		source:  source,
		prices:  prices,
		writer:  writer,
		bus:     bus,
		metrics: metrics,
		logger:  lgr,
		cfg:     cfg,
	}
}

// RunAnomalyCheck runs one detection pass over every partition. Partition
// failures are isolated; the first error is returned after all passes.
func (d *AnomalyDetector) RunAnomalyCheck(ctx context.Context) error {
	var first error
	for _, class := range models.AllSymbolClasses {
		if err := d.Check(ctx, class); err != nil {
			d.logger.Warn("anomaly check failed",
				logger.String("class", class.String()),
				logger.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Check runs one detection pass for a partition. A quiet market is the
// normal case and returns nil without side effects.
func (d *AnomalyDetector) Check(ctx context.Context, class models.SymbolClass) error {
	symbol := class.Symbol()

	bars, err := d.prices.Klines(ctx, symbol, d.cfg.Interval, d.cfg.BaselineBars+1)
	if err != nil {
		d.metrics.RecordError("anomaly_klines")
		return fmt.Errorf("anomaly klines %s: %w", symbol, err)
	}
	if len(bars) < 2 {
		return nil
	}

	latest := bars[len(bars)-1]
	baseline := averageVolume(bars[:len(bars)-1])
	if baseline <= 0 {
		return nil
	}

	ratio := latest.Volume / baseline
	var dir models.Direction
	switch {
	case ratio >= 1+d.cfg.Threshold:
		dir = models.DirectionBullish
	case ratio <= 1-d.cfg.Threshold:
		dir = models.DirectionBearish
	default:
		return nil
	}

	sig := &models.Signal{
		ProducedAt:   time.Now().UTC(),
		HorizonClass: models.HorizonShort,
		Direction:    dir,
		Confidence:   d.cfg.Confidence,
		Rationale: fmt.Sprintf("Volume anomaly on %s: latest %s bar at %.0f%% of the trailing average.",
			symbol, d.cfg.Interval, ratio*100),
	}

	d.logger.Info("volume anomaly detected",
		logger.String("symbol", symbol),
		logger.String("direction", string(dir)),
		logger.Float64("ratio", ratio))

	anchor := d.latestScored(ctx, class)
	if anchor != nil {
		if err := d.writer.AppendSignal(ctx, anchor, sig); err != nil {
			d.logger.Warn("anomaly ledger write failed",
				logger.String("id", anchor.ID),
				logger.Error(err))
		}
	}

	if d.bus != nil {
		id := symbol
		if anchor != nil {
			id = anchor.ID
		}
		if err := d.bus.PublishSignal(ctx, id, sig); err != nil {
			d.logger.Warn("anomaly publish failed", logger.Error(err))
		}
	}
	return nil
}

// latestScored finds the partition's freshest scored event to anchor the
// anomaly signal on, or nil when the window is empty.
func (d *AnomalyDetector) latestScored(ctx context.Context, class models.SymbolClass) *models.RawEvent {
	end := time.Now().UTC()
	events, err := d.source.Fetch(ctx, class, end.Add(-d.cfg.SearchWindow), end)
	if err != nil {
		d.logger.Warn("anomaly anchor fetch failed", logger.Error(err))
		return nil
	}

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

func averageVolume(bars []*models.PriceBar) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bars {
		sum += b.Volume
	}
	return sum / float64(len(bars))
}

const anomalyCheckType = "anomaly.check"

type anomalyPayload struct {
	Class int `json:"class"`
}

// AnomalyJob consumes anomaly-check messages from the work queue.
type AnomalyJob struct {
	detector *AnomalyDetector
}

// NewAnomalyJob wraps the detector as a queue job.
func NewAnomalyJob(detector *AnomalyDetector) *AnomalyJob {
	return &AnomalyJob{detector: detector}
}

func (j *AnomalyJob) Name() string { return "anomaly-check" }
func (j *AnomalyJob) Type() string { return anomalyCheckType }

func (j *AnomalyJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[anomalyPayload](payload)
	if err != nil {
		return err
	}
	return j.detector.Check(ctx, models.SymbolClass(p.Class))
}

// EnqueueAnomalyChecks puts one anomaly-check message per partition onto the
// queue. Used by the scheduler's fire-and-forget slot.
func EnqueueAnomalyChecks(ctx context.Context, q queue.Service, lgr *logger.Logger) {
	for _, class := range models.AllSymbolClasses {
		if err := q.PublishMessage(ctx, anomalyCheckType, anomalyPayload{Class: int(class)}); err != nil {
			lgr.Warn("anomaly enqueue failed",
				logger.String("class", class.String()),
				logger.Error(err))
		}
	}
}
