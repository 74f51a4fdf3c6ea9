package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	outcomesTotal *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	cyclesTotal   *prometheus.CounterVec
	signalsTotal  *prometheus.CounterVec
	accuracy      *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		outcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newspulse_event_outcomes_total",
				Help: "Terminal pipeline outcomes per event",
			},
			[]string{"outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newspulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newspulse_operation_seconds",
				Help:    "Operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		cyclesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newspulse_scheduler_cycles_total",
				Help: "Scheduler slots fired",
			},
			[]string{"slot"},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newspulse_signals_produced_total",
				Help: "Signals appended to event ledgers",
			},
			[]string{"horizon"},
		),
		accuracy: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "newspulse_backtest_accuracy",
				Help: "Latest backtest hit rate per symbol",
			},
			[]string{"symbol"},
		),
	}
}

func (r *Recorder) RecordOutcome(outcome string) {
	r.outcomesTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordCycle(slot string) {
	r.cyclesTotal.WithLabelValues(slot).Inc()
}

func (r *Recorder) RecordSignal(horizon string) {
	r.signalsTotal.WithLabelValues(horizon).Inc()
}

func (r *Recorder) SetAccuracy(symbol string, accuracy float64) {
	r.accuracy.WithLabelValues(symbol).Set(accuracy)
}

// Nop is a no-op Metrics implementation for tests and disabled setups.
type Nop struct{}

func (Nop) RecordOutcome(string)         {}
func (Nop) RecordError(string)           {}
func (Nop) RecordLatency(string, float64) {}
func (Nop) RecordCycle(string)           {}
func (Nop) RecordSignal(string)          {}
func (Nop) SetAccuracy(string, float64)  {}
