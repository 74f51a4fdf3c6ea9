package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"NewsPulse/internal/domain/models"
	"NewsPulse/internal/domain/repository"
	"NewsPulse/internal/ledger"
	"NewsPulse/pkg/logger"
)

// refetchSlack is the window around the event's known timestamp used for the
// pre-write re-read.
const refetchSlack = time.Minute

// LedgerWriterConfig tunes the write-back protocol.
type LedgerWriterConfig struct {
	Retention   int           // per-list ledger cap; 0 = unlimited
	VerifyDelay time.Duration // 0 disables the post-write verification read
}

// LedgerWriter implements the append write-back protocol: the external store
// has no transactions, so the only defense against clobbering a concurrent
// producer is re-reading the ledger immediately before writing. The optional
// post-write verification is observability, never a correctness gate.
type LedgerWriter struct {
	source  repository.EventSource
	metrics repository.Metrics
	logger  *logger.Logger
	cfg     LedgerWriterConfig
}

// NewLedgerWriter creates a ledger writer.
func NewLedgerWriter(source repository.EventSource, metrics repository.Metrics, lgr *logger.Logger, cfg LedgerWriterConfig) *LedgerWriter {
	return &LedgerWriter{
		source:  source,
		metrics: metrics,
		logger:  lgr,
		cfg:     cfg,
	}
}

// AppendSignal appends sig to the event's ledger and writes it back.
func (w *LedgerWriter) AppendSignal(ctx context.Context, ev *models.RawEvent, sig *models.Signal) error {
	fresh := w.refetch(ctx, ev)

	updated, err := ledger.Append(fresh.AnalysisRaw, sig, sig.HorizonClass, w.cfg.Retention)
	if err != nil {
		return fmt.Errorf("ledger append %s: %w", ev.ID, err)
	}

	upd := &models.EventUpdate{
		Summary:     fresh.Summary,
		AnalysisRaw: updated,
	}
	if fresh.Tag != models.TagUnprocessed {
		upd.Tag = models.TagPtr(fresh.Tag)
	}

	if err := w.source.Update(ctx, ev.ID, upd); err != nil {
		return fmt.Errorf("ledger write-back %s: %w", ev.ID, err)
	}

	w.metrics.RecordSignal(string(sig.HorizonClass))
	w.logger.Info("signal appended",
		logger.String("id", ev.ID),
		logger.String("horizon", string(sig.HorizonClass)),
		logger.String("direction", string(sig.Direction)))

	w.verify(ctx, ev, sig)
	return nil
}

// refetch re-reads the event inside a narrow window across all partitions,
// immediately before the write. Falls back to the stale copy when the
// re-read misses.
func (w *LedgerWriter) refetch(ctx context.Context, ev *models.RawEvent) *models.RawEvent {
	start := ev.OccurredAt.Add(-refetchSlack)
	end := ev.OccurredAt.Add(refetchSlack)

	for _, class := range models.AllSymbolClasses {
		events, err := w.source.Fetch(ctx, class, start, end)
		if err != nil {
			w.logger.Warn("pre-write re-read failed",
				logger.String("class", class.String()),
				logger.Error(err))
			continue
		}
		for _, fresh := range events {
			if fresh.ID == ev.ID {
				return fresh
			}
		}
	}

	w.logger.Warn("pre-write re-read missed event, using stale copy",
		logger.String("id", ev.ID))
	return ev
}

// verify re-reads the record after a short delay and logs a soft warning if
// the appended signal is not visible. A mismatch may simply be a newer write
// from a third producer, so it never triggers a retry.
func (w *LedgerWriter) verify(ctx context.Context, ev *models.RawEvent, sig *models.Signal) {
	if w.cfg.VerifyDelay <= 0 {
		return
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(w.cfg.VerifyDelay):
	}

	fresh := w.refetch(ctx, ev)
	entries := ledger.Signals(fresh.AnalysisRaw, sig.HorizonClass)
	for _, e := range entries {
		if e.Direction == string(sig.Direction) && strings.Contains(e.Reasoning, sig.Rationale) {
			return
		}
	}

	w.logger.Warn("post-write verification mismatch",
		logger.String("id", ev.ID),
		logger.String("horizon", string(sig.HorizonClass)),
		logger.Int("entries", len(entries)))
}
