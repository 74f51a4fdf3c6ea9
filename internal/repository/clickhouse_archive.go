package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"NewsPulse/internal/domain/models"
	pkgch "NewsPulse/pkg/clickhouse"
	applogger "NewsPulse/pkg/logger"
)

// CHArchive persists processed events, produced signals, and backtest runs
// to ClickHouse for offline analysis. The event source stays the source of
// truth; everything here is write-only history.
type CHArchive struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHArchive(ch *pkgch.Client) *CHArchive {
	return &CHArchive{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (a *CHArchive) SetLogger(l *applogger.Logger) { a.l = l }

// Schema returns the idempotent DDL for the archive tables.
func Schema() []string {
	return []string{
		`CREATE DATABASE IF NOT EXISTS newspulse`,
		`CREATE TABLE IF NOT EXISTS newspulse.processed_events (
            event_id    String,
            class       Int32,
            source      String,
            title       String,
            occurred_at DateTime,
            direction   String,
            impact      String,
            magnitude   Float64,
            summary     String,
            archived_at DateTime DEFAULT now()
        ) ENGINE = MergeTree()
        ORDER BY (occurred_at, event_id)`,
		`CREATE TABLE IF NOT EXISTS newspulse.trading_signals (
            event_id    String,
            horizon     String,
            direction   String,
            confidence  Float64,
            rationale   String,
            produced_at DateTime,
            archived_at DateTime DEFAULT now()
        ) ENGINE = MergeTree()
        ORDER BY (produced_at, event_id)`,
		`CREATE TABLE IF NOT EXISTS newspulse.backtest_runs (
            symbol    String,
            evaluated Int32,
            correct   Int32,
            accuracy  Float64,
            run_at    DateTime DEFAULT now()
        ) ENGINE = MergeTree()
        ORDER BY (run_at, symbol)`,
	}
}

func (a *CHArchive) ArchiveEvent(ctx context.Context, ev *models.RawEvent, score *models.Score) error {
	start := time.Now()
	const q = `
        INSERT INTO newspulse.processed_events
            (event_id, class, source, title, occurred_at, direction, impact, magnitude, summary)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := a.db.ExecContext(ctx, q,
		ev.ID, int32(ev.Class), ev.Source, ev.Title, ev.OccurredAt,
		string(score.Direction), string(score.Impact), score.Magnitude, score.Summary)
	if err != nil {
		if a.l != nil {
			a.l.Error("clickhouse archive_event insert error",
				applogger.String("event_id", ev.ID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("archive event: %w", err)
	}
	if a.l != nil {
		a.l.Debug("clickhouse archive_event ok",
			applogger.String("event_id", ev.ID),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (a *CHArchive) ArchiveSignal(ctx context.Context, eventID string, sig *models.Signal) error {
	start := time.Now()
	const q = `
        INSERT INTO newspulse.trading_signals
            (event_id, horizon, direction, confidence, rationale, produced_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	_, err := a.db.ExecContext(ctx, q,
		eventID, string(sig.HorizonClass), string(sig.Direction),
		sig.Confidence, sig.Rationale, sig.ProducedAt)
	if err != nil {
		if a.l != nil {
			a.l.Error("clickhouse archive_signal insert error",
				applogger.String("event_id", eventID),
				applogger.String("horizon", string(sig.HorizonClass)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("archive signal: %w", err)
	}
	if a.l != nil {
		a.l.Debug("clickhouse archive_signal ok",
			applogger.String("event_id", eventID),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (a *CHArchive) ArchiveBacktest(ctx context.Context, symbol string, rec *models.BacktestRecord) error {
	const q = `
        INSERT INTO newspulse.backtest_runs (symbol, evaluated, correct, accuracy)
        VALUES (?, ?, ?, ?)
    `
	_, err := a.db.ExecContext(ctx, q, symbol, int32(rec.Evaluated), int32(rec.Correct), rec.Accuracy)
	if err != nil {
		if a.l != nil {
			a.l.Error("clickhouse archive_backtest insert error",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("archive backtest: %w", err)
	}
	return nil
}

func (a *CHArchive) Close() error { return nil }
