// Package telemetry persists observability data for the ingest daemon:
// a ledger of published splits and cumulative stage counters. It is
// written by the publish consumer, off the ingest hot path, and exists
// for monitoring only — ingest correctness never depends on it.
package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// PublishedSplit is one row of the split ledger.
type PublishedSplit struct {
	SplitID     string
	IndexID     string
	Docs        uint64
	ParseErrors uint64
	SizeBytes   uint64
	// TimeRangeStart/End are epoch millis; both zero when the split
	// observed no timestamps.
	TimeRangeStart int64
	TimeRangeEnd   int64
	PublishedAt    time.Time
}

// SplitLedger records published splits in SQLite.
type SplitLedger struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database at path and ensures the
// schema exists.
func Open(path string) (*SplitLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SplitLedger{db: db}, nil
}

// initSchema creates the ledger tables if they don't exist.
func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS published_splits (
		split_id TEXT PRIMARY KEY,
		index_id TEXT NOT NULL,
		docs INTEGER NOT NULL,
		parse_errors INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL,
		time_range_start INTEGER NOT NULL DEFAULT 0,
		time_range_end INTEGER NOT NULL DEFAULT 0,
		published_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_published_splits_index
		ON published_splits(index_id, published_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create ledger schema: %w", err)
	}
	return nil
}

// Record inserts one published split into the ledger.
func (l *SplitLedger) Record(ctx context.Context, s PublishedSplit) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO published_splits
			(split_id, index_id, docs, parse_errors, size_bytes,
			 time_range_start, time_range_end, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SplitID, s.IndexID, s.Docs, s.ParseErrors, s.SizeBytes,
		s.TimeRangeStart, s.TimeRangeEnd, s.PublishedAt.UTC())
	if err != nil {
		return fmt.Errorf("record published split %s: %w", s.SplitID, err)
	}
	return nil
}

// Recent returns the most recently published splits for an index,
// newest first.
func (l *SplitLedger) Recent(ctx context.Context, indexID string, limit int) ([]PublishedSplit, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT split_id, index_id, docs, parse_errors, size_bytes,
		       time_range_start, time_range_end, published_at
		FROM published_splits
		WHERE index_id = ?
		ORDER BY published_at DESC, split_id DESC
		LIMIT ?`, indexID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent splits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []PublishedSplit
	for rows.Next() {
		var s PublishedSplit
		if err := rows.Scan(&s.SplitID, &s.IndexID, &s.Docs, &s.ParseErrors,
			&s.SizeBytes, &s.TimeRangeStart, &s.TimeRangeEnd, &s.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan split row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Totals returns the cumulative docs, parse errors, and bytes across
// all splits published for an index.
func (l *SplitLedger) Totals(ctx context.Context, indexID string) (docs, parseErrors, bytes uint64, err error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(docs), 0),
		       COALESCE(SUM(parse_errors), 0),
		       COALESCE(SUM(size_bytes), 0)
		FROM published_splits
		WHERE index_id = ?`, indexID)
	if err := row.Scan(&docs, &parseErrors, &bytes); err != nil {
		return 0, 0, 0, fmt.Errorf("sum ledger totals: %w", err)
	}
	return docs, parseErrors, bytes, nil
}

// Close closes the underlying database.
func (l *SplitLedger) Close() error {
	return l.db.Close()
}
