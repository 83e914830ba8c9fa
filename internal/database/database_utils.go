// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package database

import (
	"context"
	"fmt"
	"time"
)

// ensureContext creates a context with 30-second timeout if none provided
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 30*time.Second)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, 30*time.Second)
	}

	return ctx, func() {}
}

// Checkpoint forces a WAL checkpoint
func (db *DB) Checkpoint(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, "CHECKPOINT")
	if err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// GetDatabasePath returns the path to the database file
func (db *DB) GetDatabasePath() string {
	return db.cfg.Path
}

// RecordCounts holds row counts for the main catalog tables.
type RecordCounts struct {
	Games       int64 `json:"games"`
	Sets        int64 `json:"sets"`
	Cards       int64 `json:"cards"`
	Variants    int64 `json:"variants"`
	PricePoints int64 `json:"price_points"`
	SyncJobRuns int64 `json:"sync_job_runs"`
}

// GetRecordCounts returns the count of records in the main tables.
// Used by the health endpoint and for backup verification.
func (db *DB) GetRecordCounts(ctx context.Context) (*RecordCounts, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	counts := &RecordCounts{}
	targets := []struct {
		table string
		dest  *int64
	}{
		{"games", &counts.Games},
		{"sets", &counts.Sets},
		{"cards", &counts.Cards},
		{"variants", &counts.Variants},
		{"price_history", &counts.PricePoints},
		{"sync_job_runs", &counts.SyncJobRuns},
	}

	for _, tgt := range targets {
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", tgt.table) //nolint:gosec // Table names are compile-time constants
		if err := db.conn.QueryRowContext(ctx, query).Scan(tgt.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", tgt.table, err)
		}
	}

	return counts, nil
}
