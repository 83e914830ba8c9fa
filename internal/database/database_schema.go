// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

/*
database_schema.go - Database Schema Management

This file manages the DuckDB database schema including table creation
and index management.

Tables:
  - games: Trading card games (upserted by slug)
  - sets: Card sets within a game (upserted by external_id, carries the
    sync state machine columns)
  - cards: Individual cards (upserted by external_id)
  - variants: Priced condition/printing combinations, unique on the
    compound key (card_id, condition, printing)
  - price_history: Append-only price change log
  - sync_job_runs: One row per sync job execution

Surrogate keys are BIGINT columns fed by DuckDB sequences. Parent
references (game_id, set_id, card_id, variant_id) are plain indexed
columns; the sync layer always resolves parents before children, so
declared FOREIGN KEY constraints would only complicate upsert replay.

Schema Strategy (Pre-Release):
All columns are defined in the initial CREATE TABLE statements. After
the first public release, schema changes go through versioned
migrations in migrations.go instead.

Index Strategy:
Indexes cover the sync hot paths (external ID lookups, per-set card and
variant scans, price history by variant) and the admin API listing
queries (job runs by status and start time).
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := db.getTableCreationQueries()

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// getTableCreationQueries returns the table creation SQL statements
func (db *DB) getTableCreationQueries() []string {
	return []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_games_id START 1;`,
		`CREATE SEQUENCE IF NOT EXISTS seq_sets_id START 1;`,
		`CREATE SEQUENCE IF NOT EXISTS seq_cards_id START 1;`,
		`CREATE SEQUENCE IF NOT EXISTS seq_variants_id START 1;`,
		`CREATE SEQUENCE IF NOT EXISTS seq_price_history_id START 1;`,

		`CREATE TABLE IF NOT EXISTS games (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_games_id'),
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			external_id TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS sets (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_sets_id'),
			game_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			code TEXT NOT NULL,
			external_id TEXT NOT NULL UNIQUE,
			card_count INTEGER NOT NULL DEFAULT 0,
			-- Sync state machine: pending -> syncing -> {completed, failed}
			sync_status TEXT NOT NULL DEFAULT 'pending',
			last_synced_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS cards (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_cards_id'),
			set_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			number TEXT,
			rarity TEXT,
			external_id TEXT NOT NULL UNIQUE,
			image_url TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		// Variant identity is the compound key; external_variant_id is an
		// indexed attribute only. Prices are integer cents.
		`CREATE TABLE IF NOT EXISTS variants (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_variants_id'),
			card_id BIGINT NOT NULL,
			condition TEXT NOT NULL,
			printing TEXT NOT NULL,
			price_cents BIGINT NOT NULL DEFAULT 0,
			market_price_cents BIGINT,
			low_price_cents BIGINT,
			high_price_cents BIGINT,
			external_variant_id TEXT,
			last_updated TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (card_id, condition, printing)
		);`,

		`CREATE TABLE IF NOT EXISTS price_history (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_price_history_id'),
			variant_id BIGINT NOT NULL,
			price_cents_old BIGINT NOT NULL,
			price_cents_new BIGINT NOT NULL,
			percentage_change DOUBLE NOT NULL,
			recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS sync_job_runs (
			id UUID PRIMARY KEY,
			job_type TEXT NOT NULL,
			game TEXT NOT NULL,
			set_code TEXT,
			expected_batches INTEGER NOT NULL DEFAULT 0,
			actual_batches INTEGER NOT NULL DEFAULT 0,
			cards_processed INTEGER NOT NULL DEFAULT 0,
			variants_updated INTEGER NOT NULL DEFAULT 0,
			error_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			error_detail TEXT,
			cancel_requested BOOLEAN NOT NULL DEFAULT false,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP
		);`,
	}
}

// createIndexes creates indexes for query performance
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := db.getIndexCreationQueries()

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}

	return nil
}

// getIndexCreationQueries returns the index creation SQL statements
func (db *DB) getIndexCreationQueries() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_games_active ON games(is_active);`,

		`CREATE INDEX IF NOT EXISTS idx_sets_game_id ON sets(game_id);`,
		`CREATE INDEX IF NOT EXISTS idx_sets_game_code ON sets(game_id, code);`,
		`CREATE INDEX IF NOT EXISTS idx_sets_sync_status ON sets(sync_status);`,

		`CREATE INDEX IF NOT EXISTS idx_cards_set_id ON cards(set_id);`,

		`CREATE INDEX IF NOT EXISTS idx_variants_card_id ON variants(card_id);`,
		`CREATE INDEX IF NOT EXISTS idx_variants_external ON variants(external_variant_id);`,

		`CREATE INDEX IF NOT EXISTS idx_price_history_variant ON price_history(variant_id);`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_recorded ON price_history(recorded_at DESC);`,

		`CREATE INDEX IF NOT EXISTS idx_job_runs_status ON sync_job_runs(status);`,
		`CREATE INDEX IF NOT EXISTS idx_job_runs_started ON sync_job_runs(started_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_job_runs_game_type ON sync_job_runs(game, job_type);`,
	}
}
