// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/cardographus/internal/logging"
	"github.com/tomtom215/cardographus/internal/models"
)

// UpsertSet inserts or updates a set keyed on its upstream external_id
// and populates set.ID. The sync state machine columns (sync_status,
// last_synced_at) are never written by the upsert: a discovery refresh
// must not clobber the state of an in-flight or completed import. New
// rows start in pending.
func (db *DB) UpsertSet(ctx context.Context, set *models.Set) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	if set.CreatedAt.IsZero() {
		set.CreatedAt = now
	}
	set.UpdatedAt = now

	query := `INSERT INTO sets (game_id, name, code, external_id, card_count, sync_status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, 'pending', ?, ?)
	ON CONFLICT (external_id) DO UPDATE SET
		game_id = EXCLUDED.game_id,
		name = EXCLUDED.name,
		code = EXCLUDED.code,
		card_count = EXCLUDED.card_count,
		updated_at = EXCLUDED.updated_at`

	_, err := db.conn.ExecContext(ctx, query,
		set.GameID, set.Name, set.Code, set.ExternalID, set.CardCount,
		set.CreatedAt, set.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert set %q: %w", set.ExternalID, err)
	}

	row := db.conn.QueryRowContext(ctx,
		`SELECT id, sync_status, last_synced_at FROM sets WHERE external_id = ?`, set.ExternalID)

	var lastSynced sql.NullTime
	if err := row.Scan(&set.ID, &set.SyncStatus, &lastSynced); err != nil {
		return fmt.Errorf("failed to resolve set id for %q: %w", set.ExternalID, err)
	}
	if lastSynced.Valid {
		t := lastSynced.Time
		set.LastSyncedAt = &t
	}

	return nil
}

// GetSetByExternalID retrieves a set by its upstream identifier.
// Returns ErrNotFound if the set does not exist.
func (db *DB) GetSetByExternalID(ctx context.Context, externalID string) (*models.Set, error) {
	return db.getSet(ctx, `external_id = ?`, externalID)
}

// GetSetByCode retrieves a set by game and set code.
// Returns ErrNotFound if the set does not exist.
func (db *DB) GetSetByCode(ctx context.Context, gameID int64, code string) (*models.Set, error) {
	return db.getSet(ctx, `game_id = ? AND code = ?`, gameID, code)
}

func (db *DB) getSet(ctx context.Context, where string, args ...interface{}) (*models.Set, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, game_id, name, code, external_id, card_count, sync_status, last_synced_at, created_at, updated_at
	FROM sets WHERE ` + where

	var set models.Set
	var lastSynced sql.NullTime
	err := db.conn.QueryRowContext(ctx, query, args...).Scan(
		&set.ID, &set.GameID, &set.Name, &set.Code, &set.ExternalID,
		&set.CardCount, &set.SyncStatus, &lastSynced, &set.CreatedAt, &set.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get set: %w", err)
	}
	if lastSynced.Valid {
		t := lastSynced.Time
		set.LastSyncedAt = &t
	}

	return &set, nil
}

// ListSetsByGame returns all sets for a game ordered by code.
func (db *DB) ListSetsByGame(ctx context.Context, gameID int64) ([]*models.Set, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, game_id, name, code, external_id, card_count, sync_status, last_synced_at, created_at, updated_at
	FROM sets WHERE game_id = ? ORDER BY code`

	rows, err := db.conn.QueryContext(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sets: %w", err)
	}
	defer rows.Close()

	var sets []*models.Set
	for rows.Next() {
		var set models.Set
		var lastSynced sql.NullTime
		if err := rows.Scan(
			&set.ID, &set.GameID, &set.Name, &set.Code, &set.ExternalID,
			&set.CardCount, &set.SyncStatus, &lastSynced, &set.CreatedAt, &set.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan set: %w", err)
		}
		if lastSynced.Valid {
			t := lastSynced.Time
			set.LastSyncedAt = &t
		}
		sets = append(sets, &set)
	}

	return sets, rows.Err()
}

// TryMarkSetSyncing attempts the pending/completed/failed -> syncing
// transition for a set.
//
// The freshness guard runs first: a set that completed a sync within
// the freshness window returns ErrSetFresh and is left untouched, so
// the caller makes no upstream calls and records no job run for it.
//
// The transition itself is a compare-and-swap (UPDATE ... WHERE
// sync_status != 'syncing'); if another job holds the syncing state the
// swap affects zero rows and ErrSetSyncing is returned. Two concurrent
// imports of the same set therefore cannot both proceed.
func (db *DB) TryMarkSetSyncing(ctx context.Context, setID int64, freshness time.Duration) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var status string
	var lastSynced sql.NullTime
	err := db.conn.QueryRowContext(ctx,
		`SELECT sync_status, last_synced_at FROM sets WHERE id = ?`, setID).
		Scan(&status, &lastSynced)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read set %d state: %w", setID, err)
	}

	if freshness > 0 && status == models.SetSyncCompleted && lastSynced.Valid {
		if time.Since(lastSynced.Time) < freshness {
			return ErrSetFresh
		}
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE sets SET sync_status = ?, updated_at = ? WHERE id = ? AND sync_status != ?`,
		models.SetSyncSyncing, time.Now().UTC(), setID, models.SetSyncSyncing)
	if err != nil {
		return fmt.Errorf("failed to mark set %d syncing: %w", setID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check set %d transition: %w", setID, err)
	}
	if affected == 0 {
		return ErrSetSyncing
	}

	return nil
}

// FinishSetSync moves a syncing set to its terminal state. Successful
// syncs record last_synced_at, which feeds the freshness guard; failed
// syncs leave last_synced_at alone so the next attempt is not deferred.
func (db *DB) FinishSetSync(ctx context.Context, setID int64, succeeded bool) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now().UTC()

	var err error
	if succeeded {
		_, err = db.conn.ExecContext(ctx,
			`UPDATE sets SET sync_status = ?, last_synced_at = ?, updated_at = ? WHERE id = ?`,
			models.SetSyncCompleted, now, now, setID)
	} else {
		_, err = db.conn.ExecContext(ctx,
			`UPDATE sets SET sync_status = ?, updated_at = ? WHERE id = ?`,
			models.SetSyncFailed, now, setID)
	}
	if err != nil {
		return fmt.Errorf("failed to finish set %d sync: %w", setID, err)
	}

	logging.Debug().Int64("set_id", setID).Bool("succeeded", succeeded).Msg("Set sync finished")
	return nil
}
