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

	"github.com/tomtom215/cardographus/internal/models"
)

// UpsertGame inserts or updates a game keyed on its slug and populates
// game.ID with the stored row's surrogate key. created_at is preserved
// on update; updated_at always moves forward.
func (db *DB) UpsertGame(ctx context.Context, game *models.Game) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	if game.CreatedAt.IsZero() {
		game.CreatedAt = now
	}
	game.UpdatedAt = now

	query := `INSERT INTO games (name, slug, external_id, is_active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (slug) DO UPDATE SET
		name = EXCLUDED.name,
		external_id = EXCLUDED.external_id,
		is_active = EXCLUDED.is_active,
		updated_at = EXCLUDED.updated_at`

	_, err := db.conn.ExecContext(ctx, query,
		game.Name, game.Slug, game.ExternalID, game.IsActive, game.CreatedAt, game.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert game %q: %w", game.Slug, err)
	}

	if err := db.conn.QueryRowContext(ctx, `SELECT id FROM games WHERE slug = ?`, game.Slug).Scan(&game.ID); err != nil {
		return fmt.Errorf("failed to resolve game id for %q: %w", game.Slug, err)
	}

	return nil
}

// GetGameBySlug retrieves a single game by slug.
// Returns ErrNotFound if the game does not exist.
func (db *DB) GetGameBySlug(ctx context.Context, slug string) (*models.Game, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, name, slug, external_id, is_active, created_at, updated_at
	FROM games WHERE slug = ?`

	var game models.Game
	err := db.conn.QueryRowContext(ctx, query, slug).Scan(
		&game.ID, &game.Name, &game.Slug, &game.ExternalID,
		&game.IsActive, &game.CreatedAt, &game.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game %q: %w", slug, err)
	}

	return &game, nil
}

// ListGames returns all games, optionally restricted to active ones,
// ordered by slug for deterministic output.
func (db *DB) ListGames(ctx context.Context, activeOnly bool) ([]*models.Game, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, name, slug, external_id, is_active, created_at, updated_at
	FROM games`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY slug`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	var games []*models.Game
	for rows.Next() {
		var game models.Game
		if err := rows.Scan(
			&game.ID, &game.Name, &game.Slug, &game.ExternalID,
			&game.IsActive, &game.CreatedAt, &game.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, &game)
	}

	return games, rows.Err()
}
