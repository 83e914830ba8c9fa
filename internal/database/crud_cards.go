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

const upsertCardQuery = `INSERT INTO cards (set_id, name, number, rarity, external_id, image_url, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (external_id) DO UPDATE SET
		set_id = EXCLUDED.set_id,
		name = EXCLUDED.name,
		number = EXCLUDED.number,
		rarity = EXCLUDED.rarity,
		image_url = EXCLUDED.image_url,
		updated_at = EXCLUDED.updated_at`

// UpsertCard inserts or updates a single card keyed on its upstream
// external_id and populates card.ID.
func (db *DB) UpsertCard(ctx context.Context, card *models.Card) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	if card.CreatedAt.IsZero() {
		card.CreatedAt = now
	}
	card.UpdatedAt = now

	err := retryOnConflict(ctx, func() error {
		_, err := db.conn.ExecContext(ctx, upsertCardQuery,
			card.SetID, card.Name, card.Number, card.Rarity,
			card.ExternalID, card.ImageURL, card.CreatedAt, card.UpdatedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert card %q: %w", card.ExternalID, err)
	}

	if err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM cards WHERE external_id = ?`, card.ExternalID).Scan(&card.ID); err != nil {
		return fmt.Errorf("failed to resolve card id for %q: %w", card.ExternalID, err)
	}

	return nil
}

// UpsertCardBatch writes a sub-batch of cards in one transaction and
// populates each card's ID. A row that fails to write is logged and
// counted, and the rest of the batch proceeds; the returned count is
// the number of failed rows. Only transaction-level failures (begin,
// commit, unrecoverable conflicts) are returned as errors.
//
// Callers chunk pages into sub-batches before calling; this method
// writes whatever it is given in a single transaction.
func (db *DB) UpsertCardBatch(ctx context.Context, cards []*models.Card) (int, error) {
	if len(cards) == 0 {
		return 0, nil
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	failed := 0

	err := retryOnConflict(ctx, func() error {
		failed = 0

		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin card batch: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		for _, card := range cards {
			if card.CreatedAt.IsZero() {
				card.CreatedAt = now
			}
			card.UpdatedAt = now

			_, err := tx.ExecContext(ctx, upsertCardQuery,
				card.SetID, card.Name, card.Number, card.Rarity,
				card.ExternalID, card.ImageURL, card.CreatedAt, card.UpdatedAt)
			if err != nil {
				if isTransactionConflict(err) || isConnectionError(err) {
					return err
				}
				// Row-level failure: count it, keep the batch going.
				failed++
				logging.Warn().Err(err).Str("external_id", card.ExternalID).Msg("Failed to upsert card row")
				continue
			}

			if err := tx.QueryRowContext(ctx,
				`SELECT id FROM cards WHERE external_id = ?`, card.ExternalID).Scan(&card.ID); err != nil {
				failed++
				logging.Warn().Err(err).Str("external_id", card.ExternalID).Msg("Failed to resolve card id")
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return len(cards), fmt.Errorf("failed to commit card batch: %w", err)
	}

	return failed, nil
}

// GetCardByExternalID retrieves a card by its upstream identifier.
// Returns ErrNotFound if the card does not exist.
func (db *DB) GetCardByExternalID(ctx context.Context, externalID string) (*models.Card, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, set_id, name, number, rarity, external_id, image_url, created_at, updated_at
	FROM cards WHERE external_id = ?`

	var card models.Card
	var imageURL sql.NullString
	err := db.conn.QueryRowContext(ctx, query, externalID).Scan(
		&card.ID, &card.SetID, &card.Name, &card.Number, &card.Rarity,
		&card.ExternalID, &imageURL, &card.CreatedAt, &card.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card %q: %w", externalID, err)
	}
	card.ImageURL = imageURL.String

	return &card, nil
}

// GetCard retrieves a card by its local row ID.
// Returns ErrNotFound if the card does not exist.
func (db *DB) GetCard(ctx context.Context, id int64) (*models.Card, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, set_id, name, number, rarity, external_id, image_url, created_at, updated_at
	FROM cards WHERE id = ?`

	var card models.Card
	var imageURL sql.NullString
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&card.ID, &card.SetID, &card.Name, &card.Number, &card.Rarity,
		&card.ExternalID, &imageURL, &card.CreatedAt, &card.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card %d: %w", id, err)
	}
	card.ImageURL = imageURL.String

	return &card, nil
}

// ListCardsBySet returns cards in a set ordered by collector number,
// paged by limit/offset. A limit of 0 returns all cards.
func (db *DB) ListCardsBySet(ctx context.Context, setID int64, limit, offset int) ([]*models.Card, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, set_id, name, number, rarity, external_id, image_url, created_at, updated_at
	FROM cards WHERE set_id = ? ORDER BY number, id`
	args := []interface{}{setID}
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var cards []*models.Card
	for rows.Next() {
		var card models.Card
		var imageURL sql.NullString
		if err := rows.Scan(
			&card.ID, &card.SetID, &card.Name, &card.Number, &card.Rarity,
			&card.ExternalID, &imageURL, &card.CreatedAt, &card.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		card.ImageURL = imageURL.String
		cards = append(cards, &card)
	}

	return cards, rows.Err()
}

// CountCardsBySet returns the number of locally stored cards in a set.
func (db *DB) CountCardsBySet(ctx context.Context, setID int64) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cards WHERE set_id = ?`, setID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cards for set %d: %w", setID, err)
	}
	return count, nil
}
