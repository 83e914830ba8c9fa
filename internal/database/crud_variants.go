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

const upsertVariantQuery = `INSERT INTO variants (card_id, condition, printing, price_cents, market_price_cents, low_price_cents, high_price_cents, external_variant_id, last_updated)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (card_id, condition, printing) DO UPDATE SET
		price_cents = EXCLUDED.price_cents,
		market_price_cents = EXCLUDED.market_price_cents,
		low_price_cents = EXCLUDED.low_price_cents,
		high_price_cents = EXCLUDED.high_price_cents,
		external_variant_id = EXCLUDED.external_variant_id,
		last_updated = EXCLUDED.last_updated`

// VariantBatchResult reports the outcome of a variant sub-batch write.
//
// PriceChanges carries one entry per variant whose price_cents actually
// moved, with the matching price_history row already committed in the
// same transaction. Callers publish events from this slice; re-running
// the same batch produces no changes and therefore no events.
type VariantBatchResult struct {
	Upserted     int
	Failed       int
	PriceChanges []*models.PricePoint
}

// UpsertVariantBatch writes a sub-batch of variants in one transaction.
//
// Variants are identified by the compound key (card_id, condition,
// printing); external_variant_id is stored as an attribute and never
// used for conflict resolution, since upstream variant ids have been
// observed to be reissued across catalog rebuilds.
//
// Price change detection happens inside the transaction: when an
// existing row's price_cents differs from the incoming value, a
// price_history row is appended before the upsert overwrites it. Per-row
// failures are counted and logged without aborting the batch.
//
// Writes for the same set are serialized through a per-set lock so
// concurrent jobs never race DuckDB's optimistic concurrency on the
// same rows.
func (db *DB) UpsertVariantBatch(ctx context.Context, setID int64, variants []*models.Variant) (*VariantBatchResult, error) {
	result := &VariantBatchResult{}
	if len(variants) == 0 {
		return result, nil
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	mu := db.acquireSetLock(setID)
	defer db.releaseSetLock(mu)

	now := time.Now().UTC()

	err := retryOnConflict(ctx, func() error {
		result.Upserted = 0
		result.Failed = 0
		result.PriceChanges = result.PriceChanges[:0]

		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin variant batch: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		for _, v := range variants {
			if v.LastUpdated.IsZero() {
				v.LastUpdated = now
			}

			change, err := db.upsertVariantTx(ctx, tx, v, now)
			if err != nil {
				if isTransactionConflict(err) || isConnectionError(err) {
					return err
				}
				result.Failed++
				logging.Warn().Err(err).
					Int64("card_id", v.CardID).
					Str("condition", v.Condition).
					Str("printing", v.Printing).
					Msg("Failed to upsert variant row")
				continue
			}

			result.Upserted++
			if change != nil {
				result.PriceChanges = append(result.PriceChanges, change)
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to commit variant batch for set %d: %w", setID, err)
	}

	return result, nil
}

// upsertVariantTx writes one variant inside tx and returns a PricePoint
// when the write changed an existing row's price_cents, nil otherwise.
func (db *DB) upsertVariantTx(ctx context.Context, tx *sql.Tx, v *models.Variant, now time.Time) (*models.PricePoint, error) {
	var existingID int64
	var existingPrice int64
	err := tx.QueryRowContext(ctx,
		`SELECT id, price_cents FROM variants WHERE card_id = ? AND condition = ? AND printing = ?`,
		v.CardID, v.Condition, v.Printing).Scan(&existingID, &existingPrice)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read existing variant: %w", err)
	}

	_, err = tx.ExecContext(ctx, upsertVariantQuery,
		v.CardID, v.Condition, v.Printing,
		v.PriceCents, v.MarketPriceCents, v.LowPriceCents, v.HighPriceCents,
		v.ExternalVariantID, v.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert variant: %w", err)
	}

	if exists {
		v.ID = existingID
	} else {
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM variants WHERE card_id = ? AND condition = ? AND printing = ?`,
			v.CardID, v.Condition, v.Printing).Scan(&v.ID); err != nil {
			return nil, fmt.Errorf("failed to resolve variant id: %w", err)
		}
	}

	if !exists || existingPrice == v.PriceCents {
		return nil, nil
	}

	change := &models.PricePoint{
		VariantID:        v.ID,
		PriceCentsOld:    existingPrice,
		PriceCentsNew:    v.PriceCents,
		PercentageChange: percentageChange(existingPrice, v.PriceCents),
		RecordedAt:       now,
	}
	if err := insertPriceChangeTx(ctx, tx, change); err != nil {
		return nil, err
	}

	return change, nil
}

// percentageChange computes the relative price move in percent. A move
// from zero has no meaningful relative size and is recorded as 0.
func percentageChange(oldCents, newCents int64) float64 {
	if oldCents == 0 {
		return 0
	}
	return float64(newCents-oldCents) / float64(oldCents) * 100
}

// GetVariant retrieves a variant by its canonical compound key.
// Returns ErrNotFound if no such condition/printing combination exists.
func (db *DB) GetVariant(ctx context.Context, cardID int64, condition, printing string) (*models.Variant, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, card_id, condition, printing, price_cents, market_price_cents, low_price_cents, high_price_cents, external_variant_id, last_updated
	FROM variants WHERE card_id = ? AND condition = ? AND printing = ?`

	v, err := scanVariant(db.conn.QueryRowContext(ctx, query, cardID, condition, printing))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get variant: %w", err)
	}
	return v, nil
}

// GetVariantByID retrieves a variant by its local row ID.
// Returns ErrNotFound if the variant does not exist.
func (db *DB) GetVariantByID(ctx context.Context, id int64) (*models.Variant, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, card_id, condition, printing, price_cents, market_price_cents, low_price_cents, high_price_cents, external_variant_id, last_updated
	FROM variants WHERE id = ?`

	v, err := scanVariant(db.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get variant %d: %w", id, err)
	}
	return v, nil
}

// ListVariantsByCard returns all variants of a card ordered by
// condition then printing for deterministic output.
func (db *DB) ListVariantsByCard(ctx context.Context, cardID int64) ([]*models.Variant, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, card_id, condition, printing, price_cents, market_price_cents, low_price_cents, high_price_cents, external_variant_id, last_updated
	FROM variants WHERE card_id = ? ORDER BY condition, printing`

	rows, err := db.conn.QueryContext(ctx, query, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	var variants []*models.Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		variants = append(variants, v)
	}

	return variants, rows.Err()
}

// rowScanner abstracts sql.Row and sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVariant(row rowScanner) (*models.Variant, error) {
	var v models.Variant
	var market, low, high sql.NullInt64
	var externalID sql.NullString
	if err := row.Scan(
		&v.ID, &v.CardID, &v.Condition, &v.Printing, &v.PriceCents,
		&market, &low, &high, &externalID, &v.LastUpdated,
	); err != nil {
		return nil, err
	}
	if market.Valid {
		v.MarketPriceCents = &market.Int64
	}
	if low.Valid {
		v.LowPriceCents = &low.Int64
	}
	if high.Valid {
		v.HighPriceCents = &high.Int64
	}
	v.ExternalVariantID = externalID.String
	return &v, nil
}

// CountVariantsByGame returns the number of stored variants across all
// sets of a game. Drives the preflight batch estimate for pricing
// refresh jobs without any upstream call.
func (db *DB) CountVariantsByGame(ctx context.Context, gameID int64) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT COUNT(*)
	FROM variants v
	JOIN cards c ON c.id = v.card_id
	JOIN sets s ON s.id = c.set_id
	WHERE s.game_id = ?`

	var count int
	if err := db.conn.QueryRowContext(ctx, query, gameID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count variants for game %d: %w", gameID, err)
	}
	return count, nil
}

// VariantIdentity carries the identifiers a pricing refresh needs to
// build one batch lookup item: the most specific upstream key available
// plus the stored row's coordinates for writing results back.
type VariantIdentity struct {
	VariantID         int64
	CardID            int64
	SetID             int64
	ExternalVariantID string
	CardExternalID    string
	CardName          string
	Condition         string
	Printing          string
}

// ListVariantIdentitiesByGame returns one page of variant identities
// for a game, ordered by variant id so successive pages are stable
// across calls while a refresh is running.
func (db *DB) ListVariantIdentitiesByGame(ctx context.Context, gameID int64, limit, offset int) ([]*VariantIdentity, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT v.id, v.card_id, c.set_id, v.external_variant_id, c.external_id, c.name, v.condition, v.printing
	FROM variants v
	JOIN cards c ON c.id = v.card_id
	JOIN sets s ON s.id = c.set_id
	WHERE s.game_id = ?
	ORDER BY v.id
	LIMIT ? OFFSET ?`

	rows, err := db.conn.QueryContext(ctx, query, gameID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query variant identities: %w", err)
	}
	defer rows.Close()

	var identities []*VariantIdentity
	for rows.Next() {
		var ident VariantIdentity
		var externalVariantID sql.NullString
		if err := rows.Scan(
			&ident.VariantID, &ident.CardID, &ident.SetID, &externalVariantID,
			&ident.CardExternalID, &ident.CardName, &ident.Condition, &ident.Printing,
		); err != nil {
			return nil, fmt.Errorf("failed to scan variant identity: %w", err)
		}
		ident.ExternalVariantID = externalVariantID.String
		identities = append(identities, &ident)
	}

	return identities, rows.Err()
}
