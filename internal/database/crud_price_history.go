// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/cardographus/internal/models"
)

// insertPriceChangeTx appends one price_history row inside an open
// transaction. Called from the variant upsert so the history row and
// the price overwrite commit or roll back together.
func insertPriceChangeTx(ctx context.Context, tx *sql.Tx, pp *models.PricePoint) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO price_history (variant_id, price_cents_old, price_cents_new, percentage_change, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		pp.VariantID, pp.PriceCentsOld, pp.PriceCentsNew, pp.PercentageChange, pp.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to insert price history for variant %d: %w", pp.VariantID, err)
	}
	return nil
}

// ListPriceHistory returns the most recent price changes for a variant,
// newest first. A limit of 0 defaults to 100 rows.
func (db *DB) ListPriceHistory(ctx context.Context, variantID int64, limit int) ([]*models.PricePoint, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, variant_id, price_cents_old, price_cents_new, percentage_change, recorded_at
	FROM price_history WHERE variant_id = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, variantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var points []*models.PricePoint
	for rows.Next() {
		var pp models.PricePoint
		if err := rows.Scan(
			&pp.ID, &pp.VariantID, &pp.PriceCentsOld, &pp.PriceCentsNew,
			&pp.PercentageChange, &pp.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		points = append(points, &pp)
	}

	return points, rows.Err()
}

// CountPriceChangesSince returns the number of price changes recorded
// after the given time across all variants. Used by the health surface
// to show recent pricing activity.
func (db *DB) CountPriceChangesSince(ctx context.Context, since time.Time) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM price_history WHERE recorded_at >= ?`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count price changes: %w", err)
	}
	return count, nil
}
