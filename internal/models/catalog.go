// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package models

import "time"

// Set sync lifecycle states. Transitions are enforced in the database
// layer: pending -> syncing -> {completed, failed}, with completed/failed
// allowed back to syncing for re-sync. The transition into syncing is a
// compare-and-swap so overlapping imports of the same set cannot occur.
const (
	SetSyncPending   = "pending"
	SetSyncSyncing   = "syncing"
	SetSyncCompleted = "completed"
	SetSyncFailed    = "failed"
)

// Game represents a trading card game tracked in the catalog.
//
// Games are upserted by slug (the stable human-readable identifier used
// in upstream API paths, e.g. "pokemon" or "magic-the-gathering").
// ExternalID is the upstream's own identifier, kept for reference.
type Game struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	ExternalID string    `json:"external_id"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Set represents a card set/expansion within a game.
//
// Sets are upserted by ExternalID. CardCount is the upstream's reported
// card total and drives the preflight batch ceiling before an import.
// SyncStatus and LastSyncedAt implement the set sync state machine and
// the freshness guard (a set completed within the freshness window is
// not re-imported).
type Set struct {
	ID           int64      `json:"id"`
	GameID       int64      `json:"game_id"`
	Name         string     `json:"name"`
	Code         string     `json:"code"`
	ExternalID   string     `json:"external_id"`
	CardCount    int        `json:"card_count"`
	SyncStatus   string     `json:"sync_status"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Card represents a single card within a set, upserted by ExternalID.
type Card struct {
	ID         int64     `json:"id"`
	SetID      int64     `json:"set_id"`
	Name       string    `json:"name"`
	Number     string    `json:"number"`
	Rarity     string    `json:"rarity"`
	ExternalID string    `json:"external_id"`
	ImageURL   string    `json:"image_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Variant represents a priced condition/printing combination of a card.
//
// The canonical identity of a variant is the compound key
// (CardID, Condition, Printing); ExternalVariantID is stored as an
// indexed attribute for upstream correlation but is never used as a
// conflict key, because upstream variant IDs have been observed to be
// reissued across catalog rebuilds.
//
// Condition and Printing are normalized to lowercase with underscores
// ("Near Mint" -> "near_mint") before storage. Prices are integer cents.
type Variant struct {
	ID                int64     `json:"id"`
	CardID            int64     `json:"card_id"`
	Condition         string    `json:"condition"`
	Printing          string    `json:"printing"`
	PriceCents        int64     `json:"price_cents"`
	MarketPriceCents  *int64    `json:"market_price_cents,omitempty"`
	LowPriceCents     *int64    `json:"low_price_cents,omitempty"`
	HighPriceCents    *int64    `json:"high_price_cents,omitempty"`
	ExternalVariantID string    `json:"external_variant_id"`
	LastUpdated       time.Time `json:"last_updated"`
}

// PricePoint is an append-only record of a variant price change.
// A row is written whenever a variant upsert changes price_cents.
type PricePoint struct {
	ID               int64     `json:"id"`
	VariantID        int64     `json:"variant_id"`
	PriceCentsOld    int64     `json:"price_cents_old"`
	PriceCentsNew    int64     `json:"price_cents_new"`
	PercentageChange float64   `json:"percentage_change"`
	RecordedAt       time.Time `json:"recorded_at"`
}
