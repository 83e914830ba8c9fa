// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package justtcg

import "fmt"

// GamesResponse is the envelope for GET /games. The games list is small and
// returned unpaginated.
type GamesResponse struct {
	Data  []Game    `json:"data"`
	Error *APIError `json:"error,omitempty"`
}

// Game represents a supported trading card game in the upstream catalog.
type Game struct {
	// ID is the upstream identifier, stored locally as external_id.
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`

	// Active games receive scheduled pricing refreshes.
	Active bool `json:"active"`

	// Catalog size hints, informational only.
	SetsCount  int `json:"sets_count"`
	CardsCount int `json:"cards_count"`
}

// Validate reports whether the record carries the fields the catalog
// requires. Called at the decode boundary; invalid records are skipped.
func (g *Game) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("game missing id")
	}
	if g.Slug == "" {
		return fmt.Errorf("game %s missing slug", g.ID)
	}
	if g.Name == "" {
		return fmt.Errorf("game %s missing name", g.ID)
	}
	return nil
}
