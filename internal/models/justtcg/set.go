// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package justtcg

import "fmt"

// SetsResponse is the envelope for GET /sets, paginated by offset/limit.
type SetsResponse struct {
	Data       []Set       `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error,omitempty"`
}

// Set represents an expansion or set within a game.
type Set struct {
	// ID is the upstream identifier, stored locally as external_id.
	ID     string `json:"id"`
	GameID string `json:"game_id"`
	Name   string `json:"name"`
	Code   string `json:"code"`

	// CardsCount drives the preflight page ceiling for card imports.
	CardsCount int `json:"cards_count"`

	ReleaseDate string `json:"release_date,omitempty"`
}

// Validate reports whether the record carries the fields the catalog
// requires.
func (s *Set) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("set missing id")
	}
	if s.GameID == "" {
		return fmt.Errorf("set %s missing game_id", s.ID)
	}
	if s.Name == "" {
		return fmt.Errorf("set %s missing name", s.ID)
	}
	if s.CardsCount < 0 {
		return fmt.Errorf("set %s has negative cards_count %d", s.ID, s.CardsCount)
	}
	return nil
}
