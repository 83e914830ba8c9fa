// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package justtcg

import "fmt"

// CardsResponse is the envelope for GET /cards and POST /cards (batch
// pricing). Both return card objects with variants embedded inline.
type CardsResponse struct {
	Data       []Card      `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error,omitempty"`
}

// Card represents one card identity within a set. Pricing lives on the
// embedded variants, one per sellable condition/printing combination.
type Card struct {
	// ID is the upstream identifier, stored locally as external_id.
	ID    string `json:"id"`
	SetID string `json:"set_id"`
	Name  string `json:"name"`

	// Number is the collector number within the set ("025/102").
	Number string `json:"number"`
	Rarity string `json:"rarity"`

	// TCGPlayerID is the cross-marketplace product id, the second-most
	// specific lookup key for batch pricing requests.
	TCGPlayerID string `json:"tcgplayer_id,omitempty"`

	ImageURL string `json:"image_url,omitempty"`

	Variants []Variant `json:"variants,omitempty"`
}

// Variant represents a condition/printing combination of a card with its
// current pricing. Prices are decimal dollars on the wire.
type Variant struct {
	// ID is the upstream variant identifier, the most specific lookup key
	// for batch pricing requests.
	ID        string `json:"id"`
	Condition string `json:"condition"`
	Printing  string `json:"printing"`

	Price       float64  `json:"price"`
	MarketPrice *float64 `json:"market_price,omitempty"`
	LowPrice    *float64 `json:"low_price,omitempty"`
	HighPrice   *float64 `json:"high_price,omitempty"`

	// LastUpdated is a Unix timestamp in seconds.
	LastUpdated int64 `json:"last_updated,omitempty"`
}

// Validate reports whether the card record carries the fields the catalog
// requires. Variants are validated separately so one malformed variant does
// not discard the card.
func (c *Card) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("card missing id")
	}
	if c.Name == "" {
		return fmt.Errorf("card %s missing name", c.ID)
	}
	return nil
}

// Validate reports whether the variant record is usable for pricing.
func (v *Variant) Validate() error {
	if v.Condition == "" {
		return fmt.Errorf("variant %s missing condition", v.ID)
	}
	if v.Printing == "" {
		return fmt.Errorf("variant %s missing printing", v.ID)
	}
	if v.Price < 0 {
		return fmt.Errorf("variant %s has negative price %.2f", v.ID, v.Price)
	}
	return nil
}
