// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package justtcg

import "fmt"

// Default filters applied to pricing lookups that do not pin a specific
// variant. These match the upstream's canonical spellings.
const (
	DefaultCondition = "Near Mint"
	DefaultPrinting  = "Normal"
)

// MaxPricingBatchSize is the upstream's cap on lookup items per POST /cards
// request.
const MaxPricingBatchSize = 100

// PricingRequest is one lookup item in a batch pricing request. Exactly one
// identifier should be set; when several are present the upstream honors the
// most specific: variant id, then TCGplayer id, then card id, then free-text
// name search.
type PricingRequest struct {
	VariantID   string `json:"variant_id,omitempty"`
	TCGPlayerID string `json:"tcgplayer_id,omitempty"`
	CardID      string `json:"card_id,omitempty"`
	Name        string `json:"q,omitempty"`

	// Condition and Printing filter results when the lookup is not pinned
	// to a variant id. Empty values are filled with the defaults by
	// Normalize.
	Condition string `json:"condition,omitempty"`
	Printing  string `json:"printing,omitempty"`
}

// Normalize applies the default condition/printing filters to lookups that
// are not pinned to a specific variant. Variant-id lookups are left alone:
// the id already identifies an exact condition/printing.
func (r *PricingRequest) Normalize() {
	if r.VariantID != "" {
		return
	}
	if r.Condition == "" {
		r.Condition = DefaultCondition
	}
	if r.Printing == "" {
		r.Printing = DefaultPrinting
	}
}

// Validate reports whether the request carries at least one usable
// identifier.
func (r *PricingRequest) Validate() error {
	if r.VariantID == "" && r.TCGPlayerID == "" && r.CardID == "" && r.Name == "" {
		return fmt.Errorf("pricing request has no identifier")
	}
	return nil
}
