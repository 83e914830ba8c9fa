// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

// Package justtcg provides data models for JustTCG API responses.
//
// This package contains Go struct definitions for the JustTCG endpoints used
// by the Cardographus sync pipeline, with JSON tags matching the upstream
// wire format.
//
// The types are organized by endpoint:
//
// Catalog:
//   - Game: a supported trading card game (GET /games)
//   - Set: an expansion/set within a game (GET /sets)
//   - Card: a card identity within a set (GET /cards)
//   - Variant: a condition/printing combination with pricing, embedded
//     inline in card objects
//
// Pricing:
//   - PricingRequest: one lookup item for the batch pricing endpoint
//     (POST /cards), identified by variant id, TCGplayer id, card id, or
//     free-text name in descending specificity
//
// Envelopes:
//   - Pagination: offset/limit paging metadata with a has_more flag
//   - APIError: upstream error body for non-2xx responses
//
// Prices on the wire are decimal currency (dollars); conversion to integer
// cents happens in the sync reconciler, not here. Each record type exposes a
// Validate method used at the decode boundary so malformed upstream records
// can be quarantined instead of propagating.
package justtcg
