// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

/*
Package models defines data structures for the Cardographus application.

This package contains the database-facing catalog models and the sync job
bookkeeping models. Wire-format types for the upstream JustTCG API live in
the models/justtcg subpackage; the sync reconciler maps between the two.

Model Categories:

1. Catalog Models (database rows):
  - Game: A trading card game (Pokemon, Magic, etc.)
  - Set: A card set/expansion within a game
  - Card: A single card within a set
  - Variant: A priced condition/printing combination of a card
  - PricePoint: An append-only price change record

2. Job Models:
  - SyncJobRun: One execution of a sync job with progress counters

All prices are stored as integer cents. Decimal currency exists only at
the upstream API boundary; conversion happens in the sync reconciler.

Thread Safety:

All models are plain data structures with no internal synchronization.
They are safe for concurrent reads after creation.

See Also:

  - internal/models/justtcg: Upstream API wire formats
  - internal/database: Persistence for these models
  - internal/sync: Reconciliation between wire formats and these models
*/
package models
