// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current event schema version.
// Increment this when making breaking changes to event payloads.
const SchemaVersion = 1

// Topics published on the event bus. With the NATS transport these become
// JetStream subjects under the cardographus stream.
const (
	TopicPriceChanged = "cardographus.price.changed"
	TopicJobFinished  = "cardographus.job.finished"
)

// PriceChanged is emitted once per detected variant price change, in the
// same reconciliation pass that appended the price history row. Consumers
// include the websocket bridge (live price tickers) and, with NATS
// enabled, any external subscriber.
type PriceChanged struct {
	// Schema version for forward/backward compatibility
	SchemaVersion int `json:"schema_version,omitempty"`

	// Identification
	EventID    string    `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`

	// Catalog coordinates
	Game      string `json:"game"`
	SetCode   string `json:"set_code,omitempty"`
	CardName  string `json:"card_name"`
	CardID    int64  `json:"card_id"`
	VariantID int64  `json:"variant_id"`
	Condition string `json:"condition"`
	Printing  string `json:"printing"`

	// Price movement, integer cents
	PriceCentsOld    int64   `json:"price_cents_old"`
	PriceCentsNew    int64   `json:"price_cents_new"`
	PercentageChange float64 `json:"percentage_change"`
}

// NewPriceChanged creates an event with a unique ID, timestamp, and
// schema version. Catalog and price fields are the caller's to fill.
func NewPriceChanged() *PriceChanged {
	return &PriceChanged{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		OccurredAt:    time.Now().UTC(),
	}
}

// Validate checks required fields and returns an error if validation fails.
func (e *PriceChanged) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("price changed event missing event_id")
	}
	if e.Game == "" {
		return fmt.Errorf("price changed event %s missing game", e.EventID)
	}
	if e.VariantID == 0 {
		return fmt.Errorf("price changed event %s missing variant_id", e.EventID)
	}
	return nil
}

// JobFinished is emitted when a sync job reaches a terminal status.
type JobFinished struct {
	SchemaVersion int `json:"schema_version,omitempty"`

	EventID    string    `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`

	JobID   string `json:"job_id"`
	JobType string `json:"job_type"`
	Game    string `json:"game"`
	SetCode string `json:"set_code,omitempty"`
	Status  string `json:"status"`

	CardsProcessed  int `json:"cards_processed"`
	VariantsUpdated int `json:"variants_updated"`
	ErrorCount      int `json:"error_count"`
}

// NewJobFinished creates an event with a unique ID, timestamp, and
// schema version.
func NewJobFinished() *JobFinished {
	return &JobFinished{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		OccurredAt:    time.Now().UTC(),
	}
}

// Validate checks required fields and returns an error if validation fails.
func (e *JobFinished) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("job finished event missing event_id")
	}
	if e.JobID == "" {
		return fmt.Errorf("job finished event %s missing job_id", e.EventID)
	}
	if e.Status == "" {
		return fmt.Errorf("job finished event %s missing status", e.EventID)
	}
	return nil
}
