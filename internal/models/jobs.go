// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package models

import (
	"time"

	"github.com/google/uuid"
)

// Sync job types. Each type maps to one orchestrator code path.
const (
	JobDiscoverGames  = "discover_games"
	JobDiscoverSets   = "discover_sets"
	JobImportCards    = "import_cards"
	JobRefreshPricing = "refresh_pricing"
)

// Sync job statuses.
//
// started and running are transient; all others are terminal. A job run
// can never remain in a transient status after its goroutine exits: the
// orchestrator finalizes every run via a deferred Finish with panic
// recovery.
const (
	JobStatusStarted           = "started"
	JobStatusRunning           = "running"
	JobStatusCompleted         = "completed"
	JobStatusPartial           = "partial"
	JobStatusFailed            = "failed"
	JobStatusCancelled         = "cancelled"
	JobStatusPreflightCeiling  = "preflight_ceiling"
	JobStatusDailyLimitReached = "daily_limit_reached"
	JobStatusCircuitOpen       = "circuit_open"
)

// ValidJobType reports whether t names a known sync job type.
func ValidJobType(t string) bool {
	switch t {
	case JobDiscoverGames, JobDiscoverSets, JobImportCards, JobRefreshPricing:
		return true
	}
	return false
}

// TerminalJobStatus reports whether s is a terminal job status.
// Terminal runs are never updated again.
func TerminalJobStatus(s string) bool {
	switch s {
	case JobStatusCompleted, JobStatusPartial, JobStatusFailed, JobStatusCancelled,
		JobStatusPreflightCeiling, JobStatusDailyLimitReached, JobStatusCircuitOpen:
		return true
	}
	return false
}

// SyncJobRun records one execution of a sync job.
//
// ExpectedBatches is the preflight estimate (ceil(totalItems/pageSize))
// computed from local counts before any upstream call; ActualBatches is
// incremented as pages are fetched. ErrorCount accumulates per-row
// mapping and write failures, which never abort the run.
//
// SetCode is nil for game-level jobs (discover_games, discover_sets,
// refresh_pricing) and set for card imports.
type SyncJobRun struct {
	ID              uuid.UUID  `json:"id"`
	JobType         string     `json:"job_type"`
	Game            string     `json:"game"`
	SetCode         *string    `json:"set_code,omitempty"`
	ExpectedBatches int        `json:"expected_batches"`
	ActualBatches   int        `json:"actual_batches"`
	CardsProcessed  int        `json:"cards_processed"`
	VariantsUpdated int        `json:"variants_updated"`
	ErrorCount      int        `json:"error_count"`
	Status          string     `json:"status"`
	ErrorDetail     *string    `json:"error_detail,omitempty"`
	CancelRequested bool       `json:"cancel_requested"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// Duration returns the wall-clock duration of the run, using the
// current time for runs that have not finished.
func (r *SyncJobRun) Duration() time.Duration {
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}
