// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package database

import (
	"errors"
	"io"

	"github.com/tomtom215/cardographus/internal/logging"
)

// Sentinel errors returned by the catalog data layer. Callers match
// these with errors.Is to map them to job outcomes and HTTP statuses.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrSetFresh indicates a set completed a sync within the freshness
	// window and was not transitioned to syncing. No job run is created
	// and no upstream call is made for a fresh set.
	ErrSetFresh = errors.New("set synced within freshness window")

	// ErrSetSyncing indicates another job already holds the set's
	// syncing state; the compare-and-swap transition did not apply.
	ErrSetSyncing = errors.New("set sync already in progress")

	// ErrJobFinished indicates the job run already reached a terminal
	// status; terminal runs are never updated again.
	ErrJobFinished = errors.New("job run already finished")
)

// closeWithLog closes a resource and logs any error.
// Use this for cleanup operations where errors should be acknowledged
// but not fail the operation.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly ignores any error.
// Use this in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // Explicitly ignore error - cleanup is best-effort
	}
}
