// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package sync

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimitExceeded is returned when the upstream kept throttling
	// through every retry attempt.
	ErrRateLimitExceeded = errors.New("rate limit exceeded after retries")

	// ErrAuthFailed is returned on HTTP 401/403. Retrying cannot help:
	// the API key is wrong, expired, or lacks the required plan.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrJobConflict is returned when a job of the same type is already
	// running for the same game.
	ErrJobConflict = errors.New("sync job already running for this game")

	// ErrInvalidJob is returned when a trigger request names an unknown
	// job type or omits a required game or set code.
	ErrInvalidJob = errors.New("invalid job request")

	// ErrDailyQuotaExceeded is returned when the day's upstream request
	// budget has been spent. The counter resets at UTC midnight.
	ErrDailyQuotaExceeded = errors.New("daily request quota exhausted")
)

// Internal guard signals used by the orchestrator to stop a job between
// batches. Each maps to a distinct terminal job status.
var (
	errJobCancelled   = errors.New("cancellation requested")
	errBudgetExceeded = errors.New("job time budget exceeded")
	errShuttingDown   = errors.New("orchestrator shutting down")
)

// UpstreamError carries a non-2xx response from the JustTCG API, including
// the machine-readable error code from the response body when one was
// present.
type UpstreamError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upstream returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream returned %d", e.StatusCode)
}

// Retryable reports whether the response indicates a transient server-side
// condition worth retrying.
func (e *UpstreamError) Retryable() bool {
	return e.StatusCode >= 500
}

// ThrottledError is returned on HTTP 429. RetryAfter carries the upstream's
// requested pause when the Retry-After header was present and parseable;
// zero means the caller should fall back to exponential backoff.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("throttled by upstream, retry after %s", e.RetryAfter)
	}
	return "throttled by upstream"
}
