// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/cardographus/internal/logging"
	"github.com/tomtom215/cardographus/internal/metrics"
)

// RetryPolicy retries transient upstream failures with exponential backoff.
//
// Retryable failures are 429s (ThrottledError), 5xx responses
// (UpstreamError with Retryable true), and transport-level errors.
// Authentication failures and other 4xx responses fail immediately; no
// number of retries fixes a bad API key or a malformed request.
//
// The delay for attempt n is baseDelay << n, capped at maxDelay. A 429
// carrying a parseable Retry-After header overrides the computed delay:
// the upstream knows its own window better than we do.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration

	// Injected for deterministic tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy creates a policy that runs an operation up to maxAttempts
// times with exponential backoff between attempts.
func NewRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		sleep:       sleepContext,
	}
}

// Execute runs fn until it succeeds, fails permanently, or the attempt
// budget is exhausted. op labels the operation in logs and metrics.
//
// Exhausting the budget on throttling returns ErrRateLimitExceeded;
// exhausting it on other transient failures returns the last error.
func (p *RetryPolicy) Execute(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	throttledOut := false

	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		reason, retryable := classifyFailure(err)
		if !retryable {
			return err
		}
		throttledOut = reason == "http_429"
		if attempt == p.maxAttempts-1 {
			break
		}

		delay := p.backoff(attempt)
		var throttled *ThrottledError
		if errors.As(err, &throttled) && throttled.RetryAfter > 0 {
			delay = throttled.RetryAfter
		}

		metrics.UpstreamRetryAttempts.WithLabelValues(op, reason).Inc()
		logging.Warn().
			Err(err).
			Str("operation", op).
			Int("attempt", attempt+1).
			Int("max_attempts", p.maxAttempts).
			Dur("delay", delay).
			Msg("Upstream request failed, retrying")

		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}

	if throttledOut {
		return fmt.Errorf("%s: %w", op, ErrRateLimitExceeded)
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, p.maxAttempts, lastErr)
}

// backoff computes the exponential delay for the given zero-based attempt.
func (p *RetryPolicy) backoff(attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	delay := p.baseDelay << uint(attempt)
	if delay > p.maxDelay || delay <= 0 {
		delay = p.maxDelay
	}
	return delay
}

// classifyFailure buckets an upstream error for retry decisions and the
// retry metric's reason label.
func classifyFailure(err error) (reason string, retryable bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "context", false
	}
	if errors.Is(err, ErrAuthFailed) {
		return "auth", false
	}
	var throttled *ThrottledError
	if errors.As(err, &throttled) {
		return "http_429", true
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		if upstream.Retryable() {
			return "http_5xx", true
		}
		return "http_4xx", false
	}
	// Anything else at this layer is a transport failure: DNS, TLS,
	// connection reset, response body truncation.
	return "network", true
}
