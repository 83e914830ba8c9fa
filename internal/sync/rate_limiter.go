// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package sync

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/cardographus/internal/logging"
	"github.com/tomtom215/cardographus/internal/metrics"
)

// RateLimiter enforces the JustTCG client-side request budget: a fixed
// window of at most limit requests per window (the upstream counts the
// same way, so exceeding it only burns requests on 429s), plus a minimum
// spacing between consecutive requests so a burst at the window boundary
// cannot double-spend.
//
// Acquire blocks until both constraints allow another request. All waits
// are cancellable through the context.
type RateLimiter struct {
	mu               sync.Mutex
	limit            int
	window           time.Duration
	requestsInWindow int
	windowStart      time.Time

	spacing *rate.Limiter

	// Injected for deterministic tests; default to time.Now and a
	// context-aware timer sleep.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a limiter allowing limit requests per window with
// the given minimum spacing between requests. A spacing of zero disables
// the spacing constraint.
func NewRateLimiter(limit int, window, spacing time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		spacing: rate.NewLimiter(rate.Every(spacing), 1),
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Acquire blocks until a request slot is available, or until the context
// is cancelled. On success one slot of the current window is consumed.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	start := rl.now()
	suspended := false

	for {
		rl.mu.Lock()
		now := rl.now()
		if now.Sub(rl.windowStart) >= rl.window {
			rl.windowStart = now
			rl.requestsInWindow = 0
		}
		if rl.requestsInWindow < rl.limit {
			rl.requestsInWindow++
			used := rl.requestsInWindow
			rl.mu.Unlock()
			metrics.RateLimiterWindowUsed.Set(float64(used))
			break
		}
		wait := rl.window - now.Sub(rl.windowStart)
		rl.mu.Unlock()

		if !suspended {
			logging.Debug().
				Dur("wait", wait).
				Int("window_limit", rl.limit).
				Msg("Rate limit window exhausted, suspending until reset")
		}
		suspended = true
		if err := rl.sleep(ctx, wait); err != nil {
			return err
		}
	}

	if err := rl.spacing.Wait(ctx); err != nil {
		return err
	}

	metrics.RecordRateLimiterWait(rl.now().Sub(start), suspended)
	return nil
}

// WindowUsage returns the requests consumed in the current window and the
// window limit. Used by the admin API quota endpoint.
func (rl *RateLimiter) WindowUsage() (used, limit int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.now().Sub(rl.windowStart) >= rl.window {
		return 0, rl.limit
	}
	return rl.requestsInWindow, rl.limit
}

// sleepContext pauses for d or until the context is cancelled, whichever
// comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
