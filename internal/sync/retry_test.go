// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// recordingSleeper captures backoff delays without actually sleeping.
type recordingSleeper struct {
	delays []time.Duration
	err    error
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return s.err
}

// TestRetryPolicy_SuccessFirstAttempt verifies no retries happen when the
// operation succeeds immediately.
func TestRetryPolicy_SuccessFirstAttempt(t *testing.T) {
	sleeper := &recordingSleeper{}
	p := NewRetryPolicy(5, time.Second, 30*time.Second)
	p.sleep = sleeper.sleep

	calls := 0
	err := p.Execute(context.Background(), "games", func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if len(sleeper.delays) != 0 {
		t.Errorf("Expected no backoff sleeps, got %v", sleeper.delays)
	}
}

// TestRetryPolicy_BackoffDoubles verifies the exponential backoff sequence
// between attempts: base, 2x, 4x, capped at maxDelay.
func TestRetryPolicy_BackoffDoubles(t *testing.T) {
	sleeper := &recordingSleeper{}
	p := NewRetryPolicy(5, time.Second, 30*time.Second)
	p.sleep = sleeper.sleep

	calls := 0
	err := p.Execute(context.Background(), "cards", func() error {
		calls++
		if calls < 5 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected eventual success, got %v", err)
	}
	if calls != 5 {
		t.Errorf("Expected 5 calls, got %d", calls)
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(sleeper.delays) != len(want) {
		t.Fatalf("Expected %d sleeps, got %v", len(want), sleeper.delays)
	}
	for i, d := range want {
		if sleeper.delays[i] != d {
			t.Errorf("Sleep %d: expected %v, got %v", i, d, sleeper.delays[i])
		}
	}
}

// TestRetryPolicy_BackoffCap verifies delays never exceed maxDelay and the
// shift cannot overflow into a negative duration.
func TestRetryPolicy_BackoffCap(t *testing.T) {
	p := NewRetryPolicy(10, time.Second, 8*time.Second)

	prev := time.Duration(0)
	for attempt := 0; attempt < 70; attempt++ {
		d := p.backoff(attempt)
		if d <= 0 {
			t.Fatalf("Attempt %d: non-positive delay %v", attempt, d)
		}
		if d > 8*time.Second {
			t.Fatalf("Attempt %d: delay %v exceeds cap", attempt, d)
		}
		if d < prev {
			t.Fatalf("Attempt %d: delay %v shrank from %v", attempt, d, prev)
		}
		prev = d
	}
}

// TestRetryPolicy_RetryAfterOverridesBackoff verifies a 429 with a parseable
// Retry-After delay replaces the computed backoff.
func TestRetryPolicy_RetryAfterOverridesBackoff(t *testing.T) {
	sleeper := &recordingSleeper{}
	p := NewRetryPolicy(3, time.Second, 30*time.Second)
	p.sleep = sleeper.sleep

	calls := 0
	err := p.Execute(context.Background(), "pricing", func() error {
		calls++
		if calls == 1 {
			return &ThrottledError{RetryAfter: 7 * time.Second}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success after throttle, got %v", err)
	}
	if len(sleeper.delays) != 1 || sleeper.delays[0] != 7*time.Second {
		t.Errorf("Expected single 7s sleep from Retry-After, got %v", sleeper.delays)
	}
}

// TestRetryPolicy_AuthFailsImmediately verifies authentication failures are
// never retried.
func TestRetryPolicy_AuthFailsImmediately(t *testing.T) {
	sleeper := &recordingSleeper{}
	p := NewRetryPolicy(5, time.Second, 30*time.Second)
	p.sleep = sleeper.sleep

	calls := 0
	authErr := fmt.Errorf("status 401: %w", ErrAuthFailed)
	err := p.Execute(context.Background(), "games", func() error {
		calls++
		return authErr
	})
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Expected ErrAuthFailed, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call for auth failure, got %d", calls)
	}
	if len(sleeper.delays) != 0 {
		t.Errorf("Expected no sleeps for auth failure, got %v", sleeper.delays)
	}
}

// TestRetryPolicy_ClientErrorFailsImmediately verifies non-retryable 4xx
// responses are not retried.
func TestRetryPolicy_ClientErrorFailsImmediately(t *testing.T) {
	p := NewRetryPolicy(5, time.Second, 30*time.Second)
	p.sleep = (&recordingSleeper{}).sleep

	calls := 0
	err := p.Execute(context.Background(), "sets", func() error {
		calls++
		return &UpstreamError{StatusCode: 404, Message: "set not found"}
	})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) || upstream.StatusCode != 404 {
		t.Errorf("Expected 404 UpstreamError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call for 4xx, got %d", calls)
	}
}

// TestRetryPolicy_ServerErrorRetried verifies 5xx responses retry until
// success.
func TestRetryPolicy_ServerErrorRetried(t *testing.T) {
	sleeper := &recordingSleeper{}
	p := NewRetryPolicy(4, time.Second, 30*time.Second)
	p.sleep = sleeper.sleep

	calls := 0
	err := p.Execute(context.Background(), "cards", func() error {
		calls++
		if calls <= 2 {
			return &UpstreamError{StatusCode: 503, Message: "service unavailable"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success after 5xx retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

// TestRetryPolicy_ThrottleExhaustionReturnsRateLimitError verifies a run of
// 429s exhausting the budget surfaces ErrRateLimitExceeded.
func TestRetryPolicy_ThrottleExhaustionReturnsRateLimitError(t *testing.T) {
	p := NewRetryPolicy(3, time.Second, 30*time.Second)
	p.sleep = (&recordingSleeper{}).sleep

	calls := 0
	err := p.Execute(context.Background(), "pricing", func() error {
		calls++
		return &ThrottledError{}
	})
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Errorf("Expected ErrRateLimitExceeded after throttle exhaustion, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

// TestRetryPolicy_NetworkExhaustionWrapsLastError verifies exhaustion on
// transport errors preserves the last error for errors.Is.
func TestRetryPolicy_NetworkExhaustionWrapsLastError(t *testing.T) {
	p := NewRetryPolicy(2, time.Second, 30*time.Second)
	p.sleep = (&recordingSleeper{}).sleep

	lastErr := errors.New("connection refused")
	err := p.Execute(context.Background(), "games", func() error {
		return lastErr
	})
	if !errors.Is(err, lastErr) {
		t.Errorf("Expected wrapped last error, got %v", err)
	}
}

// TestRetryPolicy_ContextCancelled verifies cancellation stops the retry
// loop before the next attempt.
func TestRetryPolicy_ContextCancelled(t *testing.T) {
	p := NewRetryPolicy(5, time.Second, 30*time.Second)
	p.sleep = (&recordingSleeper{}).sleep

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := p.Execute(ctx, "games", func() error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected no calls on cancelled context, got %d", calls)
	}
}

// TestRetryPolicy_CancelDuringBackoff verifies cancellation during a backoff
// sleep aborts the retry loop.
func TestRetryPolicy_CancelDuringBackoff(t *testing.T) {
	p := NewRetryPolicy(5, time.Second, 30*time.Second)
	p.sleep = (&recordingSleeper{err: context.Canceled}).sleep

	calls := 0
	err := p.Execute(context.Background(), "cards", func() error {
		calls++
		return errors.New("connection reset")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled from backoff sleep, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call before cancelled sleep, got %d", calls)
	}
}

// TestClassifyFailure verifies the error taxonomy used for retry decisions.
func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		reason    string
		retryable bool
	}{
		{"cancelled", context.Canceled, "context", false},
		{"deadline", context.DeadlineExceeded, "context", false},
		{"auth", fmt.Errorf("status 403: %w", ErrAuthFailed), "auth", false},
		{"throttled", &ThrottledError{RetryAfter: time.Second}, "http_429", true},
		{"server_error", &UpstreamError{StatusCode: 502}, "http_5xx", true},
		{"client_error", &UpstreamError{StatusCode: 400}, "http_4xx", false},
		{"network", errors.New("dial tcp: connection refused"), "network", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, retryable := classifyFailure(tt.err)
			if reason != tt.reason {
				t.Errorf("Expected reason %s, got %s", tt.reason, reason)
			}
			if retryable != tt.retryable {
				t.Errorf("Expected retryable=%v, got %v", tt.retryable, retryable)
			}
		})
	}
}
