// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package sync

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cardographus/internal/logging"
	"github.com/tomtom215/cardographus/internal/metrics"
)

// catalogBreakerName is the breaker used for calls that are not scoped to
// a single game (the games listing).
const catalogBreakerName = "catalog"

// GameBreakers maintains one circuit breaker per game so that a broken or
// degraded upstream catalog for one game never blocks syncs of the others.
//
// A breaker opens after threshold consecutive failures and stays open for
// the cooldown period. In half-open state exactly one trial request is
// admitted; success closes the breaker, failure reopens it for another
// cooldown.
//
// DETERMINISM NOTE: the breaker uses real time (via sony/gobreaker) for
// its cooldown. The timing governs recovery, not data integrity; tests
// that need to exercise reopening use a short cooldown rather than a
// clock injection.
type GameBreakers struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[interface{}]

	threshold uint32
	cooldown  time.Duration
}

// NewGameBreakers creates a registry whose breakers trip after threshold
// consecutive failures and cool down for the given duration.
func NewGameBreakers(threshold int, cooldown time.Duration) *GameBreakers {
	if threshold < 1 {
		threshold = 1
	}
	return &GameBreakers{
		breakers:  make(map[string]*gobreaker.CircuitBreaker[interface{}]),
		threshold: uint32(threshold),
		cooldown:  cooldown,
	}
}

// Execute runs fn through the breaker for the given game, creating the
// breaker on first use. Rejected calls return gobreaker.ErrOpenState or
// gobreaker.ErrTooManyRequests wrapped, so callers can classify them with
// errors.Is.
func (gb *GameBreakers) Execute(game string, fn func() (interface{}, error)) (interface{}, error) {
	cb := gb.breaker(game)

	result, err := cb.Execute(fn)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(game).Set(float64(cb.Counts().ConsecutiveFailures))
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(game, "rejected").Inc()
			return nil, fmt.Errorf("circuit breaker for %s: %w", game, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(game, "failure").Inc()
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(game, "success").Inc()
	return result, nil
}

// State returns the current breaker state for a game. Games that have
// never issued a request report closed.
func (gb *GameBreakers) State(game string) gobreaker.State {
	gb.mu.RLock()
	cb, ok := gb.breakers[game]
	gb.mu.RUnlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

// BreakerStatus is a point-in-time snapshot of one game's breaker,
// exposed through the admin API.
type BreakerStatus struct {
	Game                string `json:"game"`
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	TotalSuccesses      uint32 `json:"total_successes"`
	TotalFailures       uint32 `json:"total_failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// States snapshots every known breaker, sorted by game for stable output.
func (gb *GameBreakers) States() []BreakerStatus {
	gb.mu.RLock()
	defer gb.mu.RUnlock()

	statuses := make([]BreakerStatus, 0, len(gb.breakers))
	for game, cb := range gb.breakers {
		counts := cb.Counts()
		statuses = append(statuses, BreakerStatus{
			Game:                game,
			State:               stateToString(cb.State()),
			Requests:            counts.Requests,
			TotalSuccesses:      counts.TotalSuccesses,
			TotalFailures:       counts.TotalFailures,
			ConsecutiveFailures: counts.ConsecutiveFailures,
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Game < statuses[j].Game })
	return statuses
}

// breaker returns the breaker for a game, creating it on first use.
func (gb *GameBreakers) breaker(game string) *gobreaker.CircuitBreaker[interface{}] {
	gb.mu.RLock()
	cb, ok := gb.breakers[game]
	gb.mu.RUnlock()
	if ok {
		return cb
	}

	gb.mu.Lock()
	defer gb.mu.Unlock()
	if cb, ok = gb.breakers[game]; ok {
		return cb
	}

	settings := gobreaker.Settings{
		Name:        game,
		MaxRequests: 1, // Single trial request in half-open state
		Timeout:     gb.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= gb.threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("game", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("Circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	}

	cb = gobreaker.NewCircuitBreaker[interface{}](settings)
	gb.breakers[game] = cb
	metrics.CircuitBreakerState.WithLabelValues(game).Set(stateToFloat(gobreaker.StateClosed))
	return cb
}

// castResult converts a breaker execution result to the expected type.
func castResult[T any](result interface{}, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("unexpected response type %T", result)
	}
	return typed, nil
}

// stateToFloat converts circuit breaker state to the metric encoding.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to a string label.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
