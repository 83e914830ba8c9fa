// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

/*
Package sync orchestrates catalog and pricing synchronization from the
JustTCG API into the database.

This package implements the core business logic for discovering games and
sets, importing cards with their sellable variants, and refreshing variant
pricing in batches. All upstream traffic flows through a shared rate
limiter, a capped-exponential retry policy, and per-game circuit breakers,
because the upstream enforces a hard request quota that a misbehaving
client would burn through in minutes.

Key Components:

  - Orchestrator: Owns the four job types (discover_games, discover_sets,
    import_cards, refresh_pricing), their guard chain, and terminal
    finalization
  - JustTCGClient: HTTP client for the JustTCG API, wrapped in breaker +
    limiter + retry
  - BatchReconciler: Maps upstream pages into catalog rows, detecting
    price changes and publishing events
  - JobRunTracker: Persists job run lifecycle and broadcasts progress to
    WebSocket clients
  - RateLimiter: Fixed-window quota plus minimum request spacing;
    exhaustion suspends the job rather than failing it
  - GameBreakers: Per-game circuit breakers so one game's outage cannot
    block the others
  - CheckpointStore / QuotaTracker: Badger-backed pagination checkpoints
    and daily request accounting
  - Scheduler: Periodic refresh_pricing triggers for active games

Job Lifecycle:

1. Trigger: validate type/args, take the per-(type, game) job lock
2. Preflight: estimate pages from local counts; over the ceiling, the run
finalizes as preflight_ceiling without touching the upstream
3. Guards between pages: shutdown, wall-clock budget, cooperative
cancellation, daily quota, then the inter-batch pacing delay
4. Page: rate limit, fetch with retry inside the game's breaker,
reconcile, track progress, checkpoint the next offset
5. Finalize: exactly-once deferred Finish with panic recovery; a run can
never stay in a transient status after its goroutine exits

Checkpoints persist the next page offset per (jobType, game, set), so a
run cut short by the budget or a crash resumes where it stopped instead
of re-spending quota on pages it already has.

Usage Example:

	limiter := sync.NewRateLimiter(cfg.JustTCG.RequestsPerWindow, cfg.JustTCG.Window, cfg.JustTCG.RequestSpacing)
	retry := sync.NewRetryPolicy(cfg.JustTCG.RetryAttempts, cfg.JustTCG.RetryBaseDelay, cfg.JustTCG.RetryMaxDelay)
	breakers := sync.NewGameBreakers(cfg.Sync.BreakerFailureThreshold, cfg.Sync.BreakerCooldown)
	client := sync.NewJustTCGClient(&cfg.JustTCG, limiter, retry, breakers)

	tracker := sync.NewJobRunTracker(db, hub)
	reconciler := sync.NewBatchReconciler(db, bus, cfg.Sync.SubBatchSize)
	orch := sync.NewOrchestrator(db, client, reconciler, tracker, checkpoints, quota, bus, &cfg.Sync)

	run, err := orch.TriggerSync(ctx, models.JobImportCards, "pokemon", "base1")

Fault Tolerance:

  - Rate Limiting: fixed upstream window; exhaustion suspends until the
    window resets, never fails the job
  - Retry: capped exponential backoff for 429/5xx/network errors;
    Retry-After honored when present; auth and 4xx fail immediately
  - Circuit Breaker: consecutive-failure trip per game, single trial
    request in half-open state
  - Daily Quota: hard cap on upstream requests per UTC day, persisted
    across restarts

Thread Safety:

All exported types are safe for concurrent use. The orchestrator allows
one job per (type, game) pair at a time; set-level imports additionally
serialize through the sets table's syncing state.

See Also:

  - internal/database: DuckDB persistence layer
  - internal/events: Price change and job lifecycle event bus
  - internal/models/justtcg: Upstream API response types
  - internal/metrics: Prometheus metrics
*/
package sync
