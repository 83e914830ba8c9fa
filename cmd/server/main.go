// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

// Package main is the entry point for the Cardographus server application.
//
// Cardographus is a self-hosted trading card catalog and pricing service. It
// mirrors games, sets, cards, and variant prices from the JustTCG API into a
// local DuckDB database and serves them over a REST API, so collection
// tooling can browse catalog data and price history without burning upstream
// quota on every request.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Database: Initialize DuckDB and recover job runs interrupted by the last shutdown
//  3. Checkpoint Store: Badger store for pagination checkpoints and the daily quota counter
//  4. Upstream Client: JustTCG client with rate limiting, retries, and per-game circuit breakers
//  5. Event Bus: In-process Watermill bus, or NATS JetStream when built with -tags nats
//  6. WebSocket Hub: Live sync progress and price change fan-out
//  7. Sync Pipeline: Job tracker, batch reconciler, orchestrator, and scheduler
//  8. HTTP Server: REST API with catalog, pricing, and sync admin endpoints
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (see .env.example)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// The only required setting is the upstream API key:
//   - JUSTTCG_API_KEY: API key sent with every JustTCG request
//
// Frequently tuned settings:
//   - SYNC_ENABLED: Run scheduled sync cycles (default: true)
//   - SYNC_INTERVAL: Delay between scheduled cycles (default: 6h)
//   - SYNC_GAMES: Comma-separated game slugs to sync (default: all discovered)
//   - JUSTTCG_DAILY_QUOTA: Per-day upstream request budget (default: 5000)
//   - CHECKPOINT_PATH: Badger directory; empty switches to an in-memory store
//
// # Build Tags
//
// Optional build tags enable additional functionality:
//
//	go build -tags "nats" ./cmd/server  # Enable NATS JetStream event transport
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Cancels running sync jobs; interrupted jobs save their checkpoints
//   - Closes the event bus, checkpoint store, and database
//
// # Example Usage
//
// Minimal (catalog API with scheduled sync):
//
//	export JUSTTCG_API_KEY=your-api-key
//	./cardographus
//
// Manual sync only (no scheduler):
//
//	export JUSTTCG_API_KEY=your-api-key
//	export SYNC_ENABLED=false
//	./cardographus
//	# then: curl -X POST localhost:8385/api/v1/sync/trigger \
//	#   -d '{"job_type":"discover_games"}'
//
// Production with NATS JetStream events (built with -tags nats):
//
//	export JUSTTCG_API_KEY=your-api-key
//	export ENVIRONMENT=production
//	export CORS_ORIGINS=https://cards.example.com
//	export NATS_ENABLED=true
//	./cardographus
//
// Docker:
//
//	docker run -d \
//	  -e JUSTTCG_API_KEY=your-api-key \
//	  -v cardographus-data:/data \
//	  -p 8385:8385 \
//	  ghcr.io/tomtom215/cardographus
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/cardographus/internal/api"
	"github.com/tomtom215/cardographus/internal/config"
	"github.com/tomtom215/cardographus/internal/database"
	"github.com/tomtom215/cardographus/internal/events"
	"github.com/tomtom215/cardographus/internal/logging"
	"github.com/tomtom215/cardographus/internal/supervisor"
	"github.com/tomtom215/cardographus/internal/supervisor/services"
	"github.com/tomtom215/cardographus/internal/sync"
	ws "github.com/tomtom215/cardographus/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Cardographus with supervisor tree")
	logging.Info().
		Str("justtcg_url", cfg.JustTCG.BaseURL).
		Str("db_path", cfg.Database.Path).
		Bool("sync_enabled", cfg.Sync.Enabled).
		Int("daily_quota", cfg.JustTCG.DailyQuota).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	// Finalize runs left in a transient status by a previous crash or kill.
	// Their checkpoints survive, so the next sync resumes where they stopped.
	if n, err := db.FailInterruptedJobRuns(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Failed to finalize interrupted job runs")
	} else if n > 0 {
		logging.Info().Int("count", n).Msg("Finalized job runs interrupted by previous shutdown")
	}

	// Checkpoint store: Badger when a path is configured, otherwise an
	// in-memory store that loses resume state and quota usage on restart.
	var checkpoints sync.CheckpointStore
	var badgerStore *sync.BadgerCheckpointStore
	if cfg.Checkpoint.Path != "" {
		badgerStore, err = sync.NewBadgerCheckpointStore(cfg.Checkpoint.Path)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Checkpoint.Path).Msg("Failed to open checkpoint store")
		}
		checkpoints = badgerStore
		logging.Info().Str("path", cfg.Checkpoint.Path).Msg("Checkpoint store opened")
	} else {
		checkpoints = sync.NewInMemoryCheckpointStore()
		logging.Warn().Msg("CHECKPOINT_PATH is empty - using in-memory checkpoints, syncs will not resume across restarts")
	}
	defer func() {
		if err := checkpoints.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing checkpoint store")
		}
	}()

	quota := sync.NewQuotaTracker(checkpoints, cfg.JustTCG.DailyQuota)

	// Upstream client stack: client-side rate limiting keeps us under the
	// JustTCG per-minute window, retries absorb transient failures, and
	// per-game circuit breakers stop hammering an upstream that is down.
	limiter := sync.NewRateLimiter(cfg.JustTCG.RequestsPerWindow, cfg.JustTCG.Window, cfg.JustTCG.RequestSpacing)
	retry := sync.NewRetryPolicy(cfg.JustTCG.RetryAttempts, cfg.JustTCG.RetryBaseDelay, cfg.JustTCG.RetryMaxDelay)
	breakers := sync.NewGameBreakers(cfg.Sync.BreakerFailureThreshold, cfg.Sync.BreakerCooldown)
	client := sync.NewJustTCGClient(&cfg.JustTCG, limiter, retry, breakers)

	// Event bus: NATS JetStream when enabled (requires -tags nats build),
	// otherwise the in-process Watermill bus. A disabled bus leaves the
	// publisher nil; the sync pipeline skips publishing in that case.
	var bus events.Bus
	if cfg.Events.Enabled {
		if cfg.Events.NATS.Enabled {
			bus, err = events.NewNATSBus(&cfg.Events.NATS)
			if err != nil {
				logging.Fatal().Err(err).Msg("Failed to initialize NATS event bus")
			}
			logging.Info().
				Str("url", cfg.Events.NATS.URL).
				Bool("embedded", cfg.Events.NATS.EmbeddedServer).
				Msg("NATS JetStream event bus connected")
		} else {
			bus = events.NewInProcessBus(cfg.Events.BufferSize)
			logging.Info().Int("buffer_size", cfg.Events.BufferSize).Msg("In-process event bus created")
		}
		defer func() {
			if err := bus.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing event bus")
			}
		}()
	} else {
		logging.Info().Msg("Event bus disabled (EVENTS_ENABLED=false) - price change events will not be published")
	}

	// Create WebSocket hub for real-time updates (before the sync pipeline)
	// so the job tracker can broadcast progress from the first sync on.
	wsHub := ws.NewHub()

	// Bridge bus price events to WebSocket clients. Without a bus there is
	// nothing to bridge; sync progress still reaches clients via the tracker.
	var bridge *ws.PriceFeedBridge
	if bus != nil {
		bridge = ws.NewPriceFeedBridge(wsHub, bus)
	}

	tracker := sync.NewJobRunTracker(db, wsHub)
	reconciler := sync.NewBatchReconciler(db, bus, cfg.Sync.SubBatchSize)
	orchestrator := sync.NewOrchestrator(db, client, reconciler, tracker, checkpoints, quota, bus, &cfg.Sync)
	scheduler := sync.NewScheduler(orchestrator, db, &cfg.Sync)

	handler := api.NewHandler(db, orchestrator, tracker, breakers, quota, limiter, cfg, wsHub)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create structured logger for supervisor using our slog adapter
	// This bridges zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	// Data layer: Badger value log GC. The in-memory store has no value log.
	if badgerStore != nil {
		tree.AddDataService(services.NewCheckpointGCService(badgerStore, 5*time.Minute))
	}

	// Messaging layer services
	tree.AddMessagingService(services.NewWebSocketHubService(wsHub))
	if bridge != nil {
		tree.AddMessagingService(services.NewPriceFeedService(bridge))
	}
	if cfg.Sync.Enabled {
		tree.AddMessagingService(services.NewSchedulerService(scheduler))
		logging.Info().
			Dur("interval", cfg.Sync.Interval).
			Strs("games", cfg.Sync.Games).
			Msg("Sync scheduler added to supervisor tree")
	} else {
		logging.Info().Msg("Scheduled sync disabled (SYNC_ENABLED=false) - jobs run only via POST /api/v1/sync/trigger")
	}

	// API layer services
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	// Manually triggered jobs run outside the tree; cancel them and wait so
	// checkpoints flush before the deferred store and database closes run.
	orchestrator.Stop()
	logging.Info().Msg("Sync orchestrator drained")

	logging.Info().Msg("Application stopped gracefully")
}
