// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

/*
Package main is the entry point for the Cardographus server application.

Cardographus is a self-hosted trading card catalog and pricing service. It
syncs games, sets, cards, and variant prices from the JustTCG API into DuckDB
on a schedule, records price history over time, and serves the mirrored
catalog over a REST API with live progress updates over WebSocket.

# Application Architecture

The server implements a layered architecture with Suture v4 process supervision:

	RootSupervisor ("cardographus")
	├── DataSupervisor ("data-layer")
	│   └── Checkpoint GC (Badger value log maintenance)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket Hub (real-time updates)
	│   ├── Price Feed Bridge (bus -> WebSocket fan-out)
	│   └── Sync Scheduler (periodic sync cycles)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (catalog, pricing, and sync admin endpoints)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Database: DuckDB schema migrations and interrupted job recovery
 4. Checkpoint Store: Badger for pagination checkpoints and daily quota
 5. Upstream Client: rate limiter, retry policy, per-game circuit breakers
 6. Event Bus: in-process Watermill channel or NATS JetStream (-tags nats)
 7. Sync Pipeline: job tracker, batch reconciler, orchestrator, scheduler
 8. Supervisor Tree: Suture v4 process supervision
 9. HTTP Server: Chi router with middleware stack

The sync orchestrator itself is not a supervised service: jobs are launched
on demand (by the scheduler or the trigger endpoint), run in their own
goroutines, and resume from Badger checkpoints after a crash.

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest priority wins):

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	# Upstream (required)
	JUSTTCG_API_KEY=<api-key>    # Sent in the X-API-Key header
	JUSTTCG_DAILY_QUOTA=5000     # Per-day upstream request budget

	# Server
	HTTP_PORT=8385               # HTTP server port
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

	# Storage
	DUCKDB_PATH=/data/cardographus.duckdb
	CHECKPOINT_PATH=/data/checkpoints   # Empty = in-memory, no resume

	# Sync
	SYNC_ENABLED=true            # Scheduled sync cycles
	SYNC_INTERVAL=6h             # Delay between cycles
	SYNC_GAMES=                  # Comma-separated slugs, empty = all

	# Events (optional NATS transport)
	EVENTS_ENABLED=true
	NATS_ENABLED=false           # Requires -tags nats build
	NATS_URL=nats://127.0.0.1:4222

See .env.example for complete configuration reference.

# Build Tags

Optional build tags enable additional functionality:

	go build ./cmd/server                # Standard build
	go build -tags nats ./cmd/server     # Enable NATS JetStream events

Build tags affect event delivery, not supervisor tree composition: with the
nats tag and NATS_ENABLED=true, price change and job completion events flow
through JetStream instead of the in-process channel, so external consumers
can subscribe too. The price feed bridge is supervised either way.

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM:

 1. Stops accepting new HTTP connections
 2. Closes WebSocket client connections
 3. Waits for in-flight requests (10s timeout)
 4. Stops the scheduler and cancels running sync jobs
 5. Saves checkpoints so interrupted jobs resume on next start
 6. Closes the event bus, checkpoint store, and database
 7. Reports any services that failed to stop

# Usage Examples

Development (console logs, temp storage):

	export JUSTTCG_API_KEY=your-api-key
	export LOG_FORMAT=console
	export DUCKDB_PATH=/tmp/cardographus.duckdb CHECKPOINT_PATH=/tmp/checkpoints
	go run ./cmd/server

Production:

	export JUSTTCG_API_KEY=your-api-key
	export ENVIRONMENT=production
	export CORS_ORIGINS=https://cards.example.com
	./cardographus

Docker:

	docker run -d \
	  -e JUSTTCG_API_KEY=your-api-key \
	  -v cardographus-data:/data \
	  -p 8385:8385 \
	  ghcr.io/tomtom215/cardographus

# API Endpoints

The API is organized into categories:

  - Health: Liveness, readiness, and component status
  - Catalog: Games, sets, cards, and variants with pagination and filtering
  - Pricing: Variant price history sampled by sync runs
  - Sync Admin: Trigger and cancel jobs, list runs, breaker and quota status
  - WebSocket: Real-time sync progress and price change notifications
  - Metrics: Prometheus metrics at /metrics

# See Also

  - internal/config: Configuration management
  - internal/supervisor: Process supervision
  - internal/api: HTTP handlers and routing
  - internal/sync: JustTCG sync pipeline
  - internal/events: Event bus and NATS transport
*/
package main
