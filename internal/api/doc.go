// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

/*
Package api provides the HTTP surface: routing, middleware, request
validation, and the JSON response envelope.

Key Components:

  - Router: Chi-based route tree with per-group rate limit tiers
  - Handler: endpoint implementations over the database, orchestrator,
    job tracker, breakers, quota, and WebSocket hub
  - ChiMiddleware: CORS and httprate-based IP rate limiting
  - ResponseWriter: uniform success/error envelope with request IDs
    and pagination metadata
  - Request structs: validator-tagged shapes for query and body input

API Categories:

  - Health: /api/v1/health, /health/live, /health/ready
  - Sync control: POST /api/v1/sync/trigger, GET /sync/jobs,
    GET /sync/jobs/{jobID}, POST /sync/jobs/{jobID}/cancel,
    GET /sync/breakers, GET /sync/quota
  - Catalog: GET /api/v1/games, /games/{game}/sets,
    /games/{game}/sets/{setCode}/cards, /cards/{cardID}/variants,
    /variants/{variantID}/price-history
  - Live updates: GET /api/v1/ws (WebSocket)
  - Prometheus: GET /metrics

Usage Example:

	handler := api.NewHandler(db, orch, tracker, breakers, quota, limiter, cfg, hub)
	router := api.NewRouter(handler, cfg)

	srv := &http.Server{
	    Addr:    cfg.Server.ListenAddr(),
	    Handler: router.SetupChi(),
	}

Response Envelope:

Every endpoint returns the same JSON shape:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "...", "duration_ms": 2}}
	{"success": false, "error": {"code": "NOT_FOUND", "message": "Game not found"}}

Sync triggers return 202 Accepted with the job run record; the work
continues in the background and progress is observable via the jobs
endpoints or the WebSocket feed.

Thread Safety:

Handlers hold no per-request state and are safe for concurrent use. The
rate limiters and CORS handler are built once at router construction.
*/
package api
