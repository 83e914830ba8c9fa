// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tomtom215/cardographus/internal/config"
	"github.com/tomtom215/cardographus/internal/database"
	"github.com/tomtom215/cardographus/internal/logging"
	syncpkg "github.com/tomtom215/cardographus/internal/sync"
	ws "github.com/tomtom215/cardographus/internal/websocket"
)

// Handler contains dependencies for API handlers.
//
// Handler methods are split across multiple files:
//   - handlers.go: Handler struct, constructor, health, WebSocket (this file)
//   - handlers_sync.go: Sync trigger/job/breaker/quota endpoints
//   - handlers_catalog.go: Catalog read endpoints (games/sets/cards/variants)
type Handler struct {
	db        *database.DB
	orch      *syncpkg.Orchestrator
	tracker   *syncpkg.JobRunTracker
	breakers  *syncpkg.GameBreakers
	quota     *syncpkg.QuotaTracker
	limiter   *syncpkg.RateLimiter
	config    *config.Config
	wsHub     *ws.Hub
	startTime time.Time
}

// NewHandler creates a new API handler with all required dependencies.
//
// Dependencies:
//   - db: Database connection for catalog and job run access
//   - orch: Sync orchestrator for trigger requests
//   - tracker: Job run tracker for progress queries and cancellation
//   - breakers: Per-game circuit breaker registry for state snapshots
//   - quota: Daily quota tracker for budget reporting
//   - limiter: Upstream rate limiter for window usage reporting
//   - cfg: Application configuration
//   - wsHub: WebSocket hub for real-time broadcasts
//
// Example:
//
//	handler := api.NewHandler(db, orch, tracker, breakers, quota, limiter, cfg, wsHub)
//	router := api.NewRouter(handler, cfg)
//	http.ListenAndServe(cfg.Server.ListenAddr(), router.SetupChi())
func NewHandler(db *database.DB, orch *syncpkg.Orchestrator, tracker *syncpkg.JobRunTracker, breakers *syncpkg.GameBreakers, quota *syncpkg.QuotaTracker, limiter *syncpkg.RateLimiter, cfg *config.Config, wsHub *ws.Hub) *Handler {
	return &Handler{
		db:        db,
		orch:      orch,
		tracker:   tracker,
		breakers:  breakers,
		quota:     quota,
		limiter:   limiter,
		config:    cfg,
		wsHub:     wsHub,
		startTime: time.Now(),
	}
}

// Health handles health check requests. Reports overall status with
// database connectivity, daily quota usage, and uptime. Status is
// "degraded" rather than an error code when the database is unreachable;
// readiness gating belongs to HealthReady.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	// Check database connectivity (nil means not connected)
	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil

	status := "healthy"
	if !dbConnected {
		status = "degraded"
	}

	health := map[string]interface{}{
		"status":             status,
		"version":            "1.0.0",
		"database_connected": dbConnected,
		"uptime":             time.Since(h.startTime).Seconds(),
	}

	if h.quota != nil {
		used, err := h.quota.Used()
		if err == nil {
			health["quota_used"] = used
			health["quota_limit"] = h.quota.Limit()
		}
	}

	rw.Success(health)
}

// HealthLive handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style).
// Returns 200 OK only if the service is ready to handle traffic.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	// Check database connectivity (nil means not connected)
	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil

	if !dbConnected {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Service not ready", map[string]interface{}{
			"database_connected": false,
		})
		return
	}

	rw.Success(map[string]interface{}{
		"database_connected": true,
		"ready_to_serve":     true,
		"uptime":             time.Since(h.startTime).Seconds(),
	})
}

// getUpgrader creates a WebSocket upgrader with proper origin checking and
// a handshake timeout for protection against slow client attacks.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// If no origin header, REJECT - legitimate browser WebSockets ALWAYS include Origin.
	// Only non-browser clients (curl, scripts) omit Origin; allowing empty Origin
	// bypasses CORS entirely.
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	// If config is nil, allow by default (fail open for tests/development)
	if h.config == nil {
		return true
	}

	// Check against allowed origins from config
	for _, allowedOrigin := range h.config.API.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	logging.Warn().Str("origin", origin).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket handles WebSocket connections for real-time sync progress and
// price change notifications.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	// Check if WebSocket hub is available
	if h.wsHub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		NewResponseWriter(w, r).ServiceUnavailable("WebSocket service unavailable")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	h.wsHub.Register <- client
	client.Start()
}
