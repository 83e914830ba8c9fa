// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/cardographus/internal/config"
	"github.com/tomtom215/cardographus/internal/middleware"
)

// Router wires the handler set and middleware into the HTTP surface.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router for an assembled handler set. Rate limits and
// CORS origins come from the API section of the config; a nil config gets
// the defaults.
func NewRouter(handler *Handler, cfg *config.Config) *Router {
	var mw *ChiMiddleware
	if cfg != nil {
		mw = NewChiMiddlewareFromConfig(&cfg.API)
	} else {
		mw = NewChiMiddleware(DefaultChiMiddlewareConfig())
	}

	return &Router{
		handler:       handler,
		chiMiddleware: mw,
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
// This allows middleware.PrometheusMetrics and middleware.Compression to work with Chi's r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi configures all HTTP routes using Chi router.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	// Applied to ALL routes in order
	r.Use(RequestIDWithLogging())      // Add X-Request-ID header with logging context
	r.Use(RequestLogging())            // Debug-level per-request log line
	r.Use(chimiddleware.RealIP)        // Extract real IP from X-Forwarded-For
	r.Use(chimiddleware.Recoverer)     // Recover from panics
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight

	// ========================
	// Health Endpoints
	// ========================
	// Permissive rate limiting (1000/min) so orchestrators can probe freely
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
		r.Get("/", router.handler.Health)
	})

	// ========================
	// Sync Control Endpoints
	// ========================
	// Job triggers spend upstream quota, so mutations get the strictest
	// per-IP limit (10/min) on top of the standard API limit.
	r.Route("/api/v1/sync", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.With(router.chiMiddleware.RateLimitSync()).Post("/trigger", router.handler.SyncTrigger)
		r.With(router.chiMiddleware.RateLimitSync()).Post("/jobs/{jobID}/cancel", router.handler.SyncJobCancel)

		r.Get("/jobs", router.handler.SyncJobs)
		r.Get("/jobs/{jobID}", router.handler.SyncJob)
		r.Get("/breakers", router.handler.SyncBreakers)
		r.Get("/quota", router.handler.SyncQuota)
	})

	// ========================
	// Catalog Endpoints
	// ========================
	// Read-only views over the synced store. These never reach upstream,
	// so the limit is permissive (1000/min) and large card lists are
	// gzip-compressed.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitCatalog())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(middleware.Compression))

		r.Get("/games", router.handler.Games)
		r.Get("/games/{game}/sets", router.handler.GameSets)
		r.Get("/games/{game}/sets/{setCode}/cards", router.handler.SetCards)
		r.Get("/cards/{cardID}/variants", router.handler.CardVariants)
		r.Get("/variants/{variantID}/price-history", router.handler.VariantPriceHistory)

		r.With(router.chiMiddleware.RateLimitWebSocket()).Get("/ws", router.handler.WebSocket)
	})

	// ========================
	// Prometheus Metrics
	// ========================
	r.Handle("/metrics", promhttp.Handler())

	// JSON errors for unknown routes and wrong methods, matching the API
	// response envelope everywhere else.
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, req, http.StatusNotFound, ErrCodeNotFound, "Resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, req, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
	})

	return r
}
