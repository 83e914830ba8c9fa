// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

/*
Package middleware provides HTTP middleware in http.HandlerFunc form.

The api package mounts these on chi route groups through a small adapter,
so a single implementation serves both plain handlers and chi routers.

Key Components:

  - PrometheusMetrics: request counter, duration histogram, and in-flight
    gauge, labeled by method, chi route pattern, and status code
  - Compression: pooled gzip encoding for clients that accept it

Usage Example:

	r.Route("/api/v1", func(r chi.Router) {
	    r.Use(chiMiddleware(middleware.PrometheusMetrics))
	    r.Use(chiMiddleware(middleware.Compression))
	    r.Get("/games", handler.Games)
	})

Thread Safety:

Both middlewares are safe for concurrent use. The gzip writer pool is
shared across requests; each request checks one writer out for its
lifetime and returns it on completion.
*/
package middleware
