// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements application instrumentation using the Prometheus client
library, exposing metrics for monitoring sync performance, upstream API health,
and system behavior.

# Overview

The package provides metrics for:
  - JustTCG upstream request latency, retries, and rate limiter waits
  - Daily request quota consumption
  - Per-game circuit breaker state and transitions
  - Sync job duration, throughput, and terminal statuses
  - Database query performance (DuckDB)
  - API endpoint latency and WebSocket connections

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8385/metrics

# Usage

Metrics are package-level collectors registered at init time via promauto.
Packages record through the helper functions:

	defer func(start time.Time) {
		metrics.RecordDBQuery("INSERT", "variants", time.Since(start), err)
	}(time.Now())

Gauges for state (breaker state, quota usage, window consumption) are set
directly by the owning component whenever the state changes.

# Label Cardinality

Labels are restricted to low-cardinality values: game slugs, job types,
endpoint templates, and status strings. Never label by card or variant ID.
*/
package metrics
