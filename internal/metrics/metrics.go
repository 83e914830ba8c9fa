// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Database query performance (DuckDB)
// - JustTCG upstream API latency, retries, and rate limiting
// - Circuit breaker state per game
// - Sync job throughput and outcomes
// - API endpoint latency and WebSocket connections

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets, // 0.005s, 0.01s, 0.025s, 0.05s, 0.1s, 0.25s, 0.5s, 1s, 2.5s, 5s, 10s
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	DBConnectionPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "duckdb_connection_pool_size",
			Help: "Current number of database connections in use",
		},
	)

	// JustTCG Upstream Metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "justtcg_requests_total",
			Help: "Total number of requests sent to the JustTCG API",
		},
		[]string{"endpoint", "status_code"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "justtcg_request_duration_seconds",
			Help:    "JustTCG API request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}, // Upstream calls can be slow under load
		},
		[]string{"endpoint"},
	)

	UpstreamRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "justtcg_retry_attempts_total",
			Help: "Total number of retry attempts against the JustTCG API",
		},
		[]string{"endpoint", "reason"}, // reason: "http_429", "http_5xx", "network"
	)

	UpstreamAuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "justtcg_auth_failures_total",
			Help: "Total number of 401/403 responses from the JustTCG API",
		},
	)

	// Rate Limiter Metrics
	RateLimiterWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "justtcg_rate_limiter_wait_seconds",
			Help:    "Time spent waiting on the client-side rate limiter",
			Buckets: []float64{0.001, 0.01, 0.1, 0.15, 0.5, 1, 5, 15, 30, 60},
		},
	)

	RateLimiterSuspensions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "justtcg_rate_limiter_suspensions_total",
			Help: "Total number of times the rate limiter paused until the next window",
		},
	)

	RateLimiterWindowUsed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "justtcg_rate_limiter_window_requests",
			Help: "Requests consumed in the current rate limiter window",
		},
	)

	// Daily Quota Metrics
	QuotaRequestsUsed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "justtcg_quota_requests_used",
			Help: "Upstream requests consumed against today's quota",
		},
	)

	QuotaDailyLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "justtcg_quota_daily_limit",
			Help: "Configured daily request quota",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"game"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"game", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"game"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"game", "from_state", "to_state"},
	)

	// Sync Job Metrics
	SyncJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_job_duration_seconds",
			Help:    "Duration of sync jobs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 270, 600}, // Jobs are budgeted at 4m30s
		},
		[]string{"job_type"},
	)

	SyncJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_jobs_total",
			Help: "Total number of sync jobs by terminal status",
		},
		[]string{"game", "job_type", "status"},
	)

	SyncRecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_processed_total",
			Help: "Total number of records reconciled into the catalog",
		},
		[]string{"game", "job_type"},
	)

	SyncRecordFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_record_failures_total",
			Help: "Total number of records skipped due to per-row errors",
		},
		[]string{"game", "job_type"},
	)

	SyncPagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_pages_fetched_total",
			Help: "Total number of upstream pages fetched",
		},
		[]string{"game", "job_type"},
	)

	SyncBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_batch_size",
			Help:    "Number of rows written per database transaction",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		},
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of last successful sync job",
		},
		[]string{"game", "job_type"},
	)

	// Price Metrics
	PriceChangesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_changes_detected_total",
			Help: "Total number of variant price changes detected during reconciliation",
		},
		[]string{"game"},
	)

	PriceHistoryRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "price_history_rows_total",
			Help: "Total number of price history rows appended",
		},
	)

	// Checkpoint Metrics
	CheckpointSaves = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkpoint_saves_total",
			Help: "Total number of pagination checkpoints persisted",
		},
	)

	CheckpointResumes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkpoint_resumes_total",
			Help: "Total number of jobs resumed from a persisted checkpoint",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, // Optimized for API latency
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// WebSocket Metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WebSocketMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"type"}, // "sync_progress", "price_change"
	)

	WebSocketErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of events published to the event bus",
		},
		[]string{"topic"},
	)

	EventPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_publish_errors_total",
			Help: "Total number of event publish failures",
		},
		[]string{"topic"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordUpstreamRequest records a JustTCG API call outcome
func RecordUpstreamRequest(endpoint, statusCode string, duration time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(endpoint, statusCode).Inc()
	UpstreamRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordRateLimiterWait records time spent blocked on the client-side limiter
func RecordRateLimiterWait(wait time.Duration, suspended bool) {
	RateLimiterWaitDuration.Observe(wait.Seconds())
	if suspended {
		RateLimiterSuspensions.Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordSyncJob records a completed sync job with its terminal status
func RecordSyncJob(game, jobType, status string, duration time.Duration, processed, failed int) {
	SyncJobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
	SyncJobsTotal.WithLabelValues(game, jobType, status).Inc()
	SyncRecordsProcessed.WithLabelValues(game, jobType).Add(float64(processed))
	SyncRecordFailures.WithLabelValues(game, jobType).Add(float64(failed))
	if status == "completed" {
		SyncLastSuccess.WithLabelValues(game, jobType).Set(float64(time.Now().Unix()))
	}
}

// RecordPriceChange records a detected variant price change
func RecordPriceChange(game string) {
	PriceChangesDetected.WithLabelValues(game).Inc()
}

// UpdateQuota updates the daily quota gauges
func UpdateQuota(used, limit int) {
	QuotaRequestsUsed.Set(float64(used))
	QuotaDailyLimit.Set(float64(limit))
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
