// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRecordDBQuery tests database query metric recording
func TestRecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		table     string
		duration  time.Duration
		err       error
	}{
		{
			name:      "successful SELECT query",
			operation: "SELECT",
			table:     "variants",
			duration:  10 * time.Millisecond,
			err:       nil,
		},
		{
			name:      "successful upsert",
			operation: "INSERT",
			table:     "cards",
			duration:  5 * time.Millisecond,
			err:       nil,
		},
		{
			name:      "failed query with short error",
			operation: "UPDATE",
			table:     "sets",
			duration:  100 * time.Millisecond,
			err:       errors.New("connection refused"),
		},
		{
			name:      "failed query with long error - should truncate to 50 chars",
			operation: "DELETE",
			table:     "sync_job_runs",
			duration:  50 * time.Millisecond,
			err:       errors.New("this is a very long error message that exceeds fifty characters and should be truncated"),
		},
		{
			name:      "fast query under 1ms",
			operation: "SELECT",
			table:     "games",
			duration:  500 * time.Microsecond,
			err:       nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Record the query - should not panic
			RecordDBQuery(tt.operation, tt.table, tt.duration, tt.err)
		})
	}
}

// TestRecordDBQuery_ErrorTruncation verifies error messages are truncated at 50 chars
func TestRecordDBQuery_ErrorTruncation(t *testing.T) {
	err50 := errors.New(strings.Repeat("a", 50))
	RecordDBQuery("SELECT", "test", time.Millisecond, err50)

	err51 := errors.New(strings.Repeat("b", 51))
	RecordDBQuery("SELECT", "test", time.Millisecond, err51)

	err100 := errors.New(strings.Repeat("c", 100))
	RecordDBQuery("SELECT", "test", time.Millisecond, err100)
}

// TestRecordUpstreamRequest tests JustTCG request metric recording
func TestRecordUpstreamRequest(t *testing.T) {
	tests := []struct {
		name       string
		endpoint   string
		statusCode string
		duration   time.Duration
	}{
		{
			name:       "games list",
			endpoint:   "/games",
			statusCode: "200",
			duration:   120 * time.Millisecond,
		},
		{
			name:       "sets page",
			endpoint:   "/sets",
			statusCode: "200",
			duration:   250 * time.Millisecond,
		},
		{
			name:       "batch pricing",
			endpoint:   "/cards",
			statusCode: "200",
			duration:   800 * time.Millisecond,
		},
		{
			name:       "throttled",
			endpoint:   "/cards",
			statusCode: "429",
			duration:   15 * time.Millisecond,
		},
		{
			name:       "server error",
			endpoint:   "/sets",
			statusCode: "503",
			duration:   30 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordUpstreamRequest(tt.endpoint, tt.statusCode, tt.duration)
		})
	}
}

// TestRecordSyncJob tests sync job metric recording across terminal statuses
func TestRecordSyncJob(t *testing.T) {
	tests := []struct {
		name      string
		game      string
		jobType   string
		status    string
		duration  time.Duration
		processed int
		failed    int
	}{
		{
			name:      "completed pricing refresh",
			game:      "pokemon",
			jobType:   "refresh_pricing",
			status:    "completed",
			duration:  90 * time.Second,
			processed: 2400,
			failed:    0,
		},
		{
			name:      "partial import at budget",
			game:      "magic-the-gathering",
			jobType:   "import_cards",
			status:    "partial",
			duration:  270 * time.Second,
			processed: 12000,
			failed:    3,
		},
		{
			name:      "preflight ceiling rejection",
			game:      "pokemon",
			jobType:   "refresh_pricing",
			status:    "preflight_ceiling",
			duration:  5 * time.Millisecond,
			processed: 0,
			failed:    0,
		},
		{
			name:      "failed discovery",
			game:      "",
			jobType:   "discover_games",
			status:    "failed",
			duration:  12 * time.Second,
			processed: 0,
			failed:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordSyncJob(tt.game, tt.jobType, tt.status, tt.duration, tt.processed, tt.failed)
		})
	}
}

// TestRecordRateLimiterWait covers both spacing waits and window suspensions
func TestRecordRateLimiterWait(t *testing.T) {
	RecordRateLimiterWait(150*time.Millisecond, false)
	RecordRateLimiterWait(42*time.Second, true)

	if got := testutil.ToFloat64(RateLimiterSuspensions); got < 1 {
		t.Errorf("RateLimiterSuspensions = %v, want >= 1", got)
	}
}

// TestUpdateQuota verifies the quota gauges reflect the latest values
func TestUpdateQuota(t *testing.T) {
	UpdateQuota(1234, 5000)

	if got := testutil.ToFloat64(QuotaRequestsUsed); got != 1234 {
		t.Errorf("QuotaRequestsUsed = %v, want 1234", got)
	}
	if got := testutil.ToFloat64(QuotaDailyLimit); got != 5000 {
		t.Errorf("QuotaDailyLimit = %v, want 5000", got)
	}
}

// TestTrackActiveRequest verifies the gauge moves in both directions
func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)

	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("APIActiveRequests after inc = %v, want %v", got, before+1)
	}

	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("APIActiveRequests after dec = %v, want %v", got, before)
	}
}

// TestMetricsRegistration verifies all metrics are properly registered
func TestMetricsRegistration(t *testing.T) {
	metrics := []prometheus.Collector{
		DBQueryDuration,
		DBQueryErrors,
		DBConnectionPoolSize,
		UpstreamRequestsTotal,
		UpstreamRequestDuration,
		UpstreamRetryAttempts,
		UpstreamAuthFailures,
		RateLimiterWaitDuration,
		RateLimiterSuspensions,
		RateLimiterWindowUsed,
		QuotaRequestsUsed,
		QuotaDailyLimit,
		CircuitBreakerState,
		CircuitBreakerRequests,
		CircuitBreakerConsecutiveFailures,
		CircuitBreakerTransitions,
		SyncJobDuration,
		SyncJobsTotal,
		SyncRecordsProcessed,
		SyncRecordFailures,
		SyncPagesFetched,
		SyncBatchSize,
		SyncLastSuccess,
		PriceChangesDetected,
		PriceHistoryRows,
		CheckpointSaves,
		CheckpointResumes,
		APIRequestsTotal,
		APIRequestDuration,
		APIActiveRequests,
		APIRateLimitHits,
		WebSocketConnections,
		WebSocketMessagesSent,
		WebSocketErrors,
		EventsPublished,
		EventPublishErrors,
		AppInfo,
		AppUptime,
	}

	// Verify each metric can be described
	for _, m := range metrics {
		ch := make(chan *prometheus.Desc, 10)
		m.Describe(ch)
		close(ch)

		count := 0
		for range ch {
			count++
		}
		if count == 0 {
			t.Errorf("Metric has no descriptors")
		}
	}
}

// TestMetricGathering tests that metrics can be gathered using testutil
func TestMetricGathering(t *testing.T) {
	RecordDBQuery("TEST", "test_table", time.Millisecond, nil)
	RecordUpstreamRequest("/games", "200", time.Millisecond)

	// Verify we can lint the metrics (checks for consistency issues)
	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Logf("Lint errors (may be expected): %v", err)
	}
	for _, p := range problems {
		t.Logf("Metric lint problem: %s", p.Text)
	}
}

// Benchmark tests for metrics performance

func BenchmarkRecordDBQuery(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordDBQuery("SELECT", "variants", 10*time.Millisecond, nil)
	}
}

func BenchmarkRecordUpstreamRequest(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordUpstreamRequest("/cards", "200", 100*time.Millisecond)
	}
}

func BenchmarkRecordSyncJob(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordSyncJob("pokemon", "refresh_pricing", "completed", 90*time.Second, 1000, 0)
	}
}
