// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from environment variables and config files.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Upstream:
//     - JustTCG: API endpoint, credentials, rate limit and retry tuning
//
//  2. Infrastructure:
//     - Database: DuckDB configuration (path, memory, threads)
//     - Checkpoint: Badger store for pagination checkpoints and quota tracking
//     - Sync: Scheduling, paging, budgets, and circuit breaker tuning
//     - Events: In-process event bus, optional NATS JetStream transport
//
//  3. API & Observability:
//     - Server: HTTP server configuration (port, host, timeout)
//     - API: Pagination, rate limiting, CORS
//     - Logging: Log levels and output formats
//
// Example - Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	// cfg.JustTCG.APIKey, cfg.Database.Path, etc. are now populated
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from
// multiple goroutines.
type Config struct {
	JustTCG    JustTCGConfig    `koanf:"justtcg"`
	Database   DatabaseConfig   `koanf:"database"`
	Checkpoint CheckpointConfig `koanf:"checkpoint"`
	Sync       SyncConfig       `koanf:"sync"`
	Events     EventsConfig     `koanf:"events"`
	Server     ServerConfig     `koanf:"server"`
	API        APIConfig        `koanf:"api"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// JustTCGConfig holds the upstream API connection and client-side protection
// settings. The API key is mandatory: every JustTCG endpoint requires it.
//
// Environment Variables:
//   - JUSTTCG_API_KEY: API key sent in the X-API-Key header (required)
//   - JUSTTCG_BASE_URL: API base URL (default: https://api.justtcg.com/v1)
//   - JUSTTCG_REQUESTS_PER_WINDOW: Client-side window limit (default: 400)
//   - JUSTTCG_DAILY_QUOTA: Per-day request budget (default: 5000)
type JustTCGConfig struct {
	BaseURL string        `koanf:"base_url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`

	// Client-side rate limiting. The upstream enforces a fixed per-minute
	// window; we stay under it rather than burning requests on 429s.
	RequestsPerWindow int           `koanf:"requests_per_window"`
	Window            time.Duration `koanf:"window"`
	RequestSpacing    time.Duration `koanf:"request_spacing"`

	// Retry tuning for transient failures (429, 5xx, network).
	RetryAttempts  int           `koanf:"retry_attempts"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
	RetryMaxDelay  time.Duration `koanf:"retry_max_delay"`

	// DailyQuota caps total upstream requests per UTC day across all jobs.
	DailyQuota int `koanf:"daily_quota"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = use runtime.NumCPU()
}

// CheckpointConfig holds the Badger store location used for pagination
// checkpoints and daily quota counters.
type CheckpointConfig struct {
	Path string `koanf:"path"`
}

// SyncConfig holds scheduling and job execution settings.
type SyncConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`

	// Games restricts scheduled syncs to the listed game slugs.
	// Empty means all discovered games.
	Games []string `koanf:"games"`

	PageSize     int           `koanf:"page_size"`
	BatchLimit   int           `koanf:"batch_limit"` // Preflight ceiling on upstream pages per job
	JobBudget    time.Duration `koanf:"job_budget"`
	SubBatchSize int           `koanf:"sub_batch_size"` // Rows per database transaction

	// InterBatchDelay paces consecutive page fetches within a job, on top of
	// the per-request spacing the rate limiter enforces.
	InterBatchDelay time.Duration `koanf:"inter_batch_delay"`

	// FreshnessWindow suppresses re-syncing a set whose data is newer than this.
	FreshnessWindow time.Duration `koanf:"freshness_window"`

	// Circuit breaker tuning, applied per game.
	BreakerFailureThreshold int           `koanf:"breaker_failure_threshold"`
	BreakerCooldown         time.Duration `koanf:"breaker_cooldown"`
}

// EventsConfig holds event bus settings. The in-process bus is always
// compiled in; NATS JetStream transport requires building with -tags=nats.
type EventsConfig struct {
	Enabled    bool       `koanf:"enabled"`
	BufferSize int        `koanf:"buffer_size"`
	NATS       NATSConfig `koanf:"nats"`
}

// NATSConfig holds optional NATS JetStream transport settings.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // "development" or "production"
}

// APIConfig holds API pagination, rate limiting, and CORS settings.
type APIConfig struct {
	DefaultPageSize   int           `koanf:"default_page_size"`
	MaxPageSize       int           `koanf:"max_page_size"`
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load loads configuration from defaults, optional config file, and
// environment variables, then validates it.
func Load() (*Config, error) {
	cfg, err := LoadWithKoanf()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c *ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction reports whether the server runs in production mode.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}
