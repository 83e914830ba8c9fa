// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cardographus/config.yaml",
	"/etc/cardographus/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		JustTCG: JustTCGConfig{
			BaseURL: "https://api.justtcg.com/v1",
			APIKey:  "",
			Timeout: 30 * time.Second,

			// The free tier allows 500 requests per minute; 400 leaves
			// headroom for clock skew and concurrent manual requests.
			RequestsPerWindow: 400,
			Window:            60 * time.Second,
			RequestSpacing:    150 * time.Millisecond,

			RetryAttempts:  5,
			RetryBaseDelay: 2 * time.Second,
			RetryMaxDelay:  30 * time.Second,

			DailyQuota: 5000,
		},
		Database: DatabaseConfig{
			Path:      "/data/cardographus.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Checkpoint: CheckpointConfig{
			Path: "/data/checkpoints",
		},
		Sync: SyncConfig{
			Enabled:  true,
			Interval: 6 * time.Hour,
			Games:    []string{},

			PageSize:     100,
			BatchLimit:   470,
			JobBudget:    4*time.Minute + 30*time.Second,
			SubBatchSize: 50,

			InterBatchDelay: 150 * time.Millisecond,

			FreshnessWindow: 24 * time.Hour,

			BreakerFailureThreshold: 5,
			BreakerCooldown:         30 * time.Minute,
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 256,
			NATS: NATSConfig{
				Enabled:        false,
				URL:            "nats://127.0.0.1:4222",
				EmbeddedServer: true,
				StoreDir:       "/data/nats/jetstream",
				MaxMemory:      1 << 30,  // 1GB
				MaxStore:       10 << 30, // 10GB
			},
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8385,
			Timeout:     30 * time.Second,
			Environment: "development", // Set ENVIRONMENT=production for production checks
		},
		API: APIConfig{
			DefaultPageSize:   20,
			MaxPageSize:       100,
			RateLimitReqs:     100,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This function provides:
//   - Type-safe configuration unmarshaling
//   - Clear precedence: ENV > File > Defaults
//   - Support for nested configuration via koanf struct tags
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// JUSTTCG_API_KEY -> justtcg.api_key
	// SYNC_PAGE_SIZE -> sync.page_size
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"sync.games",
	"api.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - JUSTTCG_API_KEY -> justtcg.api_key
//   - JUSTTCG_DAILY_QUOTA -> justtcg.daily_quota
//   - DUCKDB_PATH -> database.path
//   - HTTP_PORT -> server.port
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// JustTCG mappings
		"justtcg_base_url":            "justtcg.base_url",
		"justtcg_api_key":             "justtcg.api_key",
		"justtcg_timeout":             "justtcg.timeout",
		"justtcg_requests_per_window": "justtcg.requests_per_window",
		"justtcg_window":              "justtcg.window",
		"justtcg_request_spacing":     "justtcg.request_spacing",
		"justtcg_retry_attempts":      "justtcg.retry_attempts",
		"justtcg_retry_base_delay":    "justtcg.retry_base_delay",
		"justtcg_retry_max_delay":     "justtcg.retry_max_delay",
		"justtcg_daily_quota":         "justtcg.daily_quota",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Checkpoint mappings
		"checkpoint_path": "checkpoint.path",

		// Sync mappings
		"sync_enabled":           "sync.enabled",
		"sync_interval":          "sync.interval",
		"sync_games":             "sync.games",
		"sync_page_size":         "sync.page_size",
		"sync_batch_limit":       "sync.batch_limit",
		"sync_job_budget":        "sync.job_budget",
		"sync_sub_batch_size":    "sync.sub_batch_size",
		"sync_inter_batch_delay": "sync.inter_batch_delay",
		"sync_freshness_window":  "sync.freshness_window",
		"breaker_threshold":      "sync.breaker_failure_threshold",
		"breaker_cooldown":       "sync.breaker_cooldown",

		// Events mappings
		"events_enabled":     "events.enabled",
		"events_buffer_size": "events.buffer_size",
		"nats_enabled":       "events.nats.enabled",
		"nats_url":           "events.nats.url",
		"nats_embedded":      "events.nats.embedded_server",
		"nats_store_dir":     "events.nats.store_dir",
		"nats_max_memory":    "events.nats.max_memory",
		"nats_max_store":     "events.nats.max_store",

		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// API mappings
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",
		"rate_limit_requests":   "api.rate_limit_requests",
		"rate_limit_window":     "api.rate_limit_window",
		"disable_rate_limit":    "api.rate_limit_disabled",
		"cors_origins":          "api.cors_origins",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// The caller is responsible for mutex protection when accessing
// configuration during reloads.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
