// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateJustTCG(); err != nil {
		return err
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateSync(); err != nil {
		return err
	}

	if err := c.validateEvents(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateAPI(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateJustTCG validates upstream API configuration.
// The API key is only mandatory when sync is enabled; a read-only deployment
// serving an already-populated catalog can run without one.
func (c *Config) validateJustTCG() error {
	if c.JustTCG.BaseURL == "" {
		return fmt.Errorf("JUSTTCG_BASE_URL is required")
	}
	if err := validateAPIURL(c.JustTCG.BaseURL, "JUSTTCG_BASE_URL"); err != nil {
		return err
	}

	if c.Sync.Enabled && c.JustTCG.APIKey == "" {
		return fmt.Errorf("JUSTTCG_API_KEY is required when SYNC_ENABLED=true")
	}

	if c.JustTCG.Timeout <= 0 {
		return fmt.Errorf("JUSTTCG_TIMEOUT must be positive, got: %v", c.JustTCG.Timeout)
	}
	if c.JustTCG.RequestsPerWindow < 1 {
		return fmt.Errorf("JUSTTCG_REQUESTS_PER_WINDOW must be at least 1, got: %d", c.JustTCG.RequestsPerWindow)
	}
	if c.JustTCG.Window <= 0 {
		return fmt.Errorf("JUSTTCG_WINDOW must be positive, got: %v", c.JustTCG.Window)
	}
	if c.JustTCG.RequestSpacing < 0 {
		return fmt.Errorf("JUSTTCG_REQUEST_SPACING must not be negative, got: %v", c.JustTCG.RequestSpacing)
	}
	if c.JustTCG.RetryAttempts < 1 {
		return fmt.Errorf("JUSTTCG_RETRY_ATTEMPTS must be at least 1, got: %d", c.JustTCG.RetryAttempts)
	}
	if c.JustTCG.RetryBaseDelay <= 0 {
		return fmt.Errorf("JUSTTCG_RETRY_BASE_DELAY must be positive, got: %v", c.JustTCG.RetryBaseDelay)
	}
	if c.JustTCG.RetryMaxDelay < c.JustTCG.RetryBaseDelay {
		return fmt.Errorf("JUSTTCG_RETRY_MAX_DELAY (%v) must not be below JUSTTCG_RETRY_BASE_DELAY (%v)",
			c.JustTCG.RetryMaxDelay, c.JustTCG.RetryBaseDelay)
	}
	if c.JustTCG.DailyQuota < 1 {
		return fmt.Errorf("JUSTTCG_DAILY_QUOTA must be at least 1, got: %d", c.JustTCG.DailyQuota)
	}

	return nil
}

// validateDatabase validates DuckDB configuration
func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must not be negative, got: %d", c.Database.Threads)
	}
	return nil
}

// validateSync validates sync job configuration
func (c *Config) validateSync() error {
	if !c.Sync.Enabled {
		return nil
	}

	if c.Sync.Interval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive, got: %v", c.Sync.Interval)
	}
	if c.Sync.PageSize < 1 || c.Sync.PageSize > 200 {
		return fmt.Errorf("SYNC_PAGE_SIZE must be between 1 and 200, got: %d", c.Sync.PageSize)
	}
	if c.Sync.BatchLimit < 1 {
		return fmt.Errorf("SYNC_BATCH_LIMIT must be at least 1, got: %d", c.Sync.BatchLimit)
	}
	if c.Sync.JobBudget <= 0 {
		return fmt.Errorf("SYNC_JOB_BUDGET must be positive, got: %v", c.Sync.JobBudget)
	}
	if c.Sync.SubBatchSize < 1 || c.Sync.SubBatchSize > 100 {
		return fmt.Errorf("SYNC_SUB_BATCH_SIZE must be between 1 and 100, got: %d", c.Sync.SubBatchSize)
	}
	if c.Sync.InterBatchDelay < 0 {
		return fmt.Errorf("SYNC_INTER_BATCH_DELAY must not be negative, got: %v", c.Sync.InterBatchDelay)
	}
	if c.Sync.FreshnessWindow < 0 {
		return fmt.Errorf("SYNC_FRESHNESS_WINDOW must not be negative, got: %v", c.Sync.FreshnessWindow)
	}
	if c.Sync.BreakerFailureThreshold < 1 {
		return fmt.Errorf("BREAKER_THRESHOLD must be at least 1, got: %d", c.Sync.BreakerFailureThreshold)
	}
	if c.Sync.BreakerCooldown <= 0 {
		return fmt.Errorf("BREAKER_COOLDOWN must be positive, got: %v", c.Sync.BreakerCooldown)
	}

	return nil
}

// validateEvents validates event bus and optional NATS configuration
func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}

	if c.Events.BufferSize < 1 {
		return fmt.Errorf("EVENTS_BUFFER_SIZE must be at least 1, got: %d", c.Events.BufferSize)
	}

	if c.Events.NATS.Enabled {
		if err := validateNATSURL(c.Events.NATS.URL); err != nil {
			return fmt.Errorf("NATS_URL is invalid: %w", err)
		}
		if c.Events.NATS.EmbeddedServer && c.Events.NATS.StoreDir == "" {
			return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
		}
	}

	return nil
}

// validateServer validates HTTP server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got: %v", c.Server.Timeout)
	}
	if c.Server.Environment != "development" && c.Server.Environment != "production" {
		return fmt.Errorf("ENVIRONMENT must be development or production, got: %s", c.Server.Environment)
	}
	return nil
}

// validateAPI validates API pagination and rate limit configuration
func (c *Config) validateAPI() error {
	if c.API.DefaultPageSize < 1 {
		return fmt.Errorf("API_DEFAULT_PAGE_SIZE must be at least 1, got: %d", c.API.DefaultPageSize)
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("API_MAX_PAGE_SIZE (%d) must not be below API_DEFAULT_PAGE_SIZE (%d)",
			c.API.MaxPageSize, c.API.DefaultPageSize)
	}
	if !c.API.RateLimitDisabled {
		if c.API.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got: %d", c.API.RateLimitReqs)
		}
		if c.API.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got: %v", c.API.RateLimitWindow)
		}
	}
	return nil
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "warning": true, "error": true,
		"fatal": true, "disabled": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, got: %s", c.Logging.Level)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got: %s", c.Logging.Format)
	}

	return nil
}

// validateAPIURL validates that a URL is properly formatted for an HTTP API
// base. A path is allowed (the JustTCG base includes /v1) but query
// parameters are not.
func validateAPIURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}

	return nil
}

// validateNATSURL validates that the NATS URL is properly formatted
// Supports: nats://, tls://, and ws:// schemes with IP addresses/hostnames and optional ports
func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222, nats.example.com:4222)")
	}

	return nil
}
