// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

/*
justtcg_client.go - JustTCG API Client

This file provides the JustTCGClient struct and HTTP communication layer
for the JustTCG catalog and pricing API.

Client Features:
  - HTTP client with configurable timeout
  - X-API-Key header authentication
  - Offset/limit pagination for sets and cards listings
  - Batch pricing lookups (POST /cards, up to 100 items per request)
  - JSON response parsing via goccy/go-json
  - Context support for cancellation and timeouts

Resilience Composition (outermost first):
  - Circuit Breaker: per-game, opens after consecutive upstream failures
  - Rate Limiter: fixed request window plus per-request spacing
  - Retries: exponential backoff on 429/5xx/network, Retry-After honored

Error Mapping:
  - 401/403 -> ErrAuthFailed (never retried)
  - 429     -> ThrottledError carrying the Retry-After hint
  - 5xx     -> UpstreamError, retryable
  - other   -> UpstreamError with the upstream error code when the body
    carried one

Related Files:
  - rate_limiter.go: request window and spacing
  - retry.go: backoff policy and failure classification
  - circuit_breaker.go: per-game breaker registry
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cardographus/internal/config"
	"github.com/tomtom215/cardographus/internal/logging"
	"github.com/tomtom215/cardographus/internal/metrics"
	"github.com/tomtom215/cardographus/internal/models/justtcg"
)

// maxErrorBodySize limits the maximum amount of response body read for error reporting
// This prevents unbounded memory allocation when reading large error responses
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads the response body for error reporting (max 64KB)
// Returns the body content or a placeholder message if reading fails
// Uses io.LimitReader to prevent unbounded memory allocation
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// UpstreamAPI defines the JustTCG operations the sync pipeline consumes.
// Implemented by JustTCGClient for production use and by fakes in tests.
type UpstreamAPI interface {
	GetGames(ctx context.Context) (*justtcg.GamesResponse, error)
	GetSets(ctx context.Context, game string, offset, limit int) (*justtcg.SetsResponse, error)
	GetCards(ctx context.Context, game, setID string, offset, limit int) (*justtcg.CardsResponse, error)
	BatchPricing(ctx context.Context, game string, lookups []justtcg.PricingRequest) (*justtcg.CardsResponse, error)
}

// JustTCGClient is the production JustTCG API client. Every call runs
// through the per-game circuit breaker, then the shared rate limiter,
// then the retry policy around the actual HTTP exchange.
type JustTCGClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	limiter  *RateLimiter
	retry    *RetryPolicy
	breakers *GameBreakers
}

// Compile-time interface check.
var _ UpstreamAPI = (*JustTCGClient)(nil)

// NewJustTCGClient creates a client from configuration and the shared
// resilience components.
func NewJustTCGClient(cfg *config.JustTCGConfig, limiter *RateLimiter, retry *RetryPolicy, breakers *GameBreakers) *JustTCGClient {
	return &JustTCGClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		retry:      retry,
		breakers:   breakers,
	}
}

// GetGames retrieves the list of supported games. The listing is small
// and unpaginated. Runs on the shared catalog breaker, not a per-game one.
func (c *JustTCGClient) GetGames(ctx context.Context) (*justtcg.GamesResponse, error) {
	result, err := c.breakers.Execute(catalogBreakerName, func() (interface{}, error) {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		var resp justtcg.GamesResponse
		err := c.retry.Execute(ctx, "games", func() error {
			resp = justtcg.GamesResponse{}
			return c.doRequest(ctx, "games", http.MethodGet, "/games", nil, nil, &resp)
		})
		if err != nil {
			return nil, err
		}
		return &resp, nil
	})
	return castResult[justtcg.GamesResponse](result, err)
}

// GetSets retrieves one page of a game's sets listing.
func (c *JustTCGClient) GetSets(ctx context.Context, game string, offset, limit int) (*justtcg.SetsResponse, error) {
	query := url.Values{}
	query.Set("game", game)
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))

	result, err := c.breakers.Execute(game, func() (interface{}, error) {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		var resp justtcg.SetsResponse
		err := c.retry.Execute(ctx, "sets", func() error {
			resp = justtcg.SetsResponse{}
			return c.doRequest(ctx, "sets", http.MethodGet, "/sets", query, nil, &resp)
		})
		if err != nil {
			return nil, err
		}
		return &resp, nil
	})
	return castResult[justtcg.SetsResponse](result, err)
}

// GetCards retrieves one page of a set's cards with embedded variant
// pricing. setID is the upstream set identifier, not the local one.
func (c *JustTCGClient) GetCards(ctx context.Context, game, setID string, offset, limit int) (*justtcg.CardsResponse, error) {
	query := url.Values{}
	query.Set("game", game)
	query.Set("set", setID)
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))

	result, err := c.breakers.Execute(game, func() (interface{}, error) {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		var resp justtcg.CardsResponse
		err := c.retry.Execute(ctx, "cards", func() error {
			resp = justtcg.CardsResponse{}
			return c.doRequest(ctx, "cards", http.MethodGet, "/cards", query, nil, &resp)
		})
		if err != nil {
			return nil, err
		}
		return &resp, nil
	})
	return castResult[justtcg.CardsResponse](result, err)
}

// BatchPricing retrieves current pricing for up to MaxPricingBatchSize
// lookups in one request. Lookups are normalized in place: unpinned ones
// receive the default condition/printing filters.
func (c *JustTCGClient) BatchPricing(ctx context.Context, game string, lookups []justtcg.PricingRequest) (*justtcg.CardsResponse, error) {
	if len(lookups) == 0 {
		return &justtcg.CardsResponse{}, nil
	}
	if len(lookups) > justtcg.MaxPricingBatchSize {
		return nil, fmt.Errorf("pricing batch of %d exceeds the upstream limit of %d", len(lookups), justtcg.MaxPricingBatchSize)
	}
	for i := range lookups {
		if err := lookups[i].Validate(); err != nil {
			return nil, fmt.Errorf("pricing lookup %d: %w", i, err)
		}
		lookups[i].Normalize()
	}

	result, err := c.breakers.Execute(game, func() (interface{}, error) {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		var resp justtcg.CardsResponse
		err := c.retry.Execute(ctx, "pricing", func() error {
			resp = justtcg.CardsResponse{}
			return c.doRequest(ctx, "pricing", http.MethodPost, "/cards", nil, lookups, &resp)
		})
		if err != nil {
			return nil, err
		}
		return &resp, nil
	})
	return castResult[justtcg.CardsResponse](result, err)
}

// doRequest performs a single HTTP exchange and decodes the JSON response
// into out. Non-2xx statuses are mapped to the client error taxonomy; the
// response body is never decoded on error paths beyond extracting the
// upstream error envelope.
func (c *JustTCGClient) doRequest(ctx context.Context, endpoint, method, path string, query url.Values, payload, out interface{}) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest(endpoint, "network_error", time.Since(start))
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.RecordUpstreamRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return c.statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// statusError maps a non-2xx response to the client error taxonomy.
func (c *JustTCGClient) statusError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		metrics.UpstreamAuthFailures.Inc()
		logging.Error().
			Int("status", resp.StatusCode).
			Msg("JustTCG authentication failed, check the configured API key")
		return fmt.Errorf("status %d: %w", resp.StatusCode, ErrAuthFailed)
	case http.StatusTooManyRequests:
		return &ThrottledError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}

	body := readBodyForError(resp.Body)
	upstream := &UpstreamError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
	var envelope struct {
		Error *justtcg.APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		upstream.Code = envelope.Error.Code
		upstream.Message = envelope.Error.Message
	}
	return upstream
}

// parseRetryAfter parses the delay-seconds form of the Retry-After header.
// The HTTP-date form and unparseable values yield zero, which falls back
// to the retry policy's computed backoff.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := time.ParseDuration(header + "s"); err == nil && seconds > 0 {
		return seconds
	}
	return 0
}
