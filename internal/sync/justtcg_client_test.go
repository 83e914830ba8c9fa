// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cardographus/internal/config"
	"github.com/tomtom215/cardographus/internal/models/justtcg"
)

// newTestClient builds a client against a test server with fast retry
// timing and a permissive rate limiter.
func newTestClient(baseURL string, retryAttempts, breakerThreshold int) *JustTCGClient {
	cfg := &config.JustTCGConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}
	limiter := NewRateLimiter(10000, time.Minute, 0)
	retry := NewRetryPolicy(retryAttempts, time.Millisecond, 10*time.Millisecond)
	breakers := NewGameBreakers(breakerThreshold, time.Minute)
	return NewJustTCGClient(cfg, limiter, retry, breakers)
}

// TestJustTCGClient_GetGames verifies request shape and response decoding
// for the games listing.
func TestJustTCGClient_GetGames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/games" {
			t.Errorf("Expected path /games, got %s", r.URL.Path)
		}
		if key := r.Header.Get("X-API-Key"); key != "test-key" {
			t.Errorf("Expected X-API-Key test-key, got %q", key)
		}
		if accept := r.Header.Get("Accept"); accept != "application/json" {
			t.Errorf("Expected Accept application/json, got %q", accept)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"id":"game_pokemon","name":"Pokemon","slug":"pokemon","active":true,"sets_count":150},
			{"id":"game_magic","name":"Magic: The Gathering","slug":"magic","active":false}
		]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 3, 10)
	resp, err := client.GetGames(context.Background())
	if err != nil {
		t.Fatalf("GetGames failed: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("Expected 2 games, got %d", len(resp.Data))
	}
	if resp.Data[0].Slug != "pokemon" || !resp.Data[0].Active {
		t.Errorf("Unexpected first game: %+v", resp.Data[0])
	}
	if resp.Data[1].Active {
		t.Errorf("Expected second game inactive")
	}
}

// TestJustTCGClient_GetSets_QueryParams verifies pagination parameters are
// passed through.
func TestJustTCGClient_GetSets_QueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("game") != "pokemon" {
			t.Errorf("Expected game=pokemon, got %q", q.Get("game"))
		}
		if q.Get("offset") != "50" {
			t.Errorf("Expected offset=50, got %q", q.Get("offset"))
		}
		if q.Get("limit") != "25" {
			t.Errorf("Expected limit=25, got %q", q.Get("limit"))
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"set_base","game_id":"game_pokemon","name":"Base Set","code":"base1","cards_count":102}],
			"pagination":{"offset":50,"limit":25,"total":51,"has_more":false}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 3, 10)
	resp, err := client.GetSets(context.Background(), "pokemon", 50, 25)
	if err != nil {
		t.Fatalf("GetSets failed: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Code != "base1" {
		t.Errorf("Unexpected sets response: %+v", resp.Data)
	}
	if resp.Pagination == nil || resp.Pagination.HasMore {
		t.Errorf("Expected pagination with has_more=false, got %+v", resp.Pagination)
	}
}

// TestJustTCGClient_GetCards verifies the cards listing decodes embedded
// variants.
func TestJustTCGClient_GetCards(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("set") != "set_base" {
			t.Errorf("Expected set=set_base, got %q", q.Get("set"))
		}
		_, _ = w.Write([]byte(`{"data":[{
			"id":"card_25","set_id":"set_base","name":"Pikachu","number":"025/102","rarity":"Common",
			"variants":[{"id":"var_1","condition":"Near Mint","printing":"Normal","price":12.34,"last_updated":1700000000}]
		}],"pagination":{"offset":0,"limit":100,"total":1,"has_more":false}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 3, 10)
	resp, err := client.GetCards(context.Background(), "pokemon", "set_base", 0, 100)
	if err != nil {
		t.Fatalf("GetCards failed: %v", err)
	}
	if len(resp.Data) != 1 || len(resp.Data[0].Variants) != 1 {
		t.Fatalf("Unexpected cards response: %+v", resp.Data)
	}
	v := resp.Data[0].Variants[0]
	if v.ID != "var_1" || v.Price != 12.34 || v.LastUpdated != 1700000000 {
		t.Errorf("Unexpected variant: %+v", v)
	}
}

// TestJustTCGClient_AuthFailureNotRetried verifies 401 maps to ErrAuthFailed
// after exactly one request.
func TestJustTCGClient_AuthFailureNotRetried(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5, 10)
	_, err := client.GetGames(context.Background())
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Expected ErrAuthFailed, got %v", err)
	}
	if requests != 1 {
		t.Errorf("Expected exactly 1 request for auth failure, got %d", requests)
	}
}

// TestJustTCGClient_ThrottleRetriedThenSucceeds verifies a 429 is retried
// and the call recovers.
func TestJustTCGClient_ThrottleRetriedThenSucceeds(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 3, 10)
	resp, err := client.GetSets(context.Background(), "pokemon", 0, 100)
	if err != nil {
		t.Fatalf("Expected recovery after 429, got %v", err)
	}
	if resp.Data == nil || len(resp.Data) != 0 {
		t.Errorf("Expected empty data page, got %+v", resp.Data)
	}
	if requests != 2 {
		t.Errorf("Expected 2 requests (429 then success), got %d", requests)
	}
}

// TestJustTCGClient_ServerErrorRetried verifies 5xx responses retry until
// success.
func TestJustTCGClient_ServerErrorRetried(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 4, 10)
	if _, err := client.GetCards(context.Background(), "pokemon", "set_base", 0, 100); err != nil {
		t.Fatalf("Expected recovery after 5xx retries, got %v", err)
	}
	if requests != 3 {
		t.Errorf("Expected 3 requests, got %d", requests)
	}
}

// TestJustTCGClient_ErrorEnvelopeDecoded verifies the upstream error body is
// surfaced in the UpstreamError.
func TestJustTCGClient_ErrorEnvelopeDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"set_not_found","message":"unknown set identifier"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 3, 10)
	_, err := client.GetCards(context.Background(), "pokemon", "bogus", 0, 100)

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("Expected UpstreamError, got %v", err)
	}
	if upstream.StatusCode != 404 {
		t.Errorf("Expected status 404, got %d", upstream.StatusCode)
	}
	if upstream.Code != "set_not_found" {
		t.Errorf("Expected code set_not_found, got %q", upstream.Code)
	}
	if upstream.Message != "unknown set identifier" {
		t.Errorf("Expected envelope message, got %q", upstream.Message)
	}
}

// TestJustTCGClient_BatchPricing verifies the POST body, lookup
// normalization, and response decoding.
func TestJustTCGClient_BatchPricing(t *testing.T) {
	var received []justtcg.PricingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/cards" {
			t.Errorf("Expected path /cards, got %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"card_25","name":"Pikachu",
			"variants":[{"id":"var_1","condition":"Near Mint","printing":"Normal","price":15.00}]}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 3, 10)
	lookups := []justtcg.PricingRequest{
		{VariantID: "var_1"},
		{CardID: "card_77"},
	}
	resp, err := client.BatchPricing(context.Background(), "pokemon", lookups)
	if err != nil {
		t.Fatalf("BatchPricing failed: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("Expected 1 card in response, got %d", len(resp.Data))
	}

	if len(received) != 2 {
		t.Fatalf("Expected 2 lookups sent, got %d", len(received))
	}
	// Variant-id lookups stay bare; card-id lookups get the default filters.
	if received[0].Condition != "" || received[0].Printing != "" {
		t.Errorf("Expected variant-id lookup unnormalized, got %+v", received[0])
	}
	if received[1].Condition != justtcg.DefaultCondition || received[1].Printing != justtcg.DefaultPrinting {
		t.Errorf("Expected card-id lookup normalized to defaults, got %+v", received[1])
	}
}

// TestJustTCGClient_BatchPricingValidation verifies oversized and invalid
// batches fail before any HTTP request.
func TestJustTCGClient_BatchPricingValidation(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 3, 10)
	ctx := context.Background()

	// Empty batch: no request, empty response.
	resp, err := client.BatchPricing(ctx, "pokemon", nil)
	if err != nil {
		t.Fatalf("Expected empty batch to succeed, got %v", err)
	}
	if resp == nil || len(resp.Data) != 0 {
		t.Errorf("Expected empty response for empty batch")
	}

	// Oversized batch.
	big := make([]justtcg.PricingRequest, justtcg.MaxPricingBatchSize+1)
	for i := range big {
		big[i].VariantID = "var"
	}
	if _, err := client.BatchPricing(ctx, "pokemon", big); err == nil {
		t.Error("Expected error for oversized batch")
	} else if !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("Expected batch limit error, got %v", err)
	}

	// Lookup with no identifier.
	if _, err := client.BatchPricing(ctx, "pokemon", []justtcg.PricingRequest{{}}); err == nil {
		t.Error("Expected error for identifier-less lookup")
	}

	if requests != 0 {
		t.Errorf("Expected validation failures before any HTTP request, got %d requests", requests)
	}
}

// TestJustTCGClient_BreakerOpensAfterExhaustedRetries verifies a persistent
// upstream failure trips the game's breaker and the next call is rejected
// without touching the upstream.
func TestJustTCGClient_BreakerOpensAfterExhaustedRetries(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 2, 1)
	ctx := context.Background()

	if _, err := client.GetSets(ctx, "pokemon", 0, 100); err == nil {
		t.Fatal("Expected failure from persistent 5xx")
	}
	afterFirst := requests
	if afterFirst != 2 {
		t.Errorf("Expected 2 attempts (retry budget), got %d", afterFirst)
	}

	_, err := client.GetSets(ctx, "pokemon", 0, 100)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Expected open breaker rejection, got %v", err)
	}
	if requests != afterFirst {
		t.Errorf("Expected no upstream requests while breaker open, got %d extra", requests-afterFirst)
	}
}

// TestParseRetryAfter verifies the delay-seconds parse with fallback to zero.
func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", 0},
		{"30", 30 * time.Second},
		{"2.5", 2500 * time.Millisecond},
		{"0", 0},
		{"-5", 0},
		{"Wed, 21 Oct 2026 07:28:00 GMT", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.header); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, expected %v", tt.header, got, tt.want)
		}
	}
}

// TestReadBodyForError verifies the bounded error-body reader.
func TestReadBodyForError(t *testing.T) {
	small := readBodyForError(strings.NewReader(`{"error":"bad"}`))
	if string(small) != `{"error":"bad"}` {
		t.Errorf("Expected body passthrough, got %q", small)
	}

	huge := strings.Repeat("x", maxErrorBodySize+100)
	bounded := readBodyForError(strings.NewReader(huge))
	if len(bounded) > maxErrorBodySize+len("\n... (truncated)") {
		t.Errorf("Expected bounded read, got %d bytes", len(bounded))
	}
	if !strings.HasSuffix(string(bounded), "(truncated)") {
		t.Error("Expected truncation marker on oversized body")
	}
}
