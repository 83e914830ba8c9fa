// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cardographus/internal/config"
	"github.com/tomtom215/cardographus/internal/database"
	"github.com/tomtom215/cardographus/internal/models"
	"github.com/tomtom215/cardographus/internal/models/justtcg"
	syncpkg "github.com/tomtom215/cardographus/internal/sync"
)

// testDBSemaphore serializes test database lifecycles. Concurrent DuckDB
// CGO calls can hang under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

// testDBMutex serializes the New() call itself.
var testDBMutex sync.Mutex

// setupTestDB creates an in-memory database for handler tests. The
// semaphore is held for the entire test lifecycle via t.Cleanup.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "1GB",
	}

	type result struct {
		db  *database.DB
		err error
	}

	resultCh := make(chan result, 1)
	go func() {
		testDBMutex.Lock()
		db, err := database.New(cfg)
		testDBMutex.Unlock()
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		t.Cleanup(func() { _ = res.db.Close() })
		return res.db
	case <-time.After(120 * time.Second):
		t.Fatalf("Timeout: database creation took longer than 120s")
		return nil
	}
}

// stubUpstream implements the orchestrator's upstream interface with
// settable page functions. The zero value serves empty responses, which
// lets background jobs triggered through the API finish immediately.
type stubUpstream struct {
	games func() (*justtcg.GamesResponse, error)
	cards func(offset, limit int) (*justtcg.CardsResponse, error)
}

func (s *stubUpstream) GetGames(context.Context) (*justtcg.GamesResponse, error) {
	if s.games == nil {
		return &justtcg.GamesResponse{}, nil
	}
	return s.games()
}

func (s *stubUpstream) GetSets(_ context.Context, _ string, offset, limit int) (*justtcg.SetsResponse, error) {
	return &justtcg.SetsResponse{
		Pagination: &justtcg.Pagination{Offset: offset, Limit: limit},
	}, nil
}

func (s *stubUpstream) GetCards(_ context.Context, _, _ string, offset, limit int) (*justtcg.CardsResponse, error) {
	if s.cards == nil {
		return &justtcg.CardsResponse{
			Pagination: &justtcg.Pagination{Offset: offset, Limit: limit},
		}, nil
	}
	return s.cards(offset, limit)
}

func (s *stubUpstream) BatchPricing(context.Context, string, []justtcg.PricingRequest) (*justtcg.CardsResponse, error) {
	return &justtcg.CardsResponse{}, nil
}

// testConfig returns a config with rate limiting disabled so handler
// tests never trip the per-IP limiters.
func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:        "127.0.0.1",
			Port:        8080,
			Environment: "development",
		},
		API: config.APIConfig{
			DefaultPageSize:   100,
			MaxPageSize:       500,
			RateLimitDisabled: true,
		},
		Sync: config.SyncConfig{
			PageSize:        100,
			SubBatchSize:    50,
			FreshnessWindow: time.Hour,
		},
	}
}

// apiFixture bundles a handler-and-router pair over the real in-memory
// database, a stub upstream, and a full orchestrator stack.
type apiFixture struct {
	db       *database.DB
	upstream *stubUpstream
	tracker  *syncpkg.JobRunTracker
	quota    *syncpkg.QuotaTracker
	breakers *syncpkg.GameBreakers
	handler  *Handler
	router   http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	cfg := testConfig()
	db := setupTestDB(t)
	upstream := &stubUpstream{}
	checkpoints := syncpkg.NewInMemoryCheckpointStore()
	quota := syncpkg.NewQuotaTracker(checkpoints, 1000)
	breakers := syncpkg.NewGameBreakers(5, time.Minute)
	tracker := syncpkg.NewJobRunTracker(db, nil)
	reconciler := syncpkg.NewBatchReconciler(db, nil, cfg.Sync.SubBatchSize)
	orch := syncpkg.NewOrchestrator(db, upstream, reconciler, tracker, checkpoints, quota, nil, &cfg.Sync)
	t.Cleanup(orch.Stop)

	handler := NewHandler(db, orch, tracker, breakers, quota, nil, cfg, nil)
	router := NewRouter(handler, cfg).SetupChi()

	return &apiFixture{
		db:       db,
		upstream: upstream,
		tracker:  tracker,
		quota:    quota,
		breakers: breakers,
		handler:  handler,
		router:   router,
	}
}

// seedGame inserts a game and returns it with ID populated.
func seedGame(t *testing.T, db *database.DB, slug string) *models.Game {
	t.Helper()
	game := &models.Game{
		Name:       slug,
		Slug:       slug,
		ExternalID: "ext-" + slug,
		IsActive:   true,
	}
	if err := db.UpsertGame(context.Background(), game); err != nil {
		t.Fatalf("Failed to seed game %q: %v", slug, err)
	}
	return game
}

// seedSet inserts a set for a game and returns it with ID populated.
func seedSet(t *testing.T, db *database.DB, gameID int64, code string, cardCount int) *models.Set {
	t.Helper()
	set := &models.Set{
		GameID:     gameID,
		Name:       "Set " + code,
		Code:       code,
		ExternalID: "set-" + code,
		CardCount:  cardCount,
	}
	if err := db.UpsertSet(context.Background(), set); err != nil {
		t.Fatalf("Failed to seed set %q: %v", code, err)
	}
	return set
}

// seedCard inserts a card and returns it with ID populated.
func seedCard(t *testing.T, db *database.DB, setID int64, name, number, externalID string) *models.Card {
	t.Helper()
	card := &models.Card{
		SetID:      setID,
		Name:       name,
		Number:     number,
		Rarity:     "common",
		ExternalID: externalID,
	}
	if err := db.UpsertCard(context.Background(), card); err != nil {
		t.Fatalf("Failed to seed card %q: %v", name, err)
	}
	return card
}

// seedVariant upserts a variant at the given price and returns it with
// ID populated. Calling it again with a different price records a price
// history row as a side effect.
func seedVariant(t *testing.T, db *database.DB, setID, cardID int64, priceCents int64) *models.Variant {
	t.Helper()
	variant := &models.Variant{
		CardID:            cardID,
		Condition:         "near_mint",
		Printing:          "normal",
		PriceCents:        priceCents,
		ExternalVariantID: "var-nm",
		LastUpdated:       time.Now().UTC(),
	}
	if _, err := db.UpsertVariantBatch(context.Background(), setID, []*models.Variant{variant}); err != nil {
		t.Fatalf("Failed to seed variant: %v", err)
	}
	return variant
}

// doJSON performs a request against the fixture router and decodes the
// envelope.
func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, *APIResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	resp := &APIResponse{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), resp); err != nil {
			t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

// dataMap extracts the data field as a map for key assertions.
func dataMap(t *testing.T, resp *APIResponse) map[string]interface{} {
	t.Helper()
	m, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected data to be an object, got %T", resp.Data)
	}
	return m
}
