// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/cardographus/internal/config"
	"github.com/tomtom215/cardographus/internal/database"
	"github.com/tomtom215/cardographus/internal/events"
	"github.com/tomtom215/cardographus/internal/models"
)

// testDBSemaphore serializes test database lifecycles. Concurrent DuckDB
// CGO calls can hang under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

// testDBMutex serializes the New() call itself.
var testDBMutex sync.Mutex

// setupTestDB creates an in-memory database for sync integration tests.
// The semaphore is held for the entire test lifecycle via t.Cleanup.
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

// fakeHub records broadcast job runs for assertions.
type fakeHub struct {
	mu   sync.Mutex
	runs []*models.SyncJobRun
}

func (h *fakeHub) BroadcastSyncProgress(run *models.SyncJobRun) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append(h.runs, run)
}

func (h *fakeHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.runs)
}

func (h *fakeHub) last() *models.SyncJobRun {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.runs) == 0 {
		return nil
	}
	return h.runs[len(h.runs)-1]
}

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	mu           sync.Mutex
	priceChanges []*events.PriceChanged
	jobsFinished []*events.JobFinished
	err          error
}

func (p *capturingPublisher) PublishPriceChanged(_ context.Context, event *events.PriceChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.priceChanges = append(p.priceChanges, event)
	return nil
}

func (p *capturingPublisher) PublishJobFinished(_ context.Context, event *events.JobFinished) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.jobsFinished = append(p.jobsFinished, event)
	return nil
}

func (p *capturingPublisher) priceChangeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.priceChanges)
}

func (p *capturingPublisher) finishedJobs() []*events.JobFinished {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*events.JobFinished, len(p.jobsFinished))
	copy(out, p.jobsFinished)
	return out
}

// fakeDB is a no-op DBInterface base. Tests embed it and override the
// methods they exercise; unit tests that need the full data path use the
// real in-memory database instead.
type fakeDB struct{}

func (fakeDB) UpsertGame(context.Context, *models.Game) error { return nil }
func (fakeDB) GetGameBySlug(context.Context, string) (*models.Game, error) {
	return nil, database.ErrNotFound
}
func (fakeDB) ListGames(context.Context, bool) ([]*models.Game, error) { return nil, nil }
func (fakeDB) UpsertSet(context.Context, *models.Set) error            { return nil }
func (fakeDB) GetSetByCode(context.Context, int64, string) (*models.Set, error) {
	return nil, database.ErrNotFound
}
func (fakeDB) ListSetsByGame(context.Context, int64) ([]*models.Set, error)    { return nil, nil }
func (fakeDB) TryMarkSetSyncing(context.Context, int64, time.Duration) error   { return nil }
func (fakeDB) FinishSetSync(context.Context, int64, bool) error                { return nil }
func (fakeDB) CountCardsBySet(context.Context, int64) (int, error)             { return 0, nil }
func (fakeDB) UpsertCardBatch(context.Context, []*models.Card) (int, error) { return 0, nil }
func (fakeDB) UpsertVariantBatch(context.Context, int64, []*models.Variant) (*database.VariantBatchResult, error) {
	return &database.VariantBatchResult{}, nil
}
func (fakeDB) CountVariantsByGame(context.Context, int64) (int, error) { return 0, nil }
func (fakeDB) ListVariantIdentitiesByGame(context.Context, int64, int, int) ([]*database.VariantIdentity, error) {
	return nil, nil
}
func (fakeDB) InsertJobRun(context.Context, *models.SyncJobRun) error { return nil }
func (fakeDB) UpdateJobRunProgress(context.Context, uuid.UUID, int, int, int, int) error {
	return nil
}
func (fakeDB) FinishJobRun(context.Context, uuid.UUID, string, *string) error { return nil }
func (fakeDB) RequestJobCancel(context.Context, uuid.UUID) error              { return nil }
func (fakeDB) IsJobCancelRequested(context.Context, uuid.UUID) (bool, error)  { return false, nil }
func (fakeDB) GetJobRun(context.Context, uuid.UUID) (*models.SyncJobRun, error) {
	return nil, database.ErrNotFound
}
func (fakeDB) ListJobRuns(context.Context, database.JobRunFilter) ([]*models.SyncJobRun, error) {
	return nil, nil
}
