// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/cardographus/internal/models"
)

func TestUpsertGame_InsertThenUpdate(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	game := &models.Game{Name: "Pokemon", Slug: "pokemon", ExternalID: "pkm", IsActive: true}
	if err := db.UpsertGame(ctx, game); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}
	if game.ID == 0 {
		t.Fatal("Expected game ID to be populated")
	}
	firstID := game.ID

	// Same slug with new name updates in place, same row.
	game2 := &models.Game{Name: "Pokemon TCG", Slug: "pokemon", ExternalID: "pkm", IsActive: true}
	if err := db.UpsertGame(ctx, game2); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}
	if game2.ID != firstID {
		t.Errorf("Expected same ID %d on re-upsert, got %d", firstID, game2.ID)
	}

	stored, err := db.GetGameBySlug(ctx, "pokemon")
	if err != nil {
		t.Fatalf("GetGameBySlug failed: %v", err)
	}
	if stored.Name != "Pokemon TCG" {
		t.Errorf("Expected updated name, got %q", stored.Name)
	}

	games, err := db.ListGames(ctx, false)
	if err != nil {
		t.Fatalf("ListGames failed: %v", err)
	}
	if len(games) != 1 {
		t.Errorf("Expected 1 game after re-upsert, got %d", len(games))
	}
}

func TestGetGameBySlug_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := db.GetGameBySlug(context.Background(), "no-such-game")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListGames_ActiveOnly(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	active := &models.Game{Name: "Pokemon", Slug: "pokemon", ExternalID: "pkm", IsActive: true}
	inactive := &models.Game{Name: "Retired", Slug: "retired", ExternalID: "ret", IsActive: false}
	for _, g := range []*models.Game{active, inactive} {
		if err := db.UpsertGame(ctx, g); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	all, err := db.ListGames(ctx, false)
	if err != nil {
		t.Fatalf("ListGames(all) failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 games, got %d", len(all))
	}

	activeGames, err := db.ListGames(ctx, true)
	if err != nil {
		t.Fatalf("ListGames(active) failed: %v", err)
	}
	if len(activeGames) != 1 || activeGames[0].Slug != "pokemon" {
		t.Errorf("Expected only active game pokemon, got %+v", activeGames)
	}
}

func TestUpsertSet_PreservesSyncState(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	game := seedGame(t, db, "pokemon")
	set := seedSet(t, db, game.ID, "base1", 102)

	if set.SyncStatus != models.SetSyncPending {
		t.Errorf("Expected new set in pending, got %q", set.SyncStatus)
	}

	// Complete a sync, then re-discover the set. Discovery must not
	// reset the state machine.
	if err := db.TryMarkSetSyncing(ctx, set.ID, 0); err != nil {
		t.Fatalf("TryMarkSetSyncing failed: %v", err)
	}
	if err := db.FinishSetSync(ctx, set.ID, true); err != nil {
		t.Fatalf("FinishSetSync failed: %v", err)
	}

	rediscovered := &models.Set{
		GameID:     game.ID,
		Name:       "Base Set (renamed)",
		Code:       "base1",
		ExternalID: set.ExternalID,
		CardCount:  103,
	}
	if err := db.UpsertSet(ctx, rediscovered); err != nil {
		t.Fatalf("Re-upsert failed: %v", err)
	}
	if rediscovered.ID != set.ID {
		t.Errorf("Expected same set ID %d, got %d", set.ID, rediscovered.ID)
	}
	if rediscovered.SyncStatus != models.SetSyncCompleted {
		t.Errorf("Expected discovery to preserve completed status, got %q", rediscovered.SyncStatus)
	}
	if rediscovered.LastSyncedAt == nil {
		t.Error("Expected discovery to preserve last_synced_at")
	}

	stored, err := db.GetSetByExternalID(ctx, set.ExternalID)
	if err != nil {
		t.Fatalf("GetSetByExternalID failed: %v", err)
	}
	if stored.Name != "Base Set (renamed)" || stored.CardCount != 103 {
		t.Errorf("Expected catalog fields updated, got name=%q count=%d", stored.Name, stored.CardCount)
	}
}

func TestTryMarkSetSyncing_Transitions(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	game := seedGame(t, db, "pokemon")

	t.Run("pending to syncing", func(t *testing.T) {
		set := seedSet(t, db, game.ID, "s1", 10)
		if err := db.TryMarkSetSyncing(ctx, set.ID, 24*time.Hour); err != nil {
			t.Fatalf("Expected transition from pending, got %v", err)
		}
		stored, _ := db.GetSetByExternalID(ctx, set.ExternalID)
		if stored.SyncStatus != models.SetSyncSyncing {
			t.Errorf("Expected syncing, got %q", stored.SyncStatus)
		}
	})

	t.Run("syncing blocks second job", func(t *testing.T) {
		set := seedSet(t, db, game.ID, "s2", 10)
		if err := db.TryMarkSetSyncing(ctx, set.ID, 0); err != nil {
			t.Fatalf("First transition failed: %v", err)
		}
		err := db.TryMarkSetSyncing(ctx, set.ID, 0)
		if !errors.Is(err, ErrSetSyncing) {
			t.Errorf("Expected ErrSetSyncing for overlapping job, got %v", err)
		}
	})

	t.Run("fresh set is skipped", func(t *testing.T) {
		set := seedSet(t, db, game.ID, "s3", 10)
		if err := db.TryMarkSetSyncing(ctx, set.ID, 0); err != nil {
			t.Fatalf("Transition failed: %v", err)
		}
		if err := db.FinishSetSync(ctx, set.ID, true); err != nil {
			t.Fatalf("FinishSetSync failed: %v", err)
		}

		err := db.TryMarkSetSyncing(ctx, set.ID, 24*time.Hour)
		if !errors.Is(err, ErrSetFresh) {
			t.Errorf("Expected ErrSetFresh within freshness window, got %v", err)
		}

		// State unchanged by the skipped attempt.
		stored, _ := db.GetSetByExternalID(ctx, set.ExternalID)
		if stored.SyncStatus != models.SetSyncCompleted {
			t.Errorf("Expected completed after skip, got %q", stored.SyncStatus)
		}
	})

	t.Run("zero freshness window allows immediate resync", func(t *testing.T) {
		set := seedSet(t, db, game.ID, "s4", 10)
		if err := db.TryMarkSetSyncing(ctx, set.ID, 0); err != nil {
			t.Fatalf("Transition failed: %v", err)
		}
		if err := db.FinishSetSync(ctx, set.ID, true); err != nil {
			t.Fatalf("FinishSetSync failed: %v", err)
		}
		if err := db.TryMarkSetSyncing(ctx, set.ID, 0); err != nil {
			t.Errorf("Expected resync with zero freshness, got %v", err)
		}
	})

	t.Run("failed set can retry despite freshness", func(t *testing.T) {
		set := seedSet(t, db, game.ID, "s5", 10)
		if err := db.TryMarkSetSyncing(ctx, set.ID, 0); err != nil {
			t.Fatalf("Transition failed: %v", err)
		}
		if err := db.FinishSetSync(ctx, set.ID, false); err != nil {
			t.Fatalf("FinishSetSync failed: %v", err)
		}

		// Failure does not stamp last_synced_at, so the freshness guard
		// never defers a retry of a failed set.
		if err := db.TryMarkSetSyncing(ctx, set.ID, 24*time.Hour); err != nil {
			t.Errorf("Expected retry of failed set, got %v", err)
		}
	})

	t.Run("unknown set", func(t *testing.T) {
		err := db.TryMarkSetSyncing(ctx, 99999, 0)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestListSetsByGame(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	game := seedGame(t, db, "pokemon")
	other := seedGame(t, db, "magic")
	seedSet(t, db, game.ID, "base2", 64)
	seedSet(t, db, game.ID, "base1", 102)
	seedSet(t, db, other.ID, "alpha", 295)

	sets, err := db.ListSetsByGame(ctx, game.ID)
	if err != nil {
		t.Fatalf("ListSetsByGame failed: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("Expected 2 sets, got %d", len(sets))
	}
	if sets[0].Code != "base1" || sets[1].Code != "base2" {
		t.Errorf("Expected sets ordered by code, got %q, %q", sets[0].Code, sets[1].Code)
	}
}

func TestUpsertCard_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	game := seedGame(t, db, "pokemon")
	set := seedSet(t, db, game.ID, "base1", 102)

	card := &models.Card{
		SetID: set.ID, Name: "Pikachu", Number: "025", Rarity: "common",
		ExternalID: "base1-025", ImageURL: "https://img.example/025.png",
	}
	if err := db.UpsertCard(ctx, card); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}
	firstID := card.ID

	card.Rarity = "rare"
	if err := db.UpsertCard(ctx, card); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}
	if card.ID != firstID {
		t.Errorf("Expected stable ID %d, got %d", firstID, card.ID)
	}

	count, err := db.CountCardsBySet(ctx, set.ID)
	if err != nil {
		t.Fatalf("CountCardsBySet failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 card after re-upsert, got %d", count)
	}

	stored, err := db.GetCardByExternalID(ctx, "base1-025")
	if err != nil {
		t.Fatalf("GetCardByExternalID failed: %v", err)
	}
	if stored.Rarity != "rare" {
		t.Errorf("Expected updated rarity, got %q", stored.Rarity)
	}
}

func TestUpsertCardBatch(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	game := seedGame(t, db, "pokemon")
	set := seedSet(t, db, game.ID, "base1", 102)

	cards := make([]*models.Card, 0, 25)
	for i := 0; i < 25; i++ {
		cards = append(cards, &models.Card{
			SetID:      set.ID,
			Name:       "Card",
			Number:     "001",
			Rarity:     "common",
			ExternalID: "batch-" + string(rune('a'+i)),
		})
	}

	failed, err := db.UpsertCardBatch(ctx, cards)
	if err != nil {
		t.Fatalf("UpsertCardBatch failed: %v", err)
	}
	if failed != 0 {
		t.Errorf("Expected 0 failed rows, got %d", failed)
	}
	for i, c := range cards {
		if c.ID == 0 {
			t.Errorf("Card %d ID not populated", i)
		}
	}

	// Re-running the identical batch changes nothing.
	failed, err = db.UpsertCardBatch(ctx, cards)
	if err != nil {
		t.Fatalf("Second UpsertCardBatch failed: %v", err)
	}
	if failed != 0 {
		t.Errorf("Expected 0 failed rows on replay, got %d", failed)
	}

	count, err := db.CountCardsBySet(ctx, set.ID)
	if err != nil {
		t.Fatalf("CountCardsBySet failed: %v", err)
	}
	if count != 25 {
		t.Errorf("Expected 25 cards after replay, got %d", count)
	}
}

func TestListCardsBySet_Paging(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	game := seedGame(t, db, "pokemon")
	set := seedSet(t, db, game.ID, "base1", 102)
	for _, num := range []string{"001", "002", "003"} {
		card := &models.Card{SetID: set.ID, Name: "c" + num, Number: num, ExternalID: "base1-" + num}
		if err := db.UpsertCard(ctx, card); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	page, err := db.ListCardsBySet(ctx, set.ID, 2, 0)
	if err != nil {
		t.Fatalf("ListCardsBySet failed: %v", err)
	}
	if len(page) != 2 || page[0].Number != "001" {
		t.Errorf("Expected first page [001 002], got %+v", page)
	}

	page, err = db.ListCardsBySet(ctx, set.ID, 2, 2)
	if err != nil {
		t.Fatalf("ListCardsBySet offset failed: %v", err)
	}
	if len(page) != 1 || page[0].Number != "003" {
		t.Errorf("Expected last page [003], got %+v", page)
	}
}
