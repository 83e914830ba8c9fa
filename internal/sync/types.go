// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package sync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/cardographus/internal/database"
	"github.com/tomtom215/cardographus/internal/models"
)

// DBInterface defines the database operations the sync pipeline uses.
// Implemented by *database.DB; tests substitute fakes for failure-path
// coverage and the real in-memory database for everything else.
type DBInterface interface {
	// Catalog
	UpsertGame(ctx context.Context, game *models.Game) error
	GetGameBySlug(ctx context.Context, slug string) (*models.Game, error)
	ListGames(ctx context.Context, activeOnly bool) ([]*models.Game, error)
	UpsertSet(ctx context.Context, set *models.Set) error
	GetSetByCode(ctx context.Context, gameID int64, code string) (*models.Set, error)
	ListSetsByGame(ctx context.Context, gameID int64) ([]*models.Set, error)
	TryMarkSetSyncing(ctx context.Context, setID int64, freshness time.Duration) error
	FinishSetSync(ctx context.Context, setID int64, succeeded bool) error
	CountCardsBySet(ctx context.Context, setID int64) (int, error)

	// Cards and variants
	UpsertCardBatch(ctx context.Context, cards []*models.Card) (int, error)
	UpsertVariantBatch(ctx context.Context, setID int64, variants []*models.Variant) (*database.VariantBatchResult, error)
	CountVariantsByGame(ctx context.Context, gameID int64) (int, error)
	ListVariantIdentitiesByGame(ctx context.Context, gameID int64, limit, offset int) ([]*database.VariantIdentity, error)

	// Job runs
	InsertJobRun(ctx context.Context, run *models.SyncJobRun) error
	UpdateJobRunProgress(ctx context.Context, id uuid.UUID, actualBatches, cardsProcessed, variantsUpdated, errorCount int) error
	FinishJobRun(ctx context.Context, id uuid.UUID, status string, errorDetail *string) error
	RequestJobCancel(ctx context.Context, id uuid.UUID) error
	IsJobCancelRequested(ctx context.Context, id uuid.UUID) (bool, error)
	GetJobRun(ctx context.Context, id uuid.UUID) (*models.SyncJobRun, error)
	ListJobRuns(ctx context.Context, filter database.JobRunFilter) ([]*models.SyncJobRun, error)
}

// WebSocketHub defines the broadcast interface for live job progress.
// Implemented by *websocket.Hub; nil is a valid value when no hub is
// attached (tests, CLI tools).
type WebSocketHub interface {
	BroadcastSyncProgress(run *models.SyncJobRun)
}
