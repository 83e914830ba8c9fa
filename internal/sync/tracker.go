// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/cardographus/internal/database"
	"github.com/tomtom215/cardographus/internal/logging"
	"github.com/tomtom215/cardographus/internal/models"
)

// JobRunTracker owns the lifecycle of sync job run records: creation,
// progress updates, cancellation flags, and terminal finalization. Every
// mutation is also broadcast to the websocket hub so connected clients
// see progress live.
//
// Progress updates are deliberately non-fatal: a failed UPDATE must never
// abort a sync that is otherwise making progress against the upstream.
// Finalization is fatal-on-error in the other direction; the orchestrator
// retries it via its deferred cleanup.
type JobRunTracker struct {
	db  DBInterface
	hub WebSocketHub

	mu     sync.Mutex
	active map[uuid.UUID]*models.SyncJobRun
}

// NewJobRunTracker creates a tracker. hub may be nil when no websocket
// fan-out is attached.
func NewJobRunTracker(db DBInterface, hub WebSocketHub) *JobRunTracker {
	return &JobRunTracker{
		db:     db,
		hub:    hub,
		active: make(map[uuid.UUID]*models.SyncJobRun),
	}
}

// Start inserts a new job run in started status and broadcasts it.
// setCode is nil for game-level jobs.
func (t *JobRunTracker) Start(ctx context.Context, jobType, game string, setCode *string, expectedBatches int) (*models.SyncJobRun, error) {
	run := &models.SyncJobRun{
		ID:              uuid.New(),
		JobType:         jobType,
		Game:            game,
		SetCode:         setCode,
		ExpectedBatches: expectedBatches,
		Status:          models.JobStatusStarted,
		StartedAt:       time.Now().UTC(),
	}
	if err := t.db.InsertJobRun(ctx, run); err != nil {
		return nil, fmt.Errorf("insert job run: %w", err)
	}

	t.mu.Lock()
	t.active[run.ID] = run
	snapshot := *run
	t.mu.Unlock()

	t.broadcast(&snapshot)
	return run, nil
}

// UpdateProgress records cumulative progress counters after a batch.
// Failures are logged and swallowed; the sync itself continues.
func (t *JobRunTracker) UpdateProgress(ctx context.Context, id uuid.UUID, actualBatches, cardsProcessed, variantsUpdated, errorCount int) {
	if err := t.db.UpdateJobRunProgress(ctx, id, actualBatches, cardsProcessed, variantsUpdated, errorCount); err != nil {
		logging.Warn().
			Err(err).
			Str("job_id", id.String()).
			Msg("Failed to persist job progress, continuing")
	}

	t.mu.Lock()
	run, ok := t.active[id]
	if ok {
		run.Status = models.JobStatusRunning
		run.ActualBatches = actualBatches
		run.CardsProcessed = cardsProcessed
		run.VariantsUpdated = variantsUpdated
		run.ErrorCount = errorCount
	}
	var snapshot models.SyncJobRun
	if ok {
		snapshot = *run
	}
	t.mu.Unlock()

	if ok {
		t.broadcast(&snapshot)
	}
}

// Finish moves a run to a terminal status. Terminal runs already
// finalized stay unchanged (the database guards on finished_at), so a
// duplicate Finish is harmless.
func (t *JobRunTracker) Finish(ctx context.Context, id uuid.UUID, status string, errorDetail *string) error {
	err := t.db.FinishJobRun(ctx, id, status, errorDetail)

	t.mu.Lock()
	delete(t.active, id)
	t.mu.Unlock()

	if err != nil {
		return fmt.Errorf("finish job run: %w", err)
	}

	// Broadcast the authoritative terminal record, including finished_at.
	if run, getErr := t.db.GetJobRun(ctx, id); getErr == nil {
		t.broadcast(run)
	}
	return nil
}

// IsCancelled reports whether cancellation has been requested for the
// run. Lookup failures report false; a transient read error must not
// cancel a healthy job.
func (t *JobRunTracker) IsCancelled(ctx context.Context, id uuid.UUID) bool {
	cancelled, err := t.db.IsJobCancelRequested(ctx, id)
	if err != nil {
		logging.Warn().
			Err(err).
			Str("job_id", id.String()).
			Msg("Failed to read cancellation flag")
		return false
	}
	return cancelled
}

// RequestCancel flags a running job for cooperative cancellation. The
// job observes the flag between batches; in-flight requests complete.
// Returns database.ErrNotFound for unknown runs and
// database.ErrJobFinished for already-terminal ones.
func (t *JobRunTracker) RequestCancel(ctx context.Context, id uuid.UUID) error {
	return t.db.RequestJobCancel(ctx, id)
}

// Get returns one job run by ID.
func (t *JobRunTracker) Get(ctx context.Context, id uuid.UUID) (*models.SyncJobRun, error) {
	return t.db.GetJobRun(ctx, id)
}

// List returns job runs matching the filter, most recent first.
func (t *JobRunTracker) List(ctx context.Context, filter database.JobRunFilter) ([]*models.SyncJobRun, error) {
	return t.db.ListJobRuns(ctx, filter)
}

func (t *JobRunTracker) broadcast(run *models.SyncJobRun) {
	if t.hub == nil {
		return
	}
	t.hub.BroadcastSyncProgress(run)
}
