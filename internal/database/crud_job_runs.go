// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/cardographus/internal/logging"
	"github.com/tomtom215/cardographus/internal/models"
)

// InsertJobRun records the start of a sync job run. The insert is
// synchronous and confirmed: the orchestrator does not begin upstream
// work until the row exists.
func (db *DB) InsertJobRun(ctx context.Context, run *models.SyncJobRun) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = models.JobStatusStarted
	}

	query := `INSERT INTO sync_job_runs (id, job_type, game, set_code, expected_batches, actual_batches, cards_processed, variants_updated, error_count, status, error_detail, cancel_requested, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	err := retryOnConflict(ctx, func() error {
		_, err := db.conn.ExecContext(ctx, query,
			run.ID, run.JobType, run.Game, run.SetCode,
			run.ExpectedBatches, run.ActualBatches, run.CardsProcessed,
			run.VariantsUpdated, run.ErrorCount, run.Status, run.ErrorDetail,
			run.CancelRequested, run.StartedAt, run.FinishedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert job run %s: %w", run.ID, err)
	}

	return nil
}

// UpdateJobRunProgress records batch progress for an unfinished run and
// moves it to running. Finished runs are never touched: the guard on
// finished_at makes a late progress write after finalization a no-op.
func (db *DB) UpdateJobRunProgress(ctx context.Context, id uuid.UUID, actualBatches, cardsProcessed, variantsUpdated, errorCount int) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `UPDATE sync_job_runs
	SET status = ?, actual_batches = ?, cards_processed = ?, variants_updated = ?, error_count = ?
	WHERE id = ? AND finished_at IS NULL`

	err := retryOnConflict(ctx, func() error {
		_, err := db.conn.ExecContext(ctx, query,
			models.JobStatusRunning, actualBatches, cardsProcessed, variantsUpdated, errorCount, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update job run %s progress: %w", id, err)
	}

	return nil
}

// FinishJobRun moves a run to a terminal status and stamps finished_at.
// The write is guarded on finished_at IS NULL so a duplicate Finish
// (defer racing an explicit call) cannot overwrite the first outcome.
func (db *DB) FinishJobRun(ctx context.Context, id uuid.UUID, status string, errorDetail *string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if !models.TerminalJobStatus(status) {
		return fmt.Errorf("cannot finish job run %s with non-terminal status %q", id, status)
	}

	query := `UPDATE sync_job_runs
	SET status = ?, error_detail = ?, finished_at = ?
	WHERE id = ? AND finished_at IS NULL`

	err := retryOnConflict(ctx, func() error {
		_, err := db.conn.ExecContext(ctx, query, status, errorDetail, time.Now().UTC(), id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to finish job run %s: %w", id, err)
	}

	return nil
}

// RequestJobCancel sets the cancel flag on an in-flight run. The
// orchestrator polls the flag between batches, so cancellation takes
// effect at the next batch boundary. Returns ErrNotFound for unknown
// runs and ErrJobFinished for runs that already reached a terminal
// status.
func (db *DB) RequestJobCancel(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE sync_job_runs SET cancel_requested = true WHERE id = ? AND finished_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to request cancel for job run %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check cancel for job run %s: %w", id, err)
	}
	if affected > 0 {
		return nil
	}

	var finished sql.NullTime
	err = db.conn.QueryRowContext(ctx,
		`SELECT finished_at FROM sync_job_runs WHERE id = ?`, id).Scan(&finished)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read job run %s: %w", id, err)
	}
	return ErrJobFinished
}

// IsJobCancelRequested reports whether cancellation has been requested
// for a run. Unknown runs report false.
func (db *DB) IsJobCancelRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var requested bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT cancel_requested FROM sync_job_runs WHERE id = ?`, id).Scan(&requested)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cancel flag for job run %s: %w", id, err)
	}
	return requested, nil
}

const jobRunColumns = `id, job_type, game, set_code, expected_batches, actual_batches, cards_processed, variants_updated, error_count, status, error_detail, cancel_requested, started_at, finished_at`

// GetJobRun retrieves a single run by id.
// Returns ErrNotFound if the run does not exist.
func (db *DB) GetJobRun(ctx context.Context, id uuid.UUID) (*models.SyncJobRun, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	run, err := scanJobRun(db.conn.QueryRowContext(ctx,
		`SELECT `+jobRunColumns+` FROM sync_job_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job run %s: %w", id, err)
	}
	return run, nil
}

// JobRunFilter narrows ListJobRuns. Zero values mean "no filter".
type JobRunFilter struct {
	Game    string
	JobType string
	Status  string
	Limit   int
	Offset  int
}

// ListJobRuns returns job runs newest first, optionally filtered by
// game, job type, and status. Limit defaults to 50 and is capped at 500.
func (db *DB) ListJobRuns(ctx context.Context, filter JobRunFilter) ([]*models.SyncJobRun, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + jobRunColumns + ` FROM sync_job_runs WHERE 1=1`
	var args []interface{}
	if filter.Game != "" {
		query += ` AND game = ?`
		args = append(args, filter.Game)
	}
	if filter.JobType != "" {
		query += ` AND job_type = ?`
		args = append(args, filter.JobType)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	query += ` ORDER BY started_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query job runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncJobRun
	for rows.Next() {
		run, err := scanJobRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func scanJobRun(row rowScanner) (*models.SyncJobRun, error) {
	var run models.SyncJobRun
	var setCode, errorDetail sql.NullString
	var finished sql.NullTime
	if err := row.Scan(
		&run.ID, &run.JobType, &run.Game, &setCode,
		&run.ExpectedBatches, &run.ActualBatches, &run.CardsProcessed,
		&run.VariantsUpdated, &run.ErrorCount, &run.Status, &errorDetail,
		&run.CancelRequested, &run.StartedAt, &finished,
	); err != nil {
		return nil, err
	}
	if setCode.Valid {
		run.SetCode = &setCode.String
	}
	if errorDetail.Valid {
		run.ErrorDetail = &errorDetail.String
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

// FailInterruptedJobRuns finalizes runs left in a transient status by a
// crash or unclean shutdown. Called once at startup, before the
// orchestrator accepts new jobs, so the run table never shows a
// "running" row from a process that no longer exists.
func (db *DB) FailInterruptedJobRuns(ctx context.Context) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	detail := "interrupted by process restart"
	result, err := db.conn.ExecContext(ctx,
		`UPDATE sync_job_runs SET status = ?, error_detail = ?, finished_at = ? WHERE finished_at IS NULL`,
		models.JobStatusFailed, detail, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to finalize interrupted job runs: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count interrupted job runs: %w", err)
	}
	if affected > 0 {
		logging.Warn().Int64("count", affected).Msg("Finalized job runs interrupted by restart")
	}

	return int(affected), nil
}
