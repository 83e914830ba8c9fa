// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

/*
orchestrator.go - Sync Job Orchestration

This file contains the Orchestrator, which owns the four sync job types:

  - discover_games:  refresh the games catalog (single page)
  - discover_sets:   refresh one game's sets listing (paginated)
  - import_cards:    import one set's cards and variants (paginated)
  - refresh_pricing: re-price one game's variants in batch lookups

Guard order before any upstream call:
 1. Duplicate-job lock: one job per (type, game) at a time
 2. Preflight ceiling: the batch estimate from local counts must not
    exceed the per-job page limit; over-ceiling jobs finalize as
    preflight_ceiling without a single upstream request
 3. Set freshness (card imports): a set completed within the freshness
    window is skipped without creating a job run

Between every page:
  - shutdown, wall-clock budget, cooperative cancellation, daily quota
  - inter-batch pacing delay

Every run finalizes exactly once through a deferred Finish with panic
recovery; a job goroutine can never exit leaving its run in a transient
status.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cardographus/internal/config"
	"github.com/tomtom215/cardographus/internal/events"
	"github.com/tomtom215/cardographus/internal/logging"
	"github.com/tomtom215/cardographus/internal/metrics"
	"github.com/tomtom215/cardographus/internal/models"
	"github.com/tomtom215/cardographus/internal/models/justtcg"
)

// gameAll is the game label for jobs that span the whole catalog.
const gameAll = "all"

// finishTimeout bounds the deferred finalization writes so shutdown can
// never hang on a stuck database.
const finishTimeout = 10 * time.Second

// Orchestrator coordinates sync jobs: trigger validation, guard checks,
// page loops, progress tracking, and terminal finalization.
type Orchestrator struct {
	db          DBInterface
	client      UpstreamAPI
	reconciler  *BatchReconciler
	tracker     *JobRunTracker
	checkpoints CheckpointStore
	quota       *QuotaTracker
	publisher   events.Publisher
	cfg         *config.SyncConfig

	mu     sync.Mutex
	active map[string]struct{}

	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates an orchestrator. publisher may be nil.
func NewOrchestrator(db DBInterface, client UpstreamAPI, reconciler *BatchReconciler, tracker *JobRunTracker, checkpoints CheckpointStore, quota *QuotaTracker, publisher events.Publisher, cfg *config.SyncConfig) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		db:          db,
		client:      client,
		reconciler:  reconciler,
		tracker:     tracker,
		checkpoints: checkpoints,
		quota:       quota,
		publisher:   publisher,
		cfg:         cfg,
		active:      make(map[string]struct{}),
		rootCtx:     ctx,
		cancel:      cancel,
	}
}

// Stop cancels all running jobs and waits for their goroutines to
// finalize. Interrupted jobs finish as cancelled with their checkpoints
// saved.
func (o *Orchestrator) Stop() {
	o.cancel()
	o.wg.Wait()
}

// TriggerSync validates and launches a sync job, returning its run
// record immediately; the job itself proceeds in the background.
//
// Returned errors:
//   - ErrInvalidJob: unknown job type or missing game/set code
//   - ErrJobConflict: a job of this type is already running for the game
//   - database.ErrSetFresh: the set completed within the freshness window
//   - database.ErrSetSyncing: another process is importing the set
//   - database.ErrNotFound: unknown game or set
//
// An over-ceiling estimate is not an error: the run is returned already
// finalized as preflight_ceiling.
func (o *Orchestrator) TriggerSync(ctx context.Context, jobType, game, setCode string) (*models.SyncJobRun, error) {
	if !models.ValidJobType(jobType) {
		return nil, fmt.Errorf("%w: unknown job type %q", ErrInvalidJob, jobType)
	}
	if jobType == models.JobDiscoverGames {
		game = gameAll
	}
	if game == "" {
		return nil, fmt.Errorf("%w: job type %s requires a game", ErrInvalidJob, jobType)
	}
	if jobType == models.JobImportCards && setCode == "" {
		return nil, fmt.Errorf("%w: job type %s requires a set code", ErrInvalidJob, jobType)
	}

	key := jobType + ":" + game
	if !o.acquireJob(key) {
		return nil, fmt.Errorf("%w: %s for %s", ErrJobConflict, jobType, game)
	}
	// Released on every early return; the job goroutine takes ownership
	// once it launches.
	launched := false
	defer func() {
		if !launched {
			o.releaseJob(key)
		}
	}()

	var (
		gameRow *models.Game
		setRow  *models.Set
		err     error
	)
	if jobType != models.JobDiscoverGames {
		gameRow, err = o.db.GetGameBySlug(ctx, game)
		if err != nil {
			return nil, fmt.Errorf("resolve game %s: %w", game, err)
		}
	}
	if jobType == models.JobImportCards {
		setRow, err = o.db.GetSetByCode(ctx, gameRow.ID, setCode)
		if err != nil {
			return nil, fmt.Errorf("resolve set %s: %w", setCode, err)
		}
	}

	expected, err := o.estimateBatches(ctx, jobType, gameRow, setRow)
	if err != nil {
		return nil, err
	}

	var setCodePtr *string
	if setRow != nil {
		code := setRow.Code
		setCodePtr = &code
	}

	// Preflight ceiling: finalize without a single upstream call.
	if o.cfg.BatchLimit > 0 && expected > o.cfg.BatchLimit {
		run, err := o.tracker.Start(ctx, jobType, game, setCodePtr, expected)
		if err != nil {
			return nil, err
		}
		detail := fmt.Sprintf("estimated %d batches exceeds the per-job limit of %d", expected, o.cfg.BatchLimit)
		if err := o.tracker.Finish(ctx, run.ID, models.JobStatusPreflightCeiling, &detail); err != nil {
			return nil, err
		}
		metrics.RecordSyncJob(game, jobType, models.JobStatusPreflightCeiling, 0, 0, 0)
		logging.Warn().
			Str("job_type", jobType).
			Str("game", game).
			Int("expected_batches", expected).
			Int("batch_limit", o.cfg.BatchLimit).
			Msg("Job rejected by preflight batch ceiling")
		return o.tracker.Get(ctx, run.ID)
	}

	// Set-level guards for card imports: freshness window and the
	// pending -> syncing transition, atomically.
	if jobType == models.JobImportCards {
		if err := o.db.TryMarkSetSyncing(ctx, setRow.ID, o.cfg.FreshnessWindow); err != nil {
			return nil, err
		}
	}

	run, err := o.tracker.Start(ctx, jobType, game, setCodePtr, expected)
	if err != nil {
		if jobType == models.JobImportCards {
			// Roll the set back out of syncing; nothing was imported.
			if ferr := o.db.FinishSetSync(ctx, setRow.ID, false); ferr != nil {
				logging.Error().Err(ferr).Int64("set_id", setRow.ID).Msg("Failed to release set after aborted start")
			}
		}
		return nil, err
	}

	launched = true
	o.wg.Add(1)
	go o.runJob(key, run, gameRow, setRow)

	logging.Info().
		Str("job_id", run.ID.String()).
		Str("job_type", jobType).
		Str("game", game).
		Int("expected_batches", expected).
		Msg("Sync job started")
	return run, nil
}

// runJob executes a launched job and guarantees exactly-once terminal
// finalization, including on panic.
func (o *Orchestrator) runJob(key string, run *models.SyncJobRun, gameRow *models.Game, setRow *models.Set) {
	started := time.Now()
	var outcome jobOutcome

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("panic: %v", r)
			outcome.status = models.JobStatusFailed
			outcome.detail = &msg
			logging.Error().
				Str("job_id", run.ID.String()).
				Str("job_type", run.JobType).
				Interface("panic", r).
				Msg("Sync job panicked")
		}
		if outcome.status == "" {
			outcome.status = models.JobStatusFailed
		}

		// Finalization runs on its own context: the root context is
		// already cancelled during shutdown and these writes must land.
		finishCtx, cancel := context.WithTimeout(context.Background(), finishTimeout)
		defer cancel()

		if setRow != nil {
			succeeded := outcome.status == models.JobStatusCompleted
			if err := o.db.FinishSetSync(finishCtx, setRow.ID, succeeded); err != nil {
				logging.Error().Err(err).Int64("set_id", setRow.ID).Msg("Failed to finalize set sync state")
			}
		}
		if err := o.tracker.Finish(finishCtx, run.ID, outcome.status, outcome.detail); err != nil {
			logging.Error().Err(err).Str("job_id", run.ID.String()).Msg("Failed to finalize job run")
		}
		o.publishJobFinished(finishCtx, run, &outcome)
		metrics.RecordSyncJob(run.Game, run.JobType, outcome.status, time.Since(started), outcome.totals.CardsProcessed, outcome.totals.Errors)
		logging.Info().
			Str("job_id", run.ID.String()).
			Str("job_type", run.JobType).
			Str("game", run.Game).
			Str("status", outcome.status).
			Int("cards_processed", outcome.totals.CardsProcessed).
			Int("variants_updated", outcome.totals.VariantsUpserted).
			Int("errors", outcome.totals.Errors).
			Dur("duration", time.Since(started)).
			Msg("Sync job finished")

		o.releaseJob(key)
		o.wg.Done()
	}()

	switch run.JobType {
	case models.JobDiscoverGames:
		outcome = o.runDiscoverGames(o.rootCtx, run, started)
	case models.JobDiscoverSets:
		outcome = o.runDiscoverSets(o.rootCtx, run, gameRow, started)
	case models.JobImportCards:
		outcome = o.runImportCards(o.rootCtx, run, gameRow, setRow, started)
	case models.JobRefreshPricing:
		outcome = o.runRefreshPricing(o.rootCtx, run, gameRow, started)
	}
}

// jobOutcome is a job body's terminal result.
type jobOutcome struct {
	status string
	detail *string
	totals PageResult
}

// runDiscoverGames refreshes the games catalog. Single page, single
// upstream call.
func (o *Orchestrator) runDiscoverGames(ctx context.Context, run *models.SyncJobRun, started time.Time) jobOutcome {
	totals := PageResult{}
	guard := o.newGuard(run, started)

	_, err := fetchAllPages(ctx, 0, guard, func(ctx context.Context, _ int) (int, bool, error) {
		resp, err := o.client.GetGames(ctx)
		if err != nil {
			return 0, false, err
		}
		if resp.Error != nil {
			return 0, false, envelopeError(resp.Error)
		}

		totals.add(o.reconciler.ReconcileGames(ctx, resp.Data))
		metrics.SyncPagesFetched.WithLabelValues(run.Game, run.JobType).Inc()
		o.tracker.UpdateProgress(ctx, run.ID, 1, totals.CardsProcessed, totals.VariantsUpserted, totals.Errors)
		return len(resp.Data), false, nil
	})

	return o.finishOutcome(err, totals)
}

// runDiscoverSets pages through one game's sets listing.
func (o *Orchestrator) runDiscoverSets(ctx context.Context, run *models.SyncJobRun, gameRow *models.Game, started time.Time) jobOutcome {
	totals := PageResult{}
	pagesDone := 0
	pageSize := o.pageSize()

	startOffset := o.resumeOffset(run.JobType, gameRow.Slug, "")
	_, err := fetchAllPages(ctx, startOffset, o.newGuard(run, started), func(ctx context.Context, offset int) (int, bool, error) {
		resp, err := o.client.GetSets(ctx, gameRow.Slug, offset, pageSize)
		if err != nil {
			return 0, false, err
		}
		if resp.Error != nil {
			return 0, false, envelopeError(resp.Error)
		}

		totals.add(o.reconciler.ReconcileSets(ctx, gameRow.ID, resp.Data))
		fetched := len(resp.Data)
		pagesDone++
		metrics.SyncPagesFetched.WithLabelValues(run.Game, run.JobType).Inc()
		o.tracker.UpdateProgress(ctx, run.ID, pagesDone, totals.CardsProcessed, totals.VariantsUpserted, totals.Errors)
		o.saveOffset(run.JobType, gameRow.Slug, "", offset+fetched)
		return fetched, pageHasMore(resp.Pagination, fetched, pageSize), nil
	})

	if err == nil {
		o.clearOffset(run.JobType, gameRow.Slug, "")
	}
	return o.finishOutcome(err, totals)
}

// runImportCards pages through one set's cards, writing cards, variants,
// and price history.
func (o *Orchestrator) runImportCards(ctx context.Context, run *models.SyncJobRun, gameRow *models.Game, setRow *models.Set, started time.Time) jobOutcome {
	totals := PageResult{}
	pagesDone := 0
	pageSize := o.pageSize()

	startOffset := o.resumeOffset(run.JobType, gameRow.Slug, setRow.Code)
	_, err := fetchAllPages(ctx, startOffset, o.newGuard(run, started), func(ctx context.Context, offset int) (int, bool, error) {
		resp, err := o.client.GetCards(ctx, gameRow.Slug, setRow.ExternalID, offset, pageSize)
		if err != nil {
			return 0, false, err
		}
		if resp.Error != nil {
			return 0, false, envelopeError(resp.Error)
		}

		totals.add(o.reconciler.ReconcileCardPage(ctx, gameRow.Slug, setRow, resp.Data))
		fetched := len(resp.Data)
		pagesDone++
		metrics.SyncPagesFetched.WithLabelValues(run.Game, run.JobType).Inc()
		o.tracker.UpdateProgress(ctx, run.ID, pagesDone, totals.CardsProcessed, totals.VariantsUpserted, totals.Errors)
		o.saveOffset(run.JobType, gameRow.Slug, setRow.Code, offset+fetched)
		return fetched, pageHasMore(resp.Pagination, fetched, pageSize), nil
	})

	if err == nil {
		o.clearOffset(run.JobType, gameRow.Slug, setRow.Code)
	}
	return o.finishOutcome(err, totals)
}

// runRefreshPricing walks the game's variants in batches, requesting
// current pricing for each batch. Pagination is local: the variant
// identities table drives the loop, not the upstream.
func (o *Orchestrator) runRefreshPricing(ctx context.Context, run *models.SyncJobRun, gameRow *models.Game, started time.Time) jobOutcome {
	totals := PageResult{}
	pagesDone := 0
	batchSize := o.pricingBatchSize()

	startOffset := o.resumeOffset(run.JobType, gameRow.Slug, "")
	_, err := fetchAllPages(ctx, startOffset, o.newGuard(run, started), func(ctx context.Context, offset int) (int, bool, error) {
		idents, err := o.db.ListVariantIdentitiesByGame(ctx, gameRow.ID, batchSize, offset)
		if err != nil {
			return 0, false, err
		}
		if len(idents) == 0 {
			return 0, false, nil
		}

		resp, err := o.client.BatchPricing(ctx, gameRow.Slug, BuildPricingRequests(idents))
		if err != nil {
			return 0, false, err
		}
		if resp.Error != nil {
			return 0, false, envelopeError(resp.Error)
		}

		page := o.reconciler.ReconcilePricingPage(ctx, gameRow.Slug, idents, resp)
		page.CardsProcessed = len(idents)
		totals.add(page)
		pagesDone++
		metrics.SyncPagesFetched.WithLabelValues(run.Game, run.JobType).Inc()
		o.tracker.UpdateProgress(ctx, run.ID, pagesDone, totals.CardsProcessed, totals.VariantsUpserted, totals.Errors)
		o.saveOffset(run.JobType, gameRow.Slug, "", offset+len(idents))
		return len(idents), len(idents) == batchSize, nil
	})

	if err == nil {
		o.clearOffset(run.JobType, gameRow.Slug, "")
	}
	return o.finishOutcome(err, totals)
}

// newGuard builds the between-pages guard: shutdown, wall-clock budget,
// cooperative cancellation, daily quota, then inter-batch pacing.
func (o *Orchestrator) newGuard(run *models.SyncJobRun, started time.Time) guardFunc {
	return func(pages, _ int) error {
		if o.rootCtx.Err() != nil {
			return errShuttingDown
		}
		if o.cfg.JobBudget > 0 && time.Since(started) >= o.cfg.JobBudget {
			return errBudgetExceeded
		}
		if o.tracker.IsCancelled(o.rootCtx, run.ID) {
			return errJobCancelled
		}
		if err := o.quota.Spend(1); err != nil {
			return err
		}
		if pages > 0 && o.cfg.InterBatchDelay > 0 {
			if err := sleepContext(o.rootCtx, o.cfg.InterBatchDelay); err != nil {
				return errShuttingDown
			}
		}
		return nil
	}
}

// finishOutcome maps the page loop's exit into a terminal status.
func (o *Orchestrator) finishOutcome(err error, totals PageResult) jobOutcome {
	outcome := jobOutcome{totals: totals}
	if err == nil {
		if totals.Errors > 0 {
			detail := fmt.Sprintf("%d records failed", totals.Errors)
			outcome.status = models.JobStatusPartial
			outcome.detail = &detail
			return outcome
		}
		outcome.status = models.JobStatusCompleted
		return outcome
	}

	msg := err.Error()
	outcome.detail = &msg
	switch {
	case errors.Is(err, errJobCancelled):
		outcome.status = models.JobStatusCancelled
	case errors.Is(err, errShuttingDown), errors.Is(err, context.Canceled):
		outcome.status = models.JobStatusCancelled
	case errors.Is(err, errBudgetExceeded):
		outcome.status = models.JobStatusPartial
	case errors.Is(err, ErrDailyQuotaExceeded):
		outcome.status = models.JobStatusDailyLimitReached
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome.status = models.JobStatusCircuitOpen
	default:
		outcome.status = models.JobStatusFailed
	}
	return outcome
}

// estimateBatches computes the preflight page estimate from local counts
// only. No upstream calls happen before the ceiling check passes.
func (o *Orchestrator) estimateBatches(ctx context.Context, jobType string, gameRow *models.Game, setRow *models.Set) (int, error) {
	switch jobType {
	case models.JobDiscoverGames:
		return 1, nil
	case models.JobDiscoverSets:
		sets, err := o.db.ListSetsByGame(ctx, gameRow.ID)
		if err != nil {
			return 0, fmt.Errorf("count sets: %w", err)
		}
		return ceilDiv(len(sets), o.pageSize()), nil
	case models.JobImportCards:
		return ceilDiv(setRow.CardCount, o.pageSize()), nil
	case models.JobRefreshPricing:
		count, err := o.db.CountVariantsByGame(ctx, gameRow.ID)
		if err != nil {
			return 0, fmt.Errorf("count variants: %w", err)
		}
		return ceilDiv(count, o.pricingBatchSize()), nil
	}
	return 1, nil
}

func (o *Orchestrator) pageSize() int {
	if o.cfg.PageSize > 0 {
		return o.cfg.PageSize
	}
	return 100
}

func (o *Orchestrator) pricingBatchSize() int {
	size := o.pageSize()
	if size > justtcg.MaxPricingBatchSize {
		size = justtcg.MaxPricingBatchSize
	}
	return size
}

func (o *Orchestrator) acquireJob(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.active[key]; busy {
		return false
	}
	o.active[key] = struct{}{}
	return true
}

func (o *Orchestrator) releaseJob(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, key)
}

// resumeOffset loads a saved checkpoint, returning zero when none
// exists or the store is unreadable.
func (o *Orchestrator) resumeOffset(jobType, game, setCode string) int {
	offset, found, err := o.checkpoints.LoadOffset(jobType, game, setCode)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to load checkpoint, starting from offset 0")
		return 0
	}
	if !found || offset <= 0 {
		return 0
	}
	metrics.CheckpointResumes.Inc()
	logging.Info().
		Str("job_type", jobType).
		Str("game", game).
		Str("set", setCode).
		Int("offset", offset).
		Msg("Resuming from checkpoint")
	return offset
}

func (o *Orchestrator) saveOffset(jobType, game, setCode string, offset int) {
	if err := o.checkpoints.SaveOffset(jobType, game, setCode, offset); err != nil {
		logging.Warn().Err(err).Msg("Failed to save checkpoint")
	}
}

func (o *Orchestrator) clearOffset(jobType, game, setCode string) {
	if err := o.checkpoints.ClearOffset(jobType, game, setCode); err != nil {
		logging.Warn().Err(err).Msg("Failed to clear checkpoint")
	}
}

func (o *Orchestrator) publishJobFinished(ctx context.Context, run *models.SyncJobRun, outcome *jobOutcome) {
	if o.publisher == nil {
		return
	}
	event := events.NewJobFinished()
	event.JobID = run.ID.String()
	event.JobType = run.JobType
	event.Game = run.Game
	if run.SetCode != nil {
		event.SetCode = *run.SetCode
	}
	event.Status = outcome.status
	event.CardsProcessed = outcome.totals.CardsProcessed
	event.VariantsUpdated = outcome.totals.VariantsUpserted
	event.ErrorCount = outcome.totals.Errors
	if err := o.publisher.PublishJobFinished(ctx, event); err != nil {
		logging.Warn().Err(err).Str("job_id", event.JobID).Msg("Failed to publish job finished event")
	}
}

// envelopeError converts an upstream error envelope delivered with a
// 2xx status into a client error.
func envelopeError(apiErr *justtcg.APIError) error {
	return &UpstreamError{StatusCode: 200, Code: apiErr.Code, Message: apiErr.Message}
}

// ceilDiv returns ceil(n/size), never less than 1: even an empty scope
// costs one page fetch to confirm it is empty.
func ceilDiv(n, size int) int {
	if n <= 0 || size <= 0 {
		return 1
	}
	pages := (n + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	return pages
}
