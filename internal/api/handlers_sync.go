// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/cardographus/internal/database"
	"github.com/tomtom215/cardographus/internal/logging"
	syncpkg "github.com/tomtom215/cardographus/internal/sync"
)

// SyncTrigger handles POST /api/v1/sync/trigger. It validates the request,
// launches the job through the orchestrator, and returns the run record
// with 202 Accepted; the job itself proceeds in the background.
//
// A fresh set (completed within the freshness window) is not an error:
// the response is 200 with skipped=true and no job run.
func (h *Handler) SyncTrigger(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req SyncTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("Invalid request body")
		return
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	run, err := h.orch.TriggerSync(r.Context(), req.JobType, req.Game, req.SetCode)
	switch {
	case err == nil:
		logging.Ctx(r.Context()).Info().
			Str("job_id", run.ID.String()).
			Str("job_type", run.JobType).
			Str("game", run.Game).
			Msg("Sync job triggered")
		rw.Accepted(run)

	case errors.Is(err, database.ErrSetFresh):
		rw.Success(map[string]interface{}{
			"skipped": true,
			"reason":  "set synced within freshness window",
		})

	case errors.Is(err, syncpkg.ErrInvalidJob):
		rw.BadRequest(err.Error())

	case errors.Is(err, syncpkg.ErrJobConflict), errors.Is(err, database.ErrSetSyncing):
		rw.Conflict(err.Error())

	case errors.Is(err, database.ErrNotFound):
		rw.NotFound(err.Error())

	default:
		logging.Ctx(r.Context()).Error().Err(err).
			Str("job_type", req.JobType).
			Str("game", req.Game).
			Msg("Sync trigger failed")
		rw.InternalError("Failed to trigger sync job")
	}
}

// SyncJobs handles GET /api/v1/sync/jobs. Returns job runs newest first,
// optionally filtered by game, job_type, and status query parameters.
func (h *Handler) SyncJobs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req := JobListRequest{
		Game:    r.URL.Query().Get("game"),
		JobType: r.URL.Query().Get("job_type"),
		Status:  r.URL.Query().Get("status"),
		Limit:   getIntParam(r, "limit", 50),
		Offset:  getIntParam(r, "offset", 0),
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	runs, err := h.tracker.List(r.Context(), database.JobRunFilter{
		Game:    req.Game,
		JobType: req.JobType,
		Status:  req.Status,
		Limit:   req.Limit,
		Offset:  req.Offset,
	})
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithPagination(runs, &PaginationMeta{
		Count:   len(runs),
		Offset:  req.Offset,
		Limit:   req.Limit,
		HasMore: len(runs) == req.Limit,
	})
}

// SyncJob handles GET /api/v1/sync/jobs/{jobID}. Returns a single job run
// by its UUID.
func (h *Handler) SyncJob(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		rw.BadRequest("Invalid job ID: must be a UUID")
		return
	}

	run, err := h.tracker.Get(r.Context(), id)
	switch {
	case err == nil:
		rw.Success(run)
	case errors.Is(err, database.ErrNotFound):
		rw.NotFound("Job run not found")
	default:
		rw.DatabaseError(err)
	}
}

// SyncJobCancel handles POST /api/v1/sync/jobs/{jobID}/cancel. Cancellation
// is cooperative: the flag is set here and the running job observes it at
// its next batch boundary, so the response is 202 Accepted rather than an
// immediate terminal state.
func (h *Handler) SyncJobCancel(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		rw.BadRequest("Invalid job ID: must be a UUID")
		return
	}

	err = h.tracker.RequestCancel(r.Context(), id)
	switch {
	case err == nil:
		logging.Ctx(r.Context()).Info().
			Str("job_id", id.String()).
			Msg("Job cancellation requested")
		rw.Accepted(map[string]interface{}{
			"id":               id,
			"cancel_requested": true,
		})
	case errors.Is(err, database.ErrNotFound):
		rw.NotFound("Job run not found")
	case errors.Is(err, database.ErrJobFinished):
		rw.Conflict("Job run already finished")
	default:
		rw.DatabaseError(err)
	}
}

// SyncBreakers handles GET /api/v1/sync/breakers. Returns a snapshot of
// every per-game circuit breaker, sorted by game.
func (h *Handler) SyncBreakers(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.breakers == nil {
		rw.ServiceUnavailable("Circuit breaker registry unavailable")
		return
	}

	rw.Success(h.breakers.States())
}

// SyncQuota handles GET /api/v1/sync/quota. Reports the daily upstream
// request budget and the rate limiter's current window usage.
func (h *Handler) SyncQuota(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.quota == nil {
		rw.ServiceUnavailable("Quota tracker unavailable")
		return
	}

	used, err := h.quota.Used()
	if err != nil {
		rw.InternalError("Failed to read quota usage")
		return
	}
	remaining, err := h.quota.Remaining()
	if err != nil {
		rw.InternalError("Failed to read quota usage")
		return
	}

	data := map[string]interface{}{
		"day":       h.quota.Day(),
		"limit":     h.quota.Limit(),
		"used":      used,
		"remaining": remaining,
	}

	if h.limiter != nil {
		windowUsed, windowLimit := h.limiter.WindowUsage()
		data["window_used"] = windowUsed
		data["window_limit"] = windowLimit
	}

	rw.Success(data)
}
