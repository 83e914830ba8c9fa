// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/cardographus/internal/database"
	"github.com/tomtom215/cardographus/internal/models"
)

// Catalog read endpoints. These serve the locally synced catalog and never
// touch the upstream API; browsing stays available while the upstream is
// down or the daily quota is spent.

// Games handles GET /api/v1/games. Pass active=true to restrict the list
// to games enabled for syncing.
func (h *Handler) Games(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	activeOnly := r.URL.Query().Get("active") == "true"

	games, err := h.db.ListGames(r.Context(), activeOnly)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(games)
}

// GameSets handles GET /api/v1/games/{game}/sets.
func (h *Handler) GameSets(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	game, ok := h.resolveGame(rw, r)
	if !ok {
		return
	}

	sets, err := h.db.ListSetsByGame(r.Context(), game.ID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(sets)
}

// SetCards handles GET /api/v1/games/{game}/sets/{setCode}/cards with
// limit/offset pagination.
func (h *Handler) SetCards(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	game, ok := h.resolveGame(rw, r)
	if !ok {
		return
	}

	set, err := h.db.GetSetByCode(r.Context(), game.ID, chi.URLParam(r, "setCode"))
	switch {
	case errors.Is(err, database.ErrNotFound):
		rw.NotFound("Set not found")
		return
	case err != nil:
		rw.DatabaseError(err)
		return
	}

	req := CardListRequest{
		Limit:  getIntParam(r, "limit", h.defaultPageSize()),
		Offset: getIntParam(r, "offset", 0),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	cards, err := h.db.ListCardsBySet(r.Context(), set.ID, req.Limit, req.Offset)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	total, err := h.db.CountCardsBySet(r.Context(), set.ID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithPagination(cards, &PaginationMeta{
		Total:   int64(total),
		Count:   len(cards),
		Offset:  req.Offset,
		Limit:   req.Limit,
		HasMore: req.Offset+len(cards) < total,
	})
}

// CardVariants handles GET /api/v1/cards/{cardID}/variants. Returns every
// priced condition/printing combination of the card.
func (h *Handler) CardVariants(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	cardID, err := strconv.ParseInt(chi.URLParam(r, "cardID"), 10, 64)
	if err != nil {
		rw.BadRequest("Invalid card ID: must be an integer")
		return
	}

	if _, err := h.db.GetCard(r.Context(), cardID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("Card not found")
		} else {
			rw.DatabaseError(err)
		}
		return
	}

	variants, err := h.db.ListVariantsByCard(r.Context(), cardID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(variants)
}

// VariantPriceHistory handles GET /api/v1/variants/{variantID}/price-history.
// Returns recorded price changes newest first, capped by the limit parameter.
func (h *Handler) VariantPriceHistory(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	variantID, err := strconv.ParseInt(chi.URLParam(r, "variantID"), 10, 64)
	if err != nil {
		rw.BadRequest("Invalid variant ID: must be an integer")
		return
	}

	req := PriceHistoryRequest{
		Limit: getIntParam(r, "limit", 100),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	variant, err := h.db.GetVariantByID(r.Context(), variantID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		rw.NotFound("Variant not found")
		return
	case err != nil:
		rw.DatabaseError(err)
		return
	}

	history, err := h.db.ListPriceHistory(r.Context(), variantID, req.Limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(map[string]interface{}{
		"variant": variant,
		"history": history,
	})
}

// resolveGame looks up the {game} URL parameter as a slug, writing the
// error response itself when the game is unknown.
func (h *Handler) resolveGame(rw *ResponseWriter, r *http.Request) (*models.Game, bool) {
	game, err := h.db.GetGameBySlug(r.Context(), chi.URLParam(r, "game"))
	switch {
	case errors.Is(err, database.ErrNotFound):
		rw.NotFound("Game not found")
		return nil, false
	case err != nil:
		rw.DatabaseError(err)
		return nil, false
	}
	return game, true
}

// defaultPageSize returns the configured default page size, falling back
// to 100 when config is absent (tests).
func (h *Handler) defaultPageSize() int {
	if h.config != nil && h.config.API.DefaultPageSize > 0 {
		return h.config.API.DefaultPageSize
	}
	return 100
}
