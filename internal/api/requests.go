// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package api

// Request validation structs with go-playground/validator tags. The tags
// follow validator v10 syntax; slug is a custom validator registered in
// the validation package (lowercase letters, digits, and hyphens).

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/cardographus/internal/validation"
)

// SyncTriggerRequest represents the validated request body for POST /sync/trigger.
//
// Fields:
//   - JobType: Required job type (discover_games, discover_sets, import_cards, refresh_pricing)
//   - Game: Game slug; required for every job type except discover_games
//   - SetCode: Set code; required for import_cards
//
// The game/set requirement per job type is enforced by the orchestrator,
// which owns that rule; validation here only checks the shapes.
type SyncTriggerRequest struct {
	JobType string `json:"job_type" validate:"required,oneof=discover_games discover_sets import_cards refresh_pricing"`
	Game    string `json:"game"     validate:"omitempty,slug"`
	SetCode string `json:"set_code" validate:"omitempty,min=1,max=64"`
}

// JobListRequest represents the validated query parameters for GET /sync/jobs.
//
// Fields:
//   - Game: Optional game slug filter
//   - JobType: Optional job type filter
//   - Status: Optional job status filter
//   - Limit: Results per page (1-500)
//   - Offset: Starting offset (0-1000000)
type JobListRequest struct {
	Game    string `validate:"omitempty,slug"`
	JobType string `validate:"omitempty,oneof=discover_games discover_sets import_cards refresh_pricing"`
	Status  string `validate:"omitempty,oneof=started running completed partial failed cancelled preflight_ceiling daily_limit_reached circuit_open"`
	Limit   int    `validate:"min=1,max=500"`
	Offset  int    `validate:"min=0,max=1000000"`
}

// CardListRequest represents the validated query parameters for the paginated
// card listing endpoint.
//
// Fields:
//   - Limit: Results per page (1-500, default from config)
//   - Offset: Starting offset (0-1000000)
type CardListRequest struct {
	Limit  int `validate:"min=1,max=500"`
	Offset int `validate:"min=0,max=1000000"`
}

// PriceHistoryRequest represents the validated query parameters for the
// variant price history endpoint.
//
// Fields:
//   - Limit: Maximum price points to return, newest first (1-1000)
type PriceHistoryRequest struct {
	Limit int `validate:"min=1,max=1000"`
}

// validateRequest validates a struct using go-playground/validator.
// Returns nil if validation passes, or an APIError if validation fails.
// The returned error carries the VALIDATION_FAILED code with per-field details.
func validateRequest(v interface{}) *APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}

	apiErr := validationErr.ToAPIError()
	return &APIError{
		Code:    ErrCodeValidationFailed,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}

// getIntParam extracts an integer query parameter with a default value
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}
