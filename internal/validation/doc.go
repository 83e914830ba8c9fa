// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

// Package validation provides struct validation using go-playground/validator v10.
//
// This package wraps the go-playground/validator library to provide a thread-safe
// singleton validator instance with custom validators and user-friendly error
// messages. It integrates with the application's API error format for consistent
// error responses.
//
// # Overview
//
// The package provides:
//   - Thread-safe singleton validator (initialized once, cached struct info)
//   - Comprehensive error translation to human-readable messages
//   - APIError conversion matching the application's error format
//   - Custom "slug" validator for game and set identifiers
//   - Future v11 compatibility with WithRequiredStructEnabled
//
// # Quick Start
//
//	type SyncTriggerRequest struct {
//	    JobType string `validate:"required,oneof=discover_games discover_sets import_cards refresh_pricing"`
//	    Game    string `validate:"omitempty,slug"`
//	    SetCode string `validate:"omitempty,min=1,max=64"`
//	}
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    var req SyncTriggerRequest
//	    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
//	        // handle decode error
//	    }
//
//	    if verr := validation.ValidateStruct(&req); verr != nil {
//	        apiErr := verr.ToAPIError()
//	        respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	        return
//	    }
//
//	    // proceed with valid request
//	}
//
// # Common Validation Tags
//
// String validations:
//   - required: Field must not be empty
//   - min=n: Minimum length n characters
//   - max=n: Maximum length n characters
//   - slug: Lowercase letters, digits, and hyphens (custom)
//
// Numeric validations:
//   - gte=n: Greater than or equal to n
//   - lte=n: Less than or equal to n
//   - gt=n: Greater than n
//   - lt=n: Less than n
//   - min=n: Minimum value n
//   - max=n: Maximum value n
//
// Enum validations:
//   - oneof=a b c: Must be one of the specified values
//
// # Error Types
//
// ValidationError represents a single field validation failure:
//
//	type ValidationError struct {
//	    Field()   string      // Struct field name
//	    Tag()     string      // Validation tag that failed
//	    Param()   string      // Tag parameter (e.g., "500" for max=500)
//	    Value()   interface{} // Actual value that failed
//	    Error()   string      // Human-readable message
//	}
//
// RequestValidationError aggregates multiple field errors:
//
//	type RequestValidationError struct {
//	    Errors() []ValidationError
//	    Error()  string           // Combined message
//	    ToAPIError() *APIError    // Convert to API error format
//	}
//
// # API Error Integration
//
// The ToAPIError method produces errors matching the application format:
//
//	// Single field error
//	{
//	    "code": "VALIDATION_ERROR",
//	    "message": "JobType must be one of: discover_games discover_sets import_cards refresh_pricing",
//	    "details": {"field": "JobType", "tag": "oneof", "value": "resync"}
//	}
//
//	// Multiple field errors
//	{
//	    "code": "VALIDATION_ERROR",
//	    "message": "JobType: is required; Game: must contain only lowercase letters, digits, and hyphens",
//	    "details": {
//	        "fields": [
//	            {"field": "JobType", "tag": "required", "message": "..."},
//	            {"field": "Game", "tag": "slug", "message": "..."}
//	        ]
//	    }
//	}
//
// # Error Message Translation
//
// Human-readable messages are generated for common validation tags:
//
//	required   -> "JobType is required"
//	slug       -> "Game must contain only lowercase letters, digits, and hyphens"
//	min=1      -> "Limit must be at least 1"
//	max=500    -> "Limit must be at most 500"
//	gte=1      -> "Limit must be greater than or equal to 1"
//	lte=500    -> "Limit must be less than or equal to 500"
//	oneof=a b  -> "Status must be one of: a b"
//
// # Struct Tag Examples
//
// API request validation:
//
//	type CardListRequest struct {
//	    Limit  int `validate:"min=1,max=500"`
//	    Offset int `validate:"min=0,max=1000000"`
//	}
//
//	type JobListRequest struct {
//	    Game    string `validate:"omitempty,slug"`
//	    JobType string `validate:"omitempty,oneof=discover_games discover_sets import_cards refresh_pricing"`
//	    Status  string `validate:"omitempty"`
//	    Limit   int    `validate:"min=1,max=500"`
//	    Offset  int    `validate:"min=0,max=1000000"`
//	}
//
// # Thread Safety
//
// The singleton validator is initialized once and safe for concurrent use:
//
//	validate := validation.GetValidator()  // Thread-safe
//	err := validation.ValidateStruct(&req) // Thread-safe
//
// # Performance
//
// The validator caches struct reflection information:
//   - First validation of a struct type: ~1ms (reflection + caching)
//   - Subsequent validations: ~10us (cached)
//   - Memory: ~500 bytes per cached struct type
//
// # See Also
//
//   - internal/api: Request handlers using validation
//   - github.com/go-playground/validator/v10: Underlying library
package validation
