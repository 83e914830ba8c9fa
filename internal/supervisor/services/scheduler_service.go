// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package services

import (
	"context"
	"fmt"
)

// StartStopScheduler interface matches the sync.Scheduler lifecycle.
//
// This interface abstracts the scheduler's Start/Stop pattern, allowing the
// SchedulerService wrapper to adapt it to suture's Serve pattern without
// modifying the scheduler itself.
//
// Satisfied by *sync.Scheduler from internal/sync/scheduler.go.
type StartStopScheduler interface {
	Start(ctx context.Context) error
	Stop() error
}

// SchedulerService wraps the sync scheduler as a supervised service.
//
// The scheduler triggers periodic pricing refresh jobs for every configured
// game. It adapts the Start/Stop lifecycle pattern to suture's Serve pattern:
//  1. Calls Start(ctx) to begin the scheduler loop
//  2. Waits for context cancellation
//  3. Calls Stop() for graceful shutdown
//
// The scheduler handles its own goroutine internally via WaitGroup, so this
// wrapper simply orchestrates the lifecycle transitions.
type SchedulerService struct {
	scheduler StartStopScheduler
	name      string
}

// NewSchedulerService creates a new scheduler service wrapper.
//
// Example usage:
//
//	scheduler := sync.NewScheduler(orchestrator, db, cfg)
//	svc := services.NewSchedulerService(scheduler)
//	tree.AddMessagingService(svc)
func NewSchedulerService(scheduler StartStopScheduler) *SchedulerService {
	return &SchedulerService{
		scheduler: scheduler,
		name:      "sync-scheduler",
	}
}

// Serve implements suture.Service.
//
// This method:
//  1. Starts the scheduler (which spawns its loop goroutine)
//  2. Blocks until the context is canceled
//  3. Stops the scheduler (which waits for the loop to exit)
//
// If Start() fails, the error is returned immediately, causing suture to
// restart the service according to its backoff policy.
func (s *SchedulerService) Serve(ctx context.Context) error {
	// Start the scheduler - this spawns the loop goroutine but returns immediately
	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("scheduler start failed: %w", err)
	}

	// Wait for shutdown signal
	<-ctx.Done()

	// Stop the scheduler - this blocks until the loop goroutine completes
	if err := s.scheduler.Stop(); err != nil {
		return fmt.Errorf("scheduler stop failed: %w", err)
	}

	return ctx.Err()
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *SchedulerService) String() string {
	return s.name
}
