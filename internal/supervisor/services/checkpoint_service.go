// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package services

import (
	"context"
	"time"
)

// CheckpointGC interface matches the Badger checkpoint store's GC loop.
//
// This interface allows the CheckpointGCService to work with the store
// without importing the sync package, avoiding circular dependencies.
//
// Satisfied by *sync.BadgerCheckpointStore from internal/sync/checkpoint.go.
// The in-memory store has no value log, so it never needs this service.
type CheckpointGC interface {
	// RunGC runs value log garbage collection on a ticker until the
	// context is canceled.
	RunGC(ctx context.Context, interval time.Duration) error
}

// CheckpointGCService wraps the checkpoint store's GC loop as a supervised
// service.
//
// Badger's value log only reclaims space through explicit GC calls, and
// checkpoint offsets are saved and deleted on every sync job. Without this
// service a long-running instance with a persistent checkpoint path grows
// its value log unbounded.
//
// Example usage:
//
//	store, _ := sync.NewBadgerCheckpointStore(cfg.Checkpoint.Path)
//	svc := services.NewCheckpointGCService(store, 5*time.Minute)
//	tree.AddDataService(svc)
type CheckpointGCService struct {
	store    CheckpointGC
	interval time.Duration
	name     string
}

// NewCheckpointGCService creates a new checkpoint GC service wrapper.
//
// The interval controls how often GC runs. Zero or negative values fall
// back to the store's default.
func NewCheckpointGCService(store CheckpointGC, interval time.Duration) *CheckpointGCService {
	return &CheckpointGCService{
		store:    store,
		interval: interval,
		name:     "checkpoint-gc",
	}
}

// Serve implements suture.Service.
//
// This method delegates to store.RunGC which ticks at the configured
// interval, runs value log GC until nothing is left to rewrite, and
// returns ctx.Err() when the context is canceled.
func (c *CheckpointGCService) Serve(ctx context.Context) error {
	return c.store.RunGC(ctx, c.interval)
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (c *CheckpointGCService) String() string {
	return c.name
}
