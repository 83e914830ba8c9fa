// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/cardographus/internal/config"
	"github.com/tomtom215/cardographus/internal/database"
	"github.com/tomtom215/cardographus/internal/logging"
	"github.com/tomtom215/cardographus/internal/models"
)

// defaultScheduleInterval is used when the configured interval is unset.
const defaultScheduleInterval = time.Hour

// Scheduler periodically enqueues refresh_pricing jobs for the
// configured games (or all active games when none are configured).
// Catalog discovery and card imports are operator-triggered; pricing is
// the data that goes stale on its own.
type Scheduler struct {
	orch *Orchestrator
	db   DBInterface
	cfg  *config.SyncConfig

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler. Call Start to begin the loop.
func NewScheduler(orch *Orchestrator, db DBInterface, cfg *config.SyncConfig) *Scheduler {
	return &Scheduler{
		orch:     orch,
		db:       db,
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
}

// Start launches the scheduling loop: one immediate pricing pass, then
// one per interval. A disabled scheduler starts successfully and does
// nothing; jobs still run on manual triggers.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.mu.Unlock()

	if !s.cfg.Enabled {
		logging.Info().Msg("Scheduled sync disabled - jobs run on manual triggers only")
		return nil
	}

	interval := s.cfg.Interval
	if interval <= 0 {
		interval = defaultScheduleInterval
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.runScheduledPricing(ctx)
	}()
	go s.loop(ctx, interval)

	logging.Info().
		Dur("interval", interval).
		Strs("games", s.cfg.Games).
		Msg("Scheduled pricing refresh started")
	return nil
}

// Stop halts the loop and waits for an in-flight scheduling pass to
// return. Jobs the scheduler already triggered keep running; the
// orchestrator owns their shutdown.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()
	logging.Info().Msg("Scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runScheduledPricing(ctx)
		}
	}
}

// runScheduledPricing triggers one refresh_pricing job per game.
// Conflicts with already-running jobs are expected and skipped quietly.
func (s *Scheduler) runScheduledPricing(ctx context.Context) {
	slugs, err := s.gameSlugs(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to list games for scheduled pricing refresh")
		return
	}
	if len(slugs) == 0 {
		logging.Debug().Msg("No active games, skipping scheduled pricing refresh")
		return
	}

	for _, slug := range slugs {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		default:
		}

		run, err := s.orch.TriggerSync(ctx, models.JobRefreshPricing, slug, "")
		switch {
		case err == nil:
			logging.Info().
				Str("game", slug).
				Str("job_id", run.ID.String()).
				Msg("Scheduled pricing refresh triggered")
		case errors.Is(err, ErrJobConflict):
			logging.Debug().Str("game", slug).Msg("Pricing refresh already running, skipping")
		case errors.Is(err, database.ErrNotFound):
			logging.Warn().Str("game", slug).Msg("Configured game not in catalog, skipping")
		default:
			logging.Error().Err(err).Str("game", slug).Msg("Failed to trigger scheduled pricing refresh")
		}
	}
}

// gameSlugs returns the configured game list, or all active games from
// the catalog when the config does not restrict.
func (s *Scheduler) gameSlugs(ctx context.Context) ([]string, error) {
	if len(s.cfg.Games) > 0 {
		return s.cfg.Games, nil
	}
	games, err := s.db.ListGames(ctx, true)
	if err != nil {
		return nil, err
	}
	slugs := make([]string, 0, len(games))
	for _, g := range games {
		slugs = append(slugs, g.Slug)
	}
	return slugs, nil
}
