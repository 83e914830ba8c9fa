// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cardographus/internal/logging"
	"github.com/tomtom215/cardographus/internal/metrics"
)

// quotaEntryTTL keeps daily quota counters around long enough to inspect
// yesterday's usage, then lets Badger expire them.
const quotaEntryTTL = 48 * time.Hour

// Checkpoint records how far a paginated job got, so an interrupted job
// resumes mid-set instead of refetching pages it already reconciled.
type Checkpoint struct {
	Offset  int       `json:"offset"`
	SavedAt time.Time `json:"saved_at"`
}

// CheckpointStore persists pagination checkpoints and daily quota
// counters across restarts. Implementations must be safe for concurrent
// use.
type CheckpointStore interface {
	// SaveOffset records the next offset to fetch for a job scope.
	SaveOffset(jobType, game, setCode string, offset int) error
	// LoadOffset returns the saved offset for a job scope. The boolean
	// reports whether a checkpoint existed.
	LoadOffset(jobType, game, setCode string) (int, bool, error)
	// ClearOffset removes a checkpoint after the job scope completes.
	ClearOffset(jobType, game, setCode string) error

	// AddQuotaUsage atomically adds n to the day's upstream request
	// counter and returns the new total.
	AddQuotaUsage(day string, n int) (int, error)
	// QuotaUsage returns the day's upstream request counter.
	QuotaUsage(day string) (int, error)

	Close() error
}

func checkpointKey(jobType, game, setCode string) []byte {
	return []byte("checkpoint:" + jobType + ":" + game + ":" + setCode)
}

func quotaKey(day string) []byte {
	return []byte("quota:" + day)
}

// BadgerCheckpointStore implements CheckpointStore on BadgerDB. This is
// the production store: checkpoints and quota counters survive process
// restarts, which is the whole point of having them.
type BadgerCheckpointStore struct {
	db *badger.DB

	// quotaMu serializes quota read-modify-write cycles. Badger would
	// surface these as transaction conflicts; all spending goes through
	// one process, so a mutex is simpler than a retry loop.
	quotaMu sync.Mutex
}

// NewBadgerCheckpointStore opens (or creates) the checkpoint database at
// the given path.
func NewBadgerCheckpointStore(path string) (*BadgerCheckpointStore, error) {
	opts := badger.DefaultOptions(path)
	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}

	logging.Info().Str("path", path).Msg("Checkpoint store opened")
	return &BadgerCheckpointStore{db: db}, nil
}

// SaveOffset records the next offset to fetch for a job scope.
func (s *BadgerCheckpointStore) SaveOffset(jobType, game, setCode string, offset int) error {
	data, err := json.Marshal(Checkpoint{Offset: offset, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(checkpointKey(jobType, game, setCode), data)
	})
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	metrics.CheckpointSaves.Inc()
	return nil
}

// LoadOffset returns the saved offset for a job scope.
func (s *BadgerCheckpointStore) LoadOffset(jobType, game, setCode string) (int, bool, error) {
	var cp Checkpoint
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(checkpointKey(jobType, game, setCode))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cp)
		})
	})
	if err != nil {
		return 0, false, fmt.Errorf("load checkpoint: %w", err)
	}
	return cp.Offset, found, nil
}

// ClearOffset removes a checkpoint after the job scope completes.
func (s *BadgerCheckpointStore) ClearOffset(jobType, game, setCode string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(checkpointKey(jobType, game, setCode))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil // Already cleared
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

// AddQuotaUsage atomically adds n to the day's request counter.
func (s *BadgerCheckpointStore) AddQuotaUsage(day string, n int) (int, error) {
	s.quotaMu.Lock()
	defer s.quotaMu.Unlock()

	total := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		key := quotaKey(day)
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			// First spend of the day
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				total, err = strconv.Atoi(string(val))
				return err
			}); err != nil {
				return err
			}
		}

		total += n
		entry := badger.NewEntry(key, []byte(strconv.Itoa(total))).WithTTL(quotaEntryTTL)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return 0, fmt.Errorf("add quota usage: %w", err)
	}
	return total, nil
}

// QuotaUsage returns the day's request counter.
func (s *BadgerCheckpointStore) QuotaUsage(day string) (int, error) {
	total := 0
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(quotaKey(day))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			total, err = strconv.Atoi(string(val))
			return err
		})
	})
	if err != nil {
		return 0, fmt.Errorf("quota usage: %w", err)
	}
	return total, nil
}

// RunGC runs Badger value log garbage collection on a ticker until the
// context is cancelled. Checkpoint churn is small but constant (every
// sub-batch saves an offset, every finished scope deletes one), and the
// value log only reclaims space through explicit GC calls. Returns
// ctx.Err() on cancellation so a supervisor can tell shutdown from
// failure.
func (s *BadgerCheckpointStore) RunGC(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Each call rewrites at most one value log file, so loop
			// until Badger reports nothing left worth collecting.
			rewrites := 0
			for {
				if err := s.db.RunValueLogGC(0.5); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						logging.Warn().Err(err).Msg("Checkpoint store GC failed")
					}
					break
				}
				rewrites++
			}
			if rewrites > 0 {
				logging.Debug().Int("rewrites", rewrites).Msg("Checkpoint store GC reclaimed value log files")
			}
		}
	}
}

// Close closes the underlying Badger database.
func (s *BadgerCheckpointStore) Close() error {
	return s.db.Close()
}

// InMemoryCheckpointStore implements CheckpointStore without persistence.
// Used in tests and when no checkpoint path is configured; checkpoints
// and quota counters reset on restart.
type InMemoryCheckpointStore struct {
	mu      sync.Mutex
	offsets map[string]int
	quota   map[string]int
}

// NewInMemoryCheckpointStore creates an empty in-memory store.
func NewInMemoryCheckpointStore() *InMemoryCheckpointStore {
	return &InMemoryCheckpointStore{
		offsets: make(map[string]int),
		quota:   make(map[string]int),
	}
}

// SaveOffset records the next offset to fetch for a job scope.
func (s *InMemoryCheckpointStore) SaveOffset(jobType, game, setCode string, offset int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets[string(checkpointKey(jobType, game, setCode))] = offset
	metrics.CheckpointSaves.Inc()
	return nil
}

// LoadOffset returns the saved offset for a job scope.
func (s *InMemoryCheckpointStore) LoadOffset(jobType, game, setCode string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	offset, ok := s.offsets[string(checkpointKey(jobType, game, setCode))]
	return offset, ok, nil
}

// ClearOffset removes a checkpoint.
func (s *InMemoryCheckpointStore) ClearOffset(jobType, game, setCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.offsets, string(checkpointKey(jobType, game, setCode)))
	return nil
}

// AddQuotaUsage adds n to the day's counter.
func (s *InMemoryCheckpointStore) AddQuotaUsage(day string, n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quota[day] += n
	return s.quota[day], nil
}

// QuotaUsage returns the day's counter.
func (s *InMemoryCheckpointStore) QuotaUsage(day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quota[day], nil
}

// Close is a no-op.
func (s *InMemoryCheckpointStore) Close() error { return nil }

// Compile-time interface checks.
var (
	_ CheckpointStore = (*BadgerCheckpointStore)(nil)
	_ CheckpointStore = (*InMemoryCheckpointStore)(nil)
)

// QuotaTracker enforces the daily upstream request budget. Counters are
// keyed by UTC day, so the budget resets at UTC midnight regardless of
// server timezone.
type QuotaTracker struct {
	mu    sync.Mutex
	store CheckpointStore
	limit int

	// Injected for deterministic tests.
	now func() time.Time
}

// NewQuotaTracker creates a tracker enforcing the given daily limit.
// A limit of zero or less disables enforcement.
func NewQuotaTracker(store CheckpointStore, limit int) *QuotaTracker {
	return &QuotaTracker{store: store, limit: limit, now: time.Now}
}

// Day returns the current UTC day key.
func (q *QuotaTracker) Day() string {
	return q.now().UTC().Format("2006-01-02")
}

// Limit returns the configured daily limit.
func (q *QuotaTracker) Limit() int { return q.limit }

// Used returns today's consumed request count.
func (q *QuotaTracker) Used() (int, error) {
	return q.store.QuotaUsage(q.Day())
}

// Remaining returns today's unspent request budget. Unlimited trackers
// report the maximum int.
func (q *QuotaTracker) Remaining() (int, error) {
	if q.limit <= 0 {
		return int(^uint(0) >> 1), nil
	}
	used, err := q.Used()
	if err != nil {
		return 0, err
	}
	if used >= q.limit {
		return 0, nil
	}
	return q.limit - used, nil
}

// Spend reserves n upstream requests against today's budget, returning
// ErrDailyQuotaExceeded without spending when the budget cannot cover
// them. Reserved requests stay spent even if the call later fails; the
// upstream bills attempts, not successes.
func (q *QuotaTracker) Spend(n int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	day := q.Day()
	used, err := q.store.QuotaUsage(day)
	if err != nil {
		return err
	}
	if q.limit > 0 && used+n > q.limit {
		metrics.UpdateQuota(used, q.limit)
		return fmt.Errorf("%w: %d of %d used", ErrDailyQuotaExceeded, used, q.limit)
	}

	total, err := q.store.AddQuotaUsage(day, n)
	if err != nil {
		return err
	}
	metrics.UpdateQuota(total, q.limit)
	return nil
}
