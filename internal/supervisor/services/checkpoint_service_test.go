// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockCheckpointGC simulates the Badger checkpoint store's GC loop.
type mockCheckpointGC struct {
	runErr       error
	runCount     atomic.Int32
	lastInterval atomic.Int64
}

func (m *mockCheckpointGC) RunGC(ctx context.Context, interval time.Duration) error {
	m.runCount.Add(1)
	m.lastInterval.Store(int64(interval))
	if m.runErr != nil {
		return m.runErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestCheckpointGCService_Interface(t *testing.T) {
	var _ suture.Service = (*CheckpointGCService)(nil)
}

func TestCheckpointGCService(t *testing.T) {
	t.Run("passes configured interval to the store", func(t *testing.T) {
		store := &mockCheckpointGC{}
		svc := NewCheckpointGCService(store, 2*time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := svc.Serve(ctx)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}
		if got := time.Duration(store.lastInterval.Load()); got != 2*time.Minute {
			t.Errorf("expected interval 2m, got %v", got)
		}
	})

	t.Run("propagates GC failure for restart", func(t *testing.T) {
		gcErr := errors.New("value log corrupted")
		store := &mockCheckpointGC{runErr: gcErr}
		svc := NewCheckpointGCService(store, time.Minute)

		err := svc.Serve(context.Background())
		if !errors.Is(err, gcErr) {
			t.Errorf("expected GC error propagated, got %v", err)
		}
	})

	t.Run("String returns service name", func(t *testing.T) {
		svc := NewCheckpointGCService(&mockCheckpointGC{}, time.Minute)
		if svc.String() != "checkpoint-gc" {
			t.Errorf("expected 'checkpoint-gc', got %q", svc.String())
		}
	})
}

func TestCheckpointGCService_WithSupervisor(t *testing.T) {
	store := &mockCheckpointGC{}
	svc := NewCheckpointGCService(store, time.Minute)

	sup := suture.New("gc-test", suture.Spec{
		FailureThreshold: 3,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          100 * time.Millisecond,
	})
	sup.Add(svc)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	errCh := sup.ServeBackground(ctx)

	// Wait for the GC loop to start with polling (more reliable in CI under load)
	var started bool
	for i := 0; i < 10; i++ {
		time.Sleep(20 * time.Millisecond)
		if store.runCount.Load() >= 1 {
			started = true
			break
		}
	}
	if !started {
		t.Error("GC loop was not started")
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(time.Second):
		t.Error("supervisor did not shut down")
	}
}
