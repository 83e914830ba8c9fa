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

// mockContextHub simulates the websocket hub for testing.
type mockContextHub struct {
	runErr    error
	runCount  atomic.Int32
	runCalled chan struct{}
}

func newMockContextHub() *mockContextHub {
	return &mockContextHub{runCalled: make(chan struct{}, 1)}
}

func (m *mockContextHub) RunWithContext(ctx context.Context) error {
	m.runCount.Add(1)
	select {
	case m.runCalled <- struct{}{}:
	default:
	}

	if m.runErr != nil {
		return m.runErr
	}

	<-ctx.Done()
	return ctx.Err()
}

func TestWebSocketHubService_Interface(t *testing.T) {
	var _ suture.Service = (*WebSocketHubService)(nil)
}

func TestWebSocketHubService(t *testing.T) {
	t.Run("delegates to hub RunWithContext", func(t *testing.T) {
		hub := newMockContextHub()
		svc := NewWebSocketHubService(hub)

		ctx, cancel := context.WithCancel(context.Background())

		errCh := make(chan error, 1)
		go func() {
			errCh <- svc.Serve(ctx)
		}()

		select {
		case <-hub.runCalled:
		case <-time.After(time.Second):
			t.Fatal("hub was not started")
		}

		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Error("Serve did not return after cancellation")
		}

		if hub.runCount.Load() != 1 {
			t.Errorf("expected 1 RunWithContext call, got %d", hub.runCount.Load())
		}
	})

	t.Run("propagates hub error for restart", func(t *testing.T) {
		hubErr := errors.New("broadcast channel wedged")
		hub := newMockContextHub()
		hub.runErr = hubErr
		svc := NewWebSocketHubService(hub)

		err := svc.Serve(context.Background())
		if !errors.Is(err, hubErr) {
			t.Errorf("expected hub error propagated, got %v", err)
		}
	})

	t.Run("String returns service name", func(t *testing.T) {
		svc := NewWebSocketHubService(newMockContextHub())
		if svc.String() != "websocket-hub" {
			t.Errorf("expected 'websocket-hub', got %q", svc.String())
		}
	})
}

func TestWebSocketHubService_WithSupervisor(t *testing.T) {
	t.Run("supervisor restarts hub after crash", func(t *testing.T) {
		hub := newMockContextHub()
		hub.runErr = errors.New("simulated hub crash")
		svc := NewWebSocketHubService(hub)

		sup := suture.New("hub-test", suture.Spec{
			FailureThreshold: 10,
			FailureBackoff:   10 * time.Millisecond,
			Timeout:          100 * time.Millisecond,
		})
		sup.Add(svc)

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		go sup.Serve(ctx)
		time.Sleep(200 * time.Millisecond)

		if hub.runCount.Load() < 2 {
			t.Errorf("expected hub to be restarted, got %d starts", hub.runCount.Load())
		}
	})
}
