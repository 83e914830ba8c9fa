// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

/*
Package services provides suture.Service wrappers for Cardographus components.

This package adapts existing application components to the suture v4 supervision
model, translating various lifecycle patterns (Start/Stop, Run, ListenAndServe)
into suture's context-aware Serve pattern.

# Overview

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

The wrappers handle:
  - Lifecycle translation (Start/Stop to Serve pattern)
  - Graceful shutdown via context cancellation
  - Error propagation for supervisor restart decisions
  - Service identification via fmt.Stringer

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

WebSocket Hub (WebSocketHubService):
  - Wraps websocket.Hub with context support
  - Handles client connection cleanup on shutdown
  - Broadcasts shutdown notification to connected clients

Scheduler (SchedulerService):
  - Wraps sync.Scheduler with Start/Stop lifecycle
  - Drives periodic pricing refresh across configured games
  - Skips cycles when the daily upstream quota is exhausted

Price Feed (PriceFeedService):
  - Wraps websocket.PriceFeedBridge
  - Forwards price change events from the event bus to the hub
  - Works against both the in-process bus and NATS (-tags nats)

Checkpoint GC (CheckpointGCService):
  - Wraps the Badger checkpoint store's value log GC loop
  - Only needed when a persistent checkpoint path is configured
  - Reclaims space from checkpoint churn and expired quota counters

# Usage Example

Creating and registering services:

	import (
	    "net/http"
	    "time"

	    "github.com/tomtom215/cardographus/internal/supervisor"
	    "github.com/tomtom215/cardographus/internal/supervisor/services"
	)

	func setupSupervisor(server *http.Server, hub *websocket.Hub, scheduler *sync.Scheduler) {
	    tree, _ := supervisor.NewSupervisorTree(logger, config)

	    // HTTP server with 10s shutdown timeout
	    httpSvc := services.NewHTTPServerService(server, 10*time.Second)
	    tree.AddAPIService(httpSvc)

	    // WebSocket hub
	    wsSvc := services.NewWebSocketHubService(hub)
	    tree.AddMessagingService(wsSvc)

	    // Scheduler
	    schedSvc := services.NewSchedulerService(scheduler)
	    tree.AddMessagingService(schedSvc)

	    // Start supervision
	    tree.Serve(ctx)
	}

# Lifecycle Patterns

The package handles three common lifecycle patterns:

Start/Stop Pattern:

	type StartStopper interface {
	    Start(ctx context.Context) error
	    Stop() error
	}

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    if err := s.component.Start(ctx); err != nil {
	        return err
	    }
	    <-ctx.Done()
	    return s.component.Stop()
	}

Run Pattern:

	type Runner interface {
	    Run(ctx context.Context) error  // Blocks until ctx canceled
	}

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    return s.component.Run(ctx)
	}

ListenAndServe Pattern:

	type Listener interface {
	    ListenAndServe() error
	    Shutdown(ctx context.Context) error
	}

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    go s.server.ListenAndServe()
	    <-ctx.Done()
	    return s.server.Shutdown(shutdownCtx)
	}

# Error Handling

Return values determine supervisor behavior:

	nil         -> Service stopped cleanly, will not restart
	error       -> Service crashed, supervisor will restart
	ctx.Err()   -> Shutdown requested, normal termination

# Service Identification

All services implement fmt.Stringer for logging:

	func (s *HTTPServerService) String() string {
	    return "http-server"
	}

Suture uses this for log messages:

	INFO http-server: starting
	INFO http-server: stopped
	ERROR http-server: restarting after failure

# Thread Safety

All service wrappers are safe for concurrent use:
  - State is protected by mutexes where needed
  - Context cancellation is handled atomically
  - Multiple Serve calls are not supported (undefined behavior)

# See Also

  - internal/supervisor: SupervisorTree that manages these services
  - github.com/thejerf/suture/v4: Underlying supervision library
  - internal/websocket: WebSocket hub and price feed bridge
  - internal/sync: Scheduler and checkpoint store
*/
package services
