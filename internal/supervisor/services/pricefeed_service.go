// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package services

import (
	"context"
)

// PriceFeedRunner interface matches *websocket.PriceFeedBridge's Run method.
//
// This interface allows the PriceFeedService to work with the bridge without
// importing the websocket package, avoiding circular dependencies.
//
// Satisfied by *websocket.PriceFeedBridge from internal/websocket/bridge.go.
type PriceFeedRunner interface {
	// Run subscribes to the price change topic and forwards events until
	// the context is canceled.
	Run(ctx context.Context) error
}

// PriceFeedService wraps the price feed bridge as a supervised service.
//
// The bridge consumes price change events from the event bus and broadcasts
// them to WebSocket clients. Supervision matters here because the NATS-backed
// bus can drop the subscription on broker restart; suture restarting the
// bridge re-subscribes cleanly.
//
// Example usage:
//
//	bridge := websocket.NewPriceFeedBridge(hub, bus)
//	svc := services.NewPriceFeedService(bridge)
//	tree.AddMessagingService(svc)
type PriceFeedService struct {
	bridge PriceFeedRunner
	name   string
}

// NewPriceFeedService creates a new price feed service wrapper.
func NewPriceFeedService(bridge PriceFeedRunner) *PriceFeedService {
	return &PriceFeedService{
		bridge: bridge,
		name:   "price-feed-bridge",
	}
}

// Serve implements suture.Service.
//
// This method delegates to bridge.Run which:
//  1. Subscribes to the price change topic
//  2. Decodes and forwards each event to the hub
//  3. Returns ctx.Err() when the context is canceled
//
// A subscription failure is returned as an error, causing suture to
// restart the service according to its backoff policy.
func (p *PriceFeedService) Serve(ctx context.Context) error {
	return p.bridge.Run(ctx)
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (p *PriceFeedService) String() string {
	return p.name
}
