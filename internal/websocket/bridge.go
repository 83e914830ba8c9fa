// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package websocket

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/cardographus/internal/events"
	"github.com/tomtom215/cardographus/internal/logging"
)

// PriceFeedBridge forwards price change events from the event bus to the
// websocket hub, so connected clients see price movements as they are
// written. Job progress does not pass through here: the job tracker
// broadcasts run snapshots to the hub directly.
//
// The bridge consumes events.Subscriber, so it works unchanged against
// the in-process bus and the NATS-backed bus (-tags nats).
type PriceFeedBridge struct {
	hub *Hub
	bus events.Subscriber
}

// NewPriceFeedBridge creates a bridge between the event bus and the hub.
func NewPriceFeedBridge(hub *Hub, bus events.Subscriber) *PriceFeedBridge {
	return &PriceFeedBridge{hub: hub, bus: bus}
}

// Run subscribes to the price change topic and forwards events until the
// context is cancelled or the bus closes. Designed for suture supervision:
// it returns ctx.Err() on cancellation so the supervisor can distinguish
// shutdown from failure.
func (b *PriceFeedBridge) Run(ctx context.Context) error {
	messages, err := b.bus.Subscribe(ctx, events.TopicPriceChanged)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", events.TopicPriceChanged, err)
	}

	logging.Info().Str("topic", events.TopicPriceChanged).Msg("price feed bridge started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().
				Str("component", "price-feed-bridge").
				Str("reason", string(getShutdownReason(ctx))).
				Msg("price feed bridge stopped")
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				// Cancellation also closes the subscriber channel, so
				// report it as such regardless of which branch won.
				if ctx.Err() != nil {
					logging.Info().
						Str("component", "price-feed-bridge").
						Str("reason", string(getShutdownReason(ctx))).
						Msg("price feed bridge stopped")
					return ctx.Err()
				}
				logging.Info().
					Str("component", "price-feed-bridge").
					Msg("event bus closed, price feed bridge stopped")
				return nil
			}
			b.forward(msg)
		}
	}
}

// forward decodes and broadcasts a single bus message. Malformed payloads
// are acked and dropped: a Nack would only redeliver the same bytes.
func (b *PriceFeedBridge) forward(msg *message.Message) {
	event, err := events.DecodePriceChanged(msg)
	if err != nil {
		logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping undecodable price change event")
		msg.Ack()
		return
	}

	b.hub.BroadcastPriceChange(event)
	msg.Ack()
}
