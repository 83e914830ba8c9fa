// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

// Package events provides the application event bus.
//
// Reconciliation publishes a PriceChanged event for every detected
// variant price movement and a JobFinished event when a sync job reaches
// a terminal status. The websocket bridge subscribes in-process; with the
// NATS transport (build with -tags=nats) the same events flow through a
// JetStream stream for external consumers, optionally served by an
// embedded NATS server.
//
// The default transport is a Watermill gochannel Pub/Sub: no external
// broker, delivery to in-process subscribers only.
package events
