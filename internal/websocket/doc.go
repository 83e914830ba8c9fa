// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

/*
Package websocket provides real-time push of sync job progress and price
movements to connected frontend clients.

It uses the gorilla/websocket library with a hub-client architecture:

	┌──────────┐
	│   Hub    │ ← Broadcasts to all clients
	└────┬─────┘
	     │
	┌────┴─────┬─────────┬─────────┐
	│          │         │         │
	│ Client1  │ Client2 │ Client3 │
	│          │         │         │
	└──────────┴─────────┴─────────┘

Each client has two goroutines: readPump reads from the WebSocket and
answers application-level pings, writePump writes hub messages and sends
protocol pings on a ticker.

Message Types:

  - sync_progress: a job-run snapshot, broadcast by the job tracker on
    every persisted state transition (started, running, and each terminal
    status). Data is the full run record including counters.
  - price_change: a price movement on a catalog variant, forwarded from
    the event bus by PriceFeedBridge. Data is the events.PriceChanged
    payload.
  - ping / pong: client-initiated liveness probes.

Usage:

	hub := websocket.NewHub()
	go hub.RunWithContext(ctx) // or supervise via suture

	bridge := websocket.NewPriceFeedBridge(hub, bus)
	go bridge.Run(ctx)

	// HTTP upgrade handled by internal/api on GET /api/v1/ws:
	// the handler upgrades, builds a Client, registers it with the hub
	// and calls client.Start().

Connection Lifecycle:

 1. Client connects via HTTP upgrade
 2. Hub registers client
 3. Client starts read/write goroutines
 4. Hub broadcasts messages to all clients
 5. Client disconnects (network error or explicit close)
 6. Hub unregisters client and cleans up

Slow consumers are disconnected rather than allowed to block a broadcast:
when a client's send buffer (256 messages) is full, the hub closes it and
removes it from the set.

Configuration:

  - writeWait: 10 seconds (time allowed to write a message)
  - pongWait: 60 seconds (time allowed to read a pong)
  - pingPeriod: 54 seconds (ping interval, must be < pongWait)
  - maxMessageSize: 512 KB

See Also:

  - github.com/gorilla/websocket: underlying WebSocket library
  - internal/events: the bus PriceFeedBridge subscribes to
  - internal/sync: the job tracker that broadcasts sync_progress
*/
package websocket
