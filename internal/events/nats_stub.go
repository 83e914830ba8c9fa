// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

//go:build !nats

package events

import (
	"fmt"

	"github.com/tomtom215/cardographus/internal/config"
)

// NewNATSBus returns an error when NATS dependencies are not compiled in.
// Build with -tags=nats to enable the JetStream transport.
func NewNATSBus(_ *config.NATSConfig) (Bus, error) {
	return nil, fmt.Errorf("NATS transport not available: build with -tags=nats")
}
