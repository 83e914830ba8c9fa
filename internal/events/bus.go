// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cardographus/internal/metrics"
)

// Publisher is the producing side of the event bus.
type Publisher interface {
	PublishPriceChanged(ctx context.Context, event *PriceChanged) error
	PublishJobFinished(ctx context.Context, event *JobFinished) error
}

// Subscriber is the consuming side of the event bus. Messages must be
// Acked or Nacked by the consumer.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// Bus combines both sides with lifecycle management.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// InProcessBus is the default event bus: a Watermill gochannel Pub/Sub
// delivering events to in-process subscribers only. The NATS-backed bus
// (build with -tags=nats) replaces it when external delivery is needed.
type InProcessBus struct {
	pubSub *gochannel.GoChannel
}

// Compile-time interface check.
var _ Bus = (*InProcessBus)(nil)

// NewInProcessBus creates a bus whose subscriber channels buffer up to
// bufferSize messages. Publishing never blocks on slow subscribers beyond
// that buffer.
func NewInProcessBus(bufferSize int) *InProcessBus {
	if bufferSize < 0 {
		bufferSize = 0
	}
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(bufferSize),
	}, newWatermillLogger())
	return &InProcessBus{pubSub: pubSub}
}

// PublishPriceChanged publishes a price change event.
func (b *InProcessBus) PublishPriceChanged(_ context.Context, event *PriceChanged) error {
	if err := event.Validate(); err != nil {
		metrics.EventPublishErrors.WithLabelValues(TopicPriceChanged).Inc()
		return err
	}
	return b.publish(TopicPriceChanged, event.EventID, event)
}

// PublishJobFinished publishes a job completion event.
func (b *InProcessBus) PublishJobFinished(_ context.Context, event *JobFinished) error {
	if err := event.Validate(); err != nil {
		metrics.EventPublishErrors.WithLabelValues(TopicJobFinished).Inc()
		return err
	}
	return b.publish(TopicJobFinished, event.EventID, event)
}

// Subscribe returns a channel of messages for the topic. The channel
// closes when ctx is cancelled or the bus closes.
func (b *InProcessBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, topic)
}

// Close shuts down the bus and closes all subscriber channels.
func (b *InProcessBus) Close() error {
	return b.pubSub.Close()
}

func (b *InProcessBus) publish(topic, eventID string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.EventPublishErrors.WithLabelValues(topic).Inc()
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(eventID, data)
	if err := b.pubSub.Publish(topic, msg); err != nil {
		metrics.EventPublishErrors.WithLabelValues(topic).Inc()
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	metrics.EventsPublished.WithLabelValues(topic).Inc()
	return nil
}

// DecodePriceChanged deserializes a bus message into a PriceChanged
// event, defaulting the schema version for legacy payloads.
func DecodePriceChanged(msg *message.Message) (*PriceChanged, error) {
	var event PriceChanged
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("decode price changed event: %w", err)
	}
	if event.SchemaVersion == 0 {
		event.SchemaVersion = 1
	}
	return &event, nil
}

// DecodeJobFinished deserializes a bus message into a JobFinished event.
func DecodeJobFinished(msg *message.Message) (*JobFinished, error) {
	var event JobFinished
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("decode job finished event: %w", err)
	}
	if event.SchemaVersion == 0 {
		event.SchemaVersion = 1
	}
	return &event, nil
}
