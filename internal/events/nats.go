// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

//go:build nats

package events

import (
	"context"
	"fmt"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsserver "github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/cardographus/internal/config"
	"github.com/tomtom215/cardographus/internal/logging"
	"github.com/tomtom215/cardographus/internal/metrics"
)

const (
	// streamName is the JetStream stream holding all cardographus events.
	streamName = "CARDOGRAPHUS"
	// streamSubjects captures every topic under the cardographus prefix.
	streamSubjects = "cardographus.>"

	embeddedHost = "127.0.0.1"
	embeddedPort = 4222

	serverReadyTimeout = 30 * time.Second
	ackWaitTimeout     = 30 * time.Second
)

// natsBus is the NATS JetStream event bus, enabled with -tags=nats. It
// optionally runs an embedded NATS server for single-instance deployments
// without external infrastructure.
type natsBus struct {
	server     *natsserver.Server
	conn       *natsgo.Conn
	publisher  message.Publisher
	subscriber message.Subscriber
}

// NewNATSBus starts the NATS transport: embedded server when configured,
// connection, stream provisioning, then the Watermill publisher and
// subscriber bound to the stream.
func NewNATSBus(cfg *config.NATSConfig) (Bus, error) {
	logger := newWatermillLogger()
	bus := &natsBus{}

	url := cfg.URL
	if cfg.EmbeddedServer {
		opts := &natsserver.Options{
			ServerName:         "cardographus-events",
			Host:               embeddedHost,
			Port:               embeddedPort,
			JetStream:          true,
			StoreDir:           cfg.StoreDir,
			JetStreamMaxMemory: cfg.MaxMemory,
			JetStreamMaxStore:  cfg.MaxStore,
			MaxPayload:         8 * 1024 * 1024,
		}

		ns, err := natsserver.NewServer(opts)
		if err != nil {
			return nil, fmt.Errorf("create embedded NATS server: %w", err)
		}
		ns.ConfigureLogger()
		go ns.Start()
		if !ns.ReadyForConnections(serverReadyTimeout) {
			ns.Shutdown()
			return nil, fmt.Errorf("embedded NATS server not ready within %s", serverReadyTimeout)
		}
		bus.server = ns
		url = ns.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	conn, err := natsgo.Connect(url, natsOpts...)
	if err != nil {
		bus.shutdownServer()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	bus.conn = conn

	if err := bus.ensureStream(); err != nil {
		bus.closePartial()
		return nil, err
	}

	publisher, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false, // Stream is provisioned by ensureStream
			TrackMsgId:    true,  // Enable deduplication
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		bus.closePartial()
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}
	bus.publisher = publisher

	subscriber, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: "cardographus",
		SubscribersCount: 1,
		AckWaitTimeout:   ackWaitTimeout,
		CloseTimeout:     30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			AckAsync:      false, // Synchronous acks for reliable delivery
			DurablePrefix: "cardographus",
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.MaxDeliver(5),
				natsgo.MaxAckPending(256),
				natsgo.AckWait(ackWaitTimeout),
				natsgo.DeliverNew(),
				natsgo.BindStream(streamName),
			},
		},
	}, logger)
	if err != nil {
		bus.closePartial()
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}
	bus.subscriber = subscriber

	logging.Info().Str("stream", streamName).Msg("NATS event bus ready")
	return bus, nil
}

// ensureStream creates or updates the JetStream stream. Idempotent.
func (b *natsBus) ensureStream() error {
	js, err := jetstream.New(b.conn)
	if err != nil {
		return fmt.Errorf("initialize JetStream: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	streamCfg := jetstream.StreamConfig{
		Name:        streamName,
		Subjects:    []string{streamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Duplicates:  2 * time.Minute,
		Storage:     jetstream.FileStorage,
		AllowDirect: true,
		Discard:     jetstream.DiscardOld,
	}

	if _, err := js.Stream(ctx, streamName); err == nil {
		if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("update stream %s: %w", streamName, err)
		}
		return nil
	}
	if _, err := js.CreateStream(ctx, streamCfg); err != nil {
		return fmt.Errorf("create stream %s: %w", streamName, err)
	}
	return nil
}

// PublishPriceChanged publishes a price change event to JetStream.
func (b *natsBus) PublishPriceChanged(_ context.Context, event *PriceChanged) error {
	if err := event.Validate(); err != nil {
		metrics.EventPublishErrors.WithLabelValues(TopicPriceChanged).Inc()
		return err
	}
	return b.publish(TopicPriceChanged, event.EventID, event)
}

// PublishJobFinished publishes a job completion event to JetStream.
func (b *natsBus) PublishJobFinished(_ context.Context, event *JobFinished) error {
	if err := event.Validate(); err != nil {
		metrics.EventPublishErrors.WithLabelValues(TopicJobFinished).Inc()
		return err
	}
	return b.publish(TopicJobFinished, event.EventID, event)
}

func (b *natsBus) publish(topic, eventID string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.EventPublishErrors.WithLabelValues(topic).Inc()
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(eventID, data)
	// Nats-Msg-Id drives JetStream deduplication within the window.
	msg.Metadata.Set(natsgo.MsgIdHdr, eventID)

	if err := b.publisher.Publish(topic, msg); err != nil {
		metrics.EventPublishErrors.WithLabelValues(topic).Inc()
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	metrics.EventsPublished.WithLabelValues(topic).Inc()
	return nil
}

// Subscribe returns a durable JetStream subscription for the topic.
func (b *natsBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.subscriber.Subscribe(ctx, topic)
}

// Close shuts down the bus: publisher and subscriber first, then the
// connection, then the embedded server when one is running.
func (b *natsBus) Close() error {
	var firstErr error
	if b.publisher != nil {
		if err := b.publisher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.subscriber != nil {
		if err := b.subscriber.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.closePartial()
	return firstErr
}

func (b *natsBus) closePartial() {
	if b.conn != nil {
		b.conn.Close()
	}
	b.shutdownServer()
}

func (b *natsBus) shutdownServer() {
	if b.server != nil {
		b.server.Shutdown()
		b.server.WaitForShutdown()
	}
}
