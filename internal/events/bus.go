// Package events wires the entity.upserted notification used to invalidate
// the location resolver cache, without coupling the ingestion engine directly
// to that subscriber.
//
// By default the bus runs in-process over watermill's gochannel pubsub. When
// config.EventsConfig.NATSURL is set it instead publishes through
// watermill-nats/v2 onto a JetStream stream, so a detector or resolver
// running in a separate process can subscribe too.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/geobase/geobase/internal/config"
	"github.com/geobase/geobase/internal/metrics"
)

// TopicEntityUpserted carries the id of every entity the store accepted,
// whether from ingestion or the public write API.
const TopicEntityUpserted = "entity.upserted"

// Upserted is the payload published on TopicEntityUpserted.
type Upserted struct {
	EntityID string    `json:"entity_id"`
	Type     string    `json:"type"`
	HasGeom  bool      `json:"has_geom"`
	At       time.Time `json:"at"`
}

// Bus publishes and routes entity.upserted notifications.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router
	logger     watermill.LoggerAdapter
	natsConn   *natsgo.Conn
}

// watermillLogAdapter bridges zerolog into watermill's LoggerAdapter interface,
// the same shape the teacher's eventprocessor package wraps around slog.
type watermillLogAdapter struct {
	log zerolog.Logger
}

func (a watermillLogAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.log.Error().Err(err).Fields(map[string]interface{}(fields)).Msg(msg)
}
func (a watermillLogAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.Info().Fields(map[string]interface{}(fields)).Msg(msg)
}
func (a watermillLogAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}
func (a watermillLogAdapter) Trace(msg string, fields watermill.LogFields) {
	a.log.Trace().Fields(map[string]interface{}(fields)).Msg(msg)
}
func (a watermillLogAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillLogAdapter{log: a.log.With().Fields(map[string]interface{}(fields)).Logger()}
}

// New builds a Bus. With an empty cfg.NATSURL it uses an in-process
// gochannel; otherwise it connects to NATS and publishes onto JetStream.
func New(cfg config.EventsConfig, logger zerolog.Logger) (*Bus, error) {
	wmLogger := watermillLogAdapter{log: logger.With().Str("component", "events").Logger()}

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create event router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		Logger:          wmLogger,
	}
	router.AddMiddleware(retry.Middleware)

	if cfg.NATSURL == "" {
		pubSub := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
			Persistent:          false,
		}, wmLogger)
		return &Bus{publisher: pubSub, subscriber: pubSub, router: router, logger: wmLogger}, nil
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(10),
		natsgo.ReconnectWait(time.Second),
	}
	conn, err := natsgo.Connect(cfg.NATSURL, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	pub, err := wmnats.NewPublisher(wmnats.PublisherConfig{
		URL:       cfg.NATSURL,
		Marshaler: &wmnats.NATSMarshaler{},
		JetStream: wmnats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			TrackMsgId:    true,
		},
	}, wmLogger)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmnats.NewSubscriber(wmnats.SubscriberConfig{
		URL:         cfg.NATSURL,
		Unmarshaler: &wmnats.NATSMarshaler{},
		JetStream: wmnats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			DurablePrefix: "geobase",
		},
	}, wmLogger)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}

	return &Bus{publisher: pub, subscriber: sub, router: router, logger: wmLogger, natsConn: conn}, nil
}

// Publish emits an Upserted notification on TopicEntityUpserted.
func (b *Bus) Publish(ctx context.Context, evt Upserted) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := b.publisher.Publish(TopicEntityUpserted, msg); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	metrics.EventsPublished.WithLabelValues(TopicEntityUpserted).Inc()
	return nil
}

// Subscribe registers a handler under name consuming TopicEntityUpserted.
// Must be called before Run.
func (b *Bus) Subscribe(name string, handler func(ctx context.Context, evt Upserted) error) {
	b.router.AddNoPublisherHandler(name, TopicEntityUpserted, b.subscriber, func(msg *message.Message) error {
		var evt Upserted
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return fmt.Errorf("unmarshal event: %w", err)
		}
		metrics.EventsConsumed.WithLabelValues(TopicEntityUpserted, name).Inc()
		return handler(msg.Context(), evt)
	})
}

// Run blocks routing messages to subscribed handlers until ctx is canceled.
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Close shuts down the router, publisher, and any NATS connection.
func (b *Bus) Close() error {
	var firstErr error
	if err := b.router.Close(); err != nil {
		firstErr = err
	}
	if err := b.publisher.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if b.natsConn != nil {
		b.natsConn.Close()
	}
	return firstErr
}
