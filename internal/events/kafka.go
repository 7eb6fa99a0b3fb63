package events

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/mealhub/go-delivery-backend/internal/metrics"
)

// messageWriter is the slice of kafka.Writer the publisher needs; the
// indirection keeps the publish path testable without a broker.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher publishes JSON events to Kafka. Messages are keyed by order
// or entity id and hashed to partitions, which preserves per-order ordering
// while spreading load.
//
// Publishing is fire-and-forget from the caller's perspective: each write is
// capped by a timeout, and failures are logged and dropped. At-least-once
// delivery is provided by the broker acks (RequireOne); the caller never
// blocks on more than the bounded write.
type KafkaPublisher struct {
	orderWriter     messageWriter
	deliveryWriter  messageWriter
	analyticsWriter messageWriter
	timeout         time.Duration
	sink            *metrics.Sink
}

// NewKafkaPublisher builds a publisher for the given brokers. timeout caps
// each publish; values <= 0 fall back to 2s. sink counts dropped events and
// may be nil.
func NewKafkaPublisher(brokers []string, timeout time.Duration, sink *metrics.Sink) *KafkaPublisher {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &KafkaPublisher{
		orderWriter:     newWriter(brokers, TopicOrderEvents),
		deliveryWriter:  newWriter(brokers, TopicDeliveryEvents),
		analyticsWriter: newWriter(brokers, TopicAnalyticsEvents),
		timeout:         timeout,
		sink:            sink,
	}
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// PublishOrderEvent publishes ev to the order events topic keyed by order id.
// DRIVER_ASSIGNED additionally fans out to the delivery topic keyed by driver
// id, so dispatch consumers see a per-driver ordered stream without reading
// the full order firehose.
func (p *KafkaPublisher) PublishOrderEvent(ctx context.Context, ev OrderEvent) {
	p.publish(ctx, p.orderWriter, ev.OrderID, ev, ev.EventType)
	if ev.EventType == DriverAssigned && ev.DriverID != nil && p.deliveryWriter != nil {
		p.publish(ctx, p.deliveryWriter, *ev.DriverID, ev, ev.EventType)
	}
}

// PublishAnalyticsEvent publishes ev to the analytics topic keyed by entity id.
func (p *KafkaPublisher) PublishAnalyticsEvent(ctx context.Context, ev AnalyticsEvent) {
	p.publish(ctx, p.analyticsWriter, ev.EntityID, ev, ev.EventType)
}

// Close flushes and closes the underlying writers. Call during shutdown.
func (p *KafkaPublisher) Close() error {
	var first error
	for _, w := range []messageWriter{p.orderWriter, p.deliveryWriter, p.analyticsWriter} {
		if c, ok := w.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

func (p *KafkaPublisher) publish(ctx context.Context, w messageWriter, key string, payload any, eventType string) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("event serialization failed, dropping")
		p.dropped()
		return
	}

	// Detach from request cancellation: the state change already committed,
	// so an aborted request must not lose its event.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	msg := kafka.Message{Key: []byte(key), Value: data, Time: time.Now().UTC()}
	if err := w.WriteMessages(ctx, msg); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Str("key", key).Msg("event publish failed, dropping")
		p.dropped()
		return
	}
	log.Info().Str("event_type", eventType).Str("key", key).Msg("event published")
}

func (p *KafkaPublisher) dropped() {
	if p.sink != nil {
		p.sink.EventDropped()
	}
}
