// Package events defines the domain events emitted by the order and catalog
// services and the publisher contract they depend on. The core only depends
// on the Publisher interface; the Kafka implementation in kafka.go is the
// production event sink.
//
// Delivery contract: at-least-once, best effort. Publication happens after
// the state change is durably committed, never before. A failed publish is
// logged and dropped; it must never fail or block the commit it follows.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Topic names, one per event family.
const (
	TopicOrderEvents     = "order-events"
	TopicDeliveryEvents  = "delivery-events"
	TopicAnalyticsEvents = "analytics-events"
)

// Order event types.
const (
	OrderCreated       = "ORDER_CREATED"
	OrderStatusChanged = "ORDER_STATUS_CHANGED"
	DriverAssigned     = "DRIVER_ASSIGNED"
)

// Analytics event types, emitted on catalog mutations.
const (
	RestaurantUpdated = "RESTAURANT_UPDATED"
	MenuUpdated       = "MENU_UPDATED"
)

// OrderEvent is emitted exactly once per successful order mutation. Events
// for the same order are published in transition order; no ordering holds
// across different orders (they hash to different partitions by order id).
type OrderEvent struct {
	EventType    string          `json:"event_type"`
	OrderID      string          `json:"order_id"`
	OrderNumber  string          `json:"order_number"`
	UserID       string          `json:"user_id"`
	RestaurantID string          `json:"restaurant_id"`
	DriverID     *string         `json:"driver_id,omitempty"`
	Status       string          `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	Timestamp    time.Time       `json:"timestamp"`
}

// AnalyticsEvent is a loosely-typed event for downstream analytics consumers,
// emitted on catalog and restaurant mutations.
type AnalyticsEvent struct {
	EventType  string         `json:"event_type"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Metrics    map[string]any `json:"metrics,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Publisher is the event sink contract consumed by the service layer.
// Implementations must bound their own timeouts and must not return transport
// errors to callers on the order commit path; they report failures through
// logs and counters instead.
type Publisher interface {
	PublishOrderEvent(ctx context.Context, ev OrderEvent)
	PublishAnalyticsEvent(ctx context.Context, ev AnalyticsEvent)
}

// Nop is a Publisher that drops everything. Used when no broker is configured
// and as a default in tests.
type Nop struct{}

// PublishOrderEvent drops the event.
func (Nop) PublishOrderEvent(ctx context.Context, ev OrderEvent) {}

// PublishAnalyticsEvent drops the event.
func (Nop) PublishAnalyticsEvent(ctx context.Context, ev AnalyticsEvent) {}
