// Package metrics defines the business metrics sink shared by the service
// layer. It is an injected dependency rather than a set of global singletons,
// so tests can register against their own registry and services stay free of
// package-level state.
//
// HTTP transport metrics (request counts, latency) live in the HTTP
// middleware; this package covers domain counters only.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink records business events. All methods are safe for concurrent use; the
// underlying Prometheus collectors mutate atomically.
type Sink struct {
	ordersCreated   prometheus.Counter
	ordersDelivered prometheus.Counter
	ordersCancelled prometheus.Counter

	deliveryDuration prometheus.Histogram

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	rateAllowed  prometheus.Counter
	rateRejected prometheus.Counter
	rateDegraded prometheus.Counter

	publishDropped prometheus.Counter
}

// New builds a Sink and registers its collectors with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Sink {
	s := &Sink{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created.",
		}),
		ordersDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_delivered_total",
			Help: "Total number of orders delivered.",
		}),
		ordersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_cancelled_total",
			Help: "Total number of orders cancelled.",
		}),
		deliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "order_delivery_duration_seconds",
			Help:    "Elapsed time from order creation to delivery.",
			Buckets: []float64{300, 600, 900, 1200, 1800, 2700, 3600, 5400, 7200},
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Cache hits by entity kind.",
		}, []string{"entity"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Cache misses by entity kind.",
		}, []string{"entity"}),
		rateAllowed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ratelimit_allowed_total",
			Help: "Requests admitted by the rate limiter.",
		}),
		rateRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ratelimit_rejected_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		rateDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ratelimit_degraded_total",
			Help: "Rate limit decisions taken while the bucket store was unreachable.",
		}),
		publishDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Domain events dropped after a failed publish.",
		}),
	}
	reg.MustRegister(
		s.ordersCreated, s.ordersDelivered, s.ordersCancelled,
		s.deliveryDuration, s.cacheHits, s.cacheMisses,
		s.rateAllowed, s.rateRejected, s.rateDegraded, s.publishDropped,
	)
	return s
}

// NewNop returns a Sink wired to a throwaway registry, for tests and callers
// that do not care about metrics.
func NewNop() *Sink { return New(prometheus.NewRegistry()) }

// OrderCreated increments the created-orders counter.
func (s *Sink) OrderCreated() { s.ordersCreated.Inc() }

// OrderDelivered increments the delivered counter and records the elapsed
// delivery duration.
func (s *Sink) OrderDelivered(elapsed time.Duration) {
	s.ordersDelivered.Inc()
	s.deliveryDuration.Observe(elapsed.Seconds())
}

// OrderCancelled increments the cancelled-orders counter.
func (s *Sink) OrderCancelled() { s.ordersCancelled.Inc() }

// CacheHit records a cache hit for the given entity kind (e.g. "menu").
func (s *Sink) CacheHit(entity string) { s.cacheHits.WithLabelValues(entity).Inc() }

// CacheMiss records a cache miss for the given entity kind.
func (s *Sink) CacheMiss(entity string) { s.cacheMisses.WithLabelValues(entity).Inc() }

// RateAllowed records an admitted request.
func (s *Sink) RateAllowed() { s.rateAllowed.Inc() }

// RateRejected records a rejected request.
func (s *Sink) RateRejected() { s.rateRejected.Inc() }

// RateDegraded records a decision made while the bucket store was down.
func (s *Sink) RateDegraded() { s.rateDegraded.Inc() }

// EventDropped records a domain event lost to a failed publish.
func (s *Sink) EventDropped() { s.publishDropped.Inc() }
