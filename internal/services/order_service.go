// Package services – OrderService
//
// This file implements the OrderService, which owns the order lifecycle: it
// creates orders (restaurant-open check, pricing, total computation), drives
// status transitions through the legal edge table, and assigns drivers. Every
// successful mutation emits exactly one domain event after the row is
// durably committed, and transitions on the same order are serialized via an
// optimistic version check-and-set in the repository.
//
// Service-level errors (e.g. ErrInvalidTransition, ErrConflict) are returned
// for predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mealhub/go-delivery-backend/internal/cache"
	"github.com/mealhub/go-delivery-backend/internal/domain"
	"github.com/mealhub/go-delivery-backend/internal/events"
	"github.com/mealhub/go-delivery-backend/internal/metrics"
	"github.com/mealhub/go-delivery-backend/internal/repo"
)

// OrderRepo defines the repository contract required by OrderService.
type OrderRepo interface {
	// CreateOrder persists a fully-populated order row.
	CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error

	// GetOrder fetches an order by id.
	GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error)

	// CountOrdersByUser returns the user's order count for pagination.
	CountOrdersByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error)

	// ListOrdersByUserPage returns a page of the user's orders.
	ListOrdersByUserPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Order, error)

	// UpdateOrderStatus applies a transition iff the row still carries
	// fromVersion.
	UpdateOrderStatus(ctx context.Context, db *gorm.DB, id string, fromVersion int64, upd repo.OrderStatusUpdate) error
}

// CatalogRepo defines the catalog reads the pricing engine needs. Both are
// wrapped in cache read-throughs by the service.
type CatalogRepo interface {
	GetRestaurant(ctx context.Context, db *gorm.DB, id string) (*domain.Restaurant, error)
	GetFoodItem(ctx context.Context, db *gorm.DB, id string) (*domain.FoodItem, error)
}

// DriverRepo defines the driver lookup used by assignment.
type DriverRepo interface {
	GetDriver(ctx context.Context, db *gorm.DB, id string) (*domain.Driver, error)
}

// OrderService coordinates order creation, transitions, and driver
// assignment. All collaborator round trips (cache, event sink) are bounded by
// the collaborators themselves; a cache or sink outage never fails an order
// mutation.
type OrderService struct {
	DB      *gorm.DB
	Orders  OrderRepo
	Catalog CatalogRepo
	Drivers DriverRepo
	Cache   cache.Store
	Events  events.Publisher
	Metrics *metrics.Sink

	// RestaurantTTL and ItemTTL bound the catalog projections read during
	// pricing; OrderTTL bounds the order projection served by Get.
	RestaurantTTL time.Duration
	ItemTTL       time.Duration
	OrderTTL      time.Duration

	now func() time.Time
}

// NewOrderService constructs an OrderService with the given collaborators.
// restaurantTTL and itemTTL come from config; the order projection TTL uses
// the package default.
func NewOrderService(db *gorm.DB, orders OrderRepo, catalog CatalogRepo, drivers DriverRepo, store cache.Store, pub events.Publisher, sink *metrics.Sink, restaurantTTL, itemTTL time.Duration) *OrderService {
	return &OrderService{
		DB:            db,
		Orders:        orders,
		Catalog:       catalog,
		Drivers:       drivers,
		Cache:         store,
		Events:        pub,
		Metrics:       sink,
		RestaurantTTL: restaurantTTL,
		ItemTTL:       itemTTL,
		OrderTTL:      cache.OrderTTL,
		now:           time.Now,
	}
}

// CreateOrderInput is the validated payload for order creation. The total is
// never part of the input; it is always computed server-side.
type CreateOrderInput struct {
	RestaurantID string      `json:"restaurant_id" binding:"required"`
	Items        []ItemInput `json:"items" binding:"required"`
	Address      string      `json:"address" binding:"required"`
	Latitude     float64     `json:"latitude"`
	Longitude    float64     `json:"longitude"`
}

// Create places a new order for userID. The restaurant must exist and be
// open; every line item is validated and priced from catalog state; the
// order starts in PENDING with the computed total and the unit prices frozen
// into its serialized items.
func (s *OrderService) Create(ctx context.Context, userID string, in CreateOrderInput) (*domain.Order, error) {
	rest, err := s.restaurant(ctx, in.RestaurantID)
	if err != nil {
		return nil, err
	}
	if !rest.Open {
		return nil, ErrRestaurantClosed
	}

	items, total, err := s.price(ctx, rest.ID, in.Items)
	if err != nil {
		return nil, err
	}

	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("serialize order items: %w", err)
	}

	now := s.now().UTC()
	o := &domain.Order{
		ID:           uuid.NewString(),
		OrderNumber:  s.orderNumber(now),
		UserID:       userID,
		RestaurantID: rest.ID,
		ItemsJSON:    string(itemsJSON),
		Status:       domain.StatusPending,
		Address:      in.Address,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		Amount:       total,
		CreatedAt:    now,
	}
	if err := s.Orders.CreateOrder(ctx, s.DB, o); err != nil {
		return nil, err
	}

	s.Metrics.OrderCreated()
	s.publishOrderEvent(ctx, events.OrderCreated, o)
	return o, nil
}

// Get returns the order projection for id, served cache-aside: transitions
// invalidate the projection so a read never observes a state past one
// invalidation cycle.
func (s *OrderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, hit, err := cache.GetOrLoad(ctx, s.Cache, cache.OrderKey(id), s.OrderTTL, func(ctx context.Context) (*domain.Order, error) {
		got, err := s.Orders.GetOrder(ctx, s.DB, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return got, err
	})
	if err != nil {
		return nil, err
	}
	s.observeCache("order", hit)
	return o, nil
}

// ListForUser returns a page of the user's orders, most recent first, plus
// the total count. Invalid page/pageSize values fall back to defaults.
func (s *OrderService) ListForUser(ctx context.Context, userID string, page, pageSize int) ([]domain.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Orders.CountOrdersByUser(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Order{}, 0, nil
	}

	items, err := s.Orders.ListOrdersByUserPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// UpdateStatus moves an order to next, enforcing the transition table.
// Concurrent transitions on the same order are serialized by the version
// check: the loser of the race is retried once against the fresh state and
// surfaces ErrConflict when the retry also loses (a retry that lands on an
// illegal edge fails with ErrInvalidTransition, which is the correct outcome
// for "someone already moved it").
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus) (*domain.Order, error) {
	for attempt := 0; ; attempt++ {
		o, err := s.Orders.GetOrder(ctx, s.DB, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		if err != nil {
			return nil, err
		}
		if !o.Status.CanTransition(next) {
			return nil, transitionError(o.Status, next)
		}

		upd := repo.OrderStatusUpdate{Status: next}
		now := s.now().UTC()
		switch next {
		case domain.StatusReady:
			upd.PreparedAt = &now
		case domain.StatusDelivered:
			upd.DeliveredAt = &now
		}

		err = s.Orders.UpdateOrderStatus(ctx, s.DB, o.ID, o.Version, upd)
		if errors.Is(err, repo.ErrVersionConflict) {
			if attempt == 0 {
				continue // reload and retry once against the fresh state
			}
			return nil, ErrConflict
		}
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		if err != nil {
			return nil, err
		}

		o.Status = next
		o.Version++
		if upd.PreparedAt != nil {
			o.PreparedAt = upd.PreparedAt
		}
		if upd.DeliveredAt != nil {
			o.DeliveredAt = upd.DeliveredAt
		}

		switch next {
		case domain.StatusDelivered:
			s.Metrics.OrderDelivered(now.Sub(o.CreatedAt))
		case domain.StatusCancelled:
			s.Metrics.OrderCancelled()
		}

		cache.Invalidate(ctx, s.Cache, cache.OrderKey(o.ID))
		s.publishOrderEvent(ctx, events.OrderStatusChanged, o)
		return o, nil
	}
}

// AssignDriver assigns driverID to a READY order and moves it to
// OUT_FOR_DELIVERY as one atomic step: the assignment and the status change
// land in the same version-checked UPDATE, so assignment without progression
// cannot happen.
func (s *OrderService) AssignDriver(ctx context.Context, orderID, driverID string) (*domain.Order, error) {
	if _, err := s.Drivers.GetDriver(ctx, s.DB, driverID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		o, err := s.Orders.GetOrder(ctx, s.DB, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		if err != nil {
			return nil, err
		}
		if o.Status != domain.StatusReady {
			return nil, fmt.Errorf("%w (current status %s)", ErrDriverAssignment, o.Status)
		}

		upd := repo.OrderStatusUpdate{Status: domain.StatusOutForDelivery, DriverID: &driverID}
		err = s.Orders.UpdateOrderStatus(ctx, s.DB, o.ID, o.Version, upd)
		if errors.Is(err, repo.ErrVersionConflict) {
			if attempt == 0 {
				continue
			}
			return nil, ErrConflict
		}
		if err != nil {
			return nil, err
		}

		o.Status = domain.StatusOutForDelivery
		o.DriverID = &driverID
		o.Version++

		cache.Invalidate(ctx, s.Cache, cache.OrderKey(o.ID))
		s.publishOrderEvent(ctx, events.DriverAssigned, o)
		return o, nil
	}
}

// restaurant reads a restaurant profile cache-aside with the profile TTL.
func (s *OrderService) restaurant(ctx context.Context, id string) (*domain.Restaurant, error) {
	rest, hit, err := cache.GetOrLoad(ctx, s.Cache, cache.RestaurantKey(id), s.RestaurantTTL, func(ctx context.Context) (*domain.Restaurant, error) {
		got, err := s.Catalog.GetRestaurant(ctx, s.DB, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRestaurantNotFound
		}
		return got, err
	})
	if err != nil {
		return nil, err
	}
	s.observeCache("restaurant", hit)
	return rest, nil
}

// catalogItem reads a catalog item cache-aside with the item TTL. Deleted
// rows are returned so pricing can report the precise failure.
func (s *OrderService) catalogItem(ctx context.Context, id string) (*domain.FoodItem, error) {
	item, hit, err := cache.GetOrLoad(ctx, s.Cache, cache.FoodItemKey(id), s.ItemTTL, func(ctx context.Context) (*domain.FoodItem, error) {
		got, err := s.Catalog.GetFoodItem(ctx, s.DB, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return got, err
	})
	if err != nil {
		return nil, err
	}
	s.observeCache("fooditem", hit)
	return item, nil
}

func (s *OrderService) observeCache(entity string, hit bool) {
	if hit {
		s.Metrics.CacheHit(entity)
	} else {
		s.Metrics.CacheMiss(entity)
	}
}

// publishOrderEvent emits the single per-mutation domain event. It runs
// after the row is committed; the publisher owns timeout and drop semantics.
func (s *OrderService) publishOrderEvent(ctx context.Context, eventType string, o *domain.Order) {
	s.Events.PublishOrderEvent(ctx, events.OrderEvent{
		EventType:    eventType,
		OrderID:      o.ID,
		OrderNumber:  o.OrderNumber,
		UserID:       o.UserID,
		RestaurantID: o.RestaurantID,
		DriverID:     o.DriverID,
		Status:       string(o.Status),
		Amount:       o.Amount,
		Timestamp:    s.now().UTC(),
	})
}

// orderNumber generates the human-readable unique order number.
func (s *OrderService) orderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102150405"), suffix)
}

// transitionError names the attempted edge.
func transitionError(from, to domain.OrderStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
