package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/mealhub/go-delivery-backend/internal/cache"
	"github.com/mealhub/go-delivery-backend/internal/domain"
	"github.com/mealhub/go-delivery-backend/internal/events"
	"github.com/mealhub/go-delivery-backend/internal/repo"
)

// Shared in-memory fakes for the service tests. The fakes ignore the *gorm.DB
// argument; persistence semantics (not-found, version check-and-set) are
// reproduced in memory.

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order

	// beforeUpdate runs inside UpdateOrderStatus before the version check,
	// letting tests interleave a competing writer.
	beforeUpdate func(r *fakeOrderRepo)
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]domain.Order)}
}

func (r *fakeOrderRepo) CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = *o
	return nil
}

func (r *fakeOrderRepo) GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := o
	return &cp, nil
}

func (r *fakeOrderRepo) CountOrdersByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, o := range r.orders {
		if o.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *fakeOrderRepo) ListOrdersByUserPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []domain.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			all = append(all, o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *fakeOrderRepo) UpdateOrderStatus(ctx context.Context, db *gorm.DB, id string, fromVersion int64, upd repo.OrderStatusUpdate) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate(r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	if o.Version != fromVersion {
		return repo.ErrVersionConflict
	}
	o.Status = upd.Status
	o.Version = fromVersion + 1
	if upd.DriverID != nil {
		o.DriverID = upd.DriverID
	}
	if upd.PreparedAt != nil {
		o.PreparedAt = upd.PreparedAt
	}
	if upd.DeliveredAt != nil {
		o.DeliveredAt = upd.DeliveredAt
	}
	r.orders[id] = o
	return nil
}

// bumpVersion simulates a competing transition winning the race.
func (r *fakeOrderRepo) bumpVersion(id string, status domain.OrderStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[id]
	o.Version++
	if status != "" {
		o.Status = status
	}
	r.orders[id] = o
}

type fakeCatalog struct {
	restaurants map[string]domain.Restaurant
	items       map[string]domain.FoodItem
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		restaurants: make(map[string]domain.Restaurant),
		items:       make(map[string]domain.FoodItem),
	}
}

func (c *fakeCatalog) GetRestaurant(ctx context.Context, db *gorm.DB, id string) (*domain.Restaurant, error) {
	r, ok := c.restaurants[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := r
	return &cp, nil
}

func (c *fakeCatalog) GetFoodItem(ctx context.Context, db *gorm.DB, id string) (*domain.FoodItem, error) {
	it, ok := c.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := it
	return &cp, nil
}

func (c *fakeCatalog) CreateRestaurant(ctx context.Context, db *gorm.DB, r *domain.Restaurant) error {
	c.restaurants[r.ID] = *r
	return nil
}

func (c *fakeCatalog) UpdateRestaurant(ctx context.Context, db *gorm.DB, r *domain.Restaurant) error {
	cur, ok := c.restaurants[r.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	upd := *r
	upd.OwnerUserID = cur.OwnerUserID
	c.restaurants[r.ID] = upd
	return nil
}

func (c *fakeCatalog) ListMenu(ctx context.Context, db *gorm.DB, restaurantID string) ([]domain.FoodItem, error) {
	var out []domain.FoodItem
	for _, it := range c.items {
		if it.RestaurantID == restaurantID && !it.Deleted {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *fakeCatalog) CreateFoodItem(ctx context.Context, db *gorm.DB, item *domain.FoodItem) error {
	c.items[item.ID] = *item
	return nil
}

func (c *fakeCatalog) UpdateFoodItem(ctx context.Context, db *gorm.DB, item *domain.FoodItem) error {
	cur, ok := c.items[item.ID]
	if !ok || cur.Deleted {
		return gorm.ErrRecordNotFound
	}
	upd := *item
	upd.RestaurantID = cur.RestaurantID
	c.items[item.ID] = upd
	return nil
}

func (c *fakeCatalog) SoftDeleteFoodItem(ctx context.Context, db *gorm.DB, id string) error {
	cur, ok := c.items[id]
	if !ok || cur.Deleted {
		return gorm.ErrRecordNotFound
	}
	cur.Deleted = true
	c.items[id] = cur
	return nil
}

type fakeDrivers struct {
	drivers map[string]domain.Driver
}

func newFakeDrivers() *fakeDrivers {
	return &fakeDrivers{drivers: make(map[string]domain.Driver)}
}

func (d *fakeDrivers) GetDriver(ctx context.Context, db *gorm.DB, id string) (*domain.Driver, error) {
	dr, ok := d.drivers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := dr
	return &cp, nil
}

func (d *fakeDrivers) CreateDriver(ctx context.Context, db *gorm.DB, dr *domain.Driver) error {
	d.drivers[dr.ID] = *dr
	return nil
}

func (d *fakeDrivers) SetDriverAvailability(ctx context.Context, db *gorm.DB, id string, available bool) error {
	dr, ok := d.drivers[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	dr.Available = available
	d.drivers[id] = dr
	return nil
}

// capturingPublisher records every published event.
type capturingPublisher struct {
	mu        sync.Mutex
	order     []events.OrderEvent
	analytics []events.AnalyticsEvent
}

func (p *capturingPublisher) PublishOrderEvent(ctx context.Context, ev events.OrderEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.order = append(p.order, ev)
}

func (p *capturingPublisher) PublishAnalyticsEvent(ctx context.Context, ev events.AnalyticsEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.analytics = append(p.analytics, ev)
}

func (p *capturingPublisher) orderEvents() []events.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.OrderEvent, len(p.order))
	copy(out, p.order)
	return out
}

// memStore is a TTL-less in-memory cache.Store.
type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemStore() *memStore { return &memStore{data: make(map[string]string)} }

func (s *memStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (s *memStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
