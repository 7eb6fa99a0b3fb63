// Package services – FoodItemService
//
// FoodItemService owns the catalog item lifecycle. The invalidation rule for
// every write is unconditional: the item projection and the owning
// restaurant's menu projection are both dropped, whether or not they were
// cached, so a menu read after any catalog write always rebuilds from
// storage.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mealhub/go-delivery-backend/internal/cache"
	"github.com/mealhub/go-delivery-backend/internal/domain"
	"github.com/mealhub/go-delivery-backend/internal/events"
	"github.com/mealhub/go-delivery-backend/internal/metrics"
)

// FoodItemRepo defines the persistence contract for catalog items.
type FoodItemRepo interface {
	CreateFoodItem(ctx context.Context, db *gorm.DB, item *domain.FoodItem) error
	GetFoodItem(ctx context.Context, db *gorm.DB, id string) (*domain.FoodItem, error)
	UpdateFoodItem(ctx context.Context, db *gorm.DB, item *domain.FoodItem) error
	SoftDeleteFoodItem(ctx context.Context, db *gorm.DB, id string) error
}

// FoodItemService manages catalog items for restaurants.
type FoodItemService struct {
	DB          *gorm.DB
	Items       FoodItemRepo
	Restaurants RestaurantRepo
	Cache       cache.Store
	Events      events.Publisher
	Metrics     *metrics.Sink

	ItemTTL time.Duration

	now func() time.Time
}

// NewFoodItemService constructs a FoodItemService.
func NewFoodItemService(db *gorm.DB, items FoodItemRepo, restaurants RestaurantRepo, store cache.Store, pub events.Publisher, sink *metrics.Sink, itemTTL time.Duration) *FoodItemService {
	return &FoodItemService{
		DB:          db,
		Items:       items,
		Restaurants: restaurants,
		Cache:       store,
		Events:      pub,
		Metrics:     sink,
		ItemTTL:     itemTTL,
		now:         time.Now,
	}
}

// FoodItemInput carries the mutable catalog item fields.
type FoodItemInput struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	ImgURL      string          `json:"img_url"`
	Price       decimal.Decimal `json:"price" binding:"required"`
	Available   bool            `json:"available"`
}

// Create adds a catalog item to an existing restaurant and invalidates the
// restaurant's menu projection.
func (s *FoodItemService) Create(ctx context.Context, restaurantID string, in FoodItemInput) (*domain.FoodItem, error) {
	if _, err := s.Restaurants.GetRestaurant(ctx, s.DB, restaurantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRestaurantNotFound
		}
		return nil, err
	}

	item := &domain.FoodItem{
		ID:           uuid.NewString(),
		RestaurantID: restaurantID,
		Name:         in.Name,
		Description:  in.Description,
		ImgURL:       in.ImgURL,
		Price:        in.Price,
		Available:    in.Available,
	}
	if err := s.Items.CreateFoodItem(ctx, s.DB, item); err != nil {
		return nil, err
	}

	s.invalidate(ctx, item)
	s.menuEvent(ctx, item)
	return item, nil
}

// Get returns the catalog item, served cache-aside. Soft-deleted items are
// not found from the API's point of view.
func (s *FoodItemService) Get(ctx context.Context, id string) (*domain.FoodItem, error) {
	item, hit, err := cache.GetOrLoad(ctx, s.Cache, cache.FoodItemKey(id), s.ItemTTL, func(ctx context.Context) (*domain.FoodItem, error) {
		got, err := s.Items.GetFoodItem(ctx, s.DB, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return got, err
	})
	if err != nil {
		return nil, err
	}
	s.observe(hit)
	if item.Deleted {
		return nil, ErrItemNotFound
	}
	return item, nil
}

// Update overwrites the mutable fields of a live catalog item and
// invalidates both the item and menu projections.
func (s *FoodItemService) Update(ctx context.Context, id string, in FoodItemInput) (*domain.FoodItem, error) {
	current, err := s.Items.GetFoodItem(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}

	item := &domain.FoodItem{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		ImgURL:      in.ImgURL,
		Price:       in.Price,
		Available:   in.Available,
	}
	if err := s.Items.UpdateFoodItem(ctx, s.DB, item); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	item.RestaurantID = current.RestaurantID

	s.invalidate(ctx, item)
	s.menuEvent(ctx, item)
	return s.Items.GetFoodItem(ctx, s.DB, id)
}

// Delete soft-deletes a catalog item. The row survives so historical orders
// keep resolving their line items; listings and pricing stop seeing it
// immediately.
func (s *FoodItemService) Delete(ctx context.Context, id string) error {
	current, err := s.Items.GetFoodItem(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrItemNotFound
	}
	if err != nil {
		return err
	}

	if err := s.Items.SoftDeleteFoodItem(ctx, s.DB, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrItemNotFound
		}
		return err
	}

	s.invalidate(ctx, current)
	s.menuEvent(ctx, current)
	return nil
}

// invalidate drops the item projection and the owning restaurant's menu
// projection, unconditionally.
func (s *FoodItemService) invalidate(ctx context.Context, item *domain.FoodItem) {
	cache.Invalidate(ctx, s.Cache, cache.FoodItemKey(item.ID))
	cache.Invalidate(ctx, s.Cache, cache.RestaurantMenuKey(item.RestaurantID))
}

func (s *FoodItemService) menuEvent(ctx context.Context, item *domain.FoodItem) {
	s.Events.PublishAnalyticsEvent(ctx, events.AnalyticsEvent{
		EventType:  events.MenuUpdated,
		EntityType: "food_item",
		EntityID:   item.ID,
		Metrics:    map[string]any{"restaurant_id": item.RestaurantID},
		Timestamp:  s.now().UTC(),
	})
}

func (s *FoodItemService) observe(hit bool) {
	if hit {
		s.Metrics.CacheHit("fooditem")
	} else {
		s.Metrics.CacheMiss("fooditem")
	}
}
