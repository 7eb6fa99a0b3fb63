// Package services – RestaurantService
//
// RestaurantService owns restaurant profiles and menu reads. Profiles and
// menus are the hottest read paths in the system, so both are served
// cache-aside; every profile write invalidates the profile projection in the
// same request.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mealhub/go-delivery-backend/internal/cache"
	"github.com/mealhub/go-delivery-backend/internal/domain"
	"github.com/mealhub/go-delivery-backend/internal/events"
	"github.com/mealhub/go-delivery-backend/internal/metrics"
)

// RestaurantRepo defines the persistence contract for restaurant profiles
// and menu listings.
type RestaurantRepo interface {
	CreateRestaurant(ctx context.Context, db *gorm.DB, r *domain.Restaurant) error
	GetRestaurant(ctx context.Context, db *gorm.DB, id string) (*domain.Restaurant, error)
	UpdateRestaurant(ctx context.Context, db *gorm.DB, r *domain.Restaurant) error
	ListMenu(ctx context.Context, db *gorm.DB, restaurantID string) ([]domain.FoodItem, error)
}

// RestaurantService serves restaurant profiles and menus.
type RestaurantService struct {
	DB      *gorm.DB
	Repo    RestaurantRepo
	Cache   cache.Store
	Events  events.Publisher
	Metrics *metrics.Sink

	ProfileTTL time.Duration
	MenuTTL    time.Duration

	now func() time.Time
}

// NewRestaurantService constructs a RestaurantService.
func NewRestaurantService(db *gorm.DB, rr RestaurantRepo, store cache.Store, pub events.Publisher, sink *metrics.Sink, profileTTL, menuTTL time.Duration) *RestaurantService {
	return &RestaurantService{
		DB:         db,
		Repo:       rr,
		Cache:      store,
		Events:     pub,
		Metrics:    sink,
		ProfileTTL: profileTTL,
		MenuTTL:    menuTTL,
		now:        time.Now,
	}
}

// RestaurantInput carries the mutable profile fields for create and update.
type RestaurantInput struct {
	Name        string  `json:"name" binding:"required"`
	City        string  `json:"city"`
	State       string  `json:"state"`
	ZipCode     string  `json:"zip_code"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	OpeningTime string  `json:"opening_time"`
	ClosingTime string  `json:"closing_time"`
	ImgURL      string  `json:"img_url"`
	Open        bool    `json:"open"`
}

// Create registers a new restaurant owned by ownerUserID.
func (s *RestaurantService) Create(ctx context.Context, ownerUserID string, in RestaurantInput) (*domain.Restaurant, error) {
	r := &domain.Restaurant{
		ID:          uuid.NewString(),
		OwnerUserID: ownerUserID,
		Name:        in.Name,
		City:        in.City,
		State:       in.State,
		ZipCode:     in.ZipCode,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		OpeningTime: in.OpeningTime,
		ClosingTime: in.ClosingTime,
		ImgURL:      in.ImgURL,
		Open:        in.Open,
	}
	if err := s.Repo.CreateRestaurant(ctx, s.DB, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the restaurant profile, served cache-aside with the profile
// TTL.
func (s *RestaurantService) Get(ctx context.Context, id string) (*domain.Restaurant, error) {
	r, hit, err := cache.GetOrLoad(ctx, s.Cache, cache.RestaurantKey(id), s.ProfileTTL, func(ctx context.Context) (*domain.Restaurant, error) {
		got, err := s.Repo.GetRestaurant(ctx, s.DB, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRestaurantNotFound
		}
		return got, err
	})
	if err != nil {
		return nil, err
	}
	s.observe("restaurant", hit)
	return r, nil
}

// Update overwrites the mutable profile fields, invalidates the cached
// projection, and emits a RESTAURANT_UPDATED analytics event.
func (s *RestaurantService) Update(ctx context.Context, id string, in RestaurantInput) (*domain.Restaurant, error) {
	r := &domain.Restaurant{
		ID:          id,
		Name:        in.Name,
		City:        in.City,
		State:       in.State,
		ZipCode:     in.ZipCode,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		OpeningTime: in.OpeningTime,
		ClosingTime: in.ClosingTime,
		ImgURL:      in.ImgURL,
		Open:        in.Open,
	}
	if err := s.Repo.UpdateRestaurant(ctx, s.DB, r); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRestaurantNotFound
		}
		return nil, err
	}

	cache.Invalidate(ctx, s.Cache, cache.RestaurantKey(id))
	s.Events.PublishAnalyticsEvent(ctx, events.AnalyticsEvent{
		EventType:  events.RestaurantUpdated,
		EntityType: "restaurant",
		EntityID:   id,
		Timestamp:  s.now().UTC(),
	})

	return s.Repo.GetRestaurant(ctx, s.DB, id)
}

// Menu returns the restaurant's non-deleted catalog items, served cache-aside
// with the menu TTL. The restaurant must exist; the existence check shares
// the cached profile projection.
func (s *RestaurantService) Menu(ctx context.Context, restaurantID string) ([]domain.FoodItem, error) {
	if _, err := s.Get(ctx, restaurantID); err != nil {
		return nil, err
	}

	menu, hit, err := cache.GetOrLoad(ctx, s.Cache, cache.RestaurantMenuKey(restaurantID), s.MenuTTL, func(ctx context.Context) ([]domain.FoodItem, error) {
		return s.Repo.ListMenu(ctx, s.DB, restaurantID)
	})
	if err != nil {
		return nil, err
	}
	s.observe("menu", hit)
	if menu == nil {
		menu = []domain.FoodItem{}
	}
	return menu, nil
}

func (s *RestaurantService) observe(entity string, hit bool) {
	if hit {
		s.Metrics.CacheHit(entity)
	} else {
		s.Metrics.CacheMiss(entity)
	}
}
