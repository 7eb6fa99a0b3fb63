// Package services – DriverService
//
// DriverService owns driver profiles and their fast-changing telemetry.
// Profiles are durable rows; live location and the availability view are
// cache-only with short TTLs, because stale telemetry is worse than absent
// telemetry. An expired location means "position unknown", not an error in
// the backend.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mealhub/go-delivery-backend/internal/cache"
	"github.com/mealhub/go-delivery-backend/internal/domain"
	"github.com/mealhub/go-delivery-backend/internal/metrics"
)

// DriverDirectory is the full persistence contract for drivers, extending
// the lookup-only view used by order assignment.
type DriverDirectory interface {
	DriverRepo
	CreateDriver(ctx context.Context, db *gorm.DB, d *domain.Driver) error
	SetDriverAvailability(ctx context.Context, db *gorm.DB, id string, available bool) error
}

// DriverLocation is the cache-only live position projection.
type DriverLocation struct {
	DriverID   string    `json:"driver_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ErrLocationUnknown reports that no fresh position exists for the driver.
// Positions expire on their own; consumers treat this as "unknown", never as
// a failure.
var ErrLocationUnknown = errors.New("driver location unknown")

// DriverService manages driver profiles, availability, and live location.
type DriverService struct {
	DB      *gorm.DB
	Drivers DriverDirectory
	Cache   cache.Store
	Metrics *metrics.Sink

	now func() time.Time
}

// NewDriverService constructs a DriverService.
func NewDriverService(db *gorm.DB, drivers DriverDirectory, store cache.Store, sink *metrics.Sink) *DriverService {
	return &DriverService{DB: db, Drivers: drivers, Cache: store, Metrics: sink, now: time.Now}
}

// DriverInput carries the driver profile fields.
type DriverInput struct {
	Name          string `json:"name" binding:"required"`
	Phone         string `json:"phone"`
	VehicleNumber string `json:"vehicle_number"`
}

// Create registers a new driver, available by default.
func (s *DriverService) Create(ctx context.Context, in DriverInput) (*domain.Driver, error) {
	d := &domain.Driver{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Phone:         in.Phone,
		VehicleNumber: in.VehicleNumber,
		Available:     true,
	}
	if err := s.Drivers.CreateDriver(ctx, s.DB, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Get returns the driver profile.
func (s *DriverService) Get(ctx context.Context, id string) (*domain.Driver, error) {
	d, err := s.Drivers.GetDriver(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDriverNotFound
	}
	return d, err
}

// UpdateLocation records the driver's current position in the cache with the
// short location TTL. The driver must exist; the position itself never
// touches the database.
func (s *DriverService) UpdateLocation(ctx context.Context, driverID string, lat, lon float64) (*DriverLocation, error) {
	if _, err := s.Get(ctx, driverID); err != nil {
		return nil, err
	}

	loc := &DriverLocation{
		DriverID:   driverID,
		Latitude:   lat,
		Longitude:  lon,
		RecordedAt: s.now().UTC(),
	}
	data, err := json.Marshal(loc)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.Set(ctx, cache.DriverLocationKey(driverID), string(data), cache.DriverLocationTTL); err != nil {
		return nil, err
	}
	return loc, nil
}

// Location returns the driver's last known position, or ErrLocationUnknown
// once the entry has expired or was never recorded.
func (s *DriverService) Location(ctx context.Context, driverID string) (*DriverLocation, error) {
	raw, err := s.Cache.Get(ctx, cache.DriverLocationKey(driverID))
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrLocationUnknown
	}
	if err != nil {
		return nil, err
	}
	var loc DriverLocation
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		return nil, ErrLocationUnknown
	}
	return &loc, nil
}

// SetAvailability flips the durable availability flag and refreshes the
// short-lived cached view dispatch reads.
func (s *DriverService) SetAvailability(ctx context.Context, driverID string, available bool) error {
	if err := s.Drivers.SetDriverAvailability(ctx, s.DB, driverID, available); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDriverNotFound
		}
		return err
	}

	data, _ := json.Marshal(available)
	if err := s.Cache.Set(ctx, cache.DriverAvailabilityKey(driverID), string(data), cache.DriverAvailabilityTTL); err != nil {
		cache.Invalidate(ctx, s.Cache, cache.DriverAvailabilityKey(driverID))
	}
	return nil
}

// Available reports the driver's availability, served cache-aside with the
// one-minute availability TTL.
func (s *DriverService) Available(ctx context.Context, driverID string) (bool, error) {
	avail, hit, err := cache.GetOrLoad(ctx, s.Cache, cache.DriverAvailabilityKey(driverID), cache.DriverAvailabilityTTL, func(ctx context.Context) (bool, error) {
		d, err := s.Drivers.GetDriver(ctx, s.DB, driverID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrDriverNotFound
		}
		if err != nil {
			return false, err
		}
		return d.Available, nil
	})
	if err != nil {
		return false, err
	}
	if hit {
		s.Metrics.CacheHit("driver_availability")
	} else {
		s.Metrics.CacheMiss("driver_availability")
	}
	return avail, nil
}
