package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/mealhub/go-delivery-backend/internal/domain"
)

// CreateDriver inserts a new driver row.
func CreateDriver(ctx context.Context, db *gorm.DB, d *domain.Driver) error {
	return db.WithContext(ctx).Create(d).Error
}

// GetDriver fetches a driver by id, or ErrNotFound.
func GetDriver(ctx context.Context, db *gorm.DB, id string) (*domain.Driver, error) {
	var d domain.Driver
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// SetDriverAvailability flips the durable availability flag. The short-lived
// availability view consumed by dispatch lives in the cache layer; this row
// is the fallback source of truth.
func SetDriverAvailability(ctx context.Context, db *gorm.DB, id string, available bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Driver{}).
		Where("id = ?", id).
		Update("available", available)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
