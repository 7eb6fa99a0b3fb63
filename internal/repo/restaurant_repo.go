package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/mealhub/go-delivery-backend/internal/domain"
)

// CreateRestaurant inserts a new restaurant row.
func CreateRestaurant(ctx context.Context, db *gorm.DB, r *domain.Restaurant) error {
	return db.WithContext(ctx).Create(r).Error
}

// GetRestaurant fetches a restaurant by id, or ErrNotFound.
func GetRestaurant(ctx context.Context, db *gorm.DB, id string) (*domain.Restaurant, error) {
	var r domain.Restaurant
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateRestaurant persists profile changes. Returns ErrNotFound when the row
// does not exist.
func UpdateRestaurant(ctx context.Context, db *gorm.DB, r *domain.Restaurant) error {
	res := db.WithContext(ctx).
		Model(&domain.Restaurant{}).
		Where("id = ?", r.ID).
		Updates(map[string]any{
			"name":         r.Name,
			"city":         r.City,
			"state":        r.State,
			"zip_code":     r.ZipCode,
			"latitude":     r.Latitude,
			"longitude":    r.Longitude,
			"opening_time": r.OpeningTime,
			"closing_time": r.ClosingTime,
			"img_url":      r.ImgURL,
			"open":         r.Open,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
