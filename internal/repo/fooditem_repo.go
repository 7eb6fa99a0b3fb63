// Package repo – FoodItem persistence.
//
// Catalog items are soft-deleted: DeleteFoodItem flips the Deleted flag so
// historical orders keep resolving their line items. Menu listings exclude
// deleted rows; direct lookups return them so the pricing engine can report
// "no longer available" instead of a bare not-found.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/mealhub/go-delivery-backend/internal/domain"
)

// CreateFoodItem inserts a new catalog item row.
func CreateFoodItem(ctx context.Context, db *gorm.DB, item *domain.FoodItem) error {
	return db.WithContext(ctx).Create(item).Error
}

// GetFoodItem fetches a catalog item by id, including soft-deleted rows, or
// ErrNotFound.
func GetFoodItem(ctx context.Context, db *gorm.DB, id string) (*domain.FoodItem, error) {
	var item domain.FoodItem
	if err := db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ListMenu returns the non-deleted catalog items of a restaurant, ordered by
// name. Unavailable items are included; availability is a display and pricing
// concern, not a listing one.
func ListMenu(ctx context.Context, db *gorm.DB, restaurantID string) ([]domain.FoodItem, error) {
	var out []domain.FoodItem
	err := db.WithContext(ctx).
		Where("restaurant_id = ? AND deleted = ?", restaurantID, false).
		Order("name asc").
		Find(&out).Error
	return out, err
}

// UpdateFoodItem persists changes to an existing catalog item. Returns
// ErrNotFound when the row does not exist or is soft-deleted.
func UpdateFoodItem(ctx context.Context, db *gorm.DB, item *domain.FoodItem) error {
	res := db.WithContext(ctx).
		Model(&domain.FoodItem{}).
		Where("id = ? AND deleted = ?", item.ID, false).
		Updates(map[string]any{
			"name":        item.Name,
			"description": item.Description,
			"img_url":     item.ImgURL,
			"price":       item.Price,
			"available":   item.Available,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SoftDeleteFoodItem marks a catalog item deleted. Idempotent on already-
// deleted rows is NOT provided: deleting twice reports ErrNotFound, matching
// the listing behavior.
func SoftDeleteFoodItem(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.FoodItem{}).
		Where("id = ? AND deleted = ?", id, false).
		Update("deleted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
