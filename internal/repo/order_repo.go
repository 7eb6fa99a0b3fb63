// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Order model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. The single piece of concurrency
// machinery here is the optimistic version check in UpdateOrderStatus, which
// the service layer relies on to serialize transitions per order.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mealhub/go-delivery-backend/internal/domain"
)

// CreateOrder inserts a fully-populated order row. The service layer owns id,
// order number, and total computation; this function only persists.
func CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	return db.WithContext(ctx).Create(o).Error
}

// GetOrder fetches a single order by id, or ErrNotFound.
func GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	var o domain.Order
	if err := db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// CountOrdersByUser returns the total number of orders placed by userID.
func CountOrdersByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListOrdersByUserPage returns a page of orders for userID, most recent first.
func ListOrdersByUserPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// OrderStatusUpdate carries the column changes applied by a transition.
// Optional timestamps and driver assignment are only written when set.
type OrderStatusUpdate struct {
	Status      domain.OrderStatus
	DriverID    *string
	PreparedAt  *time.Time
	DeliveredAt *time.Time
}

// UpdateOrderStatus applies a status transition with an optimistic version
// check-and-set: the UPDATE only matches when the row still carries
// fromVersion, and it increments the version in the same statement. Two
// concurrent transitions from the same prior state therefore cannot both
// succeed; the loser gets ErrVersionConflict (or ErrNotFound when the order
// id itself is unknown).
func UpdateOrderStatus(ctx context.Context, db *gorm.DB, id string, fromVersion int64, upd OrderStatusUpdate) error {
	cols := map[string]any{
		"status":  upd.Status,
		"version": fromVersion + 1,
	}
	if upd.DriverID != nil {
		cols["driver_id"] = *upd.DriverID
	}
	if upd.PreparedAt != nil {
		cols["prepared_at"] = *upd.PreparedAt
	}
	if upd.DeliveredAt != nil {
		cols["delivered_at"] = *upd.DeliveredAt
	}

	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND version = ?", id, fromVersion).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish a lost race from a missing order.
		var n int64
		if err := db.WithContext(ctx).Model(&domain.Order{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}
