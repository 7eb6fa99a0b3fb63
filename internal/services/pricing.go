// Package services – order pricing.
//
// The pricing engine validates each line item against catalog state and
// computes the order total. Catalog reads go through the cache layer; the
// database is only hit on a miss. Totals use decimal arithmetic throughout:
// unit prices are catalog decimals, and the computed total is frozen into
// the order together with the per-item prices, so later catalog changes
// never move a stored amount.
package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mealhub/go-delivery-backend/internal/domain"
)

// ItemInput is one requested line item: a catalog item reference and a
// quantity. Unit prices are never accepted from the caller.
type ItemInput struct {
	FoodItemID string `json:"food_item_id" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required"`
}

// price validates the requested items in declaration order and returns the
// frozen line items plus the computed total.
//
// Per item, the checks run in a fixed sequence so the caller always gets the
// most specific failure: existence, soft-deletion, availability, restaurant
// ownership, then quantity.
func (s *OrderService) price(ctx context.Context, restaurantID string, items []ItemInput) ([]domain.OrderItem, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, ErrEmptyOrder
	}

	frozen := make([]domain.OrderItem, 0, len(items))
	total := decimal.Zero

	for _, in := range items {
		item, err := s.catalogItem(ctx, in.FoodItemID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if item.Deleted {
			return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrItemDeleted, item.Name)
		}
		if !item.Available {
			return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrItemUnavailable, item.Name)
		}
		if item.RestaurantID != restaurantID {
			return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrItemWrongRestaurant, item.Name)
		}
		if in.Quantity < 1 {
			return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidQuantity, item.Name)
		}

		frozen = append(frozen, domain.OrderItem{
			FoodItemID: item.ID,
			Quantity:   in.Quantity,
			UnitPrice:  item.Price,
		})
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(in.Quantity))))
	}

	return frozen, total, nil
}
