// Package services defines the business logic for orders, restaurants,
// catalog items, and drivers. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// The sentinels follow the failure taxonomy used across the API surface:
// not-found, validation, business-rule violation, and conflict. Translation
// into HTTP status codes is performed at the handler layer.
package services

import "errors"

// Not-found errors (missing entity).
var (
	// ErrOrderNotFound indicates the requested order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrRestaurantNotFound indicates the targeted restaurant does not exist.
	ErrRestaurantNotFound = errors.New("restaurant not found")

	// ErrItemNotFound indicates a referenced catalog item does not exist.
	ErrItemNotFound = errors.New("food item not found")

	// ErrDriverNotFound indicates the referenced driver does not exist.
	ErrDriverNotFound = errors.New("driver not found")
)

// Validation errors (malformed or cross-referenced input).
var (
	// ErrInvalidQuantity is returned when a line item quantity is below 1.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")

	// ErrItemWrongRestaurant is returned when a line item belongs to a
	// different restaurant than the order targets.
	ErrItemWrongRestaurant = errors.New("food item does not belong to the selected restaurant")

	// ErrEmptyOrder is returned when an order carries no line items.
	ErrEmptyOrder = errors.New("order must contain at least one item")
)

// Business-rule violations (legal input, illegal state).
var (
	// ErrRestaurantClosed rejects order creation against a closed restaurant.
	ErrRestaurantClosed = errors.New("restaurant is currently closed")

	// ErrItemDeleted is returned for soft-deleted catalog items.
	ErrItemDeleted = errors.New("food item is no longer available")

	// ErrItemUnavailable is returned for items marked unavailable.
	ErrItemUnavailable = errors.New("food item is currently unavailable")

	// ErrInvalidTransition rejects a status edge missing from the transition
	// table. Wrapped instances name the attempted edge.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDriverAssignment rejects driver assignment on an order that is not
	// READY.
	ErrDriverAssignment = errors.New("order must be READY before assigning a driver")
)

// ErrConflict is surfaced when a concurrent transition wins the optimistic
// race and the internal retry cannot recover.
var ErrConflict = errors.New("order was modified concurrently")
