// Restaurant and catalog HTTP handlers.
//
// This file exposes REST endpoints for restaurant profiles and their menus:
//   - POST   /restaurants               (register)
//   - GET    /restaurants/{id}          (profile)
//   - PUT    /restaurants/{id}          (update profile)
//   - GET    /restaurants/{id}/menu     (menu, cache-backed)
//   - POST   /restaurants/{id}/items    (add a catalog item)
//   - GET    /items/{id}                (catalog item)
//   - PUT    /items/{id}                (update a catalog item)
//   - DELETE /items/{id}                (soft-delete a catalog item)
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mealhub/go-delivery-backend/internal/domain"
	"github.com/mealhub/go-delivery-backend/internal/services"
)

// RestaurantAPI defines the restaurant profile and menu operations consumed
// by HTTP handlers.
type RestaurantAPI interface {
	Create(ctx context.Context, ownerUserID string, in services.RestaurantInput) (*domain.Restaurant, error)
	Get(ctx context.Context, id string) (*domain.Restaurant, error)
	Update(ctx context.Context, id string, in services.RestaurantInput) (*domain.Restaurant, error)
	Menu(ctx context.Context, restaurantID string) ([]domain.FoodItem, error)
}

// FoodItemAPI defines the catalog item operations consumed by HTTP handlers.
type FoodItemAPI interface {
	Create(ctx context.Context, restaurantID string, in services.FoodItemInput) (*domain.FoodItem, error)
	Get(ctx context.Context, id string) (*domain.FoodItem, error)
	Update(ctx context.Context, id string, in services.FoodItemInput) (*domain.FoodItem, error)
	Delete(ctx context.Context, id string) error
}

// CreateRestaurant registers a new restaurant owned by the current user.
func (h *Handlers) CreateRestaurant(c *gin.Context) {
	var req services.RestaurantInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	r, err := h.restaurants.Create(c.Request.Context(), userID(c), req)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, r)
}

// GetRestaurant fetches a restaurant profile.
func (h *Handlers) GetRestaurant(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "restaurant id must be a UUID")
		return
	}

	r, err := h.restaurants.Get(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}

// UpdateRestaurant overwrites the mutable profile fields.
func (h *Handlers) UpdateRestaurant(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "restaurant id must be a UUID")
		return
	}

	var req services.RestaurantInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	r, err := h.restaurants.Update(c.Request.Context(), id, req)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}

// GetMenu returns the restaurant's current menu.
func (h *Handlers) GetMenu(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "restaurant id must be a UUID")
		return
	}

	menu, err := h.restaurants.Menu(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"restaurant_id": id, "items": menu})
}

// CreateFoodItem adds a catalog item to a restaurant.
func (h *Handlers) CreateFoodItem(c *gin.Context) {
	restaurantID := c.Param("id")
	if _, err := uuid.Parse(restaurantID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "restaurant id must be a UUID")
		return
	}

	var req services.FoodItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.Price.IsNegative() || req.Price.IsZero() {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "price must be positive")
		return
	}

	item, err := h.items.Create(c.Request.Context(), restaurantID, req)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, item)
}

// GetFoodItem fetches a single catalog item.
func (h *Handlers) GetFoodItem(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item id must be a UUID")
		return
	}

	item, err := h.items.Get(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, item)
}

// UpdateFoodItem overwrites the mutable fields of a catalog item.
func (h *Handlers) UpdateFoodItem(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item id must be a UUID")
		return
	}

	var req services.FoodItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.Price.IsNegative() || req.Price.IsZero() {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "price must be positive")
		return
	}

	item, err := h.items.Update(c.Request.Context(), id, req)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, item)
}

// DeleteFoodItem soft-deletes a catalog item.
func (h *Handlers) DeleteFoodItem(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item id must be a UUID")
		return
	}

	if err := h.items.Delete(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}
