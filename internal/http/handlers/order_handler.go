// Order HTTP handlers.
//
// This file exposes REST endpoints for order resources:
//   - POST   /orders               (place an order)
//   - GET    /orders               (list own orders, paginated)
//   - GET    /orders/{id}          (fetch one order)
//   - PUT    /orders/{id}/status   (advance the lifecycle)
//   - PUT    /orders/{id}/driver   (assign a driver at READY)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses. Order creation
// supports Idempotency-Key deduplication: a replayed key returns the
// originally created order instead of placing a second one.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mealhub/go-delivery-backend/internal/cache"
	"github.com/mealhub/go-delivery-backend/internal/domain"
	"github.com/mealhub/go-delivery-backend/internal/http/middleware"
	"github.com/mealhub/go-delivery-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// OrderAPI defines the order lifecycle operations consumed by HTTP handlers.
// Implementations must be safe for concurrent use and honor the provided
// context.
type OrderAPI interface {
	// Create places a new order for userID.
	Create(ctx context.Context, userID string, in services.CreateOrderInput) (*domain.Order, error)
	// Get fetches a single order.
	Get(ctx context.Context, id string) (*domain.Order, error)
	// ListForUser returns a page of the user's orders and the total count.
	ListForUser(ctx context.Context, userID string, page, pageSize int) ([]domain.Order, int64, error)
	// UpdateStatus advances the order to the next lifecycle state.
	UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus) (*domain.Order, error)
	// AssignDriver assigns a driver to a READY order.
	AssignDriver(ctx context.Context, orderID, driverID string) (*domain.Order, error)
}

// idempotencyTTL bounds how long a creation key dedupes retries.
const idempotencyTTL = 24 * time.Hour

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for orders, restaurants, catalog items,
// and drivers. It depends on abstract service interfaces to keep transport
// concerns separate from business logic. idem holds the idempotency key
// mappings for order creation; pass nil to disable deduplication.
type Handlers struct {
	orders      OrderAPI
	restaurants RestaurantAPI
	items       FoodItemAPI
	drivers     DriverAPI
	idem        cache.Store
}

// New constructs a Handlers instance bound to the given services.
func New(orders OrderAPI, restaurants RestaurantAPI, items FoodItemAPI, drivers DriverAPI, idem cache.Store) *Handlers {
	return &Handlers{orders: orders, restaurants: restaurants, items: items, drivers: drivers, idem: idem}
}

// userID extracts the authenticated user id from the Gin context (set by
// upstream middleware), falling back to the X-User-ID header and finally to
// "demo-user".
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// UpdateOrderStatusRequest is the JSON payload for advancing an order.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// AssignDriverRequest is the JSON payload for driver assignment.
type AssignDriverRequest struct {
	DriverID string `json:"driver_id" binding:"required"`
}

// OrderResponse is the API projection of an order, with the frozen line
// items decoded out of their storage form.
type OrderResponse struct {
	ID           string             `json:"id"`
	OrderNumber  string             `json:"order_number"`
	UserID       string             `json:"user_id"`
	RestaurantID string             `json:"restaurant_id"`
	DriverID     *string            `json:"driver_id,omitempty"`
	Items        []domain.OrderItem `json:"items"`
	Status       domain.OrderStatus `json:"status"`
	Address      string             `json:"address"`
	Latitude     float64            `json:"latitude"`
	Longitude    float64            `json:"longitude"`
	Amount       decimal.Decimal    `json:"amount"`
	CreatedAt    time.Time          `json:"created_at"`
	PreparedAt   *time.Time         `json:"prepared_at,omitempty"`
	DeliveredAt  *time.Time         `json:"delivered_at,omitempty"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListOrdersResponse wraps a page of orders and pagination information.
type ListOrdersResponse struct {
	Orders     []OrderResponse `json:"orders"`
	Pagination Pagination      `json:"pagination"`
}

func orderView(o *domain.Order) OrderResponse {
	var items []domain.OrderItem
	if err := json.Unmarshal([]byte(o.ItemsJSON), &items); err != nil {
		items = []domain.OrderItem{}
	}
	return OrderResponse{
		ID:           o.ID,
		OrderNumber:  o.OrderNumber,
		UserID:       o.UserID,
		RestaurantID: o.RestaurantID,
		DriverID:     o.DriverID,
		Items:        items,
		Status:       o.Status,
		Address:      o.Address,
		Latitude:     o.Latitude,
		Longitude:    o.Longitude,
		Amount:       o.Amount,
		CreatedAt:    o.CreatedAt,
		PreparedAt:   o.PreparedAt,
		DeliveredAt:  o.DeliveredAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = atoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = atoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// atoiDefault parses s as an int, returning def on empty or invalid input.
func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

//
// Handlers
//

// CreateOrder places a new order for the current user.
//
// When the request carries an Idempotency-Key that already completed, the
// previously created order is returned with 200 instead of placing a
// duplicate (201 marks a fresh creation).
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req services.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ctx := c.Request.Context()
	uid := userID(c)

	key, hasKey := middleware.GetIdempotencyKey(c)
	if hasKey && h.idem != nil {
		if prevID, err := h.idem.Get(ctx, IdempotencyCacheKey(uid, key)); err == nil {
			if prev, err := h.orders.Get(ctx, prevID); err == nil {
				ok(c, http.StatusOK, orderView(prev))
				return
			}
		}
	}

	o, err := h.orders.Create(ctx, uid, req)
	if err != nil {
		failService(c, err)
		return
	}

	if hasKey && h.idem != nil {
		// Best effort: a lost mapping only means a retried create is not
		// deduplicated.
		_ = h.idem.Set(ctx, IdempotencyCacheKey(uid, key), o.ID, idempotencyTTL)
	}

	ok(c, http.StatusCreated, orderView(o))
}

// GetOrder fetches a single order by id.
func (h *Handlers) GetOrder(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order id must be a UUID")
		return
	}

	o, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, orderView(o))
}

// ListOrders returns a page of the current user's orders, most recent first.
func (h *Handlers) ListOrders(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.orders.ListForUser(c.Request.Context(), userID(c), page, pageSize)
	if err != nil {
		failService(c, err)
		return
	}

	views := make([]OrderResponse, 0, len(items))
	for i := range items {
		views = append(views, orderView(&items[i]))
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListOrdersResponse{
		Orders: views,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// UpdateOrderStatus advances an order along its lifecycle.
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order id must be a UUID")
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}
	next, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown status "+strconv.Quote(req.Status))
		return
	}

	o, err := h.orders.UpdateStatus(c.Request.Context(), id, next)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, orderView(o))
}

// AssignDriver assigns a driver to a READY order and moves it out for
// delivery.
func (h *Handlers) AssignDriver(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order id must be a UUID")
		return
	}

	var req AssignDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "driver_id required")
		return
	}

	o, err := h.orders.AssignDriver(c.Request.Context(), id, req.DriverID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, orderView(o))
}

// IdempotencyCacheKey namespaces creation idempotency entries per user. The
// router's validator middleware and the creation handler must agree on it.
func IdempotencyCacheKey(uid, key string) string { return "idempotency:order:" + uid + ":" + key }
