package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/mealhub/go-delivery-backend/internal/cache"
	"github.com/mealhub/go-delivery-backend/internal/domain"
	"github.com/mealhub/go-delivery-backend/internal/http/middleware"
	"github.com/mealhub/go-delivery-backend/internal/services"
)

// fakeOrderAPI scripts each operation; unset funcs fail the call.
type fakeOrderAPI struct {
	create       func(ctx context.Context, userID string, in services.CreateOrderInput) (*domain.Order, error)
	get          func(ctx context.Context, id string) (*domain.Order, error)
	list         func(ctx context.Context, userID string, page, pageSize int) ([]domain.Order, int64, error)
	updateStatus func(ctx context.Context, orderID string, next domain.OrderStatus) (*domain.Order, error)
	assignDriver func(ctx context.Context, orderID, driverID string) (*domain.Order, error)
}

func (f *fakeOrderAPI) Create(ctx context.Context, userID string, in services.CreateOrderInput) (*domain.Order, error) {
	if f.create == nil {
		return nil, errors.New("unexpected Create")
	}
	return f.create(ctx, userID, in)
}

func (f *fakeOrderAPI) Get(ctx context.Context, id string) (*domain.Order, error) {
	if f.get == nil {
		return nil, errors.New("unexpected Get")
	}
	return f.get(ctx, id)
}

func (f *fakeOrderAPI) ListForUser(ctx context.Context, userID string, page, pageSize int) ([]domain.Order, int64, error) {
	if f.list == nil {
		return nil, 0, errors.New("unexpected ListForUser")
	}
	return f.list(ctx, userID, page, pageSize)
}

func (f *fakeOrderAPI) UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus) (*domain.Order, error) {
	if f.updateStatus == nil {
		return nil, errors.New("unexpected UpdateStatus")
	}
	return f.updateStatus(ctx, orderID, next)
}

func (f *fakeOrderAPI) AssignDriver(ctx context.Context, orderID, driverID string) (*domain.Order, error) {
	if f.assignDriver == nil {
		return nil, errors.New("unexpected AssignDriver")
	}
	return f.assignDriver(ctx, orderID, driverID)
}

// mapStore is a TTL-less in-memory cache.Store for idempotency tests.
type mapStore struct {
	mu sync.Mutex
	m  map[string]string
}

func newMapStore() *mapStore { return &mapStore{m: map[string]string{}} }

func (s *mapStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return "", errors.New("miss")
	}
	return v, nil
}

func (s *mapStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *mapStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

const testOrderID = "11111111-1111-4111-8111-111111111111"

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:           testOrderID,
		OrderNumber:  "ORD-20260314120000-ABCDEF12",
		UserID:       "u-1",
		RestaurantID: "22222222-2222-4222-8222-222222222222",
		ItemsJSON:    `[{"food_item_id":"f-1","quantity":2,"unit_price":"5.00"}]`,
		Status:       domain.StatusPending,
		Address:      "1 Main St",
		Amount:       decimal.RequireFromString("10.00"),
		CreatedAt:    time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func orderRouter(api OrderAPI, idem cache.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(api, nil, nil, nil, idem)
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.POST("/orders", h.CreateOrder)
	r.GET("/orders", h.ListOrders)
	r.GET("/orders/:id", h.GetOrder)
	r.PUT("/orders/:id/status", h.UpdateOrderStatus)
	r.PUT("/orders/:id/driver", h.AssignDriver)
	return r
}

func perform(r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateOrder_FreshAndReplay(t *testing.T) {
	created := 0
	api := &fakeOrderAPI{
		create: func(_ context.Context, uid string, in services.CreateOrderInput) (*domain.Order, error) {
			created++
			if uid != "u-1" {
				t.Errorf("userID = %q", uid)
			}
			o := sampleOrder()
			return o, nil
		},
		get: func(_ context.Context, id string) (*domain.Order, error) {
			if id != testOrderID {
				return nil, services.ErrOrderNotFound
			}
			return sampleOrder(), nil
		},
	}
	idem := newMapStore()
	r := orderRouter(api, idem)

	body := map[string]any{
		"restaurant_id": "22222222-2222-4222-8222-222222222222",
		"items":         []map[string]any{{"food_item_id": "f-1", "quantity": 2}},
		"address":       "1 Main St",
	}
	hdr := map[string]string{"X-User-ID": "u-1", "Idempotency-Key": "k-1"}

	w := perform(r, http.MethodPost, "/orders", body, hdr)
	if w.Code != http.StatusCreated {
		t.Fatalf("fresh create: %d %s", w.Code, w.Body.String())
	}
	var resp OrderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Quantity != 2 {
		t.Fatalf("items not decoded from storage form: %+v", resp.Items)
	}

	w = perform(r, http.MethodPost, "/orders", body, hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("replay: %d %s", w.Code, w.Body.String())
	}
	if created != 1 {
		t.Fatalf("service Create called %d times, want 1", created)
	}
}

func TestCreateOrder_InvalidBody(t *testing.T) {
	r := orderRouter(&fakeOrderAPI{}, nil)

	w := perform(r, http.MethodPost, "/orders", map[string]any{"items": []any{}}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var env ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Code != ErrCodeBadRequest {
		t.Fatalf("code = %q", env.Code)
	}
}

func TestGetOrder_IDValidationAndServiceErrors(t *testing.T) {
	cases := []struct {
		name       string
		id         string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{"malformed id", "not-a-uuid", nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"missing order", testOrderID, services.ErrOrderNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"conflict", testOrderID, services.ErrConflict, http.StatusConflict, ErrCodeConflict},
		{"business rule", testOrderID, fmt.Errorf("%w: PENDING -> DELIVERED", services.ErrInvalidTransition), http.StatusUnprocessableEntity, ErrCodeBusinessRule},
		{"opaque failure", testOrderID, errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeOrderAPI{
				get: func(context.Context, string) (*domain.Order, error) { return nil, tc.serviceErr },
			}
			r := orderRouter(api, nil)

			w := perform(r, http.MethodGet, "/orders/"+tc.id, nil, nil)
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.wantStatus, w.Body.String())
			}
			var env ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", env.Code, tc.wantCode)
			}
			if env.RequestID == "" && tc.wantStatus >= 500 {
				t.Fatalf("5xx envelope missing request id")
			}
			if tc.name == "opaque failure" && env.Message != "internal server error" {
				t.Fatalf("internal error leaked detail: %q", env.Message)
			}
		})
	}
}

func TestUpdateOrderStatus_RejectsUnknownStatus(t *testing.T) {
	r := orderRouter(&fakeOrderAPI{}, nil)

	w := perform(r, http.MethodPut, "/orders/"+testOrderID+"/status",
		map[string]string{"status": "SHIPPED"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}
}

func TestListOrders_PaginationClamps(t *testing.T) {
	var gotPage, gotSize int
	api := &fakeOrderAPI{
		list: func(_ context.Context, _ string, page, pageSize int) ([]domain.Order, int64, error) {
			gotPage, gotSize = page, pageSize
			return nil, 0, nil
		},
	}
	r := orderRouter(api, nil)

	cases := []struct {
		query          string
		wantPage, want int
	}{
		{"", 1, 20},
		{"?page=0&page_size=0", 1, 20},
		{"?page=-3&page_size=1000", 1, 100},
		{"?page=4&page_size=7", 4, 7},
		{"?page=abc&page_size=xyz", 1, 20},
	}
	for _, tc := range cases {
		w := perform(r, http.MethodGet, "/orders"+tc.query, nil, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%q: status %d", tc.query, w.Code)
		}
		if gotPage != tc.wantPage || gotSize != tc.want {
			t.Fatalf("%q: page=%d size=%d, want %d/%d", tc.query, gotPage, gotSize, tc.wantPage, tc.want)
		}
	}
}

func TestAssignDriver_RequiresDriverID(t *testing.T) {
	r := orderRouter(&fakeOrderAPI{}, nil)

	w := perform(r, http.MethodPut, "/orders/"+testOrderID+"/driver", map[string]string{}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}
}
