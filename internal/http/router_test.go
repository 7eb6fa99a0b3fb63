package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	redis "github.com/go-redis/redis/v8"

	"github.com/mealhub/go-delivery-backend/internal/cache"
	"github.com/mealhub/go-delivery-backend/internal/config"
	"github.com/mealhub/go-delivery-backend/internal/events"
	"github.com/mealhub/go-delivery-backend/internal/metrics"
	"github.com/mealhub/go-delivery-backend/internal/ratelimit"
	"github.com/mealhub/go-delivery-backend/internal/repo"
)

func testConfig() config.Config {
	var cfg config.Config
	cfg.APIBasePath = "/api/v1"
	cfg.OTEL.ServiceName = "delivery-test"
	cfg.Cache.RestaurantTTL = time.Minute
	cfg.Cache.MenuTTL = time.Minute
	return cfg
}

// newTestRouter builds a full engine against a throwaway SQLite file, a
// miniredis-backed cache, and a local token bucket of the given capacity.
func newTestRouter(t *testing.T, capacity int64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "router.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	RegisterRoutes(r, Deps{
		DB:      db,
		Cache:   cache.NewRedisStore(client, time.Second),
		Limiter: ratelimit.NewLocalLimiter(capacity, time.Minute, time.Minute),
		Events:  events.Nop{},
		Metrics: metrics.NewNop(),
	}, testConfig())
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
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

func decodeInto(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	r := newTestRouter(t, 100)

	w := doJSON(t, r, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("health body = %s", w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/metrics", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "# HELP") {
		t.Fatalf("metrics body missing exposition text")
	}
}

func TestNoRouteAndNoMethodEnvelopes(t *testing.T) {
	r := newTestRouter(t, 100)

	w := doJSON(t, r, http.MethodGet, "/api/v1/nope", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	var env map[string]string
	decodeInto(t, w, &env)
	if env["code"] != "not_found" || env["request_id"] == "" {
		t.Fatalf("envelope = %v", env)
	}

	w = doJSON(t, r, http.MethodDelete, "/api/v1/orders", nil, nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", w.Code)
	}
	decodeInto(t, w, &env)
	if env["code"] != "method_not_allowed" {
		t.Fatalf("envelope = %v", env)
	}
}

// seedCatalog creates an open restaurant with one item and returns their ids.
func seedCatalog(t *testing.T, r *gin.Engine) (restaurantID, itemID string) {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/v1/restaurants", map[string]any{
		"name": "Trattoria", "city": "Naples", "open": true,
	}, map[string]string{"X-User-ID": "owner-1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create restaurant: %d %s", w.Code, w.Body.String())
	}
	var rest struct {
		ID string `json:"id"`
	}
	decodeInto(t, w, &rest)

	w = doJSON(t, r, http.MethodPost, "/api/v1/restaurants/"+rest.ID+"/items", map[string]any{
		"name": "Margherita", "price": "5.00", "available": true,
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create item: %d %s", w.Code, w.Body.String())
	}
	var item struct {
		ID string `json:"id"`
	}
	decodeInto(t, w, &item)
	return rest.ID, item.ID
}

func TestOrderLifecycleEndToEnd(t *testing.T) {
	r := newTestRouter(t, 1000)
	restID, itemID := seedCatalog(t, r)
	user := map[string]string{"X-User-ID": "u-1"}

	w := doJSON(t, r, http.MethodPost, "/api/v1/orders", map[string]any{
		"restaurant_id": restID,
		"items":         []map[string]any{{"food_item_id": itemID, "quantity": 2}},
		"address":       "1 Main St",
	}, user)
	if w.Code != http.StatusCreated {
		t.Fatalf("create order: %d %s", w.Code, w.Body.String())
	}
	var order struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Amount string `json:"amount"`
	}
	decodeInto(t, w, &order)
	if order.Status != "PENDING" {
		t.Fatalf("status = %s", order.Status)
	}
	if order.Amount != "10.00" {
		t.Fatalf("amount = %s", order.Amount)
	}

	for _, next := range []string{"CONFIRMED", "PREPARING", "READY"} {
		w = doJSON(t, r, http.MethodPut, "/api/v1/orders/"+order.ID+"/status",
			map[string]string{"status": next}, user)
		if w.Code != http.StatusOK {
			t.Fatalf("transition to %s: %d %s", next, w.Code, w.Body.String())
		}
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/drivers", map[string]any{"name": "Dana"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create driver: %d %s", w.Code, w.Body.String())
	}
	var driver struct {
		ID string `json:"id"`
	}
	decodeInto(t, w, &driver)

	w = doJSON(t, r, http.MethodPut, "/api/v1/orders/"+order.ID+"/driver",
		map[string]string{"driver_id": driver.ID}, user)
	if w.Code != http.StatusOK {
		t.Fatalf("assign driver: %d %s", w.Code, w.Body.String())
	}
	var assigned struct {
		Status   string  `json:"status"`
		DriverID *string `json:"driver_id"`
	}
	decodeInto(t, w, &assigned)
	if assigned.Status != "OUT_FOR_DELIVERY" || assigned.DriverID == nil || *assigned.DriverID != driver.ID {
		t.Fatalf("assigned = %+v", assigned)
	}

	w = doJSON(t, r, http.MethodPut, "/api/v1/orders/"+order.ID+"/status",
		map[string]string{"status": "DELIVERED"}, user)
	if w.Code != http.StatusOK {
		t.Fatalf("deliver: %d %s", w.Code, w.Body.String())
	}
	var delivered struct {
		Status      string  `json:"status"`
		DeliveredAt *string `json:"delivered_at"`
	}
	decodeInto(t, w, &delivered)
	if delivered.Status != "DELIVERED" || delivered.DeliveredAt == nil {
		t.Fatalf("delivered = %+v", delivered)
	}

	// Terminal state admits no further edges.
	w = doJSON(t, r, http.MethodPut, "/api/v1/orders/"+order.ID+"/status",
		map[string]string{"status": "CANCELLED"}, user)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("terminal transition: %d %s", w.Code, w.Body.String())
	}
	var env map[string]string
	decodeInto(t, w, &env)
	if env["code"] != "business_rule_violation" {
		t.Fatalf("envelope = %v", env)
	}

	// The list reflects the order under the owning user only.
	w = doJSON(t, r, http.MethodGet, "/api/v1/orders", nil, user)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	var page struct {
		Orders     []struct{ ID string } `json:"orders"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	decodeInto(t, w, &page)
	if page.Pagination.Total != 1 || len(page.Orders) != 1 || page.Orders[0].ID != order.ID {
		t.Fatalf("page = %+v", page)
	}
}

func TestCreateOrderIdempotentReplay(t *testing.T) {
	r := newTestRouter(t, 1000)
	restID, itemID := seedCatalog(t, r)
	hdr := map[string]string{"X-User-ID": "u-2", "Idempotency-Key": "k-123"}
	body := map[string]any{
		"restaurant_id": restID,
		"items":         []map[string]any{{"food_item_id": itemID, "quantity": 1}},
		"address":       "1 Main St",
	}

	w := doJSON(t, r, http.MethodPost, "/api/v1/orders", body, hdr)
	if w.Code != http.StatusCreated {
		t.Fatalf("first create: %d %s", w.Code, w.Body.String())
	}
	var first struct {
		ID string `json:"id"`
	}
	decodeInto(t, w, &first)

	w = doJSON(t, r, http.MethodPost, "/api/v1/orders", body, hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("replay: %d %s", w.Code, w.Body.String())
	}
	var second struct {
		ID string `json:"id"`
	}
	decodeInto(t, w, &second)
	if second.ID != first.ID {
		t.Fatalf("replay created a new order: %s vs %s", second.ID, first.ID)
	}

	// A different key places a distinct order.
	hdr["Idempotency-Key"] = "k-456"
	w = doJSON(t, r, http.MethodPost, "/api/v1/orders", body, hdr)
	if w.Code != http.StatusCreated {
		t.Fatalf("new key: %d %s", w.Code, w.Body.String())
	}

	// Malformed keys are rejected before any work happens.
	hdr["Idempotency-Key"] = "bad key!"
	w = doJSON(t, r, http.MethodPost, "/api/v1/orders", body, hdr)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad key: %d %s", w.Code, w.Body.String())
	}
}

func TestRateLimitExceeded(t *testing.T) {
	r := newTestRouter(t, 2)
	hdr := map[string]string{"X-User-ID": "u-3"}

	for i := 0; i < 2; i++ {
		if w := doJSON(t, r, http.MethodGet, "/api/v1/orders", nil, hdr); w.Code != http.StatusOK {
			t.Fatalf("request %d: %d %s", i, w.Code, w.Body.String())
		}
	}

	w := doJSON(t, r, http.MethodGet, "/api/v1/orders", nil, hdr)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	var env map[string]string
	decodeInto(t, w, &env)
	if env["code"] != "too_many_requests" || env["request_id"] == "" {
		t.Fatalf("envelope = %v", env)
	}

	// A different principal has its own bucket.
	if w := doJSON(t, r, http.MethodGet, "/api/v1/orders", nil, map[string]string{"X-User-ID": "u-4"}); w.Code != http.StatusOK {
		t.Fatalf("other user limited: %d", w.Code)
	}
}

func TestSecurityAndCORSHeaders(t *testing.T) {
	r := newTestRouter(t, 100)

	w := doJSON(t, r, http.MethodGet, "/api/v1/orders", nil, map[string]string{"X-User-ID": "u-5"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff")
	}
	if h.Get("X-Frame-Options") != "DENY" {
		t.Fatalf("missing frame options")
	}
	if h.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("ACAO = %q", h.Get("Access-Control-Allow-Origin"))
	}
	if h.Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
}
