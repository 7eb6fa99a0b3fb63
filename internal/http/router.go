// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/mealhub/go-delivery-backend/internal/cache"
	"github.com/mealhub/go-delivery-backend/internal/config"
	"github.com/mealhub/go-delivery-backend/internal/domain"
	"github.com/mealhub/go-delivery-backend/internal/events"
	"github.com/mealhub/go-delivery-backend/internal/http/handlers"
	"github.com/mealhub/go-delivery-backend/internal/http/middleware"
	"github.com/mealhub/go-delivery-backend/internal/metrics"
	"github.com/mealhub/go-delivery-backend/internal/ratelimit"
	"github.com/mealhub/go-delivery-backend/internal/repo"
	"github.com/mealhub/go-delivery-backend/internal/services"
)

// Deps bundles the injected infrastructure the router needs. Cache, Limiter,
// Events, and Metrics must be non-nil; callers without a backend pass the
// package no-op implementations (cache.Disabled, events.Nop, a local
// limiter).
type Deps struct {
	DB      *gorm.DB
	Cache   cache.Store
	Limiter ratelimit.Limiter
	Events  events.Publisher
	Metrics *metrics.Sink
}

// orderRepoShim adapts the repository free functions to the
// services.OrderRepo interface. This keeps services decoupled from the
// concrete repo package while reusing existing functions.
type orderRepoShim struct{}

func (orderRepoShim) CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	return repo.CreateOrder(ctx, db, o)
}

func (orderRepoShim) GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	return repo.GetOrder(ctx, db, id)
}

func (orderRepoShim) CountOrdersByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountOrdersByUser(ctx, db, userID)
}

func (orderRepoShim) ListOrdersByUserPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Order, error) {
	return repo.ListOrdersByUserPage(ctx, db, userID, offset, limit)
}

func (orderRepoShim) UpdateOrderStatus(ctx context.Context, db *gorm.DB, id string, fromVersion int64, upd repo.OrderStatusUpdate) error {
	return repo.UpdateOrderStatus(ctx, db, id, fromVersion, upd)
}

// catalogRepoShim adapts the restaurant and food item repository functions.
// It satisfies services.CatalogRepo, services.RestaurantRepo, and
// services.FoodItemRepo at once, so a single value wires all catalog
// consumers.
type catalogRepoShim struct{}

func (catalogRepoShim) CreateRestaurant(ctx context.Context, db *gorm.DB, r *domain.Restaurant) error {
	return repo.CreateRestaurant(ctx, db, r)
}

func (catalogRepoShim) GetRestaurant(ctx context.Context, db *gorm.DB, id string) (*domain.Restaurant, error) {
	return repo.GetRestaurant(ctx, db, id)
}

func (catalogRepoShim) UpdateRestaurant(ctx context.Context, db *gorm.DB, r *domain.Restaurant) error {
	return repo.UpdateRestaurant(ctx, db, r)
}

func (catalogRepoShim) ListMenu(ctx context.Context, db *gorm.DB, restaurantID string) ([]domain.FoodItem, error) {
	return repo.ListMenu(ctx, db, restaurantID)
}

func (catalogRepoShim) CreateFoodItem(ctx context.Context, db *gorm.DB, item *domain.FoodItem) error {
	return repo.CreateFoodItem(ctx, db, item)
}

func (catalogRepoShim) GetFoodItem(ctx context.Context, db *gorm.DB, id string) (*domain.FoodItem, error) {
	return repo.GetFoodItem(ctx, db, id)
}

func (catalogRepoShim) UpdateFoodItem(ctx context.Context, db *gorm.DB, item *domain.FoodItem) error {
	return repo.UpdateFoodItem(ctx, db, item)
}

func (catalogRepoShim) SoftDeleteFoodItem(ctx context.Context, db *gorm.DB, id string) error {
	return repo.SoftDeleteFoodItem(ctx, db, id)
}

// driverRepoShim adapts the driver repository functions to
// services.DriverDirectory.
type driverRepoShim struct{}

func (driverRepoShim) CreateDriver(ctx context.Context, db *gorm.DB, d *domain.Driver) error {
	return repo.CreateDriver(ctx, db, d)
}

func (driverRepoShim) GetDriver(ctx context.Context, db *gorm.DB, id string) (*domain.Driver, error) {
	return repo.GetDriver(ctx, db, id)
}

func (driverRepoShim) SetDriverAvailability(ctx context.Context, db *gorm.DB, id string, available bool) error {
	return repo.SetDriverAvailability(ctx, db, id, available)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and
// rate limiting, CORS and security headers, health and metrics endpoints, and
// then mounts the versioned public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics (and the unthrottled /metrics, /health endpoints)
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and security headers
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction (orders carry customer PII)
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// Compress JSON responses; the Prometheus handler negotiates its own
	// encoding.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 6) Prometheus metrics; /metrics and /health stay outside the limiter
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// 7) Idempotency validation (before rate limiting so replays bypass it)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, userID, key string, _ time.Time) (bool, error) {
			if _, err := d.Cache.Get(ctx, handlers.IdempotencyCacheKey(userID, key)); err != nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per user/IP
	r.Use(middleware.RateLimit(d.Limiter, d.Metrics, middleware.KeyByUserOrIP()))

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps
		// tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist.
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and the request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Dependency injection: services ← repo/db/cache/events/metrics
	orderSvc := services.NewOrderService(
		d.DB, orderRepoShim{}, catalogRepoShim{}, driverRepoShim{},
		d.Cache, d.Events, d.Metrics,
		cfg.Cache.RestaurantTTL, cfg.Cache.MenuTTL,
	)
	restSvc := services.NewRestaurantService(
		d.DB, catalogRepoShim{}, d.Cache, d.Events, d.Metrics,
		cfg.Cache.RestaurantTTL, cfg.Cache.MenuTTL,
	)
	itemSvc := services.NewFoodItemService(
		d.DB, catalogRepoShim{}, catalogRepoShim{}, d.Cache, d.Events, d.Metrics,
		cfg.Cache.MenuTTL,
	)
	driverSvc := services.NewDriverService(d.DB, driverRepoShim{}, d.Cache, d.Metrics)

	h := handlers.New(orderSvc, restSvc, itemSvc, driverSvc, d.Cache)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Orders
		api.POST("/orders", h.CreateOrder)
		api.GET("/orders", h.ListOrders)
		api.GET("/orders/:id", h.GetOrder)
		api.PUT("/orders/:id/status", h.UpdateOrderStatus)
		api.PUT("/orders/:id/driver", h.AssignDriver)

		// Restaurants and menus
		api.POST("/restaurants", h.CreateRestaurant)
		api.GET("/restaurants/:id", h.GetRestaurant)
		api.PUT("/restaurants/:id", h.UpdateRestaurant)
		api.GET("/restaurants/:id/menu", h.GetMenu)
		api.POST("/restaurants/:id/items", h.CreateFoodItem)

		// Catalog items
		api.GET("/items/:id", h.GetFoodItem)
		api.PUT("/items/:id", h.UpdateFoodItem)
		api.DELETE("/items/:id", h.DeleteFoodItem)

		// Drivers
		api.POST("/drivers", h.CreateDriver)
		api.GET("/drivers/:id", h.GetDriver)
		api.PUT("/drivers/:id/location", h.UpdateDriverLocation)
		api.GET("/drivers/:id/location", h.GetDriverLocation)
		api.PUT("/drivers/:id/availability", h.SetDriverAvailability)
		api.GET("/drivers/:id/availability", h.GetDriverAvailability)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
