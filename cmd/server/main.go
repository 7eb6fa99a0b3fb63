// Command server runs the delivery backend HTTP API.
//
// Startup order: env + config, logging, storage (SQLite via GORM), cache and
// rate limiting (Redis when configured, in-process fallbacks otherwise),
// Kafka event publishing (no-op without brokers), metrics, tracing, and
// finally the Gin engine with graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mealhub/go-delivery-backend/internal/cache"
	"github.com/mealhub/go-delivery-backend/internal/config"
	"github.com/mealhub/go-delivery-backend/internal/events"
	httpapi "github.com/mealhub/go-delivery-backend/internal/http"
	"github.com/mealhub/go-delivery-backend/internal/metrics"
	"github.com/mealhub/go-delivery-backend/internal/observability"
	"github.com/mealhub/go-delivery-backend/internal/ratelimit"
	"github.com/mealhub/go-delivery-backend/internal/repo"
	"github.com/mealhub/go-delivery-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	var (
		store   cache.Store
		limiter ratelimit.Limiter
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = client.Close() }()
		store = cache.NewRedisStore(client, cfg.Redis.Timeout)
		limiter = ratelimit.NewRedisLimiter(client,
			cfg.RateLimit.Capacity, cfg.RateLimit.RefillPer, cfg.RateLimit.BucketTTL,
			cfg.Redis.Timeout, cfg.RateLimit.FailOpen)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis cache and rate limiting enabled")
	} else {
		store = cache.Disabled{}
		limiter = ratelimit.NewLocalLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPer, cfg.RateLimit.BucketTTL)
		log.Warn().Msg("REDIS_ADDR not set; cache disabled, rate limiting is per-process")
	}

	sink := metrics.New(prometheus.DefaultRegisterer)

	var pub events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.PublishTimeout, sink)
		defer func() { _ = kp.Close() }()
		pub = kp
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("kafka event publishing enabled")
	} else {
		log.Warn().Msg("KAFKA_BROKERS not set; events are dropped")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:      db,
		Cache:   store,
		Limiter: limiter,
		Events:  pub,
		Metrics: sink,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("server stopped")
}
