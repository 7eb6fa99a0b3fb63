// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, Redis and Kafka endpoints,
// rate limiting, cache TTLs, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-delivery-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// RedisConfig defines the shared Redis endpoint used by the cache layer and
// the distributed rate limiter. An empty Addr disables both: the cache
// degrades to direct store reads and the limiter falls back to a
// process-local token bucket.
type RedisConfig struct {
	Addr     string        // REDIS_ADDR (host:port); empty disables Redis
	Password string        // REDIS_PASSWORD
	DB       int           // REDIS_DB
	Timeout  time.Duration // REDIS_TIMEOUT per round trip
}

// KafkaConfig defines the event sink endpoint. Empty Brokers disables
// publishing (events are logged and dropped).
type KafkaConfig struct {
	Brokers        []string      // KAFKA_BROKERS, comma-separated
	PublishTimeout time.Duration // KAFKA_PUBLISH_TIMEOUT per publish
}

// RateLimitConfig defines the distributed token bucket enforced per client.
// Tokens refill continuously (greedy refill) up to Capacity; each admitted
// request consumes one token. FailOpen decides the direction taken when the
// bucket store is unreachable.
type RateLimitConfig struct {
	Capacity  int64         // RATE_CAPACITY, bucket size
	RefillPer time.Duration // RATE_REFILL_INTERVAL, window in which Capacity tokens refill
	BucketTTL time.Duration // RATE_BUCKET_TTL, idle bucket expiry
	FailOpen  bool          // RATE_FAIL_OPEN, admit on store failure when true
}

// CacheConfig defines TTLs for the read-through catalog cache.
type CacheConfig struct {
	RestaurantTTL time.Duration // CACHE_RESTAURANT_TTL, profile entries
	MenuTTL       time.Duration // CACHE_MENU_TTL, restaurant menu entries
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath string // SQLite path

	// Collaborators
	Redis     RedisConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "delivery.db"),

		// Collaborators
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
			Timeout:  getdur("REDIS_TIMEOUT", 250*time.Millisecond),
		},
		Kafka: KafkaConfig{
			Brokers:        splitCSV(getenv("KAFKA_BROKERS", "")),
			PublishTimeout: getdur("KAFKA_PUBLISH_TIMEOUT", 2*time.Second),
		},
		RateLimit: RateLimitConfig{
			Capacity:  int64(getint("RATE_CAPACITY", 100)),
			RefillPer: getdur("RATE_REFILL_INTERVAL", time.Minute),
			BucketTTL: getdur("RATE_BUCKET_TTL", time.Hour),
			FailOpen:  getbool("RATE_FAIL_OPEN", true),
		},
		Cache: CacheConfig{
			RestaurantTTL: getdur("CACHE_RESTAURANT_TTL", time.Hour),
			MenuTTL:       getdur("CACHE_MENU_TTL", 30*time.Minute),
		},

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-delivery-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.Redis.Timeout <= 0 {
		return cfg, errors.New("REDIS_TIMEOUT must be > 0")
	}
	if cfg.Kafka.PublishTimeout <= 0 {
		return cfg, errors.New("KAFKA_PUBLISH_TIMEOUT must be > 0")
	}
	if cfg.RateLimit.Capacity < 1 {
		return cfg, errors.New("RATE_CAPACITY must be >= 1")
	}
	if cfg.RateLimit.RefillPer <= 0 {
		return cfg, errors.New("RATE_REFILL_INTERVAL must be > 0")
	}
	if cfg.RateLimit.BucketTTL <= 0 {
		return cfg, errors.New("RATE_BUCKET_TTL must be > 0")
	}
	if cfg.Cache.RestaurantTTL <= 0 || cfg.Cache.MenuTTL <= 0 {
		return cfg, errors.New("cache TTLs must be > 0")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
