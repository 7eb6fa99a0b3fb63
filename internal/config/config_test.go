package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.RateLimit.Capacity != 100 {
		t.Errorf("RateLimit.Capacity = %d, want 100", cfg.RateLimit.Capacity)
	}
	if cfg.RateLimit.RefillPer != time.Minute {
		t.Errorf("RateLimit.RefillPer = %v, want 1m", cfg.RateLimit.RefillPer)
	}
	if cfg.RateLimit.BucketTTL != time.Hour {
		t.Errorf("RateLimit.BucketTTL = %v, want 1h", cfg.RateLimit.BucketTTL)
	}
	if !cfg.RateLimit.FailOpen {
		t.Error("RateLimit.FailOpen = false, want true by default")
	}
	if cfg.Cache.MenuTTL != 30*time.Minute {
		t.Errorf("Cache.MenuTTL = %v, want 30m", cfg.Cache.MenuTTL)
	}
	if cfg.Cache.RestaurantTTL != time.Hour {
		t.Errorf("Cache.RestaurantTTL = %v, want 1h", cfg.Cache.RestaurantTTL)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("Redis.Addr = %q, want empty default", cfg.Redis.Addr)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Errorf("APIBasePath = %q, want /api/v1", cfg.APIBasePath)
	}
}

func TestLoad_EnvOverridesAndNormalization(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("GIN_MODE", "bogus")
	t.Setenv("API_BASE_PATH", "api/v2/")
	t.Setenv("KAFKA_BROKERS", " broker-1:9092 , broker-2:9092 ,")
	t.Setenv("RATE_FAIL_OPEN", "off")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.GinMode != "release" {
		t.Errorf("GinMode = %q, want release fallback", cfg.GinMode)
	}
	if cfg.APIBasePath != "/api/v2" {
		t.Errorf("APIBasePath = %q, want /api/v2", cfg.APIBasePath)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "broker-1:9092" {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.RateLimit.FailOpen {
		t.Error("RateLimit.FailOpen: override to false not applied")
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		key, val string
	}{
		{"LOG_LEVEL", "verbose"},
		{"READ_TIMEOUT", "-1s"},
		{"MAX_HEADER_BYTES", "-1"},
		{"RATE_CAPACITY", "0"},
		{"RATE_REFILL_INTERVAL", "-1m"},
		{"RATE_BUCKET_TTL", "-1h"},
		{"CACHE_MENU_TTL", "-1m"},
		{"REDIS_TIMEOUT", "-5ms"},
		{"KAFKA_PUBLISH_TIMEOUT", "-1s"},
		{"OTEL_TRACES_SAMPLER_ARG", "1.5"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%s: expected validation error", tc.key, tc.val)
			}
		})
	}
}

func TestMustLoad_PanicsOnInvalid(t *testing.T) {
	t.Setenv("LOG_LEVEL", "nope")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustLoad()
}
