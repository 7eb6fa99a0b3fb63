// Package cache implements the shared read-optimized view over catalog and
// restaurant data. It is a cache-aside layer: the cache is never the source
// of truth, every entry is rebuildable from storage, and a cache outage
// degrades to direct store reads instead of failing the request.
//
// The package exposes a small Store contract (get/set-with-ttl/delete), a
// Redis-backed implementation with bounded per-call timeouts, a deterministic
// key builder, and a generic read-through adapter (see readthrough.go).
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is the contract any compliant cache backend must satisfy. Values are
// opaque strings (callers serialize their projections, typically as JSON).
//
// Implementations must be safe for concurrent use and must bound every call
// so that a slow backend cannot stall the request path.
type Store interface {
	// Get returns the value stored under key, or ErrMiss when absent.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// RedisStore is the Redis-backed Store used in production. Every round trip
// is capped by a per-call timeout so Redis latency spikes degrade to store
// reads rather than request failures.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisStore wraps an existing Redis client. timeout caps each round trip;
// values <= 0 fall back to 250ms.
func NewRedisStore(client *redis.Client, timeout time.Duration) *RedisStore {
	if timeout <= 0 {
		timeout = 250 * time.Millisecond
	}
	return &RedisStore{client: client, timeout: timeout}
}

// Get returns the value stored under key, mapping redis.Nil to ErrMiss.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrMiss
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set stores value under key with the given TTL.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes key unconditionally.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.client.Del(ctx, key).Err()
}

// HealthCheck verifies backend connectivity.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.client.Ping(ctx).Err()
}

// Disabled is a Store used when no cache backend is configured. Get always
// misses, Set and Delete are no-ops, so every caller takes the direct store
// read path.
type Disabled struct{}

// Get always reports a miss.
func (Disabled) Get(ctx context.Context, key string) (string, error) { return "", ErrMiss }

// Set is a no-op.
func (Disabled) Set(ctx context.Context, key, value string, ttl time.Duration) error { return nil }

// Delete is a no-op.
func (Disabled) Delete(ctx context.Context, key string) error { return nil }
