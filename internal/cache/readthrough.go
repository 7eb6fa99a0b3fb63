package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// Loader produces the authoritative value for a cache key from the system of
// record. It is invoked on every miss and its result is written back with the
// entry's TTL.
type Loader[T any] func(ctx context.Context) (T, error)

// GetOrLoad is the read-through path used for restaurant profiles, menus, and
// any other entity needing the try-cache-else-store-then-populate pattern.
// It is parametrized by key, TTL, and loader, so callers only supply the
// store read.
//
// Behavior:
//   - Cache hit: the cached JSON is decoded and returned with hit=true.
//   - Cache miss, or any cache error: the loader runs against storage. Cache
//     failures are logged and otherwise ignored; they never fail the request.
//   - After a successful load, the value is written back with ttl. Write-back
//     failures are logged and dropped.
//
// A corrupt cached value is treated as a miss and overwritten by the next
// successful write-back.
func GetOrLoad[T any](ctx context.Context, store Store, key string, ttl time.Duration, load Loader[T]) (val T, hit bool, err error) {
	raw, getErr := store.Get(ctx, key)
	if getErr == nil {
		if err := json.Unmarshal([]byte(raw), &val); err == nil {
			return val, true, nil
		}
		// Corrupt entry: fall through to the loader.
		log.Warn().Str("key", key).Msg("cache entry undecodable, reloading from store")
	} else if getErr != ErrMiss {
		log.Warn().Err(getErr).Str("key", key).Msg("cache read failed, falling back to store")
	}

	val, err = load(ctx)
	if err != nil {
		return val, false, err
	}

	if data, mErr := json.Marshal(val); mErr == nil {
		if setErr := store.Set(ctx, key, string(data), ttl); setErr != nil {
			log.Warn().Err(setErr).Str("key", key).Msg("cache write-back failed")
		}
	}
	return val, false, nil
}

// Invalidate removes a key, logging and swallowing backend errors: a missed
// invalidation only means the entry lives until its TTL, it must not fail the
// write path that triggered it.
func Invalidate(ctx context.Context, store Store, key string) {
	if err := store.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache invalidation failed")
	}
}
