// Package ratelimit implements distributed, per-client token-bucket admission
// control. Buckets live in Redis and are shared by every service instance, so
// a horizontally scaled deployment still enforces one global limit per client.
//
// Algorithm: greedy refill token bucket. Tokens accumulate continuously up to
// capacity; each admitted request consumes exactly one token; a request that
// would drive the bucket negative is rejected, never queued. The
// consume-and-check runs as a single Lua script, so it is atomic across
// processes (Redis executes scripts serially, which gives the
// compare-and-swap semantics the bucket needs).
//
// Failure semantics are explicit: when the bucket store is unreachable the
// limiter fails in the configured direction (open preserves availability,
// closed preserves protection) and reports the store error to the caller for
// logging and counters.
package ratelimit

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Limiter admits or rejects a request for the given client key.
type Limiter interface {
	// Allow consumes one token from the client's bucket. The returned error
	// is non-nil when the decision was degraded (store unreachable); the
	// boolean then reflects the configured failure direction.
	Allow(ctx context.Context, clientKey string) (bool, error)
}

// keyPrefix namespaces bucket keys away from cache entries sharing the same
// Redis database.
const keyPrefix = "ratelimit:"

// tokenBucket refills greedily and consumes one token, atomically.
//
// KEYS[1] bucket key
// ARGV[1] capacity
// ARGV[2] refill rate in tokens per millisecond
// ARGV[3] now in unix milliseconds
// ARGV[4] bucket TTL in seconds
//
// Returns 1 when admitted, 0 when rejected.
var tokenBucket = redis.NewScript(`
local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens'))
local ts = tonumber(redis.call('HGET', KEYS[1], 'ts'))
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
if tokens == nil or ts == nil then
  tokens = capacity
  ts = now
end
local elapsed = now - ts
if elapsed > 0 then
  tokens = math.min(capacity, tokens + elapsed * rate)
end
local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end
redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', tostring(now))
redis.call('EXPIRE', KEYS[1], ARGV[4])
return allowed
`)

// RedisLimiter is the Redis-backed Limiter used in production.
type RedisLimiter struct {
	client    *redis.Client
	capacity  int64
	ratePerMS float64 // tokens per millisecond
	bucketTTL time.Duration
	failOpen  bool
	timeout   time.Duration

	now func() time.Time // test seam
}

// NewRedisLimiter builds a limiter enforcing capacity tokens refilled over
// refillPer (e.g. 100 tokens per minute). Idle buckets expire from Redis
// after bucketTTL. timeout caps the store round trip; failOpen selects the
// degraded direction.
func NewRedisLimiter(client *redis.Client, capacity int64, refillPer, bucketTTL, timeout time.Duration, failOpen bool) *RedisLimiter {
	if capacity < 1 {
		capacity = 1
	}
	if refillPer <= 0 {
		refillPer = time.Minute
	}
	if bucketTTL <= 0 {
		bucketTTL = time.Hour
	}
	if timeout <= 0 {
		timeout = 250 * time.Millisecond
	}
	return &RedisLimiter{
		client:    client,
		capacity:  capacity,
		ratePerMS: float64(capacity) / float64(refillPer.Milliseconds()),
		bucketTTL: bucketTTL,
		failOpen:  failOpen,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Allow consumes one token for clientKey. On a store error the decision is
// the configured failure direction and the error is returned for reporting.
func (l *RedisLimiter) Allow(ctx context.Context, clientKey string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	res, err := tokenBucket.Run(ctx, l.client,
		[]string{keyPrefix + clientKey},
		l.capacity,
		l.ratePerMS,
		l.now().UnixMilli(),
		int64(l.bucketTTL.Seconds()),
	).Int64()
	if err != nil {
		return l.failOpen, err
	}
	return res == 1, nil
}
