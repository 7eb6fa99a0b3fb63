package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter is the process-local fallback used when no Redis endpoint is
// configured (single-instance and dev deployments). It keeps one
// golang.org/x/time/rate bucket per client key with opportunistic eviction of
// idle buckets so memory stays bounded.
//
// It cannot enforce a global limit across instances; production deployments
// should configure Redis and get RedisLimiter instead.
type LocalLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	buckets  map[string]*localBucket
	ttl      time.Duration
	lookups  uint64
	gcevery  uint64
	nowLocal func() time.Time // test seam
}

type localBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter builds a per-key limiter refilling capacity tokens over
// refillPer, evicting buckets idle for bucketTTL.
func NewLocalLimiter(capacity int64, refillPer, bucketTTL time.Duration) *LocalLimiter {
	if capacity < 1 {
		capacity = 1
	}
	if refillPer <= 0 {
		refillPer = time.Minute
	}
	if bucketTTL <= 0 {
		bucketTTL = time.Hour
	}
	return &LocalLimiter{
		limit:    rate.Limit(float64(capacity) / refillPer.Seconds()),
		burst:    int(capacity),
		buckets:  make(map[string]*localBucket),
		ttl:      bucketTTL,
		gcevery:  5000,
		nowLocal: time.Now,
	}
}

// Allow consumes one token from clientKey's bucket. It never returns an
// error: the in-process map cannot be unreachable.
func (l *LocalLimiter) Allow(ctx context.Context, clientKey string) (bool, error) {
	return l.bucket(clientKey).Allow(), nil
}

// bucket fetches or creates the limiter for key, garbage-collecting idle
// entries after a threshold of lookups. GC runs before the fetch so an idle
// bucket can be evicted even when it is the one requested.
func (l *LocalLimiter) bucket(key string) *rate.Limiter {
	now := l.nowLocal()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.lookups++
	if l.lookups >= l.gcevery {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) >= l.ttl {
				delete(l.buckets, k)
			}
		}
		l.lookups = 0
	}

	if b, ok := l.buckets[key]; ok {
		b.lastSeen = now
		return b.lim
	}
	b := &localBucket{lim: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
	l.buckets[key] = b
	return b.lim
}
