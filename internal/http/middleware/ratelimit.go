// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file enforces per-client request limits at the edge. The admission
// decision itself lives in the ratelimit package (a Redis-backed token bucket
// in production, a process-local bucket when Redis is not configured); this
// middleware only resolves the client identity, asks the limiter, and
// translates a rejection into the standard 429 envelope.
//
// Identity resolution order:
//  1. authenticated user id from the Gin context ("user:<id>")
//  2. first hop of X-Forwarded-For ("ip:<addr>")
//  3. client IP from the connection ("ip:<addr>")
//  4. "unknown" as the last resort, so unattributable requests share a bucket
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mealhub/go-delivery-backend/internal/metrics"
	"github.com/mealhub/go-delivery-backend/internal/ratelimit"
)

// keyFunc selects the identity used to key a rate-limit bucket. The returned
// string must be stable for the duration of a request.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP returns a keyFunc preferring the authenticated user identity
// (Gin context key "userID", set by upstream middleware or the X-User-ID
// header) and falling back to the client address. Keys carry a namespace
// prefix so user and IP buckets never collide.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get("userID"); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		if uid := strings.TrimSpace(c.GetHeader("X-User-ID")); uid != "" {
			return "user:" + uid
		}
		if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
			if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
				return "ip:" + first
			}
		}
		if ip := c.ClientIP(); ip != "" {
			return "ip:" + ip
		}
		return "unknown"
	}
}

// RateLimit returns a Gin middleware that admits or rejects requests via the
// given limiter.
//
// Behavior:
//   - Idempotent replays (marked by IdempotencyValidator) bypass limiting so
//     retries of completed work are never throttled.
//   - A limiter error means the decision was degraded (bucket store
//     unreachable); the limiter already applied its fail-open/fail-closed
//     policy, so the verdict is honored and the degradation is counted.
//   - Rejections return 429 with the standard error envelope and a minimal
//     Retry-After header.
func RateLimit(limiter ratelimit.Limiter, sink *metrics.Sink, keyFn keyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		key := keyFn(c)
		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			sink.RateDegraded()
			log.Warn().Err(err).Str("key", key).Bool("allowed", allowed).
				Msg("rate limit decision degraded")
		}

		if allowed {
			sink.RateAllowed()
			c.Next()
			return
		}

		sink.RateRejected()
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
