package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mealhub/go-delivery-backend/internal/metrics"
)

// fakeLimiter scripts admission decisions.
type fakeLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allow, f.err
}

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	// IP fallback when no user identity.
	key := KeyByUserOrIP()(c)
	if !strings.HasPrefix(key, "ip:") || !strings.Contains(key, "203.0.113.9") {
		t.Fatalf("expected ip-based key; got %q", key)
	}

	// First X-Forwarded-For hop beats the connection address.
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	if got := KeyByUserOrIP()(c); got != "ip:198.51.100.7" {
		t.Fatalf("expected forwarded key; got %q", got)
	}

	// X-User-ID header beats IPs.
	req.Header.Set("X-User-ID", "u42")
	if got := KeyByUserOrIP()(c); got != "user:u42" {
		t.Fatalf("expected header user key; got %q", got)
	}

	// Context identity beats everything.
	c.Set("userID", "u123")
	if got := KeyByUserOrIP()(c); got != "user:u123" {
		t.Fatalf("expected user-based key; got %q", got)
	}
}

func TestRateLimit_Allow_Deny(t *testing.T) {
	gin.SetMode(gin.TestMode)

	lim := &fakeLimiter{allow: true}
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header("X-Request-ID", "rid-1"); c.Next() })
	r.Use(RateLimit(lim, metrics.NewNop(), KeyByUserOrIP()))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w1.Code != http.StatusOK {
		t.Fatalf("admitted request got %d", w1.Code)
	}

	lim.allow = false
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("rejected request got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected Retry-After=1, got %q", got)
	}
	var body map[string]any
	if err := json.Unmarshal(w2.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["code"] != "too_many_requests" || body["message"] != "rate limit exceeded" {
		t.Fatalf("unexpected JSON body: %v", body)
	}
	if body["request_id"] != "rid-1" {
		t.Fatalf("expected request id in envelope, got %v", body["request_id"])
	}
}

func TestRateLimit_DegradedDecisionIsHonored(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Fail-open limiter: backend down, request still admitted.
	lim := &fakeLimiter{allow: true, err: errors.New("bucket store unreachable")}
	r := gin.New()
	r.Use(RateLimit(lim, metrics.NewNop(), KeyByUserOrIP()))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("fail-open decision not honored, got %d", w.Code)
	}

	// Fail-closed limiter: backend down, request rejected.
	lim = &fakeLimiter{allow: false, err: errors.New("bucket store unreachable")}
	r = gin.New()
	r.Use(RateLimit(lim, metrics.NewNop(), KeyByUserOrIP()))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("fail-closed decision not honored, got %d", w.Code)
	}
}

func TestRateLimit_ReplayBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)

	lim := &fakeLimiter{allow: false}
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(ctxKeyRateBypass, true); c.Next() })
	r.Use(RateLimit(lim, metrics.NewNop(), KeyByUserOrIP()))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("replay should bypass limiting, got %d", w.Code)
	}
	if len(lim.keys) != 0 {
		t.Fatalf("bypassed request still consulted the limiter: %v", lim.keys)
	}
}

func TestIsRateBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	if IsRateBypass(c) {
		t.Fatalf("expected IsRateBypass=false by default")
	}
	c.Set(ctxKeyRateBypass, true)
	if !IsRateBypass(c) {
		t.Fatalf("expected IsRateBypass=true when set")
	}
	c.Set(ctxKeyRateBypass, "yes")
	if IsRateBypass(c) {
		t.Fatalf("expected IsRateBypass=false when non-bool stored")
	}
}
