package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/bealive/bealive-api/pkg/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterPerKey(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if ok, _ := rl.Allow(ctx, "a"); !ok {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if ok, _ := rl.Allow(ctx, "a"); ok {
		t.Fatal("third request should be throttled")
	}
	if ok, _ := rl.Allow(ctx, "b"); !ok {
		t.Fatal("other keys have their own bucket")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(5, 5)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return base }
	_, _ = rl.Allow(context.Background(), "old")

	rl.now = func() time.Time { return base.Add(10 * time.Minute) }
	_, _ = rl.Allow(context.Background(), "fresh")

	if removed := rl.Cleanup(5 * time.Minute); removed != 1 {
		t.Fatalf("removed %d, want 1", removed)
	}
	if rl.Size() != 1 {
		t.Fatalf("size %d, want 1", rl.Size())
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimit(NewRateLimiter(1, 1), nil, logger.Discard())(okHandler())

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/challenges", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := send("10.0.0.1:1234"); code != http.StatusOK {
		t.Fatalf("first request: %d", code)
	}
	if code := send("10.0.0.1:5678"); code != http.StatusTooManyRequests {
		t.Fatalf("second request from same ip: %d", code)
	}
	if code := send("10.0.0.2:1234"); code != http.StatusOK {
		t.Fatalf("other ip: %d", code)
	}
}

func TestRateLimitKeysByUser(t *testing.T) {
	handler := RateLimit(NewRateLimiter(1, 1), nil, logger.Discard())(okHandler())

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/feed", nil)
		req = req.WithContext(WithIdentity(req.Context(), Identity{ID: user}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}
	if send("u1") != http.StatusOK || send("u2") != http.StatusOK {
		t.Fatal("distinct users share one address but not one bucket")
	}
	if send("u1") != http.StatusTooManyRequests {
		t.Fatal("u1 should be throttled")
	}
}

func TestRateLimitIgnoresForwardingFromUntrustedPeers(t *testing.T) {
	handler := RateLimit(NewRateLimiter(1, 1), nil, logger.Discard())(okHandler())

	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/challenges", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		req.Header.Set("X-Forwarded-For", forwarded)
		req.Header.Set("X-Real-IP", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := send("198.51.100.1"); code != http.StatusOK {
		t.Fatalf("first request: %d", code)
	}
	if code := send("198.51.100.2"); code != http.StatusTooManyRequests {
		t.Fatalf("spoofed header escaped the limit: %d", code)
	}
}

func TestTrustedProxiesClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.7 ", ""})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	cases := []struct {
		name      string
		remote    string
		forwarded string
		realIP    string
		want      string
	}{
		{"untrusted peer", "203.0.113.9:4000", "198.51.100.1", "", "203.0.113.9"},
		{"trusted peer", "10.1.2.3:4000", "198.51.100.1", "", "198.51.100.1"},
		{"client prepends a hop", "10.1.2.3:4000", "6.6.6.6, 198.51.100.1, 10.4.4.4", "", "198.51.100.1"},
		{"bare address entry", "192.0.2.7:80", "198.51.100.5", "", "198.51.100.5"},
		{"real ip header", "10.1.2.3:4000", "", "198.51.100.8", "198.51.100.8"},
		{"garbage hop", "10.1.2.3:4000", "not-an-ip", "", "10.1.2.3"},
		{"only proxies", "10.1.2.3:4000", "10.9.9.9", "", "10.1.2.3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			if got := proxies.ClientIP(req); got != tc.want {
				t.Fatalf("ClientIP() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseTrustedProxiesRejectsGarbage(t *testing.T) {
	for _, entry := range []string{"10.0.0.0/33", "proxy.internal"} {
		if _, err := ParseTrustedProxies([]string{entry}); err == nil {
			t.Fatalf("%q should be rejected", entry)
		}
	}
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRedisLimiter(client, 1, time.Second)
	if _, err := limiter.Allow(context.Background(), "k"); err == nil {
		t.Fatal("expected an error from an unreachable redis")
	}

	rec := httptest.NewRecorder()
	RateLimit(limiter, nil, logger.Discard())(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("limiter errors should not block requests, got %d", rec.Code)
	}
}

func TestTracingAssignsTraceID(t *testing.T) {
	var seen string
	handler := NewTracingMiddleware(logger.Discard()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/posts", nil))
	if seen == "" || rec.Header().Get(TraceHeader) != seen {
		t.Fatalf("trace id %q, header %q", seen, rec.Header().Get(TraceHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, "abc-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen != "abc-123" {
		t.Fatalf("incoming trace id not propagated: %q", seen)
	}
}

func TestCORS(t *testing.T) {
	cors := NewCORSMiddleware([]string{"https://app.bealive.io", ".bealive.dev"})
	handler := cors.Handler(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/challenges/1", nil)
	req.Header.Set("Origin", "https://app.bealive.io")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.bealive.io" {
		t.Fatalf("allow origin %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://preview.bealive.dev")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("subdomain origin should be allowed")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unknown origin should not be allowed")
	}
}

func TestRecovery(t *testing.T) {
	handler := Recovery(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(okHandler(), mark("a"), mark("b")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order %v", order)
	}
}
