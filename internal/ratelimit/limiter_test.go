package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMemoryLimiterEnforcesLimit(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := l.Allow(ctx, "client-a")
		if err != nil {
			t.Fatal(err)
		}
		if !result.Allowed {
			t.Fatalf("request %d denied under the limit", i+1)
		}
		if result.Remaining != 3-i-1 {
			t.Errorf("request %d remaining = %d, want %d", i+1, result.Remaining, 3-i-1)
		}
	}

	result, err := l.Allow(ctx, "client-a")
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed {
		t.Error("fourth request allowed")
	}
	if result.ResetAt.Before(time.Now()) {
		t.Errorf("resetAt in the past: %v", result.ResetAt)
	}
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	if r, _ := l.Allow(ctx, "client-a"); !r.Allowed {
		t.Fatal("first client denied")
	}
	if r, _ := l.Allow(ctx, "client-b"); !r.Allowed {
		t.Error("second client penalized for the first client's hits")
	}
	if r, _ := l.Allow(ctx, "client-a"); r.Allowed {
		t.Error("first client not limited")
	}
}

func TestMemoryLimiterWindowSlides(t *testing.T) {
	l := NewMemoryLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	if r, _ := l.Allow(ctx, "client-a"); !r.Allowed {
		t.Fatal("first request denied")
	}
	if r, _ := l.Allow(ctx, "client-a"); r.Allowed {
		t.Fatal("second immediate request allowed")
	}

	time.Sleep(60 * time.Millisecond)
	if r, _ := l.Allow(ctx, "client-a"); !r.Allowed {
		t.Error("request denied after the window expired")
	}
}

func TestMemoryLimiterReset(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	l.Allow(ctx, "client-a")
	l.Reset("client-a")
	if r, _ := l.Allow(ctx, "client-a"); !r.Allowed {
		t.Error("request denied after reset")
	}
}

func TestMiddlewareBlocksOverLimit(t *testing.T) {
	limiter := NewMemoryLimiter(2, time.Minute)
	handler := Middleware(limiter, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/thing", nil)
		req.RemoteAddr = "10.0.0.1:54321"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(); rec.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d", rec.Code)
	}
	if rec := do(); rec.Code != http.StatusNoContent {
		t.Fatalf("second request status = %d", rec.Code)
	}

	rec := do()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestMiddlewareKeysByForwardedFor(t *testing.T) {
	limiter := NewMemoryLimiter(1, time.Minute)
	handler := Middleware(limiter, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/thing", nil)
		req.RemoteAddr = "10.0.0.1:54321"
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("198.51.100.7, 10.0.0.1"); code != http.StatusNoContent {
		t.Fatalf("first client status = %d", code)
	}
	// Different forwarded client, same socket: separate allowance.
	if code := do("203.0.113.9"); code != http.StatusNoContent {
		t.Errorf("second client status = %d", code)
	}
	if code := do("198.51.100.7"); code != http.StatusTooManyRequests {
		t.Errorf("repeat client status = %d", code)
	}
}
