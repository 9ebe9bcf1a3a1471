package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, cfg Config) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Stop)
	return rl
}

// TestRateLimiter_BurstThenDeny tests that a user gets exactly the burst,
// then is denied.
func TestRateLimiter_BurstThenDeny(t *testing.T) {
	rl := newTestLimiter(t, Config{RPS: 1, Burst: 3, CleanupInterval: time.Hour})

	for i := 0; i < 3; i++ {
		if !rl.Allow("user-1") {
			t.Fatalf("request %d within burst denied", i)
		}
	}
	if rl.Allow("user-1") {
		t.Fatal("request beyond burst allowed")
	}
}

// TestRateLimiter_PerUserIsolation tests that one user exhausting the burst
// does not affect another.
func TestRateLimiter_PerUserIsolation(t *testing.T) {
	rl := newTestLimiter(t, Config{RPS: 1, Burst: 1, CleanupInterval: time.Hour})

	if !rl.Allow("user-1") {
		t.Fatal("first request denied")
	}
	if rl.Allow("user-1") {
		t.Fatal("second request allowed past burst")
	}
	if !rl.Allow("user-2") {
		t.Fatal("other user affected by user-1's limit")
	}
	if rl.Len() != 2 {
		t.Fatalf("want 2 tracked limiters, got %d", rl.Len())
	}
}

// TestRateLimiter_Middleware tests the 429 response and the remote address
// fallback for unauthenticated requests.
func TestRateLimiter_Middleware(t *testing.T) {
	rl := newTestLimiter(t, Config{RPS: 1, Burst: 1, CleanupInterval: time.Hour})

	handler := Middleware(rl, func(r *http.Request) string {
		return r.Header.Get("X-Test-User")
	}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(user string) int {
		req := httptest.NewRequest("GET", "/api/notes", nil)
		if user != "" {
			req.Header.Set("X-Test-User", user)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := send("alice"); got != http.StatusOK {
		t.Fatalf("first request: want 200, got %d", got)
	}
	if got := send("alice"); got != http.StatusTooManyRequests {
		t.Fatalf("second request: want 429, got %d", got)
	}
	// Anonymous requests fall back to the remote address key.
	if got := send(""); got != http.StatusOK {
		t.Fatalf("anonymous request: want 200, got %d", got)
	}
}
