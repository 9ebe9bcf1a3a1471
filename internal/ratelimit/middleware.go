package ratelimit

import (
	"encoding/json"
	"net/http"
)

// UserIDFunc resolves the rate-limit key for a request. An empty return
// falls back to the remote address so unauthenticated requests are still
// limited.
type UserIDFunc func(r *http.Request) string

// Middleware enforces per-user rate limits and responds 429 when exceeded.
func Middleware(rl *RateLimiter, userID UserIDFunc, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := userID(r)
		if key == "" {
			key = r.RemoteAddr
		}
		if !rl.Allow(key) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
