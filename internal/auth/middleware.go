package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/blocknote-app/blocknote/internal/obs"
)

// Context keys for auth data
type contextKey string

const userIDKey contextKey = "userID"

// Middleware resolves the caller identity for protected routes.
type Middleware struct {
	sessions *SessionService
	tokens   *TokenService
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(sessions *SessionService, tokens *TokenService) *Middleware {
	return &Middleware{sessions: sessions, tokens: tokens}
}

// RequireAuth requires a valid session cookie or bearer token. Without one
// the request is rejected with a uniform 401 before any store access.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := m.resolveUserID(r)
		if userID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = obs.WithCorrelation(ctx, obs.Correlation{UserID: userID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolveUserID tries the bearer token first, then the session cookie.
// Returns empty when neither yields a valid identity.
func (m *Middleware) resolveUserID(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return ""
		}
		userID, err := m.tokens.UserIDFromToken(strings.TrimSpace(tokenString))
		if err != nil {
			return ""
		}
		return userID
	}

	sessionID, err := GetFromRequest(r)
	if err != nil {
		return ""
	}
	userID, err := m.sessions.Validate(r.Context(), sessionID)
	if err != nil {
		return ""
	}
	return userID
}

// UserID retrieves the resolved user ID from the request context.
// Returns empty string if no user is authenticated.
func UserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// UserIDFromRequest resolves the identity without requiring it; used as the
// rate-limit key function.
func (m *Middleware) UserIDFromRequest(r *http.Request) string {
	return m.resolveUserID(r)
}
