package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/blocknote-app/blocknote/internal/db"
)

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
)

// Session configuration
const (
	DefaultSessionDuration = 30 * 24 * time.Hour
	SessionIDLength        = 32 // 256 bits
	SessionCookieName      = "session_id"
)

// SessionService handles session management.
type SessionService struct {
	store    *db.Store
	duration time.Duration
	clock    Clock
}

// NewSessionService creates a new session service.
func NewSessionService(store *db.Store, duration time.Duration) *SessionService {
	if duration <= 0 {
		duration = DefaultSessionDuration
	}
	return &SessionService{store: store, duration: duration, clock: realClock{}}
}

// SetClock replaces the clock used by the service. Intended for testing.
func (s *SessionService) SetClock(c Clock) {
	s.clock = c
}

// Create creates a new session for a user.
// Returns the session ID which should be stored in a cookie.
func (s *SessionService) Create(ctx context.Context, userID string) (string, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return "", fmt.Errorf("generate session ID: %w", err)
	}

	now := s.clock.Now()
	err = s.store.UpsertSession(ctx, db.UpsertSessionParams{
		SessionID: sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(s.duration).Unix(),
		CreatedAt: now.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	return sessionID, nil
}

// Validate checks if a session is valid and returns the user ID.
func (s *SessionService) Validate(ctx context.Context, sessionID string) (string, error) {
	row, err := s.store.GetValidSession(ctx, sessionID, s.clock.Now().Unix())
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("look up session: %w", err)
	}
	return row.UserID, nil
}

// Destroy removes a session.
func (s *SessionService) Destroy(ctx context.Context, sessionID string) error {
	return s.store.DeleteSession(ctx, sessionID)
}

// PurgeExpired removes all expired sessions.
func (s *SessionService) PurgeExpired(ctx context.Context) error {
	return s.store.DeleteExpiredSessions(ctx, s.clock.Now().Unix())
}

// generateSessionID returns a cryptographically secure random session ID.
func generateSessionID() (string, error) {
	buf := make([]byte, SessionIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// SetCookie writes the session cookie on the response.
func SetCookie(w http.ResponseWriter, sessionID string, secure bool, duration time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(duration.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie on the response.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetFromRequest returns the session ID from the request cookie.
func GetFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", ErrSessionNotFound
	}
	if cookie.Value == "" {
		return "", ErrSessionNotFound
	}
	return cookie.Value, nil
}
