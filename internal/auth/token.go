package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for malformed, mis-signed, or expired tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims carries the standard claims plus the subject user ID.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// TokenService mints and verifies HS256 bearer tokens for API access.
type TokenService struct {
	secret   []byte
	duration time.Duration
	clock    Clock
}

// NewTokenService creates a token service. duration bounds token validity.
func NewTokenService(secret []byte, duration time.Duration) *TokenService {
	if duration <= 0 {
		duration = 24 * time.Hour
	}
	return &TokenService{secret: secret, duration: duration, clock: realClock{}}
}

// SetClock replaces the clock used by the service. Intended for testing.
func (s *TokenService) SetClock(c Clock) {
	s.clock = c
}

// Generate mints a signed token for the user.
func (s *TokenService) Generate(userID string) (string, error) {
	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
		},
		UserID: userID,
	})
	return token.SignedString(s.secret)
}

// UserIDFromToken verifies a token string and returns the subject user ID.
func (s *TokenService) UserIDFromToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return "", ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}
