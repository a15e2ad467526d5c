// Package token issues and verifies signed session-resume tokens. The token
// carries only the session id; the server-side session record stays
// authoritative for history and expiry.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid session token")

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Manager signs resume tokens with an HMAC secret. A zero-secret manager is
// disabled and issues no tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl}
}

func (m *Manager) Enabled() bool { return len(m.secret) > 0 }

// Issue returns a signed token bound to the session id, expiring with the
// session TTL. Returns "" when disabled.
func (m *Manager) Issue(sessionID string) (string, error) {
	if !m.Enabled() {
		return "", nil
	}
	now := time.Now()
	claims := sessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify returns the session id the token was issued for.
func (m *Manager) Verify(tokenString string) (string, error) {
	if !m.Enabled() {
		return "", ErrInvalidToken
	}
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid || claims.SessionID == "" {
		return "", ErrInvalidToken
	}
	return claims.SessionID, nil
}
