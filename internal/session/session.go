// Package session issues and verifies the signed tokens carried in the
// portal's "session" cookie.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "session"
	// DefaultTTL is the sliding session lifetime.
	DefaultTTL = 24 * time.Hour

	issuer = "developer-portal"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrMissingSecret  = errors.New("session secret is required")
)

// Claims identify the signed-in user.
type Claims struct {
	UserID uint   `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs and verifies HS256 session tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager returns a Manager signing with secret. A non-positive ttl uses DefaultTTL.
func NewManager(secret string, ttl time.Duration, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue creates a token for a user, valid for the manager's TTL.
func (m *Manager) Issue(userID uint, email, role string) (string, time.Time, error) {
	return m.sign(Claims{UserID: userID, Email: email, Role: role})
}

func (m *Manager) sign(c Claims) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)
	c.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Issuer:    issuer,
		Subject:   strconv.FormatUint(uint64(c.UserID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, expires, nil
}

// Verify parses token and checks its signature, issuer and expiry.
func (m *Manager) Verify(ctx context.Context, token string) (*Claims, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrInvalidSession
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return claims, nil
}

// Renew verifies token and reissues it with the same identity and a fresh expiry.
func (m *Manager) Renew(ctx context.Context, token string) (string, time.Time, error) {
	claims, err := m.Verify(ctx, token)
	if err != nil {
		return "", time.Time{}, err
	}
	return m.sign(Claims{UserID: claims.UserID, Email: claims.Email, Role: claims.Role})
}

// SetCookie writes the session cookie for a token this manager issued.
// Max-Age is measured on the manager's clock so it agrees with expires.
func (m *Manager) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	SetCookie(w, token, expires, expires.Sub(m.now()))
}

// SetCookie writes the session cookie. Max-Age is only sent when maxAge is
// at least one second.
func SetCookie(w http.ResponseWriter, token string, expires time.Time, maxAge time.Duration) {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
	if secs := int(maxAge / time.Second); secs > 0 {
		c.MaxAge = secs
	}
	http.SetCookie(w, c)
}

// ClearCookie deletes the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}
