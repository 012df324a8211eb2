// Package session manages authenticated browser sessions.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// CookieName is the name of the session cookie.
const CookieName = "session_id"

// Session represents an authenticated user session.
type Session struct {
	ID          string
	Token       *oauth2.Token
	UserID      string
	DisplayName string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store persists sessions. Get returns (nil, nil) for unknown or expired
// sessions; errors are reserved for backend failures.
type Store interface {
	Create(ctx context.Context, token *oauth2.Token, userID, displayName string) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	UpdateToken(ctx context.Context, id string, token *oauth2.Token) error
	DeleteExpired(ctx context.Context) (int64, error)
	DeleteForUser(ctx context.Context, userID string) (int64, error)
}

// Manager ties a Store to the session cookie.
type Manager struct {
	store  Store
	ttl    time.Duration
	secure bool
	logger *zap.Logger
}

// NewManager creates a Manager. secure marks the cookie Secure, which should
// be set when the app is served over HTTPS.
func NewManager(store Store, ttl time.Duration, secure bool, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  store,
		ttl:    ttl,
		secure: secure,
		logger: logger,
	}
}

// Store returns the underlying session store.
func (m *Manager) Store() Store {
	return m.store
}

// FromRequest extracts the session from the request cookie. Store failures
// are logged and treated as "no session".
func (m *Manager) FromRequest(r *http.Request) *Session {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	s, err := m.store.Get(r.Context(), cookie.Value)
	if err != nil {
		m.logger.Error("loading session", zap.Error(err))
		return nil
	}
	return s
}

// SetCookie sets the session cookie on the response.
func (m *Manager) SetCookie(w http.ResponseWriter, s *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.ttl.Seconds()),
	})
}

// ClearCookie removes the session cookie from the response.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// generateID creates a cryptographically random session ID.
func generateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
