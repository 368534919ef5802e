// Package session manages admin login sessions. A session lives server-side
// in a Store (in-process memory or Redis); the browser only ever holds an
// opaque session ID in an HttpOnly cookie. Backend access and refresh tokens
// never leave the server.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/GScarabel/djvirtu/backend"
	"github.com/GScarabel/djvirtu/config"
)

// ErrNoSession is returned when a request carries no valid session.
var ErrNoSession = errors.New("session: not signed in")

// Session is one signed-in admin.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Store persists sessions with a TTL. Get returns ErrNoSession for unknown
// or expired IDs; Delete on an unknown ID is a no-op.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// Authenticator verifies credentials and opens a backend session.
// *backend.Auth satisfies it.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*backend.AuthSession, error)
}

// Manager issues and validates the admin session cookie.
type Manager struct {
	store  Store
	auth   Authenticator
	cookie string
	ttl    time.Duration
	secure bool
}

// NewManager wires the cookie layer over a session store and the backend
// auth gateway.
func NewManager(cfg *config.Config, store Store, auth Authenticator) *Manager {
	return &Manager{
		store:  store,
		auth:   auth,
		cookie: cfg.Session.CookieName,
		ttl:    cfg.Session.TTL(),
		secure: cfg.Session.SecureCookie,
	}
}

// SignIn verifies the credentials, persists a fresh session and sets the
// session cookie. Bad credentials surface as backend.ErrBadCredentials.
func (m *Manager) SignIn(ctx context.Context, w http.ResponseWriter, email, password string) (*Session, error) {
	auth, err := m.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:           uuid.NewString(),
		UserID:       auth.UserID,
		Email:        auth.Email,
		AccessToken:  auth.AccessToken,
		RefreshToken: auth.RefreshToken,
		ExpiresAt:    time.Now().Add(m.ttl),
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}
	http.SetCookie(w, m.newCookie(s.ID, int(m.ttl.Seconds())))
	return s, nil
}

// SignOut deletes the request's session, if any, and clears the cookie.
func (m *Manager) SignOut(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(m.cookie); err == nil && c.Value != "" {
		_ = m.store.Delete(ctx, c.Value)
	}
	http.SetCookie(w, m.newCookie("", -1))
}

// FromRequest resolves the request's session. Missing, unknown and expired
// cookies all map to ErrNoSession.
func (m *Manager) FromRequest(r *http.Request) (*Session, error) {
	c, err := r.Cookie(m.cookie)
	if err != nil || c.Value == "" {
		return nil, ErrNoSession
	}
	s, err := m.store.Get(r.Context(), c.Value)
	if err != nil {
		return nil, err
	}
	if s.Expired(time.Now()) {
		_ = m.store.Delete(r.Context(), c.Value)
		return nil, ErrNoSession
	}
	return s, nil
}

func (m *Manager) newCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
