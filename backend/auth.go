package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/GScarabel/djvirtu/config"
)

// AuthSession is the result of a successful password sign-in against the
// hosted auth endpoint.
type AuthSession struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	UserID       string
	Email        string
}

// Auth verifies admin credentials against the backend's auth service. The
// anon key authenticates the gateway itself; the user's email and password
// authenticate the session.
type Auth struct {
	baseURL    string
	anonKey    string
	http       *http.Client
	userAgent  string
	configured bool
}

// NewAuth constructs the auth gateway.
func NewAuth(cfg *config.Config, userAgent string) *Auth {
	return &Auth{
		baseURL:    cfg.Backend.URL,
		anonKey:    cfg.Backend.AnonKey,
		http:       &http.Client{Timeout: cfg.Backend.Timeout()},
		userAgent:  userAgent,
		configured: cfg.Backend.Configured(),
	}
}

// Configured reports whether sign-in attempts will reach a real auth service.
func (a *Auth) Configured() bool {
	return a.configured
}

// SignIn exchanges email and password for a session. Wrong credentials map to
// ErrBadCredentials; transport and server failures keep their own errors.
func (a *Auth) SignIn(ctx context.Context, email, password string) (*AuthSession, error) {
	if !a.configured {
		return nil, ErrNotConfigured
	}
	payload, err := json.Marshal(struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("encode sign-in request: %w", err)
	}

	endpoint := a.baseURL + "/auth/v1/token?grant_type=password"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("construct sign-in: %w", err)
	}
	req.Header.Set("apikey", a.anonKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrBadCredentials
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, fmt.Errorf("sign in: %w", decodeAPIError(resp))
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		User         struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode sign-in response: %w", err)
	}
	if body.AccessToken == "" {
		return nil, fmt.Errorf("sign in: empty access token in response")
	}
	return &AuthSession{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		ExpiresIn:    body.ExpiresIn,
		UserID:       body.User.ID,
		Email:        body.User.Email,
	}, nil
}
