package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/GScarabel/djvirtu/backend"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &payload) {
		return
	}
	if payload.Email == "" || payload.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	sess, err := s.sessions.SignIn(r.Context(), w, payload.Email, payload.Password)
	switch {
	case errors.Is(err, backend.ErrBadCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, backend.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "sign-in unavailable without a configured backend")
	case err != nil:
		s.logger.Error("sign-in failed", "error", err)
		writeError(w, http.StatusBadGateway, "sign-in failed, try again later")
	default:
		s.logger.Info("admin signed in", "email", sess.Email)
		writeJSON(w, http.StatusOK, map[string]string{"email": sess.Email})
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.sessions.SignOut(r.Context(), w, r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sess, err := s.sessions.FromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"email":     sess.Email,
		"expiresAt": sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// handleAdminShell serves the admin single page, or the login page when the
// request carries no valid session.
func (s *Server) handleAdminShell(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sess, err := s.sessions.FromRequest(r)
	if err != nil {
		page, renderErr := s.svc.RenderLogin()
		if renderErr != nil {
			writeError(w, http.StatusInternalServerError, "render failed")
			return
		}
		writeHTML(w, http.StatusOK, page)
		return
	}
	page, err := s.svc.RenderAdmin(sess.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	writeHTML(w, http.StatusOK, page)
}
