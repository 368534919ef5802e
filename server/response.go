package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/GScarabel/djvirtu/backend"
	"github.com/GScarabel/djvirtu/content"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	if strings.TrimSpace(message) == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeValidation(w http.ResponseWriter, verr *content.ValidationError) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":  "validation failed",
		"fields": verr.Fields,
	})
}

// writeStoreError maps data-access failures onto the admin API's status
// codes: invalid input 422, unknown row 404, unconfigured backend 503,
// upstream rejection or outage 502.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	var verr *content.ValidationError
	var apiErr *backend.APIError
	switch {
	case errors.As(err, &verr):
		writeValidation(w, verr)
	case errors.Is(err, backend.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, backend.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "backend not configured")
	case errors.As(err, &apiErr):
		s.logger.Error("backend rejected request", "status", apiErr.Status, "message", apiErr.Message)
		writeError(w, http.StatusBadGateway, "backend rejected the request")
	default:
		s.logger.Error("backend request failed", "error", err)
		writeError(w, http.StatusBadGateway, "backend unavailable")
	}
}
