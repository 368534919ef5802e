package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/GScarabel/djvirtu/backend"
	"github.com/GScarabel/djvirtu/content"
)

const contactBodyLimit = 64 << 10

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus reports the preload coordinator's position for polling
// clients that cannot hold an event stream open.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	p := s.pre.Current()
	done := false
	select {
	case <-s.pre.Done():
		done = true
	default:
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"percent": p.Percent,
		"label":   p.Label,
		"done":    done,
		"offline": s.pre.Offline(),
	})
}

// handlePreloadStream streams progress as server-sent events. Subscribers
// always receive the full history first, so a splash screen attaching late
// still renders every step; the stream closes itself after the final event.
func (s *Server) handlePreloadStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for p := range s.pre.Watch(r.Context()) {
		payload, err := json.Marshal(p)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}
}

// handleContact accepts a contact-form submission. Validation problems come
// back as a field map; a backend outage is reported honestly instead of
// silently dropping the message.
func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, contactBodyLimit)
	var in content.MessageInput
	if !decodeBody(w, r, &in) {
		return
	}

	err := s.svc.SubmitContact(r.Context(), in, s.clientRemoteAddr(r))
	var verr *content.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidation(w, verr)
	case errors.Is(err, backend.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "contact form is unavailable right now")
	case err != nil:
		s.logger.Error("contact submit failed", "error", err)
		writeError(w, http.StatusBadGateway, "could not deliver your message, try again later")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
	}
}

// handleHome serves the assembled home page; every other unclaimed path gets
// the themed 404.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if sanitizeRequestPath(r.URL.Path) != "/" {
		s.renderNotFound(w, r)
		return
	}
	html, err := s.svc.RenderHome(r.Context())
	if err != nil {
		s.logger.Error("home render failed", "error", err)
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	writeHTML(w, http.StatusOK, html)
}

func (s *Server) renderNotFound(w http.ResponseWriter, r *http.Request) {
	notFound, err := s.svc.RenderNotFound(r.Context(), r.URL.Path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeHTML(w, http.StatusNotFound, notFound)
}

// decodeBody reads a JSON request body, answering 400 itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// queryID reads the required ?id= parameter, answering 400 itself when it
// is missing or malformed.
func queryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("id"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// queryBool reads an optional boolean parameter; ok is false when absent or
// unparsable.
func queryBool(r *http.Request, name string) (value, ok bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func (s *Server) clientRemoteAddr(r *http.Request) string {
	addr, chain := s.cfg.RemoteAddrFromRequest(r)
	if addr.IsValid() {
		return addr.String()
	}
	if len(chain) > 0 {
		if last := chain[len(chain)-1]; last.IsValid() {
			return last.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
