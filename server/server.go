// Package server exposes the HTTP surface: the public pages, the preload
// progress endpoints, the contact form and the session-gated admin API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/GScarabel/djvirtu/backend"
	"github.com/GScarabel/djvirtu/config"
	"github.com/GScarabel/djvirtu/content"
	"github.com/GScarabel/djvirtu/geo"
	"github.com/GScarabel/djvirtu/preload"
	"github.com/GScarabel/djvirtu/session"
	"github.com/GScarabel/djvirtu/site"
)

// Server ties HTTP handlers to the site service, the data-access layer and
// the preload coordinator.
type Server struct {
	cfg          *config.Config
	svc          *site.Service
	store        *content.Store
	storage      *backend.Storage
	sessions     *session.Manager
	geo          *geo.Client
	pre          *preload.Coordinator
	logger       *slog.Logger
	mux          *http.ServeMux
	serverHeader string
}

// Deps carries the server's collaborators.
type Deps struct {
	Site     *site.Service
	Store    *content.Store
	Storage  *backend.Storage
	Sessions *session.Manager
	Geo      *geo.Client
	Preload  *preload.Coordinator
}

// New constructs a server instance.
func New(cfg *config.Config, deps Deps, logger *slog.Logger, serverHeader string) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	srv := &Server{
		cfg:          cfg,
		svc:          deps.Site,
		store:        deps.Store,
		storage:      deps.Storage,
		sessions:     deps.Sessions,
		geo:          deps.Geo,
		pre:          deps.Preload,
		logger:       logger,
		mux:          http.NewServeMux(),
		serverHeader: strings.TrimSpace(serverHeader),
	}
	srv.routes()
	return srv
}

// Handler returns the server's full middleware-wrapped handler chain.
// Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.withServerHeader(s.logRequests(s.mux))
}

// Start launches the HTTP server and attaches graceful shutdown behaviour.
func (s *Server) Start(ctx context.Context) error {
	listener, err := s.listen(s.cfg.Listen)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(ctxShutdown)
		close(shutdownDone)
	}()

	var serveErr error
	if s.cfg.EnableTLS {
		serveErr = server.ServeTLS(listener, s.cfg.TLSCert, s.cfg.TLSKey)
	} else {
		serveErr = server.Serve(listener)
	}

	if errors.Is(serveErr, http.ErrServerClosed) {
		<-shutdownDone
		return nil
	}
	return serveErr
}

func (s *Server) routes() {
	// Public surface.
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/preload/stream", s.handlePreloadStream)
	s.mux.HandleFunc("/api/contact", s.handleContact)

	// Auth.
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.HandleFunc("/api/auth/session", s.handleSessionInfo)

	// Admin API, session-gated.
	s.mux.HandleFunc("/api/admin/albums", s.requireSession(s.handleAlbums))
	s.mux.HandleFunc("/api/admin/photos", s.requireSession(s.handlePhotos))
	s.mux.HandleFunc("/api/admin/videos", s.requireSession(s.handleVideos))
	s.mux.HandleFunc("/api/admin/videos/feature", s.requireSession(s.handleVideoFeature))
	s.mux.HandleFunc("/api/admin/events", s.requireSession(s.handleEvents))
	s.mux.HandleFunc("/api/admin/messages", s.requireSession(s.handleMessages))
	s.mux.HandleFunc("/api/admin/settings", s.requireSession(s.handleSettings))
	s.mux.HandleFunc("/api/admin/uploads", s.requireSession(s.handleUploads))
	s.mux.HandleFunc("/api/admin/preview", s.requireSession(s.handlePreview))
	s.mux.HandleFunc("/api/admin/geo/states", s.requireSession(s.handleGeoStates))
	s.mux.HandleFunc("/api/admin/geo/municipalities", s.requireSession(s.handleGeoMunicipalities))

	// Admin shell.
	s.mux.HandleFunc("/admin", s.handleAdminShell)

	// Theme assets, served straight from the template directory.
	if dir := s.svc.ThemeDir(); dir != "" {
		s.mux.Handle("/theme/", http.StripPrefix("/theme/", http.FileServer(http.Dir(dir))))
	}

	s.mux.HandleFunc("/", s.handleHome)
}

func (s *Server) listen(address string) (net.Listener, error) {
	if listener, ok, err := s.systemdListener(); err != nil {
		return nil, err
	} else if ok {
		return listener, nil
	}
	if after, ok := strings.CutPrefix(address, "unix:"); ok {
		path := after
		_ = os.Remove(path)
		return net.Listen("unix", path)
	}
	return net.Listen("tcp", address)
}

func (s *Server) systemdListener() (net.Listener, bool, error) {
	pidEnv := strings.TrimSpace(os.Getenv("LISTEN_PID"))
	if pidEnv == "" {
		return nil, false, nil
	}
	pid, err := strconv.Atoi(pidEnv)
	if err != nil || pid != os.Getpid() {
		return nil, false, nil
	}
	fdsEnv := strings.TrimSpace(os.Getenv("LISTEN_FDS"))
	if fdsEnv == "" {
		return nil, false, nil
	}
	fds, err := strconv.Atoi(fdsEnv)
	if err != nil {
		return nil, false, fmt.Errorf("systemd listener: invalid LISTEN_FDS: %w", err)
	}
	if fds <= 0 {
		return nil, false, nil
	}
	const sdListenFdsStart = 3
	file := os.NewFile(uintptr(sdListenFdsStart), fmt.Sprintf("systemd-fd-%d", sdListenFdsStart))
	if file == nil {
		return nil, false, fmt.Errorf("systemd listener: failed to access fd")
	}
	listener, err := net.FileListener(file)
	_ = file.Close()
	if err != nil {
		return nil, false, fmt.Errorf("systemd listener: %w", err)
	}
	_ = os.Unsetenv("LISTEN_PID")
	_ = os.Unsetenv("LISTEN_FDS")
	_ = os.Unsetenv("LISTEN_FDNAMES")
	return listener, true, nil
}

func (s *Server) withServerHeader(next http.Handler) http.Handler {
	if s.serverHeader == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverHeader)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.logger.Info("http", "method", r.Method, "path", r.URL.Path, "status", rw.status, "duration", time.Since(start))
	})
}

// requireSession admits only signed-in admins.
func (s *Server) requireSession(next func(http.ResponseWriter, *http.Request, *session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.FromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r, sess)
	}
}

func sanitizeRequestPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	clean := path.Clean(p)
	if clean == "." {
		return "/"
	}
	return clean
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// Flush lets the SSE handler stream through the logging wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
