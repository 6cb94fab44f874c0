// Package server exposes a loaded export archive over a
// read-only JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wesm/projectsview/internal/config"
	"github.com/wesm/projectsview/internal/correlate"
)

// ErrNotLoaded is returned by Reload when no loader is set.
var ErrNotLoaded = errors.New("archive not loaded")

// VersionInfo holds build-time version metadata.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// LoadFunc loads a fresh engine from the input files.
type LoadFunc func() (*correlate.Engine, error)

// Server is the HTTP server for the archive API. cfg is not
// modified after New.
type Server struct {
	mu       sync.RWMutex
	cfg      config.Config
	port     int
	engine   *correlate.Engine
	loadedAt time.Time
	load     LoadFunc
	router   chi.Router
	httpSrv  *http.Server
	version  VersionInfo
	logger   *slog.Logger

	// handlerDelay is injected before each timeout-wrapped
	// handler, used only by tests to guarantee handlers
	// exceed a short timeout. Zero in production.
	handlerDelay time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the build-time version metadata.
func WithVersion(v VersionInfo) Option {
	return func(s *Server) { s.version = v }
}

// WithLoader sets the function Reload uses to rebuild the engine.
func WithLoader(f LoadFunc) Option {
	return func(s *Server) { s.load = f }
}

// WithLogger sets the request and reload logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHandlerDelay delays every timeout-wrapped handler. Tests
// use it to trip the write timeout.
func WithHandlerDelay(d time.Duration) Option {
	return func(s *Server) { s.handlerDelay = d }
}

// New creates a Server serving engine, which may be nil until
// the first Reload.
func New(
	cfg config.Config, engine *correlate.Engine, opts ...Option,
) *Server {
	s := &Server{
		cfg:    cfg,
		port:   cfg.Port,
		engine: engine,
		logger: slog.Default(),
	}
	if engine != nil {
		s.loadedAt = time.Now()
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logMiddleware)
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", s.withTimeout(s.handleHealth))
		r.Method(http.MethodGet, "/version", s.withTimeout(s.handleGetVersion))
		r.Method(http.MethodGet, "/projects", s.withTimeout(s.handleListProjects))
		r.Method(http.MethodGet, "/projects/{query}",
			s.withTimeout(s.handleGetProject))
		r.Method(http.MethodGet, "/conversations/{id}/messages",
			s.withTimeout(s.handleGetMessages))
		// Full exports can be large: no timeout handler, which
		// would buffer the whole body.
		r.Get("/export", s.handleExport)
		r.Get("/non-project", s.handleNonProject)
		r.Post("/reload", s.handleReload)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	s.router = r
}

// Handler returns the http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// currentEngine returns the engine in use (thread-safe).
func (s *Server) currentEngine() (*correlate.Engine, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine, s.loadedAt
}

// SetEngine swaps in a freshly loaded engine. In-flight requests
// keep the engine they started with.
func (s *Server) SetEngine(e *correlate.Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = e
	s.loadedAt = time.Now()
}

// Reload rebuilds the engine with the configured loader. On
// failure the previous engine stays in place.
func (s *Server) Reload() error {
	if s.load == nil {
		return ErrNotLoaded
	}
	e, err := s.load()
	if err != nil {
		s.logger.Error("reload failed, keeping previous archive",
			"error", err)
		return fmt.Errorf("reloading archive: %w", err)
	}
	s.SetEngine(e)
	t := e.Totals()
	s.logger.Info("archive reloaded",
		"projects", t.Projects, "conversations", t.Conversations)
	return nil
}

// SetPort updates the listen port (for testing).
func (s *Server) SetPort(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.port = port
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.mu.Lock()
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.port))
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.httpSrv = srv
	s.mu.Unlock()
	s.logger.Info("starting server", "url", "http://"+addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.httpSrv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// FindAvailablePort finds an available port starting from the
// given port, binding to the specified host.
func FindAvailablePort(host string, start int) int {
	for port := start; port < start+100; port++ {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			ln.Close()
			return port
		}
	}
	return start
}
