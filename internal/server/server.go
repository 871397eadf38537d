// Package server wires the chi router and owns the HTTP listener.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/triagekit/triagekit/internal/errors"
	"github.com/triagekit/triagekit/internal/server/handlers"
	"github.com/triagekit/triagekit/internal/server/middleware"
)

// Options configures the HTTP server.
type Options struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	Version handlers.VersionInfo
}

// Server is the HTTP front of the service.
type Server struct {
	opts   Options
	api    *handlers.API
	health *handlers.HealthManager
	log    *zap.Logger

	httpServer *http.Server
}

// New builds a server around the API handlers. The health manager may be
// pre-populated with checkers before Start.
func New(opts Options, api *handlers.API, health *handlers.HealthManager, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if health == nil {
		health = handlers.NewHealthManager(opts.Version.Version)
	}
	return &Server{opts: opts, api: api, health: health, log: log}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.opts.Port
}

// Health exposes the health manager so callers can register checkers.
func (s *Server) Health() *handlers.HealthManager {
	return s.health
}

// Handler builds the full router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS)
	r.Use(chimiddleware.RealIP)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, req, apperrors.CodeNotFound, "route not found", map[string]any{"path": req.URL.Path})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, req, apperrors.CodeMethodNotAllowed,
			fmt.Sprintf("method %s not allowed", req.Method), nil)
	})

	r.Post("/run-tests", s.api.Trigger)
	r.Get("/jobs", s.api.ListJobs)
	r.Get("/jobs/{job_id}", s.api.GetJob)
	r.Get("/bugs", s.api.ListBugs)
	r.Get("/ws/{job_id}", s.api.WatchJob)

	r.Get("/health", s.health.HealthHandler)
	r.Get("/version", handlers.VersionHandler(s.opts.Version))

	return r
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	s.log.Info("http server listening", zap.String("addr", addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
