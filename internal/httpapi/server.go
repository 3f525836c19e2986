// Package httpapi is the pipeline-graph introspection and events server
// (SPEC_FULL.md domain stack: chi + huma + gorilla/websocket), the
// only HTTP-facing surface of the engine process. It never drives
// playback or recording itself — it only reports what a Player or
// Recorder built elsewhere is doing.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jmylchreest/histreamer/internal/config"
	"github.com/jmylchreest/histreamer/internal/httpapi/middleware"
)

// Server is the chi+huma HTTP server hosting the introspection API.
type Server struct {
	cfg        config.HTTPConfig
	router     *chi.Mux
	api        huma.API
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds a Server with the standard middleware stack
// (RealIP, request ID, logging, panic recovery, CORS, global rate
// limit) already installed, and a Huma API mounted over it. version is
// surfaced in the OpenAPI document.
func NewServer(cfg config.HTTPConfig, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())
	router.Use(middleware.RateLimit(50, 10, "/healthz"))

	humaConfig := huma.DefaultConfig("histreamer introspection API", version)
	humaConfig.Info.Description = "Read-only pipeline-graph and process-stats introspection for a running histreamer engine"

	api := humachi.New(router, humaConfig)

	return &Server{
		cfg:    cfg,
		router: router,
		api:    api,
		logger: logger.With(slog.String("component", "httpapi")),
	}
}

// API returns the Huma API, for registering operations.
func (s *Server) API() huma.API { return s.api }

// Router returns the chi router, for mounting non-Huma routes (e.g. the
// websocket events endpoint).
func (s *Server) Router() *chi.Mux { return s.router }

// Start begins serving and blocks until the listener fails or is
// closed.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:        s.cfg.Address(),
		Handler:     s.router,
		ReadTimeout: s.cfg.ReadTimeout,
	}

	s.logger.Info("starting introspection server", slog.String("address", s.cfg.Address()))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpapi: shutdown: %w", err)
	}
	s.logger.Info("introspection server stopped")
	return nil
}
