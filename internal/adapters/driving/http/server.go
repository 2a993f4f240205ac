package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/runtime"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	maxBodyBytes int64

	// Services
	authService driving.AuthService
	qaService   driving.QAService

	// Infrastructure (readiness probes)
	services *runtime.Services
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// MaxBodyBytes caps request bodies (0 = 1 MiB)
	MaxBodyBytes int64

	// WriteTimeout must cover a full pipeline run
	WriteTimeout time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8000,
		Version:      "dev",
		MaxBodyBytes: 1 << 20,
		WriteTimeout: 5 * time.Minute,
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	authService driving.AuthService,
	qaService driving.QAService,
	services *runtime.Services,
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}

	s := &Server{
		router:       http.NewServeMux(),
		version:      cfg.Version,
		logger:       logger,
		maxBodyBytes: cfg.MaxBodyBytes,
		authService:  authService,
		qaService:    qaService,
		services:     services,
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService)
	bodyLimit := NewBodyLimitMiddleware(s.maxBodyBytes)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwagger)

	// Question answering (team token)
	s.router.Handle("GET /api/v1/runs/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetRun)))
	s.router.Handle("POST /api/v1/hackrx/run",
		authMiddleware.Authenticate(
			bodyLimit.Handler(http.HandlerFunc(s.handleRun))))
}

// Handler returns the router wrapped in recovery and access logging
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = NewRecoveryMiddleware(s.logger).Handler(h)
	h = NewLoggingMiddleware(s.logger).Handler(h)
	return h
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start serves until Stop is called. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down, waiting for in-flight runs
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
