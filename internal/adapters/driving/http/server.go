package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-relay/internal/core/ports/driving"
	"golang.org/x/sync/errgroup"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	integrationService driving.IntegrationService
	store              Pinger

	rateLimit *RateLimitMiddleware
	cors      *CORSMiddleware
}

// Config holds server configuration
type Config struct {
	Addr           string
	Version        string
	AllowedOrigins []string
	RateLimitRPM   int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Addr:           "0.0.0.0:8000",
		Version:        "dev",
		AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		RateLimitRPM:   120,
	}
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, integrationService driving.IntegrationService, store Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:             http.NewServeMux(),
		version:            cfg.Version,
		logger:             logger,
		integrationService: integrationService,
		store:              store,
		rateLimit:          NewRateLimitMiddleware(cfg.RateLimitRPM),
		cors:               NewCORSMiddleware(cfg.AllowedOrigins),
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("GET /{$}", s.handleRoot)
	s.router.HandleFunc("GET /ping", s.handlePing)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Integration endpoints
	s.router.HandleFunc("GET /integrations", s.handleListProviders)
	s.router.Handle("POST /integrations/{provider}/authorize",
		s.rateLimit.Handler(http.HandlerFunc(s.handleAuthorize)))
	// Callback receives redirects from the provider
	s.router.HandleFunc("GET /integrations/{provider}/oauth2callback", s.handleOAuthCallback)
	s.router.Handle("POST /integrations/{provider}/credentials",
		s.rateLimit.Handler(http.HandlerFunc(s.handleCredentials)))
	s.router.Handle("POST /integrations/{provider}/load",
		s.rateLimit.Handler(http.HandlerFunc(s.handleLoad)))

	// Legacy HubSpot item route used by older web clients
	s.router.Handle("POST /integrations/hubspot/get_hubspot_items",
		s.rateLimit.Handler(http.HandlerFunc(s.handleLegacyHubSpotItems)))
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = s.cors.Handler(h)
	h = NewRecoveryMiddleware(s.logger).Handler(h)
	h = NewLoggingMiddleware(s.logger).Handler(h)
	return h
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
