package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/innovest/innovest-rag/internal/core/ports/driven"
	"github.com/innovest/innovest-rag/internal/core/ports/driving"
	"github.com/innovest/innovest-rag/internal/observability"
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
	backend    string
	logger     *slog.Logger

	// Services
	ingestion driving.IngestionService
	retrieval driving.RetrievalService

	// Infrastructure
	store     driven.VectorStore
	taskQueue driven.TaskQueue
	auth      driven.AuthAdapter // nil disables bearer-token checks
	metrics   *observability.Metrics
	checks    map[string]Pinger

	allowedOrigins []string
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// Backend names the vector store on the debug endpoint
	Backend        string
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		Backend:        "memory",
		AllowedOrigins: []string{"*"},
	}
}

// Dependencies are the collaborators the routes call into.
// Auth, Metrics and Checks are optional.
type Dependencies struct {
	Ingestion driving.IngestionService
	Retrieval driving.RetrievalService
	Store     driven.VectorStore
	TaskQueue driven.TaskQueue
	Auth      driven.AuthAdapter
	Metrics   *observability.Metrics
	Checks    map[string]Pinger
	Logger    *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:         http.NewServeMux(),
		version:        cfg.Version,
		backend:        cfg.Backend,
		logger:         logger,
		ingestion:      deps.Ingestion,
		retrieval:      deps.Retrieval,
		store:          deps.Store,
		taskQueue:      deps.TaskQueue,
		auth:           deps.Auth,
		metrics:        deps.Metrics,
		checks:         deps.Checks,
		allowedOrigins: cfg.AllowedOrigins,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.auth)
	protect := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(h)
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwaggerDoc)
	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics.Handler())
	}

	// Ingestion endpoints
	s.router.Handle("POST /api/v1/deals/{dealId}/documents/ingest", protect(s.handleIngest))
	s.router.Handle("GET /api/v1/deals/{dealId}/jobs", protect(s.handleListJobs))
	s.router.Handle("GET /api/v1/jobs/{id}", protect(s.handleGetJob))

	// Search endpoints
	s.router.Handle("GET /api/v1/deals/search", protect(s.handleDealSearch))
	s.router.Handle("POST /api/v1/search", protect(s.handleSearch))

	// Operational endpoints
	s.router.Handle("GET /api/v1/debug/embeddings", protect(s.handleDebugEmbeddings))
	s.router.Handle("GET /api/v1/queue/stats", protect(s.handleQueueStats))
}

// Handler returns the router wrapped in the standard middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = NewCORSMiddleware(s.allowedOrigins).Handler(h)
	h = NewLoggingMiddleware(s.logger).Handler(h)
	h = NewRecoveryMiddleware(s.logger).Handler(h)
	return h
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
