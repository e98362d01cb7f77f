package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/engram-labs/engram-core/internal/core/ports/driven"
	"github.com/engram-labs/engram-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	logger     *slog.Logger
	version    string

	// Services
	ingestService driving.IngestService
	docService    driving.DocumentService
	scheduler     driving.SyncScheduler
	syncStatus    driving.SyncStatusReader
	deviceService driving.DeviceService

	// Infrastructure
	auth              driven.AuthAdapter
	db                Pinger // PostgreSQL health check
	redisClient       Pinger // Redis health check (nil on Postgres-only deployments)
	maxUploadBytes    int64
	uploadTokenHashes map[string]string
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	MaxUploadBytes int64
	AllowedOrigins []string

	// UploadTokenHashes maps user IDs to bcrypt hashes of static upload
	// tokens. Optional; see AuthMiddleware.WithUploadTokens.
	UploadTokenHashes map[string]string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		MaxUploadBytes: 32 << 20, // 32 MiB
		AllowedOrigins: []string{"*"},
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	logger *slog.Logger,
	ingestService driving.IngestService,
	docService driving.DocumentService,
	scheduler driving.SyncScheduler,
	syncStatus driving.SyncStatusReader,
	deviceService driving.DeviceService,
	auth driven.AuthAdapter,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = DefaultConfig().AllowedOrigins
	}

	s := &Server{
		router:            http.NewServeMux(),
		logger:            logger,
		version:           cfg.Version,
		ingestService:     ingestService,
		docService:        docService,
		scheduler:         scheduler,
		syncStatus:        syncStatus,
		deviceService:     deviceService,
		auth:              auth,
		db:                db,
		redisClient:       redisClient,
		maxUploadBytes:    cfg.MaxUploadBytes,
		uploadTokenHashes: cfg.UploadTokenHashes,
	}

	s.setupRoutes()

	// Outer chain: recovery catches handler panics, logging sees the
	// final status code, CORS runs innermost so preflights short-circuit.
	recovery := NewRecoveryMiddleware(logger)
	logging := NewLoggingMiddleware(logger)
	cors := NewCORSMiddleware(cfg.AllowedOrigins)
	handler := recovery.Handler(logging.Handler(cors.Handler(s.router)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Create middleware
	authMiddleware := NewAuthMiddleware(s.auth).WithUploadTokens(s.uploadTokenHashes)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// File upload endpoints (authenticated)
	s.router.Handle("POST /api/v1/files",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleUploadFile)))
	s.router.Handle("GET /api/v1/files",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListFiles)))
	s.router.Handle("GET /api/v1/files/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetFile)))

	// Document endpoints (authenticated)
	s.router.Handle("GET /api/v1/documents",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListDocuments)))
	s.router.Handle("GET /api/v1/documents/review",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListReviewDocuments)))
	s.router.Handle("GET /api/v1/documents/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetDocument)))
	s.router.Handle("GET /api/v1/documents/{id}/chunks",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetDocumentChunks)))
	s.router.Handle("PUT /api/v1/documents/{id}/review",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleReviewDocument)))

	// Device endpoints (authenticated)
	s.router.Handle("POST /api/v1/devices/{id}/network",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleReportNetwork)))
	s.router.Handle("GET /api/v1/devices",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListDevices)))
	s.router.Handle("GET /api/v1/devices/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetDevice)))

	// Sync state (authenticated, own data)
	s.router.Handle("GET /api/v1/sync/state",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetSyncStates)))

	// Sync control (operator-only)
	s.router.Handle("POST /api/v1/sync/trigger",
		authMiddleware.Authenticate(
			authMiddleware.RequireOperator(http.HandlerFunc(s.handleTriggerSync))))
	s.router.Handle("GET /api/v1/sync/status",
		authMiddleware.Authenticate(
			authMiddleware.RequireOperator(http.HandlerFunc(s.handleSchedulerStatus))))
	s.router.Handle("GET /api/v1/sync/sources/{source}",
		authMiddleware.Authenticate(
			authMiddleware.RequireOperator(http.HandlerFunc(s.handleListSourceStates))))
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	// Channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting http server", "addr", s.httpServer.Addr, "version", s.version)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	<-stop
	s.logger.Info("shutting down http server")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
