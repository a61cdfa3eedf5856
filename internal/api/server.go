// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/contract-pulse/internal/logging"
	"github.com/contract-pulse/internal/models"
	"github.com/contract-pulse/internal/storage"
	"github.com/gorilla/mux"
)

// SyncServiceInterface defines the sync operations the handlers need
type SyncServiceInterface interface {
	StartContinuousContractSync(ctx context.Context, analysisID, userID string) error
	StopContinuousContractSync(analysisID string) bool
	IsActive(analysisID string) bool
}

// SnapshotReader serves the latest cached snapshot for status polling
type SnapshotReader interface {
	GetLatestSnapshot(ctx context.Context, analysisID string) (*models.AccumulatedMetrics, error)
}

// Server represents the HTTP API server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	syncService  SyncServiceInterface
	analysisRepo *storage.AnalysisRepository
	userRepo     *storage.UserRepository
	snapshots    SnapshotReader // optional
	config       *ServerConfig
	logger       *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	syncService SyncServiceInterface,
	analysisRepo *storage.AnalysisRepository,
	userRepo *storage.UserRepository,
	snapshots SnapshotReader,
	logger *logging.Logger,
) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	s := &Server{
		router:       mux.NewRouter(),
		syncService:  syncService,
		analysisRepo: analysisRepo,
		userRepo:     userRepo,
		snapshots:    snapshots,
		config:       config,
		logger:       logger,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// OPTIONS must match each route so the CORS middleware sees preflights
	api.HandleFunc("/analyses", s.handleCreateAnalysis).Methods("POST", "OPTIONS")
	api.HandleFunc("/analyses/{id}", s.handleGetAnalysis).Methods("GET", "OPTIONS")
	api.HandleFunc("/analyses/{id}/sync", s.handleStartSync).Methods("POST")
	api.HandleFunc("/analyses/{id}/sync", s.handleGetSyncStatus).Methods("GET")
	api.HandleFunc("/analyses/{id}/sync", s.handleStopSync).Methods("DELETE", "OPTIONS")

	api.HandleFunc("/users", s.handleCreateUser).Methods("POST", "OPTIONS")
	api.HandleFunc("/users/{id}", s.handleGetUser).Methods("GET", "OPTIONS")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "contract-pulse",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the underlying router, used by tests
func (s *Server) Router() *mux.Router {
	return s.router
}
