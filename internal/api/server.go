// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/deal-scanner/internal/engine"
	"github.com/deal-scanner/internal/logging"
	"github.com/deal-scanner/internal/models"
	"github.com/deal-scanner/internal/types"
)

// Service interfaces for dependency injection and testing

// SearchRegistryInterface defines the registry operations the API exposes
type SearchRegistryInterface interface {
	Create(ctx context.Context, search *models.SavedSearch) (*models.SavedSearch, error)
	Get(id string) (*models.SavedSearch, error)
	GetAll() []*models.SavedSearch
	Update(ctx context.Context, id string, update *models.SavedSearch) (*models.SavedSearch, error)
	Delete(ctx context.Context, id string) error
	Settings() models.AutomationSettings
	UpdateSettings(ctx context.Context, settings models.AutomationSettings) error
	Degraded() bool
}

// ScanEngineInterface defines the engine operations the API exposes
type ScanEngineInterface interface {
	TriggerNow(searchID string) (*models.ScanJob, error)
	Events(limit int) []models.EventLogEntry
	Candidates(searchID string, limit int) []models.Candidate
	Status() engine.Status
}

// ActivityRecorder receives user activity pings
type ActivityRecorder interface {
	Touch()
	QueryIdleState(threshold time.Duration) types.IdleState
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	registry   SearchRegistryInterface
	engine     ScanEngineInterface
	activity   ActivityRecorder
	config     *ServerConfig
	logger     *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond int
	Burst             int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	registry SearchRegistryInterface,
	eng ScanEngineInterface,
	activity ActivityRecorder,
	logger *logging.Logger,
) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		registry: registry,
		engine:   eng,
		activity: activity,
		config:   config,
		logger:   logger,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

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
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Saved search endpoints
	api.HandleFunc("/searches", s.handleCreateSearch).Methods("POST")
	api.HandleFunc("/searches", s.handleListSearches).Methods("GET")
	api.HandleFunc("/searches/{id}", s.handleGetSearch).Methods("GET")
	api.HandleFunc("/searches/{id}", s.handleUpdateSearch).Methods("PUT")
	api.HandleFunc("/searches/{id}", s.handleDeleteSearch).Methods("DELETE")
	api.HandleFunc("/searches/{id}/scan", s.handleTriggerScan).Methods("POST")

	// Settings endpoints
	api.HandleFunc("/settings", s.handleGetSettings).Methods("GET")
	api.HandleFunc("/settings", s.handleUpdateSettings).Methods("PUT")

	// Result and event endpoints
	api.HandleFunc("/candidates", s.handleListCandidates).Methods("GET")
	api.HandleFunc("/events", s.handleListEvents).Methods("GET")

	// Engine status and activity
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/activity", s.handleActivityPing).Methods("POST")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if s.registry.Degraded() {
		status = "degraded"
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"service": "deal-scanner",
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
