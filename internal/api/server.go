// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/stream-indexer/internal/logging"
	"github.com/stream-indexer/internal/models"
	"github.com/stream-indexer/internal/service"
)

// SyncServiceInterface defines the sync operations the API exposes
type SyncServiceInterface interface {
	Sync(ctx context.Context, input *service.SyncInput) (*service.SyncResult, error)
	Status(ctx context.Context, deploymentAddress string) ([]*service.StatusEntry, error)
	ListDeployments(ctx context.Context) ([]*models.Deployment, error)
}

// StatsServiceInterface defines the stats operations the API exposes
type StatsServiceInterface interface {
	Volume(ctx context.Context, deploymentAddress string) ([]*models.TokenVolume, error)
	TVL(ctx context.Context, deploymentAddress string) ([]*models.TokenTVL, error)
	TokenMetadata(ctx context.Context, address string) (*models.Token, error)
}

// StatusCache shields the status endpoint from hot polling. Implementations
// degrade silently; the Redis cache service satisfies it.
type StatusCache interface {
	GetStatus(ctx context.Context, key string) ([]byte, bool)
	SetStatus(ctx context.Context, key string, payload []byte)
	InvalidateStatus(ctx context.Context, keys ...string)
}

// Server represents the HTTP API server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	syncService  SyncServiceInterface
	statsService StatsServiceInterface
	statusCache  StatusCache
	config       *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
}

// DefaultServerConfig returns a server config with sane timeouts
func DefaultServerConfig(host, port string) *ServerConfig {
	return &ServerConfig{
		Host:            host,
		Port:            port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
	}
}

// NewServer creates a new API server instance. statusCache may be nil.
func NewServer(config *ServerConfig, syncService SyncServiceInterface, statsService StatsServiceInterface, statusCache StatusCache) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		syncService:  syncService,
		statsService: statsService,
		statusCache:  statusCache,
		config:       config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)

	// Middleware order matters: the request id must exist before logging,
	// and recovery must wrap everything below it.
	s.router.Use(RequestIDMiddleware)
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
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Sync endpoints
	api.HandleFunc("/sync", s.handleSync).Methods("POST")
	api.HandleFunc("/sync/status", s.handleSyncStatus).Methods("GET")

	// Deployment registry
	api.HandleFunc("/deployments", s.handleListDeployments).Methods("GET")

	// Stats endpoints
	api.HandleFunc("/stats/volume", s.handleVolume).Methods("GET")
	api.HandleFunc("/stats/tvl", s.handleTVL).Methods("GET")

	// Token metadata
	api.HandleFunc("/tokens/{address}", s.handleToken).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "stream-indexer",
	})
}

// Router exposes the configured handler for tests and embedding
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.GetGlobalLogger().WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.GetGlobalLogger().Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
