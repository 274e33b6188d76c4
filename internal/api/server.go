// Package api is the control surface: a thin gin server over the
// orchestrator for start/stop/status/config plus a websocket event stream.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"trading-orchestrator/internal/database"
	"trading-orchestrator/internal/events"
	"trading-orchestrator/internal/orchestrator"
)

// Server represents the HTTP control surface.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	orch       *orchestrator.Orchestrator
	repo       *database.Repository // may be nil when archive is disabled
	hub        *WSHub
	config     ServerConfig
	logger     zerolog.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           int
	Host           string
	ProductionMode bool
	AllowedOrigins string
}

// NewServer creates the control surface server and wires the websocket hub
// to the event bus.
func NewServer(config ServerConfig, orch *orchestrator.Orchestrator, repo *database.Repository, bus *events.EventBus, logger zerolog.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if config.AllowedOrigins == "" || config.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{config.AllowedOrigins}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	log := logger.With().Str("component", "api").Logger()

	server := &Server{
		router: router,
		orch:   orch,
		repo:   repo,
		hub:    NewWSHub(log),
		config: config,
		logger: log,
	}

	bus.SubscribeAll(server.hub.BroadcastEvent)
	go server.hub.Run()

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.POST("/start", s.handleStart)
		api.POST("/stop", s.handleStop)
		api.GET("/config", s.handleGetConfig)
		api.PUT("/config", s.handleUpdateConfig)
		api.GET("/positions", s.handlePositions)
		api.GET("/stats", s.handleStats)
		api.GET("/trades", s.handleTrades)
	}

	s.router.GET("/ws", s.handleWebSocket)
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.logger.Info().Str("addr", addr).Msg("Control surface listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("control surface server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
