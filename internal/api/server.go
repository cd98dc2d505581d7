// Package api exposes the analysis pipeline over HTTP: upload, progress
// polling and streaming, results, explanations, follow-up Q&A and
// storage statistics.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/bloodcell-ai-server/internal/domain"
	"github.com/bloodcell-ai-server/internal/service"
)

// Server represents the HTTP server
type Server struct {
	config   *domain.Config
	logger   *logrus.Logger
	analyzer *service.Analyzer
	store    domain.Store
	tracker  domain.ProgressTracker
	router   *gin.Engine
	server   *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(
	config *domain.Config,
	logger *logrus.Logger,
	analyzer *service.Analyzer,
	store domain.Store,
	tracker domain.ProgressTracker,
) *Server {
	// Set Gin mode based on environment
	if config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())

	server := &Server{
		config:   config,
		logger:   logger,
		analyzer: analyzer,
		store:    store,
		tracker:  tracker,
		router:   router,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	uploadLimiter := rate.NewLimiter(
		rate.Limit(s.config.Server.UploadRatePerSecond),
		s.config.Server.UploadBurst,
	)

	api := s.router.Group("/api")
	{
		api.POST("/upload", rateLimitMiddleware(uploadLimiter), s.handleUpload)
		api.GET("/progress/:id", s.handleProgress)
		api.GET("/progress/:id/ws", s.handleProgressStream)
		api.GET("/results/:id", s.handleResults)
		api.POST("/medical-explanation/:id", s.handleExplanation)
		api.POST("/follow-up/:id", s.handleAskFollowUp)
		api.GET("/follow-up/:id", s.handleListFollowUps)
		api.GET("/analyses/recent", s.handleRecentAnalyses)
		api.DELETE("/analyses/:id", s.handleDeleteAnalysis)
		api.GET("/stats", s.handleStats)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"version":   "1.0.0",
	})
}
