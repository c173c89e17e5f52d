// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-drafts/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	MetricsPath     string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		Mode:            gin.ReleaseMode,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    90 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxUploadBytes:  20 << 20,
		MetricsPath:     "/metrics",
	}
}

// Services bundles the application services exposed over HTTP
type Services struct {
	Receipts   service.ReceiptService
	Drafts     service.DraftService
	References service.ReferenceService
	Export     service.ExportService
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	metrics    http.Handler
	logger     Logger
}

// NewServer creates a new HTTP server with the given services.
// metrics may be nil, in which case no metrics route is registered.
func NewServer(config ServerConfig, services Services, metrics http.Handler, logger Logger) *Server {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	router := gin.New()

	server := &Server{
		config:   config,
		router:   router,
		services: services,
		metrics:  metrics,
		logger:   logger,
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup routes
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(corsMiddleware())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// Process request
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"request_id", requestID(c),
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.services, s.config.MaxUploadBytes, s.logger)

	// Health check
	s.router.GET("/health", handlers.HealthCheck)

	if s.metrics != nil {
		s.router.GET(s.config.MetricsPath, gin.WrapH(s.metrics))
	}

	api := s.router.Group("/api")
	{
		// Receipts
		api.POST("/upload", handlers.UploadReceipt)
		api.POST("/ocr/:id", handlers.ExtractReceipt)

		// Drafts
		api.GET("/drafts", handlers.ListDrafts)
		api.GET("/drafts/:id", handlers.GetDraft)
		api.PATCH("/drafts/:id", handlers.UpdateDraft)
		api.POST("/drafts/:id/policy", handlers.EvaluatePolicy)
		api.POST("/drafts/:id/categorize", handlers.CategorizeDraft)
		api.POST("/drafts/:id/submit", handlers.SubmitDraft)
		api.GET("/export/drafts.xlsx", handlers.ExportDrafts)

		// Reference data
		api.GET("/employees", handlers.ListEmployees)
		api.POST("/employees", handlers.CreateEmployee)
		api.GET("/teams", handlers.ListTeams)
		api.POST("/teams", handlers.CreateTeam)
		api.GET("/trips", handlers.ListTrips)
		api.POST("/trips", handlers.CreateTrip)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
