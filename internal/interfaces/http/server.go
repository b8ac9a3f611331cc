// Package http provides the HTTP adapter over the fulfillment service. It
// translates requests to service calls and classified errors to status
// codes; no fulfillment logic lives here.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/fulfillment"
	"github.com/lettertrack/lettertrack/internal/report"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxUploadBytes: 10 << 20,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	service    *fulfillment.Service
	exporter   *report.Exporter
	logger     *zap.Logger
}

// NewServer creates a new HTTP server over the fulfillment service
func NewServer(config ServerConfig, service *fulfillment.Service, exporter *report.Exporter, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		service:  service,
		exporter: exporter,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.service, s.exporter, s.config.MaxUploadBytes, s.logger)

	s.router.GET("/health", handlers.HealthCheck)

	// Professor-facing API
	api := s.router.Group("/api")
	{
		api.POST("/requests", handlers.CreateRequest)
		api.GET("/requests", handlers.ListRequests)
		api.GET("/requests/:id", handlers.GetRequest)
		api.PATCH("/requests/:id", handlers.UpdateRequest)
		api.DELETE("/requests/:id", handlers.DeleteRequest)
		api.POST("/requests/:id/regenerate-code", handlers.RegenerateAccessCode)

		api.GET("/requests/:id/destinations", handlers.ListDestinations)
		api.POST("/requests/:id/destinations", handlers.AddDestination)
		api.PATCH("/destinations/:id", handlers.UpdateDestination)
		api.DELETE("/destinations/:id", handlers.RemoveDestination)
		api.POST("/destinations/:id/sent", handlers.MarkDestinationSent)
		api.POST("/destinations/:id/confirm", handlers.ConfirmDestination)
		api.POST("/destinations/:id/reset", handlers.ResetDestination)

		api.GET("/requests/:id/letters", handlers.ListLetters)
		api.POST("/requests/:id/letters", handlers.CreateLetter)
		api.GET("/letters/:id", handlers.GetLetter)
		api.GET("/letters/:id/download", handlers.DownloadLetter)
		api.DELETE("/letters/:id", handlers.DeleteLetter)
		api.POST("/letters/:id/dispatch", handlers.DispatchEmail)

		api.GET("/requests/:id/documents", handlers.ListDocuments)
		api.DELETE("/documents/:id", handlers.DeleteDocument)

		api.GET("/templates", handlers.ListTemplates)
		api.POST("/templates", handlers.CreateTemplate)
		api.GET("/templates/:id", handlers.GetTemplate)
		api.PATCH("/templates/:id", handlers.UpdateTemplate)
		api.DELETE("/templates/:id", handlers.DeleteTemplate)
		api.POST("/templates/:id/default", handlers.SetDefaultTemplate)

		api.GET("/reports/status", handlers.ExportStatusReport)
	}

	// Student-facing surface, keyed by access code. Read-only apart from
	// document upload; it never mutates request status.
	student := s.router.Group("/student")
	{
		student.GET("/requests/:code", handlers.StudentGetRequest)
		student.POST("/requests/:code/documents", handlers.StudentUploadDocuments)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// listener fails
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

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
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
