package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"psybot/internal/handler"
	"psybot/internal/middleware"
)

// Server is the admin HTTP API.
type Server struct {
	router *gin.Engine
	http   *http.Server
	logger *zap.Logger
}

// Options configure the admin HTTP API.
type Options struct {
	Host   string
	Port   string
	// Secret verifies admin Bearer tokens.
	Secret string
}

// NewServer creates the admin API listening on opts.Host:opts.Port.
func NewServer(opts Options, moderator handler.Moderator, admins middleware.AdminChecker, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		router: router,
		http: &http.Server{
			Addr:              net.JoinHostPort(opts.Host, opts.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
	s.setupRoutes(opts.Secret, moderator, admins)
	return s
}

func (s *Server) setupRoutes(secret string, moderator handler.Moderator, admins middleware.AdminChecker) {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := handler.NewModerationHandler(moderator, s.logger)

	api := s.router.Group("/api/v1/moderation")
	api.Use(middleware.AdminMiddleware(secret, admins, s.logger))
	{
		api.GET("/submissions/pending", h.ListPending)
		api.GET("/submissions/:id", h.GetSubmission)
		api.POST("/submissions/:id/approve", h.Approve)
		api.POST("/submissions/:id/reject", h.Reject)
		api.GET("/users/:user_id/submissions", h.ListUserSubmissions)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
