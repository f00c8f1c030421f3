// Package server exposes the live detection session over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/esimov/facemark"
	"github.com/esimov/facemark/canvas"
	"github.com/esimov/facemark/internal/config"
)

// Deps are the collaborators served by the HTTP API.
type Deps struct {
	Session   *facemark.Session
	Source    facemark.FrameSource
	Overlay   *canvas.Canvas
	Publisher *Publisher
	// Callbacks are passed to StartSession.
	Callbacks facemark.Callbacks
	Logger    zerolog.Logger
}

type Server struct {
	cfg    *config.Config
	deps   Deps
	router *gin.Engine
	server *http.Server
	logger zerolog.Logger
}

func New(cfg *config.Config, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: gin.New(),
		logger: deps.Logger.With().Str("component", "server").Logger(),
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.health)

	session := s.router.Group("/session")
	{
		session.GET("", s.sessionStats)
		session.POST("/start", s.startSession)
		session.POST("/stop", s.stopSession)
	}

	s.router.GET("/stream", s.stream)
	s.router.GET("/frame", s.frame)
	s.router.POST("/detect", s.detect)
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request served")
	}
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured port until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
