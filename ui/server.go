package ui

import (
	"context"
	"errors"
	"net/http"
	"time"

	domain "finresearch/domain/research"
	"finresearch/internal"
	"finresearch/internal/api"
	"finresearch/internal/research"
	"finresearch/internal/usage"
	"finresearch/ports"

	"github.com/gin-gonic/gin"
)

// Runner executes research runs
type Runner interface {
	Run(ctx context.Context, question string, opts ...research.RunOption) (*domain.RunState, error)
}

// Options are the server's collaborators and settings
type Options struct {
	Engine     Runner
	Runs       ports.RunRepository
	Hub        *api.SSEHub
	Usage      *usage.Service
	GinMode    string
	CORSOrigin string
}

// Server is the research HTTP API
type Server struct {
	router *gin.Engine
	engine Runner
	runs   ports.RunRepository
	hub    *api.SSEHub
	usage  *usage.Service
	logger *internal.Logger
}

// NewServer creates the gin server and registers routes
func NewServer(opts Options) *Server {
	if opts.GinMode != "" {
		gin.SetMode(opts.GinMode)
	}

	s := &Server{
		router: gin.New(),
		engine: opts.Engine,
		runs:   opts.Runs,
		hub:    opts.Hub,
		usage:  opts.Usage,
		logger: internal.DefaultLogger.With("API"),
	}

	s.setupMiddleware(opts.CORSOrigin)
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/api/health", s.handleHealth)
	s.AddResearchRoutes()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Financial research agent is running",
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, srv, s.logger)
}

func serve(ctx context.Context, srv *http.Server, logger *internal.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down %s", srv.Addr)
		return srv.Shutdown(shutdownCtx)
	}
}
