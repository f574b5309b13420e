package ui

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"finresearch/internal"
)

// OpsApp is the operational HTTP server: liveness and pprof
type OpsApp struct {
	router *chi.Mux
	logger *internal.Logger
}

// NewOpsApp creates the ops server router
func NewOpsApp() *OpsApp {
	app := &OpsApp{
		router: chi.NewRouter(),
		logger: internal.DefaultLogger.With("Ops"),
	}
	app.setupMiddleware()
	app.setupRoutes()
	return app
}

// setupMiddleware configures HTTP middleware
func (a *OpsApp) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *OpsApp) setupRoutes() {
	a.router.Get("/healthz", a.handleHealthz)
	a.router.Mount("/debug", middleware.Profiler())
}

func (a *OpsApp) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Handler returns the HTTP handler
func (a *OpsApp) Handler() http.Handler {
	return a.router
}

// ListenAndServe serves on addr until ctx is cancelled
func (a *OpsApp) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, srv, a.logger)
}
