// Package web provides the HTTP API and summary pages for stored effective
// area tables.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bsipocz/gammapy/internal/catalog"
	"github.com/bsipocz/gammapy/internal/config"
	"github.com/bsipocz/gammapy/internal/web/middleware"
)

// Server is the HTTP server for the ARF catalog.
type Server struct {
	catalog catalog.Catalog
	cfg     *config.Config
	logger  *slog.Logger
	router  *chi.Mux
	limiter *middleware.RateLimiter
	work    *workLimiter
	server  *http.Server
}

// NewServer creates a Server over cat. Call Shutdown to release the rate
// limiter even if Start was never called.
func NewServer(cat catalog.Catalog, cfg *config.Config, logger *slog.Logger) *Server {
	s := &Server{
		catalog: cat,
		cfg:     cfg,
		logger:  logger,
		router:  chi.NewRouter(),
		work:    newWorkLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWait),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies, s.logger))
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(middleware.SecurityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.limiter = middleware.NewRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(s.limiter.Handler)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	// Pages
	s.router.Get("/", s.handleIndexPage)
	s.router.Get("/arf/{id}", s.handleTablePage)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/instruments", s.handleInstruments)
		r.Get("/parametrization", s.handleParametrization)

		r.Route("/arf", func(r chi.Router) {
			r.Get("/", s.handleListTables)
			r.Get("/{id}", s.handleGetTable)
			r.Get("/{id}/fits", s.handleDownloadFITS)
			r.Get("/{id}/info", s.handleInfo)
			r.Get("/{id}/lookup", s.handleLookup)
			r.Get("/{id}/plot.png", s.handlePlot)

			// Mutations
			r.Group(func(r chi.Router) {
				r.Use(middleware.APIKeyAuth(s.cfg.Security))
				r.Post("/", s.handleUpload)
				r.Post("/parametrize", s.handleParametrize)
				r.Delete("/{id}", s.handleDeleteTable)
			})
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}

	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
