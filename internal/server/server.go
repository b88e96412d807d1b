// Package server provides the HTTP API for frontier runs, artifacts,
// and system status.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/analysis"
	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/events"
	"github.com/aristath/frontier/internal/optimization"
	"github.com/aristath/frontier/internal/scheduler"
	"github.com/aristath/frontier/internal/services"
)

// FrontierRunner triggers frontier runs. Used by the run handler to
// enable testing with mocks.
type FrontierRunner interface {
	Run(ctx context.Context, req *services.RunRequest) (*optimization.FrontierResult, error)
}

// DiagnosticsProvider computes per-asset indicator snapshots. Used by the
// assets handler to enable testing with mocks.
type DiagnosticsProvider interface {
	ForSymbols(ctx context.Context, symbols []string, start, end time.Time) []analysis.AssetDiagnostics
}

// JobLister reports the registered background jobs. Used by the jobs
// handler to enable testing with mocks.
type JobLister interface {
	Jobs() []scheduler.JobInfo
}

// Config holds server configuration.
type Config struct {
	Log         zerolog.Logger
	Config      *config.Config
	DB          *database.DB
	Runner      FrontierRunner
	Diagnostics DiagnosticsProvider
	Bus         *events.Bus
	Jobs        JobLister
	Version     string
}

// Server represents the HTTP server.
type Server struct {
	router      *chi.Mux
	server      *http.Server
	log         zerolog.Logger
	cfg         *config.Config
	db          *database.DB
	runner      FrontierRunner
	diagnostics DiagnosticsProvider
	jobs        JobLister
	events      *EventsStreamHandler
	version     string
	startupTime time.Time
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		log:         cfg.Log.With().Str("component", "server").Logger(),
		cfg:         cfg.Config,
		db:          cfg.DB,
		runner:      cfg.Runner,
		diagnostics: cfg.Diagnostics,
		jobs:        cfg.Jobs,
		events:      NewEventsStreamHandler(cfg.Bus, cfg.Log),
		version:     cfg.Version,
		startupTime: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	// WriteTimeout matches the request timeout middleware so a long
	// frontier run is cut by exactly one deadline. The SSE stream clears
	// its own write deadline.
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Config.Host, cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware shared by every route.
func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	// The event stream outlives the request timeout and must not be
	// compressed, so it is mounted outside the JSON group.
	s.router.Get("/api/events", s.events.ServeHTTP)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(middleware.Compress(5))

		r.Route("/api", func(r chi.Router) {
			r.Get("/health", s.handleHealth)

			r.Route("/frontier", func(r chi.Router) {
				r.Get("/latest", s.handleFrontierLatest)
				r.Post("/run", s.handleFrontierRun)
				r.Get("/chart", s.handleFrontierChart)
			})

			r.Get("/assets/diagnostics", s.handleAssetDiagnostics)

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.handleSystemStatus)
				r.Get("/jobs", s.handleJobsStatus)
				r.Get("/database/stats", s.handleDatabaseStats)
			})
		})
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
