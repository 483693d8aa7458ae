// Package server provides the HTTP API for nursesim.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/nursesim/internal/config"
	"github.com/hyperjump/nursesim/internal/embedding"
	"github.com/hyperjump/nursesim/internal/metrics"
	"github.com/hyperjump/nursesim/internal/scenario"
	"github.com/hyperjump/nursesim/internal/search"
	"github.com/hyperjump/nursesim/internal/storage"
	"github.com/hyperjump/nursesim/internal/translate"
)

// WatchService reports the directories being watched for ingestion.
type WatchService interface {
	Directories() []string
}

// Deps are the services the HTTP handlers call.
type Deps struct {
	Engine     *search.Engine
	Generator  *scenario.Generator
	Scenarios  *scenario.Service
	Store      storage.Storage
	Embedder   embedding.Embedder
	Translator translate.Translator
	Watch      WatchService // nil when no directories are watched
}

// Server is the HTTP server for the nursesim API.
type Server struct {
	deps   Deps
	config *config.Config
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{deps: deps, config: cfg, logger: logger}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(middleware.Timeout(s.requestTimeout()))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(metrics.Middleware())

		r.Get("/status", s.handleStatus)
		r.Post("/translate", s.handleTranslate)

		r.Route("/diseases", func(r chi.Router) {
			r.Get("/", s.handleListDiseases)
			r.Post("/", s.handleCreateDisease)
			r.Delete("/", s.handleDeleteDiseases)
			r.Post("/search", s.handleSearch)
			r.Get("/by-title", s.handleGetDiseaseByTitle)
			r.Get("/{id}", s.handleGetDisease)
		})

		r.Route("/generate", func(r chi.Router) {
			r.Post("/details", s.handleGenerateDetails)
			r.Post("/overview", s.handleGenerateOverview)
			r.Post("/scenario", s.handleGenerateScenario)
			r.Post("/revision", s.handleGenerateRevision)
			r.Post("/summary", s.handleGenerateSummary)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", s.handleListScenarios)
			r.Post("/", s.handleSaveScenario)
			r.Delete("/", s.handleDeleteScenarios)
			r.Get("/{id}", s.handleGetScenario)
			r.Put("/{id}", s.handleUpdateScenario)
		})
	})
	return r
}

func (s *Server) requestTimeout() time.Duration {
	if s.config != nil && s.config.Server.RequestTimeout > 0 {
		return s.config.Server.RequestTimeout
	}
	return 3 * time.Minute
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := "localhost:8080"
	if s.config != nil {
		addr = s.config.Server.Address()
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
