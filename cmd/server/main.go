package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"

	"github.com/plantsight/pipevalidation/backend"
	"github.com/plantsight/pipevalidation/client"
	"github.com/plantsight/pipevalidation/internal/logger"
	"github.com/plantsight/pipevalidation/units"
	"github.com/plantsight/pipevalidation/validation"
)

// Server wires the orchestration components behind an HTTP facade: rule
// creation, test bundling, run triggering with background polling, and
// result correlation.
type Server struct {
	backend    validation.Backend
	builder    *validation.Builder
	tracker    *validation.Tracker
	catalog    *validation.Catalog
	correlator *validation.Correlator
	pipelines  validation.PipelineSource
	modelID    string
	router     *chi.Mux

	polling atomic.Bool
}

// Config is read from the environment in main.
type Config struct {
	ProjectID      string
	ModelID        string
	ModelVersionID string
	DatabaseURL    string
	APIBaseURL     string
	APIToken       string
	PipelinesFile  string
	Port           string
}

func NewServer(cfg Config, be validation.Backend) *Server {
	converter := units.NewConverter()

	var source validation.PipelineSource = emptyPipelineSource{}
	if cfg.PipelinesFile != "" {
		source = &filePipelineSource{path: cfg.PipelinesFile}
	}

	s := &Server{
		backend:    be,
		builder:    validation.NewBuilder(be, converter, cfg.ProjectID),
		tracker:    validation.NewTracker(be, cfg.ProjectID, cfg.ModelID, cfg.ModelVersionID, validation.TrackerConfig{}),
		catalog:    validation.NewCatalog(be, cfg.ProjectID, validation.DefaultCatalogConfig()),
		correlator: validation.NewCorrelator(converter),
		pipelines:  source,
		modelID:    cfg.ModelID,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/materials", s.handleMaterials)
		r.Get("/templates", s.handleTemplates)
		r.Post("/rules", s.handleCreateRule)
		r.Get("/rules", s.handleListRules)
		r.Post("/tests", s.handleCreateTest)
		r.Get("/activity", s.handleActivity)
		r.Post("/tests/{testId}/run", s.handleRunTest)
		r.Get("/results/{resultId}", s.handleResult)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the background polling loop.
func (s *Server) Close() {
	s.tracker.Close()
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

// errorStatus maps the error taxonomy onto HTTP statuses.
func errorStatus(err error) int {
	var authErr *validation.AuthError
	var templateErr *validation.TemplateNotFoundError
	var convErr *units.ConversionError
	var backendErr *validation.BackendRequestError
	switch {
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &templateErr):
		return http.StatusPreconditionFailed
	case errors.As(err, &convErr):
		return http.StatusBadRequest
	case errors.As(err, &backendErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func main() {
	cfg := Config{
		ProjectID:      os.Getenv("PROJECT_ID"),
		ModelID:        os.Getenv("MODEL_ID"),
		ModelVersionID: os.Getenv("MODEL_VERSION_ID"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		APIBaseURL:     os.Getenv("VALIDATION_API_URL"),
		APIToken:       os.Getenv("VALIDATION_API_TOKEN"),
		PipelinesFile:  os.Getenv("PIPELINES_FILE"),
		Port:           os.Getenv("PORT"),
	}
	if cfg.ProjectID == "" {
		logger.Fatal("PROJECT_ID environment variable is required")
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	be, cleanup, err := selectBackend(cfg)
	if err != nil {
		logger.Fatal("failed to set up backend", "error", err)
	}
	defer cleanup()

	server := NewServer(cfg, be)
	defer server.Close()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

// selectBackend picks the Backend implementation from the environment:
// a Postgres catalog when DATABASE_URL is set, a remote service when
// VALIDATION_API_URL is set, otherwise the in-memory simulator.
func selectBackend(cfg Config) (validation.Backend, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("using postgres backend")
		return backend.NewPostgres(db), func() { db.Close() }, nil

	case cfg.APIBaseURL != "":
		c, err := client.New(client.Config{
			BaseURL:       cfg.APIBaseURL,
			TokenProvider: client.StaticToken(cfg.APIToken),
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using remote validation service", "url", cfg.APIBaseURL)
		return c, func() {}, nil

	default:
		logger.Info("using in-memory backend")
		return backend.NewInMemory(), func() {}, nil
	}
}
