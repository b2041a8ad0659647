// Package server exposes the datawatch quality engine and baseline store
// over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/datawatch/datawatch/internal/dataset"
	"github.com/datawatch/datawatch/internal/observability/metrics"
	"github.com/datawatch/datawatch/internal/quality"
	"github.com/datawatch/datawatch/internal/versioning"
	"github.com/datawatch/datawatch/pkg/errors"
	"github.com/datawatch/datawatch/pkg/interfaces"
)

// Config contains HTTP server configuration.
type Config struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Address         string        `json:"-"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	MaxRequestSize  int64         `json:"max_request_size"`
	EnableCORS      bool          `json:"enable_cors"`
	UploadDir       string        `json:"upload_dir"`
	MetadataDir     string        `json:"metadata_dir"`
}

// Dependencies are the wired components the handlers operate on.
type Dependencies struct {
	Reader   *dataset.FileReader
	Engine   *quality.Engine
	Versions *versioning.Manager
	Reports  interfaces.ReportStore
	Metrics  *metrics.PrometheusMetrics
}

// Server is the datawatch HTTP server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	logger     *logrus.Logger
	config     *Config
	reader     *dataset.FileReader
	engine     *quality.Engine
	versions   *versioning.Manager
	reports    interfaces.ReportStore
	metrics    *metrics.PrometheusMetrics
}

// NewServer creates the HTTP server with routes and middleware installed.
func NewServer(config *Config, deps Dependencies, logger *logrus.Logger) (*Server, error) {
	if config == nil {
		return nil, errors.NewValidationError(errors.CodeInvalidConfig, "server config cannot be nil")
	}
	if deps.Reader == nil || deps.Engine == nil || deps.Versions == nil || deps.Reports == nil {
		return nil, errors.NewValidationError(errors.CodeInvalidConfig,
			"reader, engine, versioning manager and report store are required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if config.MaxRequestSize <= 0 {
		config.MaxRequestSize = dataset.MaxFileSizeBytes
	}

	server := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		config:   config,
		reader:   deps.Reader,
		engine:   deps.Engine,
		versions: deps.Versions,
		reports:  deps.Reports,
		metrics:  deps.Metrics,
	}

	server.setupMiddleware()
	server.setupRoutes()

	addr := config.Address
	if addr == "" {
		addr = "0.0.0.0:8000"
	}

	server.httpServer = &http.Server{
		Addr:         addr,
		Handler:      server.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return server, nil
}

// Start runs the HTTP server until it is stopped or fails.
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting HTTP server")
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.WithField("error", err).Error("Error shutting down HTTP server")
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the HTTP router, for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.requestSizeLimitMiddleware)
	if s.config.EnableCORS {
		s.router.Use(s.corsMiddleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/upload", s.handleUpload).Methods("POST")

	api.HandleFunc("/quality/check", s.handleQualityCheck).Methods("POST")
	api.HandleFunc("/quality/reports", s.handleListReports).Methods("GET")
	api.HandleFunc("/quality/reports/{id}", s.handleGetReport).Methods("GET")
	api.HandleFunc("/quality/reports/{id}", s.handleDeleteReport).Methods("DELETE")

	api.HandleFunc("/baselines", s.handleListBaselines).Methods("GET")
	api.HandleFunc("/baselines", s.handleCreateBaseline).Methods("POST")
	api.HandleFunc("/baselines/latest", s.handleLatestBaseline).Methods("GET")
	api.HandleFunc("/baselines/compare", s.handleCompareBaseline).Methods("POST")
	api.HandleFunc("/baselines/{id}", s.handleGetBaseline).Methods("GET")
	api.HandleFunc("/baselines/{id}", s.handleDeleteBaseline).Methods("DELETE")

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
}
