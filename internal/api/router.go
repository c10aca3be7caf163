// Package api serves the dashboard JSON API over the store and the case
// coordinator.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ashish9731/email-responder/internal/api/recovery"
	"github.com/ashish9731/email-responder/internal/errorlog"
	"github.com/ashish9731/email-responder/internal/metrics"
	"github.com/ashish9731/email-responder/internal/models"
	"github.com/ashish9731/email-responder/internal/status"
	"github.com/ashish9731/email-responder/internal/storage"
)

// Monitor is the part of the case coordinator the API drives
type Monitor interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	RunCycle(ctx context.Context) error
	CompleteCase(ctx context.Context, id string) (*models.Case, error)
	Status() models.MonitorState
}

// IncidentReader lists recorded incidents
type IncidentReader interface {
	GetIncidents(filter errorlog.Filter) ([]errorlog.Incident, error)
}

// Options wires the router
type Options struct {
	Store     storage.Store
	Monitor   Monitor
	Incidents IncidentReader
	// HealthPath defaults to /healthz
	HealthPath string
	// MetricsPath serves Prometheus metrics when non-empty
	MetricsPath string
	Logger      *slog.Logger
}

// NewRouter creates the HTTP router with all API routes
func NewRouter(opts Options) *mux.Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.HealthPath == "" {
		opts.HealthPath = "/healthz"
	}

	router := mux.NewRouter()

	// Global middlewares
	router.Use(recovery.Middleware(logger))
	router.Use(requestLogger(logger))

	facade := status.NewFacade(opts.Store, opts.Monitor)

	systemHandler := NewSystemHandler(facade, opts.Monitor, logger)
	keywordHandler := NewKeywordHandler(opts.Store, logger)
	caseHandler := NewCaseHandler(opts.Store, opts.Monitor, logger)
	configHandler := NewConfigurationHandler(opts.Store, logger)
	incidentHandler := NewIncidentHandler(opts.Incidents, logger)

	// Health and metrics
	router.HandleFunc(opts.HealthPath, systemHandler.Health).Methods("GET")
	if opts.MetricsPath != "" {
		router.Handle(opts.MetricsPath, metrics.Handler()).Methods("GET")
	}

	// Dashboard
	router.HandleFunc("/api/system/status", systemHandler.GetStatus).Methods("GET")
	router.HandleFunc("/api/stats", systemHandler.GetStats).Methods("GET")

	// Keywords
	router.HandleFunc("/api/keywords", keywordHandler.ListKeywords).Methods("GET")
	router.HandleFunc("/api/keywords", keywordHandler.CreateKeyword).Methods("POST")
	router.HandleFunc("/api/keywords/{id}", keywordHandler.UpdateKeyword).Methods("PATCH")
	router.HandleFunc("/api/keywords/{id}", keywordHandler.DeleteKeyword).Methods("DELETE")

	// Cases
	router.HandleFunc("/api/email-cases", caseHandler.ListCases).Methods("GET")
	router.HandleFunc("/api/email-cases/{id}", caseHandler.GetCase).Methods("GET")
	router.HandleFunc("/api/email-cases/{id}/complete", caseHandler.CompleteCase).Methods("POST")

	// Configuration
	router.HandleFunc("/api/configuration", configHandler.GetConfiguration).Methods("GET")
	router.HandleFunc("/api/configuration", configHandler.SaveConfiguration).Methods("PUT")

	// Monitor control
	router.HandleFunc("/api/email-monitor/start", systemHandler.StartMonitor).Methods("POST")
	router.HandleFunc("/api/email-monitor/stop", systemHandler.StopMonitor).Methods("POST")
	router.HandleFunc("/api/email-monitor/poll", systemHandler.Poll).Methods("POST")

	// Incidents
	router.HandleFunc("/api/errors", incidentHandler.ListIncidents).Methods("GET")

	return router
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start))
		})
	}
}
