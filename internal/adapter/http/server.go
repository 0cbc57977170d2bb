// Package http exposes the service's operational endpoints plus a small
// curation API for analyst overrides.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andeanwatch/incident-geo/internal/domain"
	"github.com/andeanwatch/incident-geo/internal/store"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// OverrideStore persists analyst overrides. *store.Store satisfies it.
type OverrideStore interface {
	GetOverride(ctx context.Context, incidentID string) (*domain.CurationOverride, error)
	PutOverride(ctx context.Context, o domain.CurationOverride, places store.PlaceChecker) error
}

// Server exposes health, readiness, metrics, and override HTTP endpoints.
type Server struct {
	httpServer *http.Server
	overrides  OverrideStore
	places     store.PlaceChecker
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /overrides/{incident_id} routes.
func NewServer(addr string, ready ReadinessChecker, overrides OverrideStore, places store.PlaceChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		overrides: overrides,
		places:    places,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /overrides/{incident_id}", s.handleGetOverride)
	mux.HandleFunc("PUT /overrides/{incident_id}", s.handlePutOverride)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleGetOverride(w http.ResponseWriter, r *http.Request) {
	incidentID := r.PathValue("incident_id")

	o, err := s.overrides.GetOverride(r.Context(), incidentID)
	if err != nil {
		s.logger.Error("get override failed", "incident_id", incidentID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if o == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no override for incident"})
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handlePutOverride(w http.ResponseWriter, r *http.Request) {
	incidentID := r.PathValue("incident_id")

	var o domain.CurationOverride
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	// The path, not the body, names the incident.
	o.IncidentID = incidentID
	if o.Status == "" {
		o.Status = domain.OverrideStatusPending
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = domain.Now()
	}

	err := s.overrides.PutOverride(r.Context(), o, s.places)
	switch {
	case errors.Is(err, store.ErrInvalidStatus), errors.Is(err, store.ErrUnknownPlace):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	case err != nil:
		s.logger.Error("put override failed", "incident_id", incidentID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	s.logger.Info("override saved",
		"incident_id", incidentID,
		"status", o.Status,
		"updated_by", o.UpdatedBy)
	writeJSON(w, http.StatusOK, o)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
