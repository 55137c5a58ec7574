package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source supplies the health reports of all live sessions, keyed by session id.
type Source interface {
	HealthReports() map[string]Report
}

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	source Source
	server *http.Server
}

// NewServer creates a new health server.
func NewServer(source Source, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		source: source,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Worst aggregates statuses, worst case wins. Disabled counts as healthy.
func Worst(reports map[string]Report) Status {
	status := StatusHealthy
	for _, r := range reports {
		if r.Status == StatusCritical {
			return StatusCritical
		}
		if r.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reports := s.source.HealthReports()
	status := Worst(reports)

	response := map[string]any{
		"status":   string(status),
		"sessions": len(reports),
	}
	w.Header().Set("Content-Type", "application/json")

	if status == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	reports := s.source.HealthReports()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reports)
}
