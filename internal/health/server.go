package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the scheduler's health over HTTP:
//
//	GET /health               overall status and what is failing (503 when critical)
//	GET /health/detailed      every task and dependency probe
//	GET /health/tasks/{name}  one task, 404 when it is not registered
//	GET /metrics              Prometheus
type Server struct {
	monitor *Monitor
	server  *http.Server
}

type summary struct {
	Status  SystemStatus `json:"status"`
	Tasks   int          `json:"tasks"`
	Failing []string     `json:"failing,omitempty"`
}

// NewServer creates a health server listening on port.
func NewServer(monitor *Monitor, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor: monitor,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.HandleFunc("GET /health/tasks/{name}", s.handleTask)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Handler exposes the routes for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())

	code := http.StatusOK
	if report.SystemStatus == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, summary{
		Status:  report.SystemStatus,
		Tasks:   len(report.Tasks),
		Failing: report.Failing(),
	})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.CheckHealth(r.Context()))
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	th, ok := s.monitor.CheckHealth(r.Context()).Tasks[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown task " + name})
		return
	}
	writeJSON(w, http.StatusOK, th)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write health response", "error", err)
	}
}
