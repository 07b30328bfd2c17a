// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/lineup/internal/app"
	"github.com/okian/lineup/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the scan service.
type Dependencies interface {
	ScanDependencies
	RosterDependencies
	StatsProvider
}

// ScanDependencies covers submitting and tracking scans.
type ScanDependencies interface {
	// SubmitScan queues a scan. Returns service.ErrQueueFull on backpressure.
	SubmitScan(ctx context.Context, prefix string) (service.Job, error)
	// Process submits a scan and waits for it, cancelling it if ctx ends.
	Process(ctx context.Context, prefix string) (service.Job, error)
	Job(ctx context.Context, id string) (service.Job, error)
	Jobs(ctx context.Context) []service.Job
	Cancel(ctx context.Context, id string) (service.Job, error)
}

// RosterDependencies exposes stored rosters.
type RosterDependencies interface {
	Teams(ctx context.Context) ([]string, error)
	Roster(ctx context.Context, team string) (model.Roster, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	scansHandler   *ScansHandler
	rostersHandler *RostersHandler
	events         http.Handler
}

// NewServer creates a new API server with all handlers. events serves the
// live progress stream and may be nil.
func NewServer(deps Dependencies, events http.Handler) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		scansHandler:   NewScansHandler(deps),
		rostersHandler: NewRostersHandler(deps),
		events:         events,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /scans", MetricsMiddleware(s.scansHandler.HandleSubmit, "scans"))
	mux.HandleFunc("GET /scans", MetricsMiddleware(s.scansHandler.HandleList, "scans"))
	mux.HandleFunc("GET /scans/{id}", MetricsMiddleware(s.scansHandler.HandleGet, "scan"))
	mux.HandleFunc("DELETE /scans/{id}", MetricsMiddleware(s.scansHandler.HandleCancel, "scan"))
	mux.HandleFunc("POST /process-video", MetricsMiddleware(s.scansHandler.HandleProcess, "process_video"))
	mux.HandleFunc("POST /process-video/", MetricsMiddleware(s.scansHandler.HandleProcess, "process_video"))

	mux.HandleFunc("GET /teams", MetricsMiddleware(s.rostersHandler.HandleTeams, "teams"))
	mux.HandleFunc("GET /rosters/{team}", MetricsMiddleware(s.rostersHandler.HandleRoster, "rosters"))
	mux.HandleFunc("GET /get-results", MetricsMiddleware(s.rostersHandler.HandleResults, "get_results"))

	if s.events != nil {
		mux.Handle("GET /ws/events", s.events)
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
