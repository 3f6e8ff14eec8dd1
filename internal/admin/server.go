package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fronthaul-noc/internal/capacity"
	"fronthaul-noc/internal/correlation"
	"fronthaul-noc/internal/dashboard"
)

// Server exposes the orchestrator state over HTTP for headless use.
type Server struct {
	Orch      *dashboard.Orchestrator
	Threshold float64
	SortBy    capacity.Column
}

func NewServer(orch *dashboard.Orchestrator, threshold float64, sortBy capacity.Column) *Server {
	if sortBy == "" {
		sortBy = capacity.ColPeak
	}
	return &Server{Orch: orch, Threshold: threshold, SortBy: sortBy}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/capacity.csv", s.handleCapacityCSV)
	mux.HandleFunc("/api/refresh", s.handleRefresh)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	log.Printf("[Admin] listening on %s", addr)
	return srv.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.Orch.Snapshot()
	status := http.StatusOK
	body := map[string]any{
		"status":      "ok",
		"initialized": snap.Initialized,
		"loading":     snap.Loading,
		"version":     snap.Version,
	}
	if snap.Err != nil {
		body["status"] = "degraded"
		body["error"] = snap.Err.Error()
	}
	if !snap.Initialized {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}

type stateResponse struct {
	Snapshot    dashboard.Snapshot `json:"snapshot"`
	Threshold   float64            `json:"threshold"`
	Correlation correlation.Stats  `json:"correlation_stats"`
	Insights    []capacity.Insight `json:"insights"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap := s.Orch.Snapshot()
	resp := stateResponse{
		Snapshot:    snap,
		Threshold:   s.Threshold,
		Correlation: correlation.ComputeStats(correlation.Edges(snap.Correlation, s.Threshold)),
		Insights:    capacity.Insights(snap.Capacity, snap.Topology),
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCapacityCSV exports the capacity table. Query parameters sort,
// order (asc|desc) and filter select the view.
func (s *Server) handleCapacityCSV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	col := s.SortBy
	if v := q.Get("sort"); v != "" {
		c, err := capacity.ParseColumn(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		col = c
	}
	t := capacity.NewTable(s.Orch.Snapshot().Capacity, col)
	if strings.EqualFold(q.Get("order"), "asc") {
		t.SortBy(col)
	}
	t.SetFilter(q.Get("filter"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="capacity-summary.csv"`)
	if err := capacity.WriteCSV(w, t.Rows()); err != nil {
		log.Printf("[Admin] csv export failed: %v", err)
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "use POST"})
		return
	}
	err := s.Orch.FetchAll(r.Context(), true)
	switch {
	case errors.Is(err, dashboard.ErrSuperseded):
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "superseded"})
	case err != nil:
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": fmt.Sprint(err)})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": s.Orch.Snapshot().Version})
	}
}
