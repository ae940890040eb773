package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"sqlpilot/internal/engine"
	"sqlpilot/internal/runner"
	"sqlpilot/internal/util"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sources are the accumulators the server polls before every refresh.
type Sources struct {
	Runner *runner.Metrics
	Engine *engine.Stats
	Pool   interface{ Stats() sql.DBStats }
}

// Server serves /metrics and /healthz from the process accumulators.
type Server struct {
	collector *Collector
	sources   Sources
	server    *http.Server
}

// NewServer wires the exposition endpoint on addr.
func NewServer(addr string, collector *Collector, sources Sources) *Server {
	mux := http.NewServeMux()
	s := &Server{
		collector: collector,
		sources:   sources,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.refreshing(promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{})))
	return s
}

// Start serves until Stop. It blocks, callers run it on its own goroutine.
func (s *Server) Start() error {
	util.Infof("metrics listening on %s", s.server.Addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop drains the listener.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// refreshing re-reads the accumulators before handing off to the registry
// handler, so scrapes always see current values without a background ticker.
func (s *Server) refreshing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.refresh()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) refresh() {
	var run runner.MetricsSnapshot
	if s.sources.Runner != nil {
		run = s.sources.Runner.Snapshot()
	}
	var exec engine.StatsSnapshot
	if s.sources.Engine != nil {
		exec = s.sources.Engine.Snapshot()
	}
	var pool sql.DBStats
	if s.sources.Pool != nil {
		pool = s.sources.Pool.Stats()
	}
	s.collector.Refresh(run, exec, pool)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	var overall float64
	if s.sources.Runner != nil {
		snap := s.sources.Runner.Snapshot()
		overall = snap.OverallSuccessRate()
		if snap.TotalSessions > 0 && overall < 0.5 {
			status = "degraded"
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":               status,
		"overall_success_rate": overall,
	})
}
