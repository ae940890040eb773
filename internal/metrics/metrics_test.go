package metrics

import (
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sqlpilot/internal/classify"
	"sqlpilot/internal/engine"
	"sqlpilot/internal/runner"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRefreshPushesAccumulatorValues(t *testing.T) {
	c := NewCollector()

	run := runner.MetricsSnapshot{
		TotalSessions:       4,
		FirstAttemptSuccess: 2,
		CorrectedSuccess:    1,
		FinalFailures:       1,
		TotalAttempts:       7,
	}
	exec := engine.StatsSnapshot{
		Total:      6,
		Succeeded:  4,
		Failed:     2,
		AvgElapsed: 250 * time.Millisecond,
		Faults: map[classify.Category]int64{
			classify.ColumnNotFound: 1,
			classify.Timeout:        1,
		},
	}
	pool := sql.DBStats{OpenConnections: 3, InUse: 1, Idle: 2}

	c.Refresh(run, exec, pool)

	if got := testutil.ToFloat64(c.sessionsTotal); got != 4 {
		t.Fatalf("sessions gauge = %f", got)
	}
	if got := testutil.ToFloat64(c.overallSuccessRate); got != 0.75 {
		t.Fatalf("overall rate gauge = %f", got)
	}
	if got := testutil.ToFloat64(c.avgElapsedMs); got != 250 {
		t.Fatalf("avg elapsed gauge = %f", got)
	}
	if got := testutil.ToFloat64(c.faultsByKind.WithLabelValues("timeout")); got != 1 {
		t.Fatalf("timeout fault gauge = %f", got)
	}
	if got := testutil.ToFloat64(c.poolIdle); got != 2 {
		t.Fatalf("pool idle gauge = %f", got)
	}
}

func TestServerMetricsEndpointRefreshesOnScrape(t *testing.T) {
	runMetrics := runner.NewMetrics()
	execStats := engine.NewStats()
	collector := NewCollector()
	srv := NewServer(":0", collector, Sources{Runner: runMetrics, Engine: execStats})

	runMetrics.Update(runner.Result{Succeeded: true, Attempts: 1})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "sqlpilot_sessions_total 1") {
		t.Fatalf("scrape missing refreshed session counter:\n%s", body)
	}
}

func TestServerHealthDegradesOnLowSuccessRate(t *testing.T) {
	runMetrics := runner.NewMetrics()
	srv := NewServer(":0", NewCollector(), Sources{Runner: runMetrics})

	runMetrics.Update(runner.Result{Succeeded: false, Attempts: 3, Reason: runner.ReasonExhausted})
	runMetrics.Update(runner.Result{Succeeded: false, Attempts: 3, Reason: runner.ReasonExhausted})
	runMetrics.Update(runner.Result{Succeeded: true, Attempts: 1})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected degraded health, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "degraded") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestServerHealthOKWhenIdle(t *testing.T) {
	srv := NewServer(":0", NewCollector(), Sources{Runner: runner.NewMetrics()})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("idle process should report ok, got %d", rec.Code)
	}
}
