// Package metrics exposes engine, correction and pool counters in Prometheus
// format. Collectors register on a private registry so tests and embedders
// never collide with the global default.
package metrics

import (
	"database/sql"

	"sqlpilot/internal/engine"
	"sqlpilot/internal/runner"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the registry and the gauges it refreshes. Values are pushed
// by Refresh from the mutex-guarded accumulators rather than incremented
// inline, so the hot execution path never touches a prometheus vector.
type Collector struct {
	registry *prometheus.Registry

	sessionsTotal       prometheus.Gauge
	firstAttemptSuccess prometheus.Gauge
	correctedSuccess    prometheus.Gauge
	finalFailures       prometheus.Gauge
	firstAttemptRate    prometheus.Gauge
	overallSuccessRate  prometheus.Gauge
	avgAttempts         prometheus.Gauge

	queriesTotal     prometheus.Gauge
	queriesSucceeded prometheus.Gauge
	queriesFailed    prometheus.Gauge
	avgElapsedMs     prometheus.Gauge
	faultsByKind     *prometheus.GaugeVec

	poolOpen  prometheus.Gauge
	poolInUse prometheus.Gauge
	poolIdle  prometheus.Gauge
}

// NewCollector builds and registers every metric on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	gauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
		c.registry.MustRegister(g)
		return g
	}

	c.sessionsTotal = gauge("sqlpilot_sessions_total", "Total correction sessions finished")
	c.firstAttemptSuccess = gauge("sqlpilot_sessions_first_attempt_success_total", "Sessions that succeeded on the first attempt")
	c.correctedSuccess = gauge("sqlpilot_sessions_corrected_success_total", "Sessions rescued by the correction loop")
	c.finalFailures = gauge("sqlpilot_sessions_failed_total", "Sessions that ended in a terminal failure")
	c.firstAttemptRate = gauge("sqlpilot_first_attempt_success_rate", "Success rate without any correction")
	c.overallSuccessRate = gauge("sqlpilot_overall_success_rate", "Blended success rate after correction")
	c.avgAttempts = gauge("sqlpilot_avg_attempts_per_session", "Mean generation attempts per session")

	c.queriesTotal = gauge("sqlpilot_queries_total", "Total execution attempts")
	c.queriesSucceeded = gauge("sqlpilot_queries_succeeded_total", "Execution attempts that returned rows")
	c.queriesFailed = gauge("sqlpilot_queries_failed_total", "Execution attempts that faulted")
	c.avgElapsedMs = gauge("sqlpilot_query_avg_elapsed_ms", "Mean execution time in milliseconds")

	c.faultsByKind = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sqlpilot_query_faults_total",
		Help: "Execution faults by classified category",
	}, []string{"category"})
	c.registry.MustRegister(c.faultsByKind)

	c.poolOpen = gauge("sqlpilot_db_pool_open_connections", "Open connections in the pool")
	c.poolInUse = gauge("sqlpilot_db_pool_in_use_connections", "Connections currently executing")
	c.poolIdle = gauge("sqlpilot_db_pool_idle_connections", "Idle connections in the pool")

	return c
}

// Registry exposes the private registry for the HTTP handler and for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Refresh pushes current accumulator values into the gauges.
func (c *Collector) Refresh(run runner.MetricsSnapshot, exec engine.StatsSnapshot, pool sql.DBStats) {
	c.sessionsTotal.Set(float64(run.TotalSessions))
	c.firstAttemptSuccess.Set(float64(run.FirstAttemptSuccess))
	c.correctedSuccess.Set(float64(run.CorrectedSuccess))
	c.finalFailures.Set(float64(run.FinalFailures))
	c.firstAttemptRate.Set(run.FirstAttemptRate())
	c.overallSuccessRate.Set(run.OverallSuccessRate())
	c.avgAttempts.Set(run.AvgAttempts())

	c.queriesTotal.Set(float64(exec.Total))
	c.queriesSucceeded.Set(float64(exec.Succeeded))
	c.queriesFailed.Set(float64(exec.Failed))
	c.avgElapsedMs.Set(float64(exec.AvgElapsed.Milliseconds()))
	for category, count := range exec.Faults {
		c.faultsByKind.WithLabelValues(string(category)).Set(float64(count))
	}

	c.poolOpen.Set(float64(pool.OpenConnections))
	c.poolInUse.Set(float64(pool.InUse))
	c.poolIdle.Set(float64(pool.Idle))
}
