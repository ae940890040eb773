package runner

import (
	"sync"

	"sqlpilot/internal/config"
	"sqlpilot/internal/util"
)

// Metrics keeps first-attempt and corrected successes apart so a strong
// correction loop cannot hide a weak generator behind a blended rate. One
// instance is injected per process; updates happen once per finished session.
type Metrics struct {
	mu                  sync.Mutex
	totalSessions       int64
	firstAttemptSuccess int64
	correctedSuccess    int64
	finalFailures       int64
	totalAttempts       int64
}

// MetricsSnapshot is a point-in-time copy with the derived rates.
type MetricsSnapshot struct {
	TotalSessions       int64
	FirstAttemptSuccess int64
	CorrectedSuccess    int64
	FinalFailures       int64
	TotalAttempts       int64
}

// FirstAttemptRate is the generator's success rate without any correction.
func (m MetricsSnapshot) FirstAttemptRate() float64 {
	if m.TotalSessions == 0 {
		return 0
	}
	return float64(m.FirstAttemptSuccess) / float64(m.TotalSessions)
}

// CorrectionEffectiveness is the share of initially-failed sessions the
// retry loop rescued.
func (m MetricsSnapshot) CorrectionEffectiveness() float64 {
	failedInitially := m.TotalSessions - m.FirstAttemptSuccess
	if failedInitially == 0 {
		return 1
	}
	return float64(m.CorrectedSuccess) / float64(failedInitially)
}

// OverallSuccessRate is the blended rate after correction.
func (m MetricsSnapshot) OverallSuccessRate() float64 {
	if m.TotalSessions == 0 {
		return 0
	}
	return float64(m.FirstAttemptSuccess+m.CorrectedSuccess) / float64(m.TotalSessions)
}

// AvgAttempts is the mean attempts consumed per session.
func (m MetricsSnapshot) AvgAttempts() float64 {
	if m.TotalSessions == 0 {
		return 0
	}
	return float64(m.TotalAttempts) / float64(m.TotalSessions)
}

// NewMetrics builds an empty accumulator.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Update folds one finished session into the counters.
func (m *Metrics) Update(res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalSessions++
	m.totalAttempts += int64(res.Attempts)
	switch {
	case res.Succeeded && res.Attempts == 1:
		m.firstAttemptSuccess++
	case res.Succeeded:
		m.correctedSuccess++
	default:
		m.finalFailures++
	}
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		TotalSessions:       m.totalSessions,
		FirstAttemptSuccess: m.firstAttemptSuccess,
		CorrectedSuccess:    m.correctedSuccess,
		FinalFailures:       m.finalFailures,
		TotalAttempts:       m.totalAttempts,
	}
}

// Log writes the current counters and derived rates at info level.
func (m *Metrics) Log() {
	snap := m.Snapshot()
	util.Infof("correction metrics sessions=%d first_attempt=%d corrected=%d failed=%d first_rate=%.2f effectiveness=%.2f overall=%.2f avg_attempts=%.2f",
		snap.TotalSessions, snap.FirstAttemptSuccess, snap.CorrectedSuccess, snap.FinalFailures,
		snap.FirstAttemptRate(), snap.CorrectionEffectiveness(), snap.OverallSuccessRate(), snap.AvgAttempts())
}

// Check warns when the accumulated rates cross the configured alert
// thresholds. Zero thresholds disable the corresponding check.
func (m *Metrics) Check(th config.MetricsThresholds) {
	snap := m.Snapshot()
	if snap.TotalSessions == 0 {
		return
	}
	if th.SuccessMinRate > 0 && snap.OverallSuccessRate() < th.SuccessMinRate {
		util.Warnf("overall success rate %.2f below threshold %.2f", snap.OverallSuccessRate(), th.SuccessMinRate)
	}
	failRate := float64(snap.FinalFailures) / float64(snap.TotalSessions)
	if th.FinalFailMaxRate > 0 && failRate > th.FinalFailMaxRate {
		util.Warnf("final failure rate %.2f above threshold %.2f", failRate, th.FinalFailMaxRate)
	}
}
