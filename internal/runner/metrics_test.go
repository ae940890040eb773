package runner

import (
	"math"
	"testing"
)

func TestMetricsSeparatesFirstAttemptFromCorrected(t *testing.T) {
	m := NewMetrics()
	m.Update(Result{Succeeded: true, Attempts: 1})
	m.Update(Result{Succeeded: true, Attempts: 3})
	m.Update(Result{Succeeded: false, Attempts: 3, Reason: ReasonExhausted})

	snap := m.Snapshot()
	if snap.TotalSessions != 3 {
		t.Fatalf("sessions = %d", snap.TotalSessions)
	}
	if snap.FirstAttemptSuccess != 1 || snap.CorrectedSuccess != 1 || snap.FinalFailures != 1 {
		t.Fatalf("counter split wrong: %+v", snap)
	}
	if got := snap.FirstAttemptRate(); math.Abs(got-1.0/3) > 1e-9 {
		t.Fatalf("first attempt rate = %f", got)
	}
	// Two sessions failed initially, one was rescued.
	if got := snap.CorrectionEffectiveness(); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("effectiveness = %f", got)
	}
	if got := snap.OverallSuccessRate(); math.Abs(got-2.0/3) > 1e-9 {
		t.Fatalf("overall rate = %f", got)
	}
	if got := snap.AvgAttempts(); math.Abs(got-7.0/3) > 1e-9 {
		t.Fatalf("avg attempts = %f", got)
	}
}

func TestMetricsEmptySnapshot(t *testing.T) {
	snap := NewMetrics().Snapshot()
	if snap.FirstAttemptRate() != 0 || snap.OverallSuccessRate() != 0 || snap.AvgAttempts() != 0 {
		t.Fatalf("empty snapshot rates must be zero: %+v", snap)
	}
	if snap.CorrectionEffectiveness() != 1 {
		t.Fatalf("effectiveness with nothing to correct should be 1")
	}
}
