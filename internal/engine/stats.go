package engine

import (
	"sync"
	"time"

	"sqlpilot/internal/classify"
	"sqlpilot/internal/util"
)

// Stats accumulates process-lifetime execution counters. It is explicitly
// injected into each Engine rather than kept as package state, so tests get
// a fresh instance. Counters only grow; there is no reset short of building
// a new Stats.
type Stats struct {
	mu           sync.Mutex
	total        int64
	succeeded    int64
	failed       int64
	totalElapsed time.Duration
	maxElapsed   time.Duration
	minElapsed   time.Duration
	faults       map[classify.Category]int64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	Total        int64
	Succeeded    int64
	Failed       int64
	TotalElapsed time.Duration
	AvgElapsed   time.Duration
	MaxElapsed   time.Duration
	MinElapsed   time.Duration
	Faults       map[classify.Category]int64
}

// SuccessRate is succeeded/total, 0 before any query ran.
func (s StatsSnapshot) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total)
}

// NewStats builds an empty accumulator.
func NewStats() *Stats {
	return &Stats{faults: make(map[classify.Category]int64)}
}

// Update folds one outcome into the counters, including the per-category
// fault histogram on failure.
func (s *Stats) Update(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if o.Succeeded {
		s.succeeded++
	} else {
		s.failed++
		s.faults[o.Category]++
	}
	s.totalElapsed += o.Elapsed
	if o.Elapsed > s.maxElapsed {
		s.maxElapsed = o.Elapsed
	}
	if s.total == 1 || o.Elapsed < s.minElapsed {
		s.minElapsed = o.Elapsed
	}
}

// Snapshot copies the counters for logging or exposition.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	faults := make(map[classify.Category]int64, len(s.faults))
	for k, v := range s.faults {
		faults[k] = v
	}
	snap := StatsSnapshot{
		Total:        s.total,
		Succeeded:    s.succeeded,
		Failed:       s.failed,
		TotalElapsed: s.totalElapsed,
		MaxElapsed:   s.maxElapsed,
		MinElapsed:   s.minElapsed,
		Faults:       faults,
	}
	if s.total > 0 {
		snap.AvgElapsed = s.totalElapsed / time.Duration(s.total)
	}
	return snap
}

// StartLogger periodically logs the counters and returns a stop function.
// A non-positive interval disables logging.
func (s *Stats) StartLogger(interval time.Duration) func() {
	if interval <= 0 {
		return func() {}
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		var lastTotal int64
		for {
			select {
			case <-ticker.C:
				snap := s.Snapshot()
				if snap.Total == lastTotal {
					continue
				}
				lastTotal = snap.Total
				util.Infof("exec stats total=%d ok=%d fail=%d rate=%.2f avg=%s max=%s min=%s",
					snap.Total, snap.Succeeded, snap.Failed, snap.SuccessRate(),
					snap.AvgElapsed.Round(time.Millisecond),
					snap.MaxElapsed.Round(time.Millisecond),
					snap.MinElapsed.Round(time.Millisecond))
				for cat, n := range snap.Faults {
					util.Detailf("exec stats fault %s=%d", cat, n)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}
