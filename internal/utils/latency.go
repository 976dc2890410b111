package utils

import (
	"math"
	"slices"
	"sync"
	"time"
)

const defaultCycleWindow = 512

// CycleStats keeps the durations of the most recent detection cycles in a
// ring buffer and counts every cycle and anomaly seen since start.
type CycleStats struct {
	mu        sync.Mutex
	window    []time.Duration
	next      int
	cycles    int
	anomalies int
}

// CycleSummary is a point-in-time view of CycleStats. Percentiles cover the
// retained window only.
type CycleSummary struct {
	Cycles    int
	Anomalies int
	P50       time.Duration
	P95       time.Duration
	Max       time.Duration
}

// NewCycleStats retains up to window cycle durations.
func NewCycleStats(window int) *CycleStats {
	if window <= 0 {
		window = defaultCycleWindow
	}
	return &CycleStats{window: make([]time.Duration, 0, window)}
}

// Observe records one completed detection cycle.
func (s *CycleStats) Observe(d time.Duration, anomalous bool) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cycles++
	if anomalous {
		s.anomalies++
	}
	if len(s.window) < cap(s.window) {
		s.window = append(s.window, d)
		return
	}
	s.window[s.next] = d
	s.next = (s.next + 1) % len(s.window)
}

// Summary returns totals plus nearest-rank percentiles of the window.
func (s *CycleStats) Summary() CycleSummary {
	s.mu.Lock()
	sum := CycleSummary{Cycles: s.cycles, Anomalies: s.anomalies}
	sorted := slices.Clone(s.window)
	s.mu.Unlock()

	if len(sorted) == 0 {
		return sum
	}
	slices.Sort(sorted)
	sum.P50 = nearestRank(sorted, 50)
	sum.P95 = nearestRank(sorted, 95)
	sum.Max = sorted[len(sorted)-1]
	return sum
}

func nearestRank(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[min(rank, len(sorted))-1]
}
