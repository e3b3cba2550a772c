package pipeline

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	at time.Time
	d  time.Duration
}

// StatsSnapshot is a point-in-time aggregate of extraction latency samples.
// Durations are fractional milliseconds; a typical report extracts well
// under one.
type StatsSnapshot struct {
	Count  int     `json:"count"`
	Window string  `json:"window"`
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// DurationStats tracks recent durations within a rolling window.
type DurationStats struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
}

func NewDurationStats(maxAge time.Duration) *DurationStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &DurationStats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// Record adds one sample. Negative durations count as zero.
func (s *DurationStats) Record(d time.Duration) {
	if d < 0 {
		d = 0
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{at: now, d: d})
}

func (s *DurationStats) Snapshot() StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	snap := StatsSnapshot{Window: s.maxAge.String()}
	if len(s.samples) == 0 {
		return snap
	}

	values := make([]time.Duration, 0, len(s.samples))
	var sum time.Duration
	for _, sm := range s.samples {
		values = append(values, sm.d)
		sum += sm.d
	}
	slices.Sort(values)

	snap.Count = len(values)
	snap.MinMs = ms(values[0])
	snap.MaxMs = ms(values[len(values)-1])
	snap.AvgMs = ms(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (s *DurationStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	writeIdx := 0
	for _, sm := range s.samples {
		if !sm.at.Before(cutoff) {
			s.samples[writeIdx] = sm
			writeIdx++
		}
	}
	s.samples = s.samples[:writeIdx]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// percentile interpolates linearly between the two nearest ranks.
func percentile(sorted []time.Duration, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return ms(sorted[0])
	}
	if pct >= 100 {
		return ms(sorted[len(sorted)-1])
	}

	index := (float64(len(sorted)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return ms(sorted[lower])
	}
	weight := index - float64(lower)
	lo, hi := ms(sorted[lower]), ms(sorted[upper])
	return lo + ((hi - lo) * weight)
}
