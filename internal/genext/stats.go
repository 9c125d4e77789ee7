package genext

import (
	"slices"
	"sync"
	"time"
)

// StatsSnapshot aggregates the chat round trips inside the stats window.
type StatsSnapshot struct {
	Count    int     `json:"count"`
	MinMs    int64   `json:"min_ms"`
	MaxMs    int64   `json:"max_ms"`
	AvgMs    float64 `json:"avg_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
	P99Ms    float64 `json:"p99_ms"`
	AvgPolls float64 `json:"avg_polls"`
	MaxPolls int     `json:"max_polls"`
}

type roundTrip struct {
	at    time.Time
	took  time.Duration
	polls int
}

// LLMStats keeps a sliding window of gateway round trips. Safe for
// concurrent use.
type LLMStats struct {
	window time.Duration

	mu    sync.Mutex
	trips []roundTrip
}

func NewLLMStats(window time.Duration) *LLMStats {
	if window <= 0 {
		window = time.Hour
	}
	return &LLMStats{window: window}
}

// Record adds a finished request and the number of status polls it needed.
func (s *LLMStats) Record(took time.Duration, polls int) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(now)
	s.trips = append(s.trips, roundTrip{at: now, took: max(took, 0), polls: max(polls, 0)})
}

func (s *LLMStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	s.expire(time.Now())
	trips := slices.Clone(s.trips)
	s.mu.Unlock()

	if len(trips) == 0 {
		return StatsSnapshot{}
	}

	ms := make([]int64, len(trips))
	var total int64
	snap := StatsSnapshot{Count: len(trips)}
	pollTotal := 0
	for i, rt := range trips {
		ms[i] = rt.took.Milliseconds()
		total += ms[i]
		pollTotal += rt.polls
		snap.MaxPolls = max(snap.MaxPolls, rt.polls)
	}
	slices.Sort(ms)

	n := float64(len(ms))
	snap.MinMs, snap.MaxMs = ms[0], ms[len(ms)-1]
	snap.AvgMs = float64(total) / n
	snap.P50Ms = quantile(ms, 0.50)
	snap.P95Ms = quantile(ms, 0.95)
	snap.P99Ms = quantile(ms, 0.99)
	snap.AvgPolls = float64(pollTotal) / n
	return snap
}

// expire drops round trips older than the window. Trips are appended in
// time order, so the expired ones form a prefix. Caller holds s.mu.
func (s *LLMStats) expire(now time.Time) {
	cutoff := now.Add(-s.window)
	i, _ := slices.BinarySearchFunc(s.trips, cutoff, func(rt roundTrip, t time.Time) int {
		return rt.at.Compare(t)
	})
	if i > 0 {
		s.trips = slices.Delete(s.trips, 0, i)
	}
}

// quantile interpolates linearly between closest ranks of sorted.
func quantile(sorted []int64, q float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case q <= 0:
		return float64(sorted[0])
	case q >= 1:
		return float64(sorted[len(sorted)-1])
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo+1 >= len(sorted) {
		return float64(sorted[lo])
	}
	frac := pos - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[lo+1]-sorted[lo])
}
