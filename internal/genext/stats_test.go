package genext

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMStatsSnapshot(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	assert.Equal(t, StatsSnapshot{}, stats.Snapshot())

	for i := 1; i <= 5; i++ {
		stats.Record(time.Duration(i*100)*time.Millisecond, i)
	}

	snap := stats.Snapshot()
	assert.Equal(t, 5, snap.Count)
	assert.Equal(t, int64(100), snap.MinMs)
	assert.Equal(t, int64(500), snap.MaxMs)
	assert.InDelta(t, 300, snap.AvgMs, 1e-9)
	assert.InDelta(t, 300, snap.P50Ms, 1e-9)
	assert.InDelta(t, 480, snap.P95Ms, 1e-9)
	assert.InDelta(t, 496, snap.P99Ms, 1e-9)
	assert.InDelta(t, 3, snap.AvgPolls, 1e-9)
	assert.Equal(t, 5, snap.MaxPolls)
}

func TestLLMStatsWindowExpiry(t *testing.T) {
	stats := NewLLMStats(10 * time.Millisecond)
	stats.Record(100*time.Millisecond, 1)
	time.Sleep(25 * time.Millisecond)
	assert.Zero(t, stats.Snapshot().Count)

	stats.Record(200*time.Millisecond, 2)
	snap := stats.Snapshot()
	require.Equal(t, 1, snap.Count)
	assert.Equal(t, int64(200), snap.MinMs)
	assert.Equal(t, int64(200), snap.MaxMs)
}

func TestLLMStatsNegativeInputs(t *testing.T) {
	stats := NewLLMStats(0)
	stats.Record(-10*time.Millisecond, -1)
	snap := stats.Snapshot()
	require.Equal(t, 1, snap.Count)
	assert.Zero(t, snap.MinMs)
	assert.Zero(t, snap.MaxPolls)
}

func TestQuantile(t *testing.T) {
	assert.Zero(t, quantile(nil, 0.5))
	assert.Equal(t, 7.0, quantile([]int64{7}, 0.99))
	assert.Equal(t, 15.0, quantile([]int64{10, 20}, 0.5))
	assert.Equal(t, 10.0, quantile([]int64{10, 20}, 0))
}
