package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-face/inference"
	"github.com/nvr-ai/go-face/profiler"
)

func TestSessionMetrics(t *testing.T) {
	tests := []struct {
		name  string
		stats inference.Stats
		want  map[string]float64
	}{
		{
			name:  "no runs",
			stats: inference.Stats{},
			want:  map[string]float64{"inference_runs": 0, "inference_avg_ms": 0},
		},
		{
			name:  "average",
			stats: inference.Stats{Runs: 4, Total: 30 * time.Millisecond},
			want:  map[string]float64{"inference_runs": 4, "inference_avg_ms": 7.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := sessionMetrics(func() inference.Stats { return tt.stats })
			assert.Equal(t, tt.want, collector.CollectMetrics())
		})
	}
}

func TestSessionMetricsCollector(t *testing.T) {
	runs := int64(0)
	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{
		ReportInterval: time.Hour,
		SampleInterval: time.Millisecond,
	})
	prof.AddMetricsCollector(sessionMetrics(func() inference.Stats {
		return inference.Stats{Runs: 2, Total: 10 * time.Millisecond}
	}))

	prof.Start()
	defer prof.Stop()
	require.Eventually(t, func() bool {
		stats, ok := prof.Metric("inference_runs")
		if ok {
			runs = int64(stats.Max)
		}
		return ok
	}, time.Second, time.Millisecond)

	assert.EqualValues(t, 2, runs)
	avg, ok := prof.Metric("inference_avg_ms")
	require.True(t, ok)
	assert.Equal(t, 5.0, avg.Max)
}
