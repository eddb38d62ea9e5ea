// Package profiler tracks frame rate, operation timings and runtime memory of
// a detection loop and reports them periodically through zap.
package profiler

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Operation names recorded by the detection loops.
const (
	OperationDetect = "detect"
	OperationDraw   = "draw"
)

// MetricsCollector defines the interface for collecting custom metrics.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// CollectorFunc adapts a function to the MetricsCollector interface.
type CollectorFunc func() map[string]float64

// CollectMetrics calls f.
func (f CollectorFunc) CollectMetrics() map[string]float64 { return f() }

// RuntimeProfiler tracks frames, operation timings and custom metrics.
//
// All methods are safe for concurrent use. Reports are emitted by a background
// goroutine between Start and Stop, or on demand with Report.
type RuntimeProfiler struct {
	reportInterval time.Duration
	sampleInterval time.Duration
	maxSamples     int
	logger         *zap.Logger
	now            func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool

	startTime   time.Time
	memStats    runtime.MemStats
	lastGCCount uint32

	frames          int64
	framesAtReport  int64
	lastReport      time.Time
	framesPerSecond float64

	customMetrics  map[string]*MetricTracker
	collectors     []MetricsCollector
	operationTimes map[string]*TimeTracker
}

// MetricTracker tracks statistics for a custom metric over a sliding window.
type MetricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	count  int64
}

func (t *MetricTracker) add(value float64, maxSamples int) {
	if t.count == 0 {
		t.min, t.max = value, value
	}
	t.values = append(t.values, value)
	t.sum += value
	if len(t.values) > maxSamples {
		t.sum -= t.values[0]
		t.values = t.values[1:]
	}
	t.count++
	if value < t.min {
		t.min = value
	}
	if value > t.max {
		t.max = value
	}
}

// TimeTracker tracks operation timing statistics over a sliding window.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

func (t *TimeTracker) add(d time.Duration, maxSamples int) {
	if t.count == 0 {
		t.minTime, t.maxTime = d, d
	}
	t.durations = append(t.durations, d)
	t.totalTime += d
	if len(t.durations) > maxSamples {
		t.totalTime -= t.durations[0]
		t.durations = t.durations[1:]
	}
	t.count++
	if d < t.minTime {
		t.minTime = d
	}
	if d > t.maxTime {
		t.maxTime = d
	}
}

// MetricStats is a snapshot of a custom metric.
type MetricStats struct {
	Avg     float64
	Min     float64
	Max     float64
	Samples int
	Count   int64
}

// OperationStats is a snapshot of an operation's timings.
type OperationStats struct {
	Avg     time.Duration
	Min     time.Duration
	Max     time.Duration
	Samples int
	Count   int64
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to emit status reports (default: 2s)
	ReportInterval time.Duration
	// SampleInterval specifies how often to collect samples (default: 100ms)
	SampleInterval time.Duration
	// MaxSamples specifies maximum number of samples to keep (default: 600)
	MaxSamples int
	// Logger receives the reports (default: no-op)
	Logger *zap.Logger
	// Clock overrides time.Now
	Clock func() time.Time
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
//   - opts: Configuration options for the profiler.
//
// Returns:
//   - *RuntimeProfiler: A profiler that has not been started.
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 2 * time.Second
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = 100 * time.Millisecond
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	start := opts.Clock()

	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		sampleInterval: opts.SampleInterval,
		maxSamples:     opts.MaxSamples,
		logger:         opts.Logger.Named("profiler"),
		now:            opts.Clock,
		ctx:            ctx,
		cancel:         cancel,
		startTime:      start,
		lastReport:     start,
		customMetrics:  make(map[string]*MetricTracker),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// Start begins sampling and periodic reporting. Calling Start on a running
// profiler is a no-op.
func (rp *RuntimeProfiler) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running || rp.ctx.Err() != nil {
		return
	}
	rp.running = true

	rp.wg.Add(2)
	go rp.loop(rp.sampleInterval, rp.sample)
	go rp.loop(rp.reportInterval, rp.Report)
}

// Stop stops the background goroutines and waits for them to exit. A stopped
// profiler cannot be restarted; its statistics remain readable.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	running := rp.running
	rp.running = false
	rp.mu.Unlock()

	rp.cancel()
	if running {
		rp.wg.Wait()
	}
}

func (rp *RuntimeProfiler) loop(interval time.Duration, fn func()) {
	defer rp.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rp.ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// AddMetricsCollector registers a collector that is polled on every sample.
func (rp *RuntimeProfiler) AddMetricsCollector(collector MetricsCollector) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.collectors = append(rp.collectors, collector)
}

// RecordMetric records a custom metric value.
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.recordMetricLocked(name, value)
}

func (rp *RuntimeProfiler) recordMetricLocked(name string, value float64) {
	tracker, ok := rp.customMetrics[name]
	if !ok {
		tracker = &MetricTracker{}
		rp.customMetrics[name] = tracker
	}
	tracker.add(value, rp.maxSamples)
}

// StartOperation begins timing an operation.
//
// Arguments:
//   - name: The name of the operation to track.
//
// Returns:
//   - func(): Records the elapsed time when called.
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := rp.now()
	return func() {
		rp.RecordOperation(name, rp.now().Sub(start))
	}
}

// RecordOperation records a completed operation's duration.
func (rp *RuntimeProfiler) RecordOperation(name string, d time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, ok := rp.operationTimes[name]
	if !ok {
		tracker = &TimeTracker{}
		rp.operationTimes[name] = tracker
	}
	tracker.add(d, rp.maxSamples)
}

// FrameDone counts one processed frame.
func (rp *RuntimeProfiler) FrameDone() {
	rp.mu.Lock()
	rp.frames++
	rp.mu.Unlock()
}

// Frames returns the number of processed frames.
func (rp *RuntimeProfiler) Frames() int64 {
	rp.mu.RLock()
	defer rp.mu.RUnlock()
	return rp.frames
}

// FPS returns the frame rate measured over the last report interval.
func (rp *RuntimeProfiler) FPS() float64 {
	rp.mu.RLock()
	defer rp.mu.RUnlock()
	return rp.framesPerSecond
}

// Metric returns the statistics for a custom metric.
func (rp *RuntimeProfiler) Metric(name string) (MetricStats, bool) {
	rp.mu.RLock()
	defer rp.mu.RUnlock()

	tracker, ok := rp.customMetrics[name]
	if !ok || len(tracker.values) == 0 {
		return MetricStats{}, false
	}
	return MetricStats{
		Avg:     tracker.sum / float64(len(tracker.values)),
		Min:     tracker.min,
		Max:     tracker.max,
		Samples: len(tracker.values),
		Count:   tracker.count,
	}, true
}

// Operation returns the timing statistics for an operation.
func (rp *RuntimeProfiler) Operation(name string) (OperationStats, bool) {
	rp.mu.RLock()
	defer rp.mu.RUnlock()

	tracker, ok := rp.operationTimes[name]
	if !ok || len(tracker.durations) == 0 {
		return OperationStats{}, false
	}
	return OperationStats{
		Avg:     tracker.totalTime / time.Duration(len(tracker.durations)),
		Min:     tracker.minTime,
		Max:     tracker.maxTime,
		Samples: len(tracker.durations),
		Count:   tracker.count,
	}, true
}

// sample reads memory statistics and polls the registered collectors.
func (rp *RuntimeProfiler) sample() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	runtime.ReadMemStats(&rp.memStats)
	for _, collector := range rp.collectors {
		for name, value := range collector.CollectMetrics() {
			rp.recordMetricLocked(name, value)
		}
	}
}

// Report refreshes memory statistics, updates the frame rate and logs a status
// report.
func (rp *RuntimeProfiler) Report() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	runtime.ReadMemStats(&rp.memStats)
	now := rp.now()
	if elapsed := now.Sub(rp.lastReport); elapsed > 0 {
		rp.framesPerSecond = float64(rp.frames-rp.framesAtReport) / elapsed.Seconds()
	}
	rp.framesAtReport = rp.frames
	rp.lastReport = now

	fields := []zap.Field{
		zap.Duration("uptime", now.Sub(rp.startTime).Truncate(time.Millisecond)),
		zap.Int64("frames", rp.frames),
		zap.Float64("fps", rp.framesPerSecond),
		zap.Int("goroutines", runtime.NumGoroutine()),
		zap.Int64("cgo_calls", runtime.NumCgoCall()),
		zap.Uint64("heap_alloc", rp.memStats.HeapAlloc),
		zap.Uint64("heap_objects", rp.memStats.HeapObjects),
		zap.Uint64("sys", rp.memStats.Sys),
	}
	if rp.memStats.NumGC > rp.lastGCCount {
		fields = append(fields,
			zap.Uint32("gc_cycles", rp.memStats.NumGC),
			zap.Uint32("gc_new", rp.memStats.NumGC-rp.lastGCCount),
			zap.Float64("gc_cpu_fraction", rp.memStats.GCCPUFraction),
		)
		rp.lastGCCount = rp.memStats.NumGC
	}

	for _, name := range sortedKeys(rp.operationTimes) {
		tracker := rp.operationTimes[name]
		if len(tracker.durations) == 0 {
			continue
		}
		fields = append(fields, zap.Dict(name,
			zap.Duration("avg", tracker.totalTime/time.Duration(len(tracker.durations))),
			zap.Duration("min", tracker.minTime),
			zap.Duration("max", tracker.maxTime),
			zap.Int64("count", tracker.count),
		))
	}
	for _, name := range sortedKeys(rp.customMetrics) {
		tracker := rp.customMetrics[name]
		if len(tracker.values) == 0 {
			continue
		}
		fields = append(fields, zap.Dict(name,
			zap.Float64("avg", tracker.sum/float64(len(tracker.values))),
			zap.Float64("min", tracker.min),
			zap.Float64("max", tracker.max),
		))
	}

	rp.logger.Info("status", fields...)
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
