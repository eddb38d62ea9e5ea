// Package benchmark measures detector throughput over a picture corpus.
package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-face/models/facedetect"
	"github.com/nvr-ai/go-face/util"
)

// Detector is the part of facedetect.Detector a benchmark drives.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]facedetect.Face, error)
}

// PerformanceMetrics captures detailed performance data
type PerformanceMetrics struct {
	Scenario        Scenario      `json:"scenario"`
	Timestamp       time.Time     `json:"timestamp"`
	Images          int           `json:"images"`
	TotalDuration   time.Duration `json:"total_duration"`
	DecodeDuration  time.Duration `json:"decode_duration"`
	DetectDuration  time.Duration `json:"detect_duration"`
	FramesPerSecond float64       `json:"frames_per_second"`
	MemoryStats     MemoryMetrics `json:"memory_stats"`
	NumCPU          int           `json:"num_cpu"`
	DetectionCount  int           `json:"detection_count"`
	ErrorRate       float64       `json:"error_rate"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// Suite manages and executes benchmark scenarios
type Suite struct {
	detector  Detector
	corpus    []util.ImageFile
	outputDir string
	logger    *zap.Logger
	mu        sync.RWMutex
	results   []PerformanceMetrics
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - detector: The detector under test.
//   - corpus: The pictures fed to the detector in round-robin order.
//   - outputDir: Where SaveResults writes its reports.
//   - logger: The logger. A nil logger disables logging.
//
// Returns:
//   - *Suite: The benchmark suite.
//   - error: An error if the detector is nil or the corpus is empty.
func NewSuite(detector Detector, corpus []util.ImageFile, outputDir string, logger *zap.Logger) (*Suite, error) {
	if detector == nil {
		return nil, errors.New("detector is nil")
	}
	if len(corpus) == 0 {
		return nil, errors.New("benchmark corpus is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Suite{
		detector:  detector,
		corpus:    corpus,
		outputDir: outputDir,
		logger:    logger,
	}, nil
}

// images returns the corpus entries the scenario runs over.
func (bs *Suite) images(scenario Scenario) []util.ImageFile {
	if scenario.ImageFormat == "" {
		return bs.corpus
	}

	out := make([]util.ImageFile, 0, len(bs.corpus))
	for _, file := range bs.corpus {
		if file.Format == scenario.ImageFormat {
			out = append(out, file)
		}
	}
	return out
}

// RunScenario executes a single benchmark scenario.
//
// Warmup runs are not measured and their errors are ignored. Failed
// iterations count towards ErrorRate.
func (bs *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	corpus := bs.images(scenario)
	if len(corpus) == 0 {
		return nil, errors.Errorf("scenario %s: no %s images in corpus", scenario.Name, scenario.ImageFormat)
	}

	for i := 0; i < scenario.WarmupRuns; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, _, _, _ = bs.processImage(ctx, corpus[i%len(corpus)])
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	metrics := &PerformanceMetrics{
		Scenario:  scenario,
		Timestamp: time.Now(),
		Images:    len(corpus),
		NumCPU:    runtime.NumCPU(),
	}

	failures := 0
	start := time.Now()
	for i := 0; i < scenario.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		file := corpus[i%len(corpus)]
		count, decode, detect, err := bs.processImage(ctx, file)
		if err != nil {
			bs.logger.Debug("benchmark iteration failed", zap.String("path", file.Path), zap.Error(err))
			failures++
			continue
		}

		metrics.DetectionCount += count
		metrics.DecodeDuration += decode
		metrics.DetectDuration += detect
	}
	metrics.TotalDuration = time.Since(start)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	if metrics.TotalDuration > 0 {
		metrics.FramesPerSecond = float64(scenario.Iterations) / metrics.TotalDuration.Seconds()
	}
	metrics.ErrorRate = float64(failures) / float64(scenario.Iterations)
	metrics.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
		HeapSysBytes:    endMem.HeapSys,
	}

	return metrics, nil
}

func (bs *Suite) processImage(ctx context.Context, file util.ImageFile) (int, time.Duration, time.Duration, error) {
	decodeStart := time.Now()
	img, err := file.Decode()
	if err != nil {
		return 0, 0, 0, err
	}
	decode := time.Since(decodeStart)

	detectStart := time.Now()
	faces, err := bs.detector.Detect(ctx, img)
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, "inference failed")
	}

	return len(faces), decode, time.Since(detectStart), nil
}

// RunAllScenarios executes the scenarios in order and records their metrics.
// A failed scenario is logged and skipped. Cancellation stops the run.
func (bs *Suite) RunAllScenarios(ctx context.Context, scenarios []Scenario) error {
	for _, scenario := range scenarios {
		metrics, err := bs.RunScenario(ctx, scenario)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			bs.logger.Warn("scenario failed", zap.String("scenario", scenario.Name), zap.Error(err))
			continue
		}

		bs.mu.Lock()
		bs.results = append(bs.results, *metrics)
		bs.mu.Unlock()

		bs.logger.Info("scenario completed",
			zap.String("scenario", scenario.Name),
			zap.Float64("fps", metrics.FramesPerSecond),
			zap.Int("detections", metrics.DetectionCount),
			zap.Float64("error_rate", metrics.ErrorRate),
		)
	}

	return nil
}

// Results returns all benchmark results
func (bs *Suite) Results() []PerformanceMetrics {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	results := make([]PerformanceMetrics, len(bs.results))
	copy(results, bs.results)
	return results
}

// SaveResults writes the results as JSON and a CSV summary.
//
// Returns:
//   - string: The JSON report path.
//   - error: An error if a report cannot be written.
func (bs *Suite) SaveResults() (string, error) {
	results := bs.Results()

	if err := os.MkdirAll(bs.outputDir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return "", errors.Wrap(err, "failed to save summary CSV")
	}

	bs.logger.Info("benchmark results saved",
		zap.String("results", resultsFile),
		zap.String("summary", summaryFile),
	)

	return resultsFile, nil
}

func saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{
		"Scenario", "Format", "Iterations", "FPS", "Total_Duration_ms",
		"Decode_ms", "Detect_ms", "Alloc_MB", "Detections", "Error_Rate",
	}); err != nil {
		return err
	}

	for _, r := range results {
		if err := w.Write([]string{
			r.Scenario.Name,
			string(r.Scenario.ImageFormat),
			strconv.Itoa(r.Scenario.Iterations),
			strconv.FormatFloat(r.FramesPerSecond, 'f', 2, 64),
			strconv.FormatFloat(float64(r.TotalDuration.Nanoseconds())/1e6, 'f', 2, 64),
			strconv.FormatFloat(float64(r.DecodeDuration.Nanoseconds())/1e6, 'f', 2, 64),
			strconv.FormatFloat(float64(r.DetectDuration.Nanoseconds())/1e6, 'f', 2, 64),
			strconv.FormatFloat(float64(r.MemoryStats.AllocBytes)/(1024*1024), 'f', 2, 64),
			strconv.Itoa(r.DetectionCount),
			strconv.FormatFloat(r.ErrorRate, 'f', 4, 64),
		}); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
