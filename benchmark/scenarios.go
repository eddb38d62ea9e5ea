package benchmark

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-face/models/model/preprocess"
)

// Scenario defines a specific test configuration
type Scenario struct {
	Name string `json:"name" yaml:"name"`
	// ImageFormat restricts the corpus to one encoding. Empty runs every picture.
	ImageFormat preprocess.ImageFormat `json:"image_format,omitempty" yaml:"image_format,omitempty"`
	Iterations  int                    `json:"iterations" yaml:"iterations"`
	WarmupRuns  int                    `json:"warmup_runs" yaml:"warmup_runs"`
}

// Validate checks the iteration counts.
func (s Scenario) Validate() error {
	if s.Iterations <= 0 {
		return errors.Errorf("scenario %s: iterations must be positive, got %d", s.Name, s.Iterations)
	}
	if s.WarmupRuns < 0 {
		return errors.Errorf("scenario %s: warmup runs must not be negative, got %d", s.Name, s.WarmupRuns)
	}
	return nil
}

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			Iterations: 100,
			WarmupRuns: 10,
		},
	}
}

// WithImageFormat sets the image format
func (sb *ScenarioBuilder) WithImageFormat(format preprocess.ImageFormat) *ScenarioBuilder {
	sb.scenario.ImageFormat = format
	return sb
}

// WithIterations sets the number of test iterations
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of warmup runs
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured test scenario
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// FormatScenarios returns one scenario over the whole corpus followed by one
// per supported encoding.
func FormatScenarios(iterations, warmups int) []Scenario {
	scenarios := []Scenario{
		NewScenarioBuilder("all").WithIterations(iterations).WithWarmupRuns(warmups).Build(),
	}
	for _, format := range []preprocess.ImageFormat{
		preprocess.ImageFormatJPEG,
		preprocess.ImageFormatPNG,
		preprocess.ImageFormatWebP,
	} {
		scenarios = append(scenarios, NewScenarioBuilder(string(format)).
			WithImageFormat(format).
			WithIterations(iterations).
			WithWarmupRuns(warmups).
			Build())
	}
	return scenarios
}
