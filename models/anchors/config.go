// Package anchors generates the prior-box grid of an anchor-based face detector
// and decodes the raw regression rows produced against it.
package anchors

import (
	"github.com/pkg/errors"
)

// Config describes the layout of a prior-box grid.
type Config struct {
	// MinSizes holds, per scale, the anchor edge lengths in network-input pixels.
	MinSizes [][]float32 `json:"min_sizes" yaml:"min_sizes" mapstructure:"min_sizes" validate:"required,min=1,dive,min=1,dive,gt=0"`
	// Steps holds, per scale, the feature-map stride in network-input pixels.
	Steps []int `json:"steps" yaml:"steps" mapstructure:"steps" validate:"required,min=1,dive,gt=0"`
	// Variance holds the center and size scaling applied to regression deltas.
	Variance [2]float32 `json:"variance" yaml:"variance" mapstructure:"variance"`
	// Clip clamps every anchor field into [0, 1].
	Clip bool `json:"clip" yaml:"clip" mapstructure:"clip"`
}

// DefaultConfig returns the grid layout used by the 320x240 face detector.
//
// Returns:
//   - Config: Four scales with strides 8, 16, 32 and 64.
func DefaultConfig() Config {
	return Config{
		MinSizes: [][]float32{
			{10, 16, 24},
			{32, 48},
			{64, 96},
			{128, 192, 256},
		},
		Steps:    []int{8, 16, 32, 64},
		Variance: [2]float32{0.1, 0.2},
		Clip:     false,
	}
}

// Validate checks that the configuration describes a usable grid.
//
// Returns:
//   - error: An error describing the first inconsistency, nil otherwise.
func (c Config) Validate() error {
	if len(c.Steps) == 0 {
		return errors.New("anchor config has no scales")
	}
	if len(c.MinSizes) != len(c.Steps) {
		return errors.Errorf("anchor config has %d min size groups for %d steps", len(c.MinSizes), len(c.Steps))
	}
	for k, step := range c.Steps {
		if step <= 0 {
			return errors.Errorf("anchor step %d must be positive, got %d", k, step)
		}
		if len(c.MinSizes[k]) == 0 {
			return errors.Errorf("anchor scale %d has no min sizes", k)
		}
		for _, m := range c.MinSizes[k] {
			if m <= 0 {
				return errors.Errorf("anchor scale %d has non-positive min size %v", k, m)
			}
		}
	}
	if c.Variance[0] <= 0 || c.Variance[1] <= 0 {
		return errors.Errorf("anchor variance must be positive, got %v", c.Variance)
	}

	return nil
}
