// Package facedetect turns the raw outputs of an anchor-based face detector
// into face boxes in picture coordinates.
package facedetect

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-face/models/anchors"
	"github.com/nvr-ai/go-face/models/postprocess"
)

// ErrInvalidConfig is returned when a pipeline is built from an unusable configuration.
var ErrInvalidConfig = errors.New("invalid face detection config")

var validate = validator.New()

// Config holds the detector input geometry and the post-processing parameters.
type Config struct {
	// InputWidth is the width of the network input in pixels.
	InputWidth int `json:"input_width" yaml:"input_width" mapstructure:"input_width" validate:"gt=0"`
	// InputHeight is the height of the network input in pixels.
	InputHeight int `json:"input_height" yaml:"input_height" mapstructure:"input_height" validate:"gt=0"`
	// Anchors describes the prior-box grid the model was trained with.
	Anchors anchors.Config `json:"anchors" yaml:"anchors" mapstructure:"anchors"`
	// ConfidenceThreshold is the minimum face score kept, inclusive.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold" mapstructure:"confidence_threshold" validate:"gte=0,lte=1"`
	// TopK bounds the number of candidates passed to suppression.
	TopK int `json:"top_k" yaml:"top_k" mapstructure:"top_k" validate:"gt=0"`
	// NMSThreshold is the overlap at which a candidate is suppressed.
	NMSThreshold float32 `json:"nms_threshold" yaml:"nms_threshold" mapstructure:"nms_threshold" validate:"gt=0,lte=1"`
	// NMSStrategy selects the suppression algorithm. Empty means bottom_edge.
	NMSStrategy postprocess.Strategy `json:"nms_strategy" yaml:"nms_strategy" mapstructure:"nms_strategy" validate:"omitempty,oneof=bottom_edge iou"`
	// Landmarks enables decoding of the five-point landmark output.
	Landmarks bool `json:"landmarks" yaml:"landmarks" mapstructure:"landmarks"`
}

// DefaultConfig returns the settings of the 320x240 detector.
//
// Returns:
//   - Config: A configuration that passes Validate.
func DefaultConfig() Config {
	return Config{
		InputWidth:          320,
		InputHeight:         240,
		Anchors:             anchors.DefaultConfig(),
		ConfidenceThreshold: 0.65,
		TopK:                750,
		NMSThreshold:        0.4,
		NMSStrategy:         postprocess.StrategyBottomEdge,
	}
}

// NMS returns the suppression settings.
func (c Config) NMS() postprocess.NMSConfig {
	return postprocess.NMSConfig{Strategy: c.NMSStrategy, Threshold: c.NMSThreshold}
}

// Validate checks the struct tags and the consistency of the anchor and NMS settings.
//
// Returns:
//   - error: An error wrapping ErrInvalidConfig, nil if the configuration is usable.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if err := c.Anchors.Validate(); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if err := c.NMS().Validate(); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}

	return nil
}
