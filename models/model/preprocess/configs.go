package preprocess

import "github.com/nvr-ai/go-face/images"

// GetFaceDetectConfig returns the configuration of the anchor-based face detector.
//
// Pixels are mapped with (p - 127) / 128 in RGB CHW order. The image is
// stretched to the input size without letterboxing so that boxes can be
// scaled back with independent horizontal and vertical factors.
//
// Arguments:
// - width: The detector input width (typically 320).
// - height: The detector input height (typically 240).
//
// Returns:
// - A configured ModelConfig for the face detector.
//
// @example
// config := GetFaceDetectConfig(320, 240)
// preprocessor := NewPreprocessor(config)
func GetFaceDetectConfig(width, height int) *ModelConfig {
	return &ModelConfig{
		Name:              "face-detect",
		InputWidth:        width,
		InputHeight:       height,
		InputChannels:     3,
		NormalizationType: NormalizeStandardize,
		MeanValues:        []float32{127, 127, 127},
		StdValues:         []float32{128, 128, 128},
		ChannelOrder:      ChannelOrderCHW,
		ColorMode:         ColorModeRGB,
		Filter:            images.Bilinear,
	}
}

// GetLandmarkConfig returns the configuration of the 68-point landmark model:
// a 64x64 grayscale crop scaled by 1/256.
func GetLandmarkConfig() *ModelConfig {
	return &ModelConfig{
		Name:              "landmark",
		InputWidth:        64,
		InputHeight:       64,
		InputChannels:     1,
		NormalizationType: NormalizeStandardize,
		MeanValues:        []float32{0},
		StdValues:         []float32{256},
		ChannelOrder:      ChannelOrderCHW,
		ColorMode:         ColorModeGrayscale,
		Filter:            images.Bilinear,
	}
}

// GetPoseConfig returns the configuration of the head pose model, a 224x224
// RGB crop standardized with the ImageNet mean and deviation.
func GetPoseConfig() *ModelConfig {
	return &ModelConfig{
		Name:              "pose",
		InputWidth:        224,
		InputHeight:       224,
		InputChannels:     3,
		NormalizationType: NormalizeStandardize,
		MeanValues:        []float32{123.675, 116.28, 103.53},
		StdValues:         []float32{58.395, 57.12, 57.375},
		ChannelOrder:      ChannelOrderCHW,
		ColorMode:         ColorModeRGB,
		Filter:            images.Bilinear,
	}
}

// GetExpressionConfig returns the configuration of the expression model.
func GetExpressionConfig() *ModelConfig {
	return &ModelConfig{
		Name:              "expression",
		InputWidth:        224,
		InputHeight:       224,
		InputChannels:     3,
		NormalizationType: NormalizeZeroToOne,
		ChannelOrder:      ChannelOrderCHW,
		ColorMode:         ColorModeRGB,
		Filter:            images.Bilinear,
	}
}

// GetLivenessConfig returns the configuration of the liveness model. Pixels are
// passed through unscaled.
func GetLivenessConfig() *ModelConfig {
	return &ModelConfig{
		Name:              "liveness",
		InputWidth:        128,
		InputHeight:       128,
		InputChannels:     3,
		NormalizationType: NormalizeNone,
		ChannelOrder:      ChannelOrderCHW,
		ColorMode:         ColorModeRGB,
		Filter:            images.Bilinear,
	}
}

// GetEyeConfig returns the configuration of the eye state model.
func GetEyeConfig() *ModelConfig {
	return &ModelConfig{
		Name:              "eye",
		InputWidth:        24,
		InputHeight:       24,
		InputChannels:     1,
		NormalizationType: NormalizeZeroToOne,
		ChannelOrder:      ChannelOrderCHW,
		ColorMode:         ColorModeGrayscale,
		Filter:            images.Bilinear,
	}
}

// GetFeatureConfig returns the configuration of the embedding model, which
// consumes a 112x112 aligned face.
func GetFeatureConfig() *ModelConfig {
	return &ModelConfig{
		Name:              "feature",
		InputWidth:        112,
		InputHeight:       112,
		InputChannels:     3,
		NormalizationType: NormalizeStandardize,
		MeanValues:        []float32{127, 127, 127},
		StdValues:         []float32{128, 128, 128},
		ChannelOrder:      ChannelOrderCHW,
		ColorMode:         ColorModeRGB,
		Filter:            images.Bilinear,
	}
}

// GetGenderConfig returns the configuration of the gender model, a 64x64 RGB
// crop standardized with the ImageNet mean and deviation.
func GetGenderConfig() *ModelConfig {
	return &ModelConfig{
		Name:              "gender",
		InputWidth:        64,
		InputHeight:       64,
		InputChannels:     3,
		NormalizationType: NormalizeStandardize,
		MeanValues:        []float32{123.675, 116.28, 103.53},
		StdValues:         []float32{58.395, 57.12, 57.375},
		ChannelOrder:      ChannelOrderCHW,
		ColorMode:         ColorModeRGB,
		Filter:            images.Bilinear,
	}
}
