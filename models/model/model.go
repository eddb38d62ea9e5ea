// Package model - Catalog of the face models and their tensor interfaces.
package model

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-face/models/model/preprocess"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameFaceDetect is the anchor-based face detector.
	ModelNameFaceDetect Name = "face-detect"
	// ModelNameLandmark is the 68-point facial landmark regressor.
	ModelNameLandmark Name = "landmark"
	// ModelNamePose is the yaw/pitch/roll classifier.
	ModelNamePose Name = "pose"
	// ModelNameExpression is the facial expression classifier.
	ModelNameExpression Name = "expression"
	// ModelNameLiveness is the presentation attack classifier.
	ModelNameLiveness Name = "liveness"
	// ModelNameEye is the open/closed eye classifier.
	ModelNameEye Name = "eye"
	// ModelNameFeature is the face embedding model.
	ModelNameFeature Name = "feature"
	// ModelNameGender is the three-stage soft regression gender model.
	ModelNameGender Name = "gender"
)

// Tensor names used by the catalogued models.
const (
	InputName       = "input"
	OutputName      = "output"
	OutputBoxes     = "boxes"
	OutputScores    = "scores"
	OutputLandmarks = "landmarks"
	OutputPosePitch = "617"
	OutputPoseRoll  = "618"
)

// Output tensors of the gender model, in the order their values are merged:
// stage probabilities, then stage width deltas, then stage index offsets.
var GenderOutputs = []string{
	"prob_stage_1", "prob_stage_2", "prob_stage_3",
	"stage1_delta_k", "stage2_delta_k", "stage3_delta_k",
	"index_offset_stage1", "index_offset_stage2", "index_offset_stage3",
}

// Output sizes of the attribute models.
const (
	Landmark68Values  = 136
	PoseBins          = 66
	ExpressionClasses = 7
	FeatureLength     = 512
	GenderStageBins   = 3
)

// Spec describes how to feed a model and which outputs to read back.
type Spec struct {
	// Name is the model identifier.
	Name Name
	// Input is the name of the single input tensor.
	Input string
	// Outputs are the names of the output tensors, in the order they are read.
	Outputs []string
	// OutputShapes holds the fixed shape of each output, parallel to Outputs.
	// It is nil when the shapes depend on the input size.
	OutputShapes [][]int64
	// Preprocess returns a fresh preprocessing configuration for the model.
	Preprocess func() *preprocess.ModelConfig
}

// InputShape returns the NCHW input shape for a batch of one.
func (s Spec) InputShape() []int64 {
	cfg := s.Preprocess()
	return []int64{1, int64(cfg.InputChannels), int64(cfg.InputHeight), int64(cfg.InputWidth)}
}

var catalog = map[Name]Spec{
	ModelNameFaceDetect: {
		Name:       ModelNameFaceDetect,
		Input:      InputName,
		Outputs:    []string{OutputScores, OutputBoxes},
		Preprocess: func() *preprocess.ModelConfig { return preprocess.GetFaceDetectConfig(320, 240) },
	},
	ModelNameLandmark: {
		Name:         ModelNameLandmark,
		Input:        InputName,
		Outputs:      []string{OutputName},
		OutputShapes: [][]int64{{1, Landmark68Values}},
		Preprocess:   preprocess.GetLandmarkConfig,
	},
	ModelNamePose: {
		Name:         ModelNamePose,
		Input:        InputName,
		Outputs:      []string{OutputName, OutputPosePitch, OutputPoseRoll},
		OutputShapes: [][]int64{{1, PoseBins}, {1, PoseBins}, {1, PoseBins}},
		Preprocess:   preprocess.GetPoseConfig,
	},
	ModelNameExpression: {
		Name:         ModelNameExpression,
		Input:        InputName,
		Outputs:      []string{OutputName},
		OutputShapes: [][]int64{{1, ExpressionClasses}},
		Preprocess:   preprocess.GetExpressionConfig,
	},
	ModelNameLiveness: {
		Name:         ModelNameLiveness,
		Input:        InputName,
		Outputs:      []string{OutputName},
		OutputShapes: [][]int64{{1, 2}},
		Preprocess:   preprocess.GetLivenessConfig,
	},
	ModelNameEye: {
		Name:         ModelNameEye,
		Input:        InputName,
		Outputs:      []string{OutputName},
		OutputShapes: [][]int64{{1, 2}},
		Preprocess:   preprocess.GetEyeConfig,
	},
	ModelNameFeature: {
		Name:         ModelNameFeature,
		Input:        InputName,
		Outputs:      []string{OutputName},
		OutputShapes: [][]int64{{1, FeatureLength}},
		Preprocess:   preprocess.GetFeatureConfig,
	},
	ModelNameGender: {
		Name:    ModelNameGender,
		Input:   InputName,
		Outputs: GenderOutputs,
		OutputShapes: [][]int64{
			{1, GenderStageBins}, {1, GenderStageBins}, {1, GenderStageBins},
			{1, 1}, {1, 1}, {1, 1},
			{1, GenderStageBins}, {1, GenderStageBins}, {1, GenderStageBins},
		},
		Preprocess: preprocess.GetGenderConfig,
	},
}

// Lookup returns the catalog entry of a model.
//
// Arguments:
//   - name: The model identifier.
//
// Returns:
//   - Spec: The model's tensor interface.
//   - error: An error if the model is not in the catalog.
//
// Example:
//
// ```go
//
//	spec, err := model.Lookup(model.ModelNameFaceDetect)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(spec.InputShape()) // [1 3 240 320]
//
// ```
func Lookup(name Name) (Spec, error) {
	spec, ok := catalog[name]
	if !ok {
		return Spec{}, errors.Errorf("unsupported model name: %s", name)
	}
	return spec, nil
}

// Names returns every catalogued model name in lexical order.
func Names() []Name {
	names := make([]Name, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
