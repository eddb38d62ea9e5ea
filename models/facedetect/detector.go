package facedetect

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-face/images/cvimage"
	"github.com/nvr-ai/go-face/inference"
	"github.com/nvr-ai/go-face/models/anchors"
	"github.com/nvr-ai/go-face/models/model"
	"github.com/nvr-ai/go-face/models/model/preprocess"
)

// Detector runs the full detection flow: preprocessing, inference and post-processing.
type Detector struct {
	runner       inference.Runner
	preprocessor *preprocess.Preprocessor
	pipeline     *Pipeline
	logger       *zap.Logger
}

// NewDetector builds a detector around runner.
//
// Arguments:
//   - runner: Executes the face detection model. See OpenSession.
//   - cfg: The detector configuration.
//   - opts: Optional cache and logger.
//
// Returns:
//   - *Detector: The detector.
//   - error: An error wrapping ErrInvalidConfig when cfg is unusable.
func NewDetector(runner inference.Runner, cfg Config, opts ...Option) (*Detector, error) {
	if runner == nil {
		return nil, errors.New("runner is nil")
	}

	o := buildOptions(cfg, opts)
	pipeline, err := NewPipeline(cfg, WithCache(o.cache), WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	preprocessor := preprocess.NewPreprocessor(preprocess.GetFaceDetectConfig(cfg.InputWidth, cfg.InputHeight))
	preprocessor.SetLogger(o.logger)

	return &Detector{
		runner:       runner,
		preprocessor: preprocessor,
		pipeline:     pipeline,
		logger:       o.logger,
	}, nil
}

// Pipeline returns the detector's post-processing pipeline.
func (d *Detector) Pipeline() *Pipeline {
	return d.pipeline
}

// Detect finds the faces in img.
//
// Arguments:
//   - ctx: Cancels the model run.
//   - img: The picture to search.
//
// Returns:
//   - []Face: The detections in picture coordinates.
//   - error: An error if preprocessing, inference or decoding fails.
//
// @example
// faces, err := detector.Detect(ctx, img)
//
//	for _, f := range faces {
//	    fmt.Println(f.String())
//	}
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]Face, error) {
	input, err := d.preprocessor.PreprocessImage(img)
	if err != nil {
		return nil, errors.Wrap(err, "failed to preprocess image")
	}

	outputs, err := d.runner.Run(ctx, input.Data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to run face detection model")
	}

	raw, err := d.rawOutput(outputs)
	if err != nil {
		return nil, err
	}

	faces, err := d.pipeline.Process(raw, input.OriginalWidth, input.OriginalHeight)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("detected faces", zap.Int("count", len(faces)))

	return faces, nil
}

// DetectMat finds the faces in a BGR matrix. The matrix is not closed.
func (d *Detector) DetectMat(ctx context.Context, mat gocv.Mat) ([]Face, error) {
	img, err := cvimage.MatToImage(mat)
	if err != nil {
		return nil, err
	}
	return d.Detect(ctx, img)
}

func (d *Detector) rawOutput(outputs inference.Outputs) (RawOutput, error) {
	var raw RawOutput
	var err error

	if raw.Boxes, err = outputs.Get(model.OutputBoxes); err != nil {
		return raw, err
	}
	if raw.Scores, err = outputs.Get(model.OutputScores); err != nil {
		return raw, err
	}
	if d.pipeline.cfg.Landmarks {
		raw.Landmarks = outputs[model.OutputLandmarks]
	}

	return raw, nil
}

// SessionConfig returns the onnxruntime session settings for the detector
// described by cfg: the input shape follows the configured input size and
// every output holds one row per anchor.
//
// Arguments:
//   - modelPath: The path of the ONNX model.
//   - cfg: The detector configuration.
//   - provider: The execution provider settings.
//
// Returns:
//   - inference.SessionConfig: The session settings.
//   - error: An error if the model is not catalogued.
func SessionConfig(modelPath string, cfg Config, provider inference.ProviderConfig) (inference.SessionConfig, error) {
	spec, err := model.Lookup(model.ModelNameFaceDetect)
	if err != nil {
		return inference.SessionConfig{}, err
	}

	n := int64(anchors.Count(cfg.InputWidth, cfg.InputHeight, cfg.Anchors))
	widths := map[string]int64{
		model.OutputScores:    anchors.ScoreWidth,
		model.OutputBoxes:     anchors.BoxWidth,
		model.OutputLandmarks: anchors.LandmarkWidth,
	}

	names := spec.Outputs
	if cfg.Landmarks {
		names = append(append([]string{}, names...), model.OutputLandmarks)
	}
	outputs := make([]inference.OutputSpec, len(names))
	for i, name := range names {
		outputs[i] = inference.OutputSpec{Name: name, Shape: []int64{1, n, widths[name]}}
	}

	return inference.SessionConfig{
		ModelPath:  modelPath,
		InputName:  spec.Input,
		InputShape: []int64{1, 3, int64(cfg.InputHeight), int64(cfg.InputWidth)},
		Outputs:    outputs,
		Provider:   provider,
	}, nil
}

// OpenSession opens an onnxruntime session for the detector described by cfg.
// The caller must close the session.
func OpenSession(modelPath string, cfg Config, provider inference.ProviderConfig, logger *zap.Logger) (*inference.Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sessionCfg, err := SessionConfig(modelPath, cfg, provider)
	if err != nil {
		return nil, err
	}
	sessionCfg.Logger = logger

	return inference.NewSession(sessionCfg)
}
