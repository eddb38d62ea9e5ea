package faceattr

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-face/images"
	"github.com/nvr-ai/go-face/images/cvimage"
	"github.com/nvr-ai/go-face/inference"
	"github.com/nvr-ai/go-face/models/model"
	"github.com/nvr-ai/go-face/models/model/preprocess"
)

// FeatureSize is the side of the aligned crop fed to the feature model.
const FeatureSize = 112

// Analyzer runs the attribute models on faces found by the detector.
// Only the models given a runner can be used.
type Analyzer struct {
	runners       map[model.Name]inference.Runner
	specs         map[model.Name]model.Spec
	preprocessors map[model.Name]*preprocess.Preprocessor
	logger        *zap.Logger
}

// NewAnalyzer builds an analyzer for the given runners.
//
// Arguments:
//   - runners: The model runners keyed by catalog name.
//   - logger: The logger. A nil logger disables logging.
//
// Returns:
//   - *Analyzer: The analyzer.
//   - error: An error if a runner is nil or names a model outside the catalog.
func NewAnalyzer(runners map[model.Name]inference.Runner, logger *zap.Logger) (*Analyzer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Analyzer{
		runners:       make(map[model.Name]inference.Runner, len(runners)),
		specs:         make(map[model.Name]model.Spec, len(runners)),
		preprocessors: make(map[model.Name]*preprocess.Preprocessor, len(runners)),
		logger:        logger,
	}
	for name, runner := range runners {
		if runner == nil {
			return nil, errors.Errorf("runner for %s is nil", name)
		}
		spec, err := model.Lookup(name)
		if err != nil {
			return nil, err
		}
		p := preprocess.NewPreprocessor(spec.Preprocess())
		p.SetLogger(logger)

		a.runners[name] = runner
		a.specs[name] = spec
		a.preprocessors[name] = p
	}

	return a, nil
}

// Has reports whether the analyzer can run the named model.
func (a *Analyzer) Has(name model.Name) bool {
	_, ok := a.runners[name]
	return ok
}

// run preprocesses img for the named model and returns its outputs.
func (a *Analyzer) run(ctx context.Context, name model.Name, img image.Image) (inference.Outputs, error) {
	runner, ok := a.runners[name]
	if !ok {
		return nil, errors.Errorf("no runner for %s", name)
	}

	input, err := a.preprocessors[name].PreprocessImage(img)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to preprocess %s input", name)
	}

	outputs, err := runner.Run(ctx, input.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to run %s model", name)
	}

	return outputs, nil
}

// output runs the named model and returns its first catalogued output.
func (a *Analyzer) output(ctx context.Context, name model.Name, img image.Image) ([]float32, error) {
	outputs, err := a.run(ctx, name, img)
	if err != nil {
		return nil, err
	}
	return outputs.Get(a.specs[name].Outputs[0])
}

func cropFace(img image.Image, rect image.Rectangle) (image.Image, error) {
	if rect.Empty() {
		return nil, errors.Errorf("empty crop %v", rect)
	}
	return images.Crop(img, rect.Add(img.Bounds().Min)), nil
}

// Landmarks predicts the 68 facial points of the face in box.
//
// Arguments:
//   - ctx: Cancels the model run.
//   - img: The picture.
//   - box: The face box in picture pixels.
//
// Returns:
//   - []float32: 68 (x, y) pairs in picture pixels.
//   - error: An error if the crop is empty or the model fails.
func (a *Analyzer) Landmarks(ctx context.Context, img image.Image, box images.Rect) ([]float32, error) {
	b := img.Bounds()
	crop, err := cropFace(img, AlignCrop(box, b.Dx(), b.Dy(), LandmarkCropScale))
	if err != nil {
		return nil, err
	}

	raw, err := a.output(ctx, model.ModelNameLandmark, crop)
	if err != nil {
		return nil, err
	}

	return DecodeLandmarks68(raw, box)
}

// Pose predicts the head rotation of the face in box.
func (a *Analyzer) Pose(ctx context.Context, img image.Image, box images.Rect) (Pose, error) {
	b := img.Bounds()
	crop, err := cropFace(img, PoseCrop(box, b.Dx(), b.Dy()))
	if err != nil {
		return Pose{}, err
	}

	outputs, err := a.run(ctx, model.ModelNamePose, crop)
	if err != nil {
		return Pose{}, err
	}

	var angles [3][]float32
	for i, name := range []string{model.OutputName, model.OutputPosePitch, model.OutputPoseRoll} {
		if angles[i], err = outputs.Get(name); err != nil {
			return Pose{}, err
		}
	}

	return DecodePose(angles[0], angles[1], angles[2]), nil
}

// Liveness returns the probability that the face in box is live.
func (a *Analyzer) Liveness(ctx context.Context, img image.Image, box images.Rect) (float32, error) {
	b := img.Bounds()
	crop, err := cropFace(img, AlignCrop(box, b.Dx(), b.Dy(), LivenessCropScale))
	if err != nil {
		return 0, err
	}

	logits, err := a.output(ctx, model.ModelNameLiveness, crop)
	if err != nil {
		return 0, err
	}

	return LivenessScore(logits), nil
}

// Expression returns the expression class of the face in box.
func (a *Analyzer) Expression(ctx context.Context, img image.Image, box images.Rect) (int, error) {
	b := img.Bounds()
	crop, err := cropFace(img, ExpressionCrop(box, b.Dx(), b.Dy()))
	if err != nil {
		return -1, err
	}

	logits, err := a.output(ctx, model.ModelNameExpression, crop)
	if err != nil {
		return -1, err
	}

	return ExpressionIndex(logits), nil
}

// Gender returns the merged gender regression score of the face in box.
func (a *Analyzer) Gender(ctx context.Context, img image.Image, box images.Rect) (float32, error) {
	b := img.Bounds()
	crop, err := cropFace(img, AlignCrop(box, b.Dx(), b.Dy(), GenderCropScale))
	if err != nil {
		return 0, err
	}

	outputs, err := a.run(ctx, model.ModelNameGender, crop)
	if err != nil {
		return 0, err
	}

	var values []float32
	for _, name := range a.specs[model.ModelNameGender].Outputs {
		out, err := outputs.Get(name)
		if err != nil {
			return 0, err
		}
		values = append(values, out...)
	}

	return GenderScore(values)
}

// Eyes reports whether the left and right eye are open.
//
// Arguments:
//   - ctx: Cancels the model runs.
//   - img: The picture.
//   - points: 68 (x, y) pairs in picture pixels, see Landmarks.
//
// Returns:
//   - bool: Whether the left eye is open.
//   - bool: Whether the right eye is open.
//   - error: An error if the points are malformed or a model run fails.
func (a *Analyzer) Eyes(ctx context.Context, img image.Image, points []float32) (bool, bool, error) {
	b := img.Bounds()
	leftRect, rightRect, err := EyeCrops(points, b.Dx(), b.Dy())
	if err != nil {
		return false, false, err
	}

	var logits [2][]float32
	for i, rect := range []image.Rectangle{leftRect, rightRect} {
		crop, err := cropFace(img, rect)
		if err != nil {
			return false, false, err
		}
		if logits[i], err = a.output(ctx, model.ModelNameEye, crop); err != nil {
			return false, false, err
		}
	}

	left, right := EyesOpen(logits[0], logits[1])
	return left, right, nil
}

// Feature extracts the identity feature of a face.
//
// The face is warped so that its eyes and nose match ReferencePoints on a
// 112x112 crop before it is fed to the feature model.
//
// Arguments:
//   - ctx: Cancels the model run.
//   - img: The picture.
//   - points: 68 (x, y) pairs in picture pixels, see Landmarks.
//
// Returns:
//   - []float32: The feature vector. Compare features with MatchFeatures.
//   - error: An error if the points are malformed, alignment fails or the model fails.
func (a *Analyzer) Feature(ctx context.Context, img image.Image, points []float32) ([]float32, error) {
	aligned, err := AlignFeature(img, points)
	if err != nil {
		return nil, err
	}

	return a.output(ctx, model.ModelNameFeature, aligned)
}

// AlignFeature warps the face described by 68 landmarks onto the
// FeatureSize x FeatureSize reference template.
func AlignFeature(img image.Image, points []float32) (image.Image, error) {
	face, err := Convert68To5(points)
	if err != nil {
		return nil, err
	}

	src, err := cvimage.ImageToMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst, err := cvimage.WarpToReference(src, face, ReferencePoints(), FeatureSize, FeatureSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to align face")
	}
	defer dst.Close()

	return cvimage.MatToImage(dst)
}
