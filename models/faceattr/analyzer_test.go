package faceattr

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-face/images"
	"github.com/nvr-ai/go-face/inference"
	"github.com/nvr-ai/go-face/models/model"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	return img
}

// fixedRunner checks the input size and returns outputs.
func fixedRunner(t *testing.T, inputLen int, outputs inference.Outputs) inference.Runner {
	return inference.RunnerFunc(func(_ context.Context, input []float32) (inference.Outputs, error) {
		assert.Len(t, input, inputLen)
		return outputs, nil
	})
}

func filled(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// featurePoints places the eyes at (30, 40) and (70, 40) and the nose tip at (50, 60).
func featurePoints() []float32 {
	p := eyePoints()
	p[noseX], p[noseX+1] = 50, 60
	return p
}

func newTestAnalyzer(t *testing.T) *Analyzer {
	runners := map[model.Name]inference.Runner{
		model.ModelNameLandmark: fixedRunner(t, 64*64, inference.Outputs{
			model.OutputName: filled(Landmark68Values, 0.5),
		}),
		model.ModelNamePose: fixedRunner(t, 3*224*224, inference.Outputs{
			model.OutputName:      oneHot(33),
			model.OutputPosePitch: oneHot(43),
			model.OutputPoseRoll:  oneHot(23),
		}),
		model.ModelNameLiveness: fixedRunner(t, 3*128*128, inference.Outputs{
			model.OutputName: {3, 3},
		}),
		model.ModelNameExpression: fixedRunner(t, 3*224*224, inference.Outputs{
			model.OutputName: {0, 0, 5, 0, 0, 0, 0},
		}),
		model.ModelNameEye: fixedRunner(t, 24*24, inference.Outputs{
			model.OutputName: {2, -2},
		}),
		model.ModelNameFeature: fixedRunner(t, 3*FeatureSize*FeatureSize, inference.Outputs{
			model.OutputName: {0.1, 0.2, 0.3},
		}),
		model.ModelNameGender: fixedRunner(t, 3*64*64, inference.Outputs{
			"prob_stage_1":        {0, 1, 0},
			"prob_stage_2":        {0, 0, 1},
			"prob_stage_3":        {0, 0, 1},
			"stage1_delta_k":      {0},
			"stage2_delta_k":      {0},
			"stage3_delta_k":      {0},
			"index_offset_stage1": {0, 0.5, 0},
			"index_offset_stage2": {0, 0, -1},
			"index_offset_stage3": {0, 0, 0},
		}),
	}

	a, err := NewAnalyzer(runners, zap.NewNop())
	require.NoError(t, err)
	return a
}

func TestAnalyzer(t *testing.T) {
	a := newTestAnalyzer(t)
	ctx := context.Background()
	img := testImage()
	box := images.Rect{X1: 20, Y1: 20, X2: 60, Y2: 60}

	t.Run("landmarks", func(t *testing.T) {
		points, err := a.Landmarks(ctx, img, box)
		require.NoError(t, err)
		require.Len(t, points, Landmark68Values)
		assert.InDelta(t, 40, points[0], 1e-4)
		assert.InDelta(t, 40, points[135], 1e-4)
	})

	t.Run("pose", func(t *testing.T) {
		pose, err := a.Pose(ctx, img, box)
		require.NoError(t, err)
		assert.InDelta(t, 0, pose.Yaw, 1e-3)
		assert.InDelta(t, 30, pose.Pitch, 1e-3)
		assert.InDelta(t, -30, pose.Roll, 1e-3)
	})

	t.Run("liveness", func(t *testing.T) {
		score, err := a.Liveness(ctx, img, box)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, score, 1e-6)
	})

	t.Run("expression", func(t *testing.T) {
		idx, err := a.Expression(ctx, img, box)
		require.NoError(t, err)
		assert.Equal(t, 2, idx)
	})

	t.Run("gender", func(t *testing.T) {
		score, err := a.Gender(ctx, img, box)
		require.NoError(t, err)
		// 1.5/3 + 1/9 + 2/27
		assert.InDelta(t, 37.0/54.0, score, 1e-6)
	})

	t.Run("eyes", func(t *testing.T) {
		left, right, err := a.Eyes(ctx, img, eyePoints())
		require.NoError(t, err)
		assert.True(t, left)
		assert.True(t, right)
	})

	t.Run("feature", func(t *testing.T) {
		feature, err := a.Feature(ctx, img, featurePoints())
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, feature)
	})
}

func TestAnalyzerErrors(t *testing.T) {
	ctx := context.Background()
	img := testImage()

	t.Run("unknown model", func(t *testing.T) {
		_, err := NewAnalyzer(map[model.Name]inference.Runner{
			"age": inference.RunnerFunc(nil),
		}, nil)
		assert.Error(t, err)
	})

	t.Run("nil runner", func(t *testing.T) {
		_, err := NewAnalyzer(map[model.Name]inference.Runner{model.ModelNamePose: nil}, nil)
		assert.Error(t, err)
	})

	t.Run("missing runner", func(t *testing.T) {
		a, err := NewAnalyzer(nil, nil)
		require.NoError(t, err)
		assert.False(t, a.Has(model.ModelNamePose))

		_, err = a.Pose(ctx, img, images.Rect{X1: 20, Y1: 20, X2: 60, Y2: 60})
		assert.Error(t, err)
	})

	t.Run("empty crop", func(t *testing.T) {
		a := newTestAnalyzer(t)
		assert.True(t, a.Has(model.ModelNameLandmark))

		_, err := a.Landmarks(ctx, img, images.Rect{X1: 20, Y1: 20, X2: 20, Y2: 20})
		assert.Error(t, err)
	})

	t.Run("malformed points", func(t *testing.T) {
		a := newTestAnalyzer(t)

		_, _, err := a.Eyes(ctx, img, make([]float32, 10))
		assert.Error(t, err)
		_, err = a.Feature(ctx, img, make([]float32, 10))
		assert.Error(t, err)
	})
}

func TestAlignFeature(t *testing.T) {
	aligned, err := AlignFeature(testImage(), featurePoints())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, FeatureSize, FeatureSize), aligned.Bounds())
}
