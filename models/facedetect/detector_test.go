package facedetect

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-face/inference"
	"github.com/nvr-ai/go-face/models/anchors"
	"github.com/nvr-ai/go-face/models/model"
)

func grayImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 127, G: 127, B: 127, A: 255})
		}
	}
	return img
}

// fakeRunner returns fixed outputs for a 32x32 detector with four anchors.
func fakeRunner(t *testing.T, scores ...float32) inference.Runner {
	return inference.RunnerFunc(func(ctx context.Context, input []float32) (inference.Outputs, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		require.Len(t, input, 3*32*32)
		// (127 - 127) / 128
		assert.InDelta(t, 0, input[0], 1e-6)

		return inference.Outputs{
			model.OutputBoxes:  make([]float32, 4*anchors.BoxWidth),
			model.OutputScores: faceScores(scores...),
		}, nil
	})
}

func TestDetect(t *testing.T) {
	d, err := NewDetector(fakeRunner(t, 0.9, 0.1, 0.1, 0.1), smallConfig(), WithLogger(zap.NewNop()))
	require.NoError(t, err)

	faces, err := d.Detect(context.Background(), grayImage(64, 64))
	require.NoError(t, err)
	require.Len(t, faces, 1)

	assert.Equal(t, 0, faces[0].Index)
	assert.InDelta(t, 8, faces[0].X1, 1e-3)
	assert.InDelta(t, 24, faces[0].Y2, 1e-3)
	assert.Same(t, d.Pipeline(), d.pipeline)
}

func TestDetectErrors(t *testing.T) {
	t.Run("nil runner", func(t *testing.T) {
		_, err := NewDetector(nil, smallConfig())
		assert.Error(t, err)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := smallConfig()
		cfg.TopK = 0
		_, err := NewDetector(fakeRunner(t), cfg)
		assert.Equal(t, ErrInvalidConfig, errors.Cause(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		d, err := NewDetector(fakeRunner(t, 0.9, 0.1, 0.1, 0.1), smallConfig())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = d.Detect(ctx, grayImage(64, 64))
		assert.Equal(t, context.Canceled, errors.Cause(err))
	})

	t.Run("missing output", func(t *testing.T) {
		runner := inference.RunnerFunc(func(context.Context, []float32) (inference.Outputs, error) {
			return inference.Outputs{model.OutputBoxes: make([]float32, 16)}, nil
		})
		d, err := NewDetector(runner, smallConfig())
		require.NoError(t, err)

		_, err = d.Detect(context.Background(), grayImage(64, 64))
		assert.Error(t, err)
	})

	t.Run("nil image", func(t *testing.T) {
		d, err := NewDetector(fakeRunner(t), smallConfig())
		require.NoError(t, err)

		_, err = d.Detect(context.Background(), nil)
		assert.Error(t, err)
	})
}

func TestDetectMat(t *testing.T) {
	d, err := NewDetector(fakeRunner(t, 0.1, 0.1, 0.1, 0.9), smallConfig())
	require.NoError(t, err)

	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(127, 127, 127, 0), 64, 64, gocv.MatTypeCV8UC3)
	defer mat.Close()

	faces, err := d.DetectMat(context.Background(), mat)
	require.NoError(t, err)
	require.Len(t, faces, 1)
	assert.Equal(t, 3, faces[0].Index)

	empty := gocv.NewMat()
	defer empty.Close()
	_, err = d.DetectMat(context.Background(), empty)
	assert.Error(t, err)
}

func TestSessionConfig(t *testing.T) {
	cfg := DefaultConfig()
	provider := inference.ProviderConfig{Backend: inference.CPUProviderBackend}

	sc, err := SessionConfig("detector.onnx", cfg, provider)
	require.NoError(t, err)

	assert.Equal(t, model.InputName, sc.InputName)
	assert.Equal(t, []int64{1, 3, 240, 320}, sc.InputShape)
	assert.Equal(t, []inference.OutputSpec{
		{Name: model.OutputScores, Shape: []int64{1, 4420, 2}},
		{Name: model.OutputBoxes, Shape: []int64{1, 4420, 4}},
	}, sc.Outputs)
	require.NoError(t, sc.Validate())

	cfg.Landmarks = true
	sc, err = SessionConfig("detector.onnx", cfg, provider)
	require.NoError(t, err)
	require.Len(t, sc.Outputs, 3)
	assert.Equal(t, inference.OutputSpec{Name: model.OutputLandmarks, Shape: []int64{1, 4420, 10}}, sc.Outputs[2])

	spec, err := model.Lookup(model.ModelNameFaceDetect)
	require.NoError(t, err)
	assert.Len(t, spec.Outputs, 2, "catalog entry must not be modified")
}

func TestOpenSessionErrors(t *testing.T) {
	provider := inference.ProviderConfig{Backend: inference.CPUProviderBackend}

	cfg := DefaultConfig()
	cfg.NMSThreshold = 0
	_, err := OpenSession("detector.onnx", cfg, provider, nil)
	assert.Equal(t, ErrInvalidConfig, errors.Cause(err))

	_, err = OpenSession(filepath.Join(t.TempDir(), "missing.onnx"), DefaultConfig(), provider, zap.NewNop())
	assert.Error(t, err)
}
