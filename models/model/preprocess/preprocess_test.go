package preprocess

// Test coverage for the image preprocessing used by the face models.
//
// The suite validates input validation, image decoding, resizing, normalization,
// tensor layout and the model configuration presets.

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-face/images"
)

// TestPreprocessFaceDetect validates the complete preprocessing pipeline for the face detector.
//
// A solid color image is stretched to 320x240 and every channel must hold
// (p - 127) / 128 for its source value.
//
// Arguments:
//   - t: Testing context for assertions and error reporting.
func TestPreprocessFaceDetect(t *testing.T) {
	img := createSolidImage(640, 480, color.RGBA{R: 255, G: 0, B: 127, A: 255})

	p := NewPreprocessor(GetFaceDetectConfig(320, 240))
	p.SetLogger(zap.NewNop())

	result, err := p.PreprocessImage(img)
	require.NoError(t, err, "Face detector preprocessing should succeed with valid input")

	assert.Equal(t, []int{3, 240, 320}, result.Shape)
	require.Len(t, result.Data, 3*240*320)
	assert.Equal(t, 640, result.OriginalWidth, "Original width should be preserved")
	assert.Equal(t, 480, result.OriginalHeight, "Original height should be preserved")
	assert.InDelta(t, 0.5, result.ScaleX, 1e-9)
	assert.InDelta(t, 0.5, result.ScaleY, 1e-9)

	plane := 240 * 320
	for _, i := range []int{0, plane / 2, plane - 1} {
		assert.InDelta(t, 1.0, result.Data[i], 0.01, "R channel")
		assert.InDelta(t, -127.0/128.0, result.Data[plane+i], 0.01, "G channel")
		assert.InDelta(t, 0.0, result.Data[2*plane+i], 0.01, "B channel")
	}
}

// TestPreprocessGrayscale validates single channel conversion for the landmark model.
func TestPreprocessGrayscale(t *testing.T) {
	img := createSolidImage(100, 100, color.RGBA{R: 128, G: 128, B: 128, A: 255})

	result, err := NewPreprocessor(GetLandmarkConfig()).PreprocessImage(img)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 64, 64}, result.Shape)
	require.Len(t, result.Data, 64*64)
	for _, v := range []float32{result.Data[0], result.Data[len(result.Data)-1]} {
		assert.InDelta(t, 0.5, v, 0.01, "Gray value should be divided by 256")
	}
}

// TestPreprocessChannelLayout validates color ordering and tensor layout without resizing.
func TestPreprocessChannelLayout(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	img.Set(1, 0, color.RGBA{R: 40, G: 50, B: 60, A: 255})

	tests := []struct {
		name     string
		order    ChannelOrder
		mode     ColorMode
		expected []float32
	}{
		{name: "RGB CHW", order: ChannelOrderCHW, mode: ColorModeRGB, expected: []float32{10, 40, 20, 50, 30, 60}},
		{name: "BGR CHW", order: ChannelOrderCHW, mode: ColorModeBGR, expected: []float32{30, 60, 20, 50, 10, 40}},
		{name: "RGB HWC", order: ChannelOrderHWC, mode: ColorModeRGB, expected: []float32{10, 20, 30, 40, 50, 60}},
		{name: "BGR HWC", order: ChannelOrderHWC, mode: ColorModeBGR, expected: []float32{30, 20, 10, 60, 50, 40}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPreprocessor(&ModelConfig{
				Name:              "layout",
				InputWidth:        2,
				InputHeight:       1,
				InputChannels:     3,
				NormalizationType: NormalizeNone,
				ChannelOrder:      tt.order,
				ColorMode:         tt.mode,
			})

			result, err := p.PreprocessImage(img)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Data)
		})
	}
}

// TestPreprocessNormalization validates every normalization mode on a known pixel.
func TestPreprocessNormalization(t *testing.T) {
	img := createSolidImage(1, 1, color.RGBA{R: 51, G: 102, B: 255, A: 255})

	tests := []struct {
		name     string
		config   ModelConfig
		expected []float32
	}{
		{name: "none", config: ModelConfig{NormalizationType: NormalizeNone}, expected: []float32{51, 102, 255}},
		{name: "zero to one", config: ModelConfig{NormalizationType: NormalizeZeroToOne}, expected: []float32{0.2, 0.4, 1}},
		{name: "minus one to one", config: ModelConfig{NormalizationType: NormalizeMinusOneToOne}, expected: []float32{-0.6, -0.2, 1}},
		{
			name: "standardize",
			config: ModelConfig{
				NormalizationType: NormalizeStandardize,
				MeanValues:        []float32{51, 2, 127},
				StdValues:         []float32{1, 50, 128},
			},
			expected: []float32{0, 2, 1},
		},
		{
			name: "standardize falls back to zero to one",
			config: ModelConfig{
				NormalizationType: NormalizeStandardize,
				MeanValues:        []float32{127},
				StdValues:         []float32{128},
			},
			expected: []float32{0.2, 0.4, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			cfg.Name = tt.name
			cfg.InputWidth = 1
			cfg.InputHeight = 1
			cfg.InputChannels = 3

			result, err := NewPreprocessor(&cfg).PreprocessImage(img)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.expected, result.Data, 1e-5)
		})
	}
}

// TestPreprocessFormats validates decoding of every supported encoded format.
func TestPreprocessFormats(t *testing.T) {
	src := createGradientImage(80, 60)

	tests := []struct {
		name   string
		format ImageFormat
		data   []byte
	}{
		{name: "jpeg", format: ImageFormatJPEG, data: encodeJPEG(t, src)},
		{name: "png", format: ImageFormatPNG, data: encodePNG(t, src)},
		{name: "webp", format: ImageFormatWebP, data: encodeWebP(t, src)},
		{name: "auto-detected png", format: "", data: encodePNG(t, src)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPreprocessor(GetFaceDetectConfig(32, 24))

			result, err := p.Preprocess(&Image{Format: tt.format, Data: tt.data, Width: 80, Height: 60})
			require.NoError(t, err)
			assert.Equal(t, 80, result.OriginalWidth)
			assert.Equal(t, 60, result.OriginalHeight)
			assert.Len(t, result.Data, 3*24*32)
		})
	}
}

func TestDecode(t *testing.T) {
	src := createGradientImage(40, 30)

	for _, format := range []ImageFormat{ImageFormatPNG, ""} {
		img, err := Decode(&Image{Format: format, Data: encodePNG(t, src)})
		require.NoError(t, err)
		assert.Equal(t, src.Bounds(), img.Bounds())
	}

	_, err := Decode(&Image{Format: ImageFormatJPEG})
	assert.Error(t, err)

	_, err = Decode(&Image{Format: ImageFormatJPEG, Data: []byte("not an image")})
	assert.Error(t, err)
}

// TestPreprocessValidation validates the handling of malformed input.
func TestPreprocessValidation(t *testing.T) {
	validImg := encodePNG(t, createGradientImage(10, 10))

	testCases := []struct {
		name  string
		image *Image
	}{
		{name: "Nil image", image: nil},
		{name: "Empty image data", image: &Image{Format: ImageFormatPNG, Data: []byte{}, Width: 10, Height: 10}},
		{name: "Zero width", image: &Image{Format: ImageFormatPNG, Data: validImg, Width: 0, Height: 10}},
		{name: "Negative height", image: &Image{Format: ImageFormatPNG, Data: validImg, Width: 10, Height: -5}},
		{name: "Corrupted data", image: &Image{Format: ImageFormatJPEG, Data: []byte("not an image"), Width: 10, Height: 10}},
		{name: "Wrong format", image: &Image{Format: ImageFormatWebP, Data: validImg, Width: 10, Height: 10}},
	}

	p := NewPreprocessor(GetFaceDetectConfig(32, 24))
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := p.Preprocess(tc.image)
			assert.Error(t, err)
			assert.Nil(t, result)
		})
	}

	_, err := p.PreprocessImage(nil)
	assert.Error(t, err)

	_, err = p.PreprocessImage(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.Error(t, err)
}

// TestPreprocessIdempotency ensures that the same input always yields the same tensor.
func TestPreprocessIdempotency(t *testing.T) {
	data := encodePNG(t, createGradientImage(120, 90))
	p := NewPreprocessor(GetFaceDetectConfig(64, 48))

	first, err := p.Preprocess(&Image{Format: ImageFormatPNG, Data: data, Width: 120, Height: 90})
	require.NoError(t, err)
	second, err := p.Preprocess(&Image{Format: ImageFormatPNG, Data: data, Width: 120, Height: 90})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// TestPreprocessLetterboxing validates aspect-ratio-preserving resizing.
func TestPreprocessLetterboxing(t *testing.T) {
	img := createSolidImage(200, 100, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	p := NewPreprocessor(&ModelConfig{
		Name:              "letterbox",
		InputWidth:        64,
		InputHeight:       64,
		InputChannels:     3,
		NormalizationType: NormalizeZeroToOne,
		ChannelOrder:      ChannelOrderCHW,
		KeepAspectRatio:   true,
		Filter:            images.Bilinear,
	})

	result, err := p.PreprocessImage(img)
	require.NoError(t, err)

	assert.InDelta(t, 0.32, result.ScaleX, 1e-9)
	assert.Equal(t, result.ScaleX, result.ScaleY, "Letterboxing should use a single scale")
	assert.Equal(t, 0, result.PadLeft)
	assert.Equal(t, 16, result.PadTop)

	// Top padding row is black, the center row is white.
	assert.Equal(t, float32(0), result.Data[0])
	assert.InDelta(t, 1.0, result.Data[32*64+32], 0.01)
}

// TestConfigurationPresets validates the face model presets.
func TestConfigurationPresets(t *testing.T) {
	tests := []struct {
		name     string
		config   *ModelConfig
		width    int
		height   int
		channels int
		norm     NormalizationType
	}{
		{name: "face-detect", config: GetFaceDetectConfig(320, 240), width: 320, height: 240, channels: 3, norm: NormalizeStandardize},
		{name: "landmark", config: GetLandmarkConfig(), width: 64, height: 64, channels: 1, norm: NormalizeStandardize},
		{name: "pose", config: GetPoseConfig(), width: 224, height: 224, channels: 3, norm: NormalizeStandardize},
		{name: "expression", config: GetExpressionConfig(), width: 224, height: 224, channels: 3, norm: NormalizeZeroToOne},
		{name: "liveness", config: GetLivenessConfig(), width: 128, height: 128, channels: 3, norm: NormalizeNone},
		{name: "eye", config: GetEyeConfig(), width: 24, height: 24, channels: 1, norm: NormalizeZeroToOne},
		{name: "feature", config: GetFeatureConfig(), width: 112, height: 112, channels: 3, norm: NormalizeStandardize},
		{name: "gender", config: GetGenderConfig(), width: 64, height: 64, channels: 3, norm: NormalizeStandardize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.config.Name)
			assert.Equal(t, tt.width, tt.config.InputWidth)
			assert.Equal(t, tt.height, tt.config.InputHeight)
			assert.Equal(t, tt.channels, tt.config.InputChannels)
			assert.Equal(t, tt.norm, tt.config.NormalizationType)
			assert.Equal(t, ChannelOrderCHW, tt.config.ChannelOrder)
			assert.False(t, tt.config.KeepAspectRatio)
			if tt.norm == NormalizeStandardize {
				assert.Len(t, tt.config.MeanValues, tt.channels)
				assert.Len(t, tt.config.StdValues, tt.channels)
			}
		})
	}
}

// TestBatchPreprocess validates concurrent preprocessing and error propagation.
func TestBatchPreprocess(t *testing.T) {
	data := encodePNG(t, createGradientImage(40, 30))
	p := NewPreprocessor(GetFaceDetectConfig(32, 24))

	batch := []*Image{
		{Format: ImageFormatPNG, Data: data, Width: 40, Height: 30},
		{Format: ImageFormatPNG, Data: data, Width: 40, Height: 30},
		{Format: ImageFormatPNG, Data: data, Width: 40, Height: 30},
	}

	results, err := p.BatchPreprocess(batch, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, results[0].Data, r.Data)
	}

	batch = append(batch, &Image{Format: ImageFormatPNG, Data: []byte("broken"), Width: 40, Height: 30})
	results, err = p.BatchPreprocess(batch, 0)
	assert.Error(t, err)
	assert.Nil(t, results)
}

// BenchmarkPreprocessFaceDetect measures preprocessing of a VGA frame for the face detector.
func BenchmarkPreprocessFaceDetect(b *testing.B) {
	img := createGradientImage(640, 480)
	p := NewPreprocessor(GetFaceDetectConfig(320, 240))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.PreprocessImage(img); err != nil {
			b.Fatal(err)
		}
	}
}

// createSolidImage creates an image filled with a single color.
//
// Arguments:
//   - width: The desired image width in pixels.
//   - height: The desired image height in pixels.
//   - c: The fill color.
//
// Returns:
//   - *image.RGBA: The filled image.
func createSolidImage(width, height int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// createGradientImage creates an image with a gradient pattern for predictable testing.
func createGradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			b := uint8(((x + y) * 255) / (width + height))
			img.Set(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

func encodeJPEG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}), "JPEG encoding should succeed")
	return buf.Bytes()
}

func encodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img), "PNG encoding should succeed")
	return buf.Bytes()
}

func encodeWebP(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, webp.Encode(&buf, img, &webp.Options{Lossless: true}), "WebP encoding should succeed")
	return buf.Bytes()
}
