// Package preprocess converts images into the float32 input tensors of the face models.
package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-face/images"
)

// ImageFormat represents the format of an image.
type ImageFormat string

const (
	// ImageFormatJPEG represents JPEG image format.
	ImageFormatJPEG ImageFormat = "jpeg"
	// ImageFormatPNG represents PNG image format.
	ImageFormatPNG ImageFormat = "png"
	// ImageFormatWebP represents WebP image format.
	ImageFormatWebP ImageFormat = "webp"
)

// Image represents an encoded input image with metadata.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// ModelConfig defines preprocessing configuration for a specific model.
type ModelConfig struct {
	// Name of the model for logging purposes.
	Name string
	// InputWidth is the expected width of the model input.
	InputWidth int
	// InputHeight is the expected height of the model input.
	InputHeight int
	// InputChannels is the number of channels (1 for grayscale, 3 for color).
	InputChannels int
	// NormalizationType defines how to normalize pixel values.
	NormalizationType NormalizationType
	// MeanValues per channel, in 0-255 pixel units (if NormalizationType is NormalizeStandardize).
	MeanValues []float32
	// StdValues per channel, in 0-255 pixel units (if NormalizationType is NormalizeStandardize).
	StdValues []float32
	// ChannelOrder defines the channel ordering (CHW or HWC).
	ChannelOrder ChannelOrder
	// ColorMode defines the color space (RGB, BGR, Grayscale).
	ColorMode ColorMode
	// KeepAspectRatio if true, maintains aspect ratio with letterboxing.
	KeepAspectRatio bool
	// LetterboxColor is the color used for letterbox padding (default black).
	LetterboxColor color.Color
	// Filter is the resampling filter used for resizing. The zero value is nearest neighbor.
	Filter images.ResampleFilter
}

// NormalizationType defines how pixel values are normalized.
type NormalizationType int

const (
	// NormalizeNone keeps pixel values as 0-255.
	NormalizeNone NormalizationType = iota
	// NormalizeZeroToOne scales pixel values to [0, 1].
	NormalizeZeroToOne
	// NormalizeMinusOneToOne scales pixel values to [-1, 1].
	NormalizeMinusOneToOne
	// NormalizeStandardize applies (p - mean) / std per channel.
	NormalizeStandardize
)

// ChannelOrder defines the ordering of image channels.
type ChannelOrder int

const (
	// ChannelOrderCHW is Channel-Height-Width ordering (common for ONNX).
	ChannelOrderCHW ChannelOrder = iota
	// ChannelOrderHWC is Height-Width-Channel ordering.
	ChannelOrderHWC
)

// ColorMode defines the color space of the image.
type ColorMode int

const (
	// ColorModeRGB is standard RGB color mode.
	ColorModeRGB ColorMode = iota
	// ColorModeBGR is BGR color mode (common for OpenCV models).
	ColorModeBGR
	// ColorModeGrayscale is single channel grayscale.
	ColorModeGrayscale
)

// PreprocessingResult contains the preprocessed image data and metadata.
type PreprocessingResult struct {
	// Data is the preprocessed float32 tensor data.
	Data []float32
	// OriginalWidth is the original image width before preprocessing.
	OriginalWidth int
	// OriginalHeight is the original image height before preprocessing.
	OriginalHeight int
	// ScaleX is the horizontal scaling factor applied.
	ScaleX float64
	// ScaleY is the vertical scaling factor applied.
	ScaleY float64
	// PadLeft is the left padding applied for letterboxing.
	PadLeft int
	// PadTop is the top padding applied for letterboxing.
	PadTop int
	// Shape contains the tensor shape [C, H, W] or [H, W, C].
	Shape []int
}

// Preprocessor handles image preprocessing for ONNX models.
type Preprocessor struct {
	config     *ModelConfig
	bufferPool *sync.Pool
	logger     *zap.Logger
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
// - config: The model-specific preprocessing configuration.
//
// Returns:
// - A configured Preprocessor instance.
//
// @example
//
//	config := GetFaceDetectConfig(320, 240)
//	preprocessor := NewPreprocessor(config)
func NewPreprocessor(config *ModelConfig) *Preprocessor {
	// Set default letterbox color if not specified.
	if config.LetterboxColor == nil {
		config.LetterboxColor = color.Black
	}

	return &Preprocessor{
		config: config,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
		logger: zap.NewNop(),
	}
}

// SetLogger replaces the logger used for debug output.
//
// Arguments:
// - logger: The logger to use. A nil logger disables logging.
func (p *Preprocessor) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p.logger = logger.With(zap.String("model", p.config.Name))
}

// Config returns the model configuration.
func (p *Preprocessor) Config() *ModelConfig {
	return p.config
}

// Preprocess decodes an encoded image and performs all preprocessing steps on it.
//
// Arguments:
// - img: The encoded input image.
//
// Returns:
// - PreprocessingResult containing the preprocessed tensor and metadata.
// - error if preprocessing fails.
//
// @example
//
//	img := &Image{
//	    Format: ImageFormatJPEG,
//	    Data:   jpegData,
//	    Width:  1920,
//	    Height: 1080,
//	}
//
// result, err := preprocessor.Preprocess(img)
//
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// tensor := result.Data
func (p *Preprocessor) Preprocess(img *Image) (*PreprocessingResult, error) {
	// Validate input.
	if err := p.validateInput(img); err != nil {
		return nil, errors.Wrap(err, "input validation failed")
	}

	// Decode image.
	decodedImg, err := p.decodeImage(img)
	if err != nil {
		return nil, errors.Wrap(err, "image decoding failed")
	}

	return p.PreprocessImage(decodedImg)
}

// PreprocessImage converts a decoded image into the model's input tensor.
//
// Arguments:
// - img: The decoded input image.
//
// Returns:
// - PreprocessingResult containing the preprocessed tensor and metadata.
// - error if the image is empty or cannot be resized.
func (p *Preprocessor) PreprocessImage(img image.Image) (*PreprocessingResult, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}

	// Store original dimensions.
	originalWidth := img.Bounds().Dx()
	originalHeight := img.Bounds().Dy()
	if originalWidth <= 0 || originalHeight <= 0 {
		return nil, errors.Errorf("invalid image dimensions: %dx%d", originalWidth, originalHeight)
	}

	// Resize image.
	resizedImg, scaleX, scaleY, padLeft, padTop, err := p.resizeImage(img)
	if err != nil {
		return nil, errors.Wrap(err, "resize failed")
	}

	// Convert to tensor.
	tensor := p.imageToTensor(resizedImg)

	// Apply normalization.
	p.normalize(tensor)

	// Determine shape based on channel ordering.
	var shape []int
	if p.config.ChannelOrder == ChannelOrderCHW {
		shape = []int{p.config.InputChannels, p.config.InputHeight, p.config.InputWidth}
	} else {
		shape = []int{p.config.InputHeight, p.config.InputWidth, p.config.InputChannels}
	}

	p.logger.Debug("preprocessed image",
		zap.Int("width", originalWidth),
		zap.Int("height", originalHeight),
		zap.Float64("scale_x", scaleX),
		zap.Float64("scale_y", scaleY),
		zap.Ints("shape", shape),
	)

	return &PreprocessingResult{
		Data:           tensor,
		OriginalWidth:  originalWidth,
		OriginalHeight: originalHeight,
		ScaleX:         scaleX,
		ScaleY:         scaleY,
		PadLeft:        padLeft,
		PadTop:         padTop,
		Shape:          shape,
	}, nil
}

// validateInput validates the input image structure.
//
// Arguments:
// - img: The image to validate.
//
// Returns:
// - error if validation fails.
func (p *Preprocessor) validateInput(img *Image) error {
	if img == nil {
		return errors.New("image is nil")
	}
	if len(img.Data) == 0 {
		return errors.New("image data is empty")
	}
	if img.Width <= 0 || img.Height <= 0 {
		return errors.Errorf("invalid image dimensions: %dx%d", img.Width, img.Height)
	}
	return nil
}

// decodeImage decodes the image data into an image.Image.
//
// Arguments:
// - img: The image to decode.
//
// Returns:
// - The decoded image.
// - error if decoding fails.
func (p *Preprocessor) decodeImage(img *Image) (image.Image, error) {
	buf := p.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		p.bufferPool.Put(buf)
	}()

	buf.Write(img.Data)

	return decode(img.Format, bytes.NewReader(buf.Bytes()))
}

// Decode decodes an encoded image without preprocessing it.
//
// Arguments:
// - img: The encoded image. An empty Format selects auto-detection.
//
// Returns:
// - The decoded image.
// - error if the data is empty or cannot be decoded.
func Decode(img *Image) (image.Image, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, errors.New("image data is empty")
	}

	decoded, err := decode(img.Format, bytes.NewReader(img.Data))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s image", img.Format)
	}
	return decoded, nil
}

func decode(format ImageFormat, reader io.Reader) (image.Image, error) {
	switch format {
	case ImageFormatJPEG:
		return jpeg.Decode(reader)
	case ImageFormatPNG:
		return png.Decode(reader)
	case ImageFormatWebP:
		return webp.Decode(reader)
	default:
		// Try auto-detection.
		decoded, _, err := image.Decode(reader)
		return decoded, err
	}
}

// resizeImage resizes the image to the model's input dimensions.
//
// Arguments:
// - img: The image to resize.
//
// Returns:
// - The resized image.
// - scaleX: Horizontal scaling factor.
// - scaleY: Vertical scaling factor.
// - padLeft: Left padding for letterboxing.
// - padTop: Top padding for letterboxing.
// - error if resizing fails.
func (p *Preprocessor) resizeImage(img image.Image) (image.Image, float64, float64, int, int, error) {
	bounds := img.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()

	scaleX := float64(p.config.InputWidth) / float64(srcWidth)
	scaleY := float64(p.config.InputHeight) / float64(srcHeight)

	if !p.config.KeepAspectRatio {
		// Simple resize without maintaining aspect ratio.
		resized, err := images.Resize(img, p.config.InputWidth, p.config.InputHeight, p.config.Filter)
		return resized, scaleX, scaleY, 0, 0, err
	}

	// Calculate scale to maintain aspect ratio.
	scale := math.Min(scaleX, scaleY)

	// Calculate new dimensions.
	newWidth := max(int(float64(srcWidth)*scale), 1)
	newHeight := max(int(float64(srcHeight)*scale), 1)

	resized, err := images.Resize(img, newWidth, newHeight, p.config.Filter)
	if err != nil {
		return nil, 0, 0, 0, 0, err
	}

	// Calculate padding.
	padLeft := (p.config.InputWidth - newWidth) / 2
	padTop := (p.config.InputHeight - newHeight) / 2

	// Create letterboxed image.
	letterboxed := image.NewRGBA(image.Rect(0, 0, p.config.InputWidth, p.config.InputHeight))
	draw.Draw(letterboxed, letterboxed.Bounds(), &image.Uniform{p.config.LetterboxColor}, image.Point{}, draw.Src)
	draw.Draw(letterboxed, image.Rect(padLeft, padTop, padLeft+newWidth, padTop+newHeight),
		resized, resized.Bounds().Min, draw.Over)

	return letterboxed, scale, scale, padLeft, padTop, nil
}

// imageToTensor converts an image to a float32 tensor with 0-255 values.
//
// Arguments:
// - img: The image to convert.
//
// Returns:
// - The float32 tensor data.
func (p *Preprocessor) imageToTensor(img image.Image) []float32 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	// Allocate tensor.
	tensor := make([]float32, width*height*p.config.InputChannels)

	// Convert based on channel ordering and color mode.
	idx := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			// Convert from uint32 to uint8.
			r8 := uint8(r >> 8)
			g8 := uint8(g >> 8)
			b8 := uint8(b >> 8)

			if p.config.InputChannels == 1 {
				gray := float32(color.GrayModel.Convert(color.RGBA{R: r8, G: g8, B: b8, A: 255}).(color.Gray).Y)
				if p.config.ChannelOrder == ChannelOrderCHW {
					tensor[y*width+x] = gray
				} else {
					tensor[idx] = gray
					idx++
				}
				continue
			}

			var ch0, ch1, ch2 float32
			if p.config.ColorMode == ColorModeBGR {
				ch0, ch1, ch2 = float32(b8), float32(g8), float32(r8)
			} else {
				ch0, ch1, ch2 = float32(r8), float32(g8), float32(b8)
			}

			if p.config.ChannelOrder == ChannelOrderCHW {
				tensor[0*height*width+y*width+x] = ch0
				tensor[1*height*width+y*width+x] = ch1
				tensor[2*height*width+y*width+x] = ch2
			} else {
				tensor[idx] = ch0
				tensor[idx+1] = ch1
				tensor[idx+2] = ch2
				idx += 3
			}
		}
	}

	return tensor
}

// normalize applies normalization to the tensor in place.
//
// Arguments:
// - tensor: The tensor to normalize in-place.
func (p *Preprocessor) normalize(tensor []float32) {
	switch p.config.NormalizationType {
	case NormalizeZeroToOne:
		for i := range tensor {
			tensor[i] /= 255.0
		}
	case NormalizeMinusOneToOne:
		for i := range tensor {
			tensor[i] = (tensor[i] / 127.5) - 1.0
		}
	case NormalizeStandardize:
		if len(p.config.MeanValues) != p.config.InputChannels ||
			len(p.config.StdValues) != p.config.InputChannels {
			// Fallback to zero-to-one if mean/std not properly configured.
			p.logger.Warn("mean/std do not match channel count, falling back to zero-to-one")
			for i := range tensor {
				tensor[i] /= 255.0
			}
			return
		}

		// Apply channel-wise standardization.
		pixelsPerChannel := len(tensor) / p.config.InputChannels
		for c := 0; c < p.config.InputChannels; c++ {
			mean := p.config.MeanValues[c]
			std := p.config.StdValues[c]

			if p.config.ChannelOrder == ChannelOrderCHW {
				offset := c * pixelsPerChannel
				for i := 0; i < pixelsPerChannel; i++ {
					tensor[offset+i] = (tensor[offset+i] - mean) / std
				}
			} else {
				for i := c; i < len(tensor); i += p.config.InputChannels {
					tensor[i] = (tensor[i] - mean) / std
				}
			}
		}
	}
}

// BatchPreprocess processes multiple images in parallel.
//
// Arguments:
// - images: Slice of images to preprocess.
// - maxConcurrency: Maximum number of images to process concurrently.
//
// Returns:
// - Slice of preprocessing results.
// - error if any preprocessing fails.
//
// @example
// images := []*Image{img1, img2, img3}
// results, err := preprocessor.BatchPreprocess(images, 4)
//
//	if err != nil {
//	    log.Fatal(err)
//	}
func (p *Preprocessor) BatchPreprocess(images []*Image, maxConcurrency int) ([]*PreprocessingResult, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	results := make([]*PreprocessingResult, len(images))
	errs := make([]error, len(images))

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i, img := range images {
		wg.Add(1)
		go func(idx int, image *Image) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := p.Preprocess(image)
			if err != nil {
				errs[idx] = errors.Wrapf(err, "failed to preprocess image %d", idx)
			} else {
				results[idx] = result
			}
		}(i, img)
	}

	wg.Wait()

	// Check for errors.
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}
