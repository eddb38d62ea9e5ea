package images

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ResampleFilter selects the interpolation used by Resize.
type ResampleFilter = resize.InterpolationFunction

// Supported resample filters.
const (
	NearestNeighbor = resize.NearestNeighbor
	Bilinear        = resize.Bilinear
	Lanczos         = resize.Lanczos3
)

// Resize stretches img to exactly width x height pixels without preserving the
// aspect ratio.
//
// Arguments:
//   - img: The source image.
//   - width: The target width in pixels.
//   - height: The target height in pixels.
//   - filter: The interpolation function.
//
// Returns:
//   - image.Image: The resized image.
//   - error: An error if the target dimensions are not positive.
//
// @example
// resized, err := images.Resize(img, 320, 240, images.Bilinear)
func Resize(img image.Image, width, height int, filter ResampleFilter) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid dimensions: width=%d, height=%d", width, height)
	}

	bounds := img.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return img, nil
	}

	return resize.Resize(uint(width), uint(height), img, filter), nil
}

// Crop returns the part of img inside rect, clipped to the image bounds.
//
// The returned image shares pixels with img when the source supports SubImage;
// otherwise the region is copied.
func Crop(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())

	if sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(rect)
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x-rect.Min.X, y-rect.Min.Y, img.At(x, y))
		}
	}
	return dst
}
