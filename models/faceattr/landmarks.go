package faceattr

import (
	"image"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-face/common"
	"github.com/nvr-ai/go-face/images"
	"github.com/nvr-ai/go-face/models/model"
)

const (
	// NumLandmarks68 is the number of points produced by the landmark model.
	NumLandmarks68 = 68
	// Landmark68Values is the length of a flat [x0, y0, x1, y1, ...] 68-point slice.
	Landmark68Values = model.Landmark68Values
)

// eyePadding scales the eye width into the side of the square eye crop.
const eyePadding = 1.6

// Flat offsets into a 68-point slice.
var (
	leftEyeX    = []int{74, 76, 80, 82}
	rightEyeX   = []int{86, 88, 92, 94}
	noseX       = 60
	leftMouthX  = []int{96, 120}
	rightMouthX = []int{108, 128}

	// Outer and inner eye corners, used for the crop size.
	leftEyeCorners  = [2]int{72, 78}
	rightEyeCorners = [2]int{84, 90}
)

// referencePoints is the five-point template of the 112x112 feature crop.
var referencePoints = common.Landmarks{
	{X: 38.29459953, Y: 51.69630051},
	{X: 73.53179932, Y: 51.50139999},
	{X: 56.02519989, Y: 71.73660278},
	{X: 41.54930115, Y: 92.3655014},
	{X: 70.72990036, Y: 92.20410156},
}

// ReferencePoints returns the five-point template the feature model expects.
func ReferencePoints() common.Landmarks {
	return referencePoints
}

func checkLandmarks68(points []float32) error {
	if len(points) != Landmark68Values {
		return errors.Errorf("expected %d landmark values, got %d", Landmark68Values, len(points))
	}
	return nil
}

// DecodeLandmarks68 maps the landmark model output from box-relative units to
// picture pixels.
//
// Arguments:
//   - raw: The model output, 68 (x, y) pairs in [0, 1] relative to box.
//   - box: The face box the crop was taken from.
//
// Returns:
//   - []float32: A new slice of 68 (x, y) pairs in picture pixels.
//   - error: An error if raw does not hold 136 values.
func DecodeLandmarks68(raw []float32, box images.Rect) ([]float32, error) {
	if err := checkLandmarks68(raw); err != nil {
		return nil, err
	}

	w, h := box.Width(), box.Height()
	out := make([]float32, len(raw))
	for i := 0; i < len(raw); i += 2 {
		out[i] = raw[i]*w + box.X1
		out[i+1] = raw[i+1]*h + box.Y1
	}

	return out, nil
}

func centroid(points []float32, xs []int) common.Point {
	var p common.Point
	for _, i := range xs {
		p.X += points[i]
		p.Y += points[i+1]
	}
	n := float32(len(xs))
	return common.Point{X: p.X / n, Y: p.Y / n}
}

// Convert68To5 reduces 68 landmarks to the five points used for alignment:
// both eye centres, the nose tip and the two mouth corners.
//
// Arguments:
//   - points: 68 (x, y) pairs.
//
// Returns:
//   - common.Landmarks: The five points.
//   - error: An error if points does not hold 136 values.
func Convert68To5(points []float32) (common.Landmarks, error) {
	if err := checkLandmarks68(points); err != nil {
		return common.Landmarks{}, err
	}

	return common.Landmarks{
		centroid(points, leftEyeX),
		centroid(points, rightEyeX),
		{X: points[noseX], Y: points[noseX+1]},
		centroid(points, leftMouthX),
		centroid(points, rightMouthX),
	}, nil
}

func eyeCrop(points []float32, xs []int, corners [2]int, width, height int) image.Rectangle {
	c := centroid(points, xs)
	cx, cy := int(c.X), int(c.Y)
	size := int((points[corners[1]] - points[corners[0]]) * eyePadding)

	x0 := max(int(float32(cx)-float32(size)/2), 0)
	y0 := max(int(float32(cy)-float32(size)/2), 0)
	if x0+size >= width {
		size = width - x0 - 1
	}
	if y0+size >= height {
		size = height - y0 - 1
	}
	size = max(size, 0)

	return image.Rect(x0, y0, x0+size, y0+size)
}

// EyeCrops returns the square crops of the left and right eye.
//
// Each square is centred on the eye centroid with a side of 1.6 times the
// distance between the eye corners, moved inside the picture.
//
// Arguments:
//   - points: 68 (x, y) pairs in picture pixels.
//   - width: The picture width.
//   - height: The picture height.
//
// Returns:
//   - image.Rectangle: The left eye crop.
//   - image.Rectangle: The right eye crop.
//   - error: An error if points does not hold 136 values.
func EyeCrops(points []float32, width, height int) (image.Rectangle, image.Rectangle, error) {
	if err := checkLandmarks68(points); err != nil {
		return image.Rectangle{}, image.Rectangle{}, err
	}

	left := eyeCrop(points, leftEyeX, leftEyeCorners, width, height)
	right := eyeCrop(points, rightEyeX, rightEyeCorners, width, height)

	return left, right, nil
}
