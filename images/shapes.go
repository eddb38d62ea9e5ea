// Package images - Image processing utilities
package images

import (
	"image"

	"github.com/chewxy/math32"
)

// Rect is a lightweight bounding box in floating point coordinates.
//
// The same type is used for boxes in normalized [0,1] space, in network-input
// pixel space and in original-image pixel space; the caller tracks which.
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() float32 {
	return r.X2 - r.X1
}

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() float32 {
	return r.Y2 - r.Y1
}

// Area returns Width*Height. Degenerate rectangles may report zero or negative areas.
func (r Rect) Area() float32 {
	return r.Width() * r.Height()
}

// Center returns the center point of the rectangle.
func (r Rect) Center() (x, y float32) {
	return (r.X1 + r.X2) / 2, (r.Y1 + r.Y2) / 2
}

// Scale multiplies the horizontal coordinates by sx and the vertical ones by sy.
//
// Arguments:
//   - sx: The horizontal scale factor.
//   - sy: The vertical scale factor.
//
// Returns:
//   - The scaled rectangle.
func (r Rect) Scale(sx, sy float32) Rect {
	return Rect{
		X1: r.X1 * sx,
		Y1: r.Y1 * sy,
		X2: r.X2 * sx,
		Y2: r.Y2 * sy,
	}
}

// ToRectangle converts the rectangle to an image.Rectangle by truncating each
// coordinate. Fractional pixels around the edges are lost.
func (r Rect) ToRectangle() image.Rectangle {
	return image.Rect(int(r.X1), int(r.Y1), int(r.X2), int(r.Y2)).Canon()
}

// CalculateIoU returns the Intersection over Union of two rectangles.
//
// IoU = Area of Intersection / Area of Union. A value of 1.0 means the
// rectangles are identical, 0.0 means they do not overlap. The metric is
// symmetric: CalculateIoU(a, b) == CalculateIoU(b, a).
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//	iouScore := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	ix1 := math32.Max(r.X1, o.X1)
	iy1 := math32.Max(r.Y1, o.Y1)
	ix2 := math32.Min(r.X2, o.X2)
	iy2 := math32.Min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return interArea / unionArea
}

// InclusiveIntersection returns the intersection area of two rectangles measured
// in inclusive pixel units: one pixel is added to each intersection edge before
// the edges are clamped at zero.
func InclusiveIntersection(a, b Rect) float32 {
	xx1 := math32.Max(a.X1, b.X1)
	yy1 := math32.Max(a.Y1, b.Y1)
	xx2 := math32.Min(a.X2, b.X2)
	yy2 := math32.Min(a.Y2, b.Y2)

	w := math32.Max(0, xx2-xx1+1)
	h := math32.Max(0, yy2-yy1+1)

	return w * h
}

// CalculateOverlap returns the share of candidate covered by kept.
//
// Unlike CalculateIoU the ratio is one-directional: the inclusive intersection
// (see InclusiveIntersection) is divided by the plain area of the candidate
// only. The result can exceed 1.0 for small candidates.
//
// The caller must guarantee candidate.Area() > 0.
//
// Arguments:
//   - candidate: The rectangle that may be suppressed.
//   - kept: The rectangle that has already been kept.
//
// Returns:
//   - float32: The containment ratio of candidate within kept.
func CalculateOverlap(candidate, kept Rect) float32 {
	return InclusiveIntersection(candidate, kept) / candidate.Area()
}
