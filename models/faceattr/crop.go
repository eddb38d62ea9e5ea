package faceattr

import (
	"image"

	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-face/images"
)

// Enlargement applied by AlignCrop for the landmark, liveness and gender models.
const (
	LandmarkCropScale = 1.0
	LivenessCropScale = 2.7
	GenderCropScale   = 1.4
)

// expressionCropScale enlarges the expression crop from its top-left corner.
const expressionCropScale = 1.2

// intBox truncates a box to integer corner, width and height.
func intBox(box images.Rect) (x, y, w, h int) {
	x1, y1 := int(box.X1), int(box.Y1)
	x2, y2 := int(box.X2), int(box.Y2)
	return x1, y1, abs(x2 - x1), abs(y2 - y1)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func bounds(srcW, srcH int) image.Rectangle {
	return image.Rect(0, 0, srcW, srcH)
}

// AlignCrop returns a crop centred on box and enlarged by scale.
//
// The scale is reduced so that the crop fits in the picture, and the crop is
// shifted back inside the picture when it crosses an edge.
//
// Arguments:
//   - box: The face box in picture pixels.
//   - srcW: The picture width.
//   - srcH: The picture height.
//   - scale: The enlargement, e.g. LandmarkCropScale.
//
// Returns:
//   - image.Rectangle: The crop, within the picture bounds.
func AlignCrop(box images.Rect, srcW, srcH int, scale float32) image.Rectangle {
	x, y, bw, bh := intBox(box)
	boxW, boxH := float32(bw), float32(bh)
	maxX, maxY := float32(srcW-1), float32(srcH-1)

	s := math32.Min(maxY/boxH, math32.Min(maxX/boxW, scale))
	newW, newH := boxW*s, boxH*s
	cx, cy := boxW/2+float32(x), boxH/2+float32(y)

	x1, y1 := cx-newW/2, cy-newH/2
	x2, y2 := cx+newW/2, cy+newH/2
	if x1 < 0 {
		x2 -= x1
		x1 = 0
	}
	if y1 < 0 {
		y2 -= y1
		y1 = 0
	}
	if x2 > maxX {
		x1 -= x2 - maxX
		x2 = maxX
	}
	if y2 > maxY {
		y1 -= y2 - maxY
		y2 = maxY
	}

	left, top := max(int(x1), 0), max(int(y1), 0)
	w := min(int(x2-x1), srcW-1)
	h := min(int(y2-y1), srcH-1)

	return image.Rect(left, top, left+w, top+h).Intersect(bounds(srcW, srcH))
}

// PoseCrop returns box grown by a quarter of its size on every side, clipped
// to the picture.
func PoseCrop(box images.Rect, srcW, srcH int) image.Rectangle {
	x, y, w, h := intBox(box)
	x1 := int(float32(x) - float32(w)/4)
	y1 := int(float32(y) - float32(h)/4)
	x2 := int(float32(x+w) + float32(w)/4)
	y2 := int(float32(y+h) + float32(h)/4)

	left, top := max(x1, 0), max(y1, 0)
	return image.Rect(left, top, left+min(x2-x1, srcW), top+min(y2-y1, srcH)).Intersect(bounds(srcW, srcH))
}

// ExpressionCrop returns box enlarged by 1.2 from its top-left corner, clipped
// to the picture.
func ExpressionCrop(box images.Rect, srcW, srcH int) image.Rectangle {
	x, y, w, h := intBox(box)
	cw := min(int(float32(w)*expressionCropScale), srcW-1)
	ch := min(int(float32(h)*expressionCropScale), srcH-1)

	return image.Rect(x, y, x+cw, y+ch).Intersect(bounds(srcW, srcH))
}
