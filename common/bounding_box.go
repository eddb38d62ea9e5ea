package common

import (
	"fmt"
	"image"

	"github.com/nvr-ai/go-face/images"
)

// BoundingBox represents a bounding box with its label, confidence, and coordinates
// in original-image pixel space.
type BoundingBox struct {
	Label          string
	Confidence     float32
	X1, Y1, X2, Y2 float32
}

// NewBoundingBox creates a bounding box from a rectangle.
//
// Arguments:
// - label: The label of the detected object.
// - confidence: The detection score.
// - rect: The picture-space rectangle.
//
// Returns:
// - A BoundingBox carrying the rectangle's coordinates.
func NewBoundingBox(label string, confidence float32, rect images.Rect) BoundingBox {
	return BoundingBox{
		Label:      label,
		Confidence: confidence,
		X1:         rect.X1,
		Y1:         rect.Y1,
		X2:         rect.X2,
		Y2:         rect.Y2,
	}
}

// String formats the bounding box information for display.
//
// Returns:
// - A formatted string containing label, confidence, and coordinates.
//
// @example
// box := BoundingBox{Label: "face", Confidence: 0.95, X1: 100, Y1: 100, X2: 200, Y2: 300}
// fmt.Println(box.String()) // Output: Object face (confidence 0.950000): (100.00, 100.00), (200.00, 300.00)
func (b *BoundingBox) String() string {
	return fmt.Sprintf("Object %s (confidence %f): (%.2f, %.2f), (%.2f, %.2f)",
		b.Label, b.Confidence, b.X1, b.Y1, b.X2, b.Y2)
}

// Rect returns the coordinates as an images.Rect.
func (b *BoundingBox) Rect() images.Rect {
	return images.Rect{X1: b.X1, Y1: b.Y1, X2: b.X2, Y2: b.Y2}
}

// ToRect converts the bounding box to an image.Rectangle.
//
// This method converts floating-point coordinates to integer coordinates
// suitable for image processing operations.
//
// Returns:
// - An image.Rectangle with canonicalized coordinates.
//
// @example
// box := BoundingBox{X1: 100.5, Y1: 100.5, X2: 200.5, Y2: 300.5}
// rect := box.ToRect()
// fmt.Printf("Rectangle: %v\n", rect) // Rectangle: (100,100)-(200,300)
func (b *BoundingBox) ToRect() image.Rectangle {
	return b.Rect().ToRectangle()
}

// Width returns the horizontal extent of the box.
func (b *BoundingBox) Width() float32 {
	return b.X2 - b.X1
}

// Height returns the vertical extent of the box.
func (b *BoundingBox) Height() float32 {
	return b.Y2 - b.Y1
}

// Area returns the area of the box in square pixels.
func (b *BoundingBox) Area() float32 {
	return b.Width() * b.Height()
}

// IoU calculates the Intersection over Union between two bounding boxes.
//
// Arguments:
// - other: The other bounding box to calculate IoU with.
//
// Returns:
// - The IoU value between 0 and 1.
//
// @example
// box1 := BoundingBox{X1: 0, Y1: 0, X2: 100, Y2: 100}
// box2 := BoundingBox{X1: 50, Y1: 50, X2: 150, Y2: 150}
// iou := box1.IoU(&box2) // Returns ~0.143 (2500/17500)
func (b *BoundingBox) IoU(other *BoundingBox) float32 {
	return images.CalculateIoU(b.Rect(), other.Rect())
}
