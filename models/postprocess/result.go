// Package postprocess - Postprocessing utilities for detection models.
package postprocess

import "github.com/nvr-ai/go-face/images"

// Candidate represents a single scored detection on its way through the pipeline.
type Candidate struct {
	// The bounding box of the candidate.
	Box images.Rect
	// The confidence score of the candidate.
	Score float32
	// The anchor index the candidate was decoded from.
	Index int
}
