package postprocess

import "github.com/nvr-ai/go-face/images"

// FilterByScore keeps the boxes whose score reaches threshold.
//
// The comparison is inclusive: a score exactly equal to threshold is kept. The
// result preserves the order of boxes and records each box's position as its
// Index.
//
// Arguments:
//   - boxes: The decoded boxes, one per anchor.
//   - scores: The face scores, one per anchor. Must have the same length as boxes.
//   - threshold: The minimum score to keep.
//
// Returns:
//   - []Candidate: The surviving candidates in index order. Empty when nothing passes.
func FilterByScore(boxes []images.Rect, scores []float32, threshold float32) []Candidate {
	n := min(len(boxes), len(scores))
	out := make([]Candidate, 0)
	for i := 0; i < n; i++ {
		if scores[i] >= threshold {
			out = append(out, Candidate{Box: boxes[i], Score: scores[i], Index: i})
		}
	}
	return out
}
