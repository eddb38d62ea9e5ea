// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-face/images"
)

// Strategy selects the suppression algorithm.
type Strategy string

const (
	// StrategyBottomEdge visits boxes by ascending bottom edge and suppresses by
	// the share of each candidate covered by the kept box.
	StrategyBottomEdge Strategy = "bottom_edge"
	// StrategyIoU visits boxes by descending score and suppresses by symmetric IoU.
	StrategyIoU Strategy = "iou"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	Strategy  Strategy // Suppression algorithm. Empty means StrategyBottomEdge.
	Threshold float32  // Overlap threshold for suppression, in (0, 1].
}

// Validate checks the strategy and threshold.
func (c NMSConfig) Validate() error {
	switch c.Strategy {
	case "", StrategyBottomEdge, StrategyIoU:
	default:
		return errors.Errorf("unknown NMS strategy %q", c.Strategy)
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		return errors.Errorf("NMS threshold must be in (0, 1], got %v", c.Threshold)
	}
	return nil
}

// suppressionBox is a candidate with its geometry precomputed for the overlap test.
type suppressionBox struct {
	Candidate
	width, height, area float32
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}

// validBoxes drops candidates with a non-positive width or height, and
// candidates whose corners or area are not finite.
func validBoxes(candidates []Candidate) []suppressionBox {
	out := make([]suppressionBox, 0, len(candidates))
	for _, c := range candidates {
		w, h := c.Box.Width(), c.Box.Height()
		if w <= 0 || h <= 0 {
			continue
		}
		if !finite(c.Box.X1) || !finite(c.Box.Y1) || !finite(c.Box.X2) || !finite(c.Box.Y2) || !finite(w*h) {
			continue
		}
		out = append(out, suppressionBox{Candidate: c, width: w, height: h, area: w * h})
	}
	return out
}

// ApplyNMS filters overlapping candidates with the algorithm named by config.
//
// Arguments:
//   - candidates: The candidates to filter. The slice is not modified.
//   - config: NMS configuration.
//
// Returns:
//   - Filtered slice of candidates. If no candidates survive, returns an empty slice.
func ApplyNMS(candidates []Candidate, config *NMSConfig) []Candidate {
	if config.Strategy == StrategyIoU {
		ranked := make([]Candidate, len(candidates))
		copy(ranked, candidates)
		SortByScore(ranked)
		return ApplyGreedyNMS(ranked, config)
	}
	return ApplyBottomEdgeNMS(candidates, config.Threshold)
}

// ApplyBottomEdgeNMS performs greedy suppression ordered by bottom edge.
//
// Boxes with a non-positive width or height are dropped. The rest are visited
// in ascending order of Y2 (ties keep their input order). The front box is
// kept, and every remaining box whose overlap with it reaches threshold is
// suppressed, where overlap is images.CalculateOverlap(candidate, kept).
//
// Arguments:
//   - candidates: The candidates to filter. The slice is not modified.
//   - threshold: Overlap at or above which a candidate is suppressed.
//
// Returns:
//   - The kept candidates in the order they were kept, with their original Index.
func ApplyBottomEdgeNMS(candidates []Candidate, threshold float32) []Candidate {
	boxes := validBoxes(candidates)
	sort.SliceStable(boxes, func(i, j int) bool {
		return boxes[i].Box.Y2 < boxes[j].Box.Y2
	})

	filtered := make([]Candidate, 0, len(boxes))
	for len(boxes) > 0 {
		kept := boxes[0]
		filtered = append(filtered, kept.Candidate)

		remaining := boxes[:0]
		for _, b := range boxes[1:] {
			if overlap(b, kept) < threshold {
				remaining = append(remaining, b)
			}
		}
		boxes = remaining
	}

	return filtered
}

// overlap is images.CalculateOverlap using the precomputed candidate area.
func overlap(candidate, kept suppressionBox) float32 {
	return images.InclusiveIntersection(candidate.Box, kept.Box) / candidate.area
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// Arguments:
//   - candidates: Slice of candidates sorted by descending score.
//   - config: NMS configuration; Threshold is the IoU above which overlapping boxes are suppressed.
//
// Returns:
//   - Filtered slice of candidates.
func ApplyGreedyNMS(candidates []Candidate, config *NMSConfig) []Candidate {
	boxes := validBoxes(candidates)
	n := len(boxes)

	filtered := make([]Candidate, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := boxes[i]
		filtered = append(filtered, anchor.Candidate)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}

			// Suppress if IoU exceeds threshold
			if images.CalculateIoU(anchor.Box, boxes[j].Box) > config.Threshold {
				used[j] = true
			}
		}
	}

	return filtered
}
