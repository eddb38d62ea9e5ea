package anchors

import (
	"github.com/chewxy/math32"
)

// Anchor is a prior box in normalized [0,1] coordinates.
type Anchor struct {
	CX, CY float32 // center
	SX, SY float32 // size
}

// featureMap returns the number of rows and columns of scale k.
func featureMap(w, h, step int) (rows, cols int) {
	return (h + step - 1) / step, (w + step - 1) / step
}

// Count returns the number of anchors Generate produces for a w x h input.
//
// Arguments:
//   - w: The network input width in pixels.
//   - h: The network input height in pixels.
//   - cfg: The grid layout.
//
// Returns:
//   - int: The anchor count, the sum over scales of rows*cols*len(MinSizes[k]).
func Count(w, h int, cfg Config) int {
	n := 0
	for k, step := range cfg.Steps {
		rows, cols := featureMap(w, h, step)
		n += rows * cols * len(cfg.MinSizes[k])
	}
	return n
}

// Generate builds the prior-box grid for a w x h network input.
//
// Anchors are emitted scale by scale, then row by row, then column by column,
// then min size by min size. Index i of the result corresponds to row i of the
// model's box, score and landmark outputs.
//
// Arguments:
//   - w: The network input width in pixels.
//   - h: The network input height in pixels.
//   - cfg: The grid layout. It must have passed Validate.
//
// Returns:
//   - []Anchor: Count(w, h, cfg) anchors in emission order.
//
// @example
// grid := anchors.Generate(320, 240, anchors.DefaultConfig())
// fmt.Println(len(grid)) // 4420
func Generate(w, h int, cfg Config) []Anchor {
	out := make([]Anchor, 0, Count(w, h, cfg))
	fw, fh := float32(w), float32(h)

	for k, step := range cfg.Steps {
		rows, cols := featureMap(w, h, step)
		fstep := float32(step)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				for _, m := range cfg.MinSizes[k] {
					a := Anchor{
						CX: (float32(j) + 0.5) * fstep / fw,
						CY: (float32(i) + 0.5) * fstep / fh,
						SX: m / fw,
						SY: m / fh,
					}
					if cfg.Clip {
						a = a.clip()
					}
					out = append(out, a)
				}
			}
		}
	}

	return out
}

func (a Anchor) clip() Anchor {
	return Anchor{
		CX: clamp01(a.CX),
		CY: clamp01(a.CY),
		SX: clamp01(a.SX),
		SY: clamp01(a.SY),
	}
}

func clamp01(v float32) float32 {
	return math32.Min(math32.Max(v, 0), 1)
}
