package anchors

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-face/common"
	"github.com/nvr-ai/go-face/images"
)

const (
	// BoxWidth is the number of values per anchor in the box regression output.
	BoxWidth = 4
	// LandmarkWidth is the number of values per anchor in the landmark output.
	LandmarkWidth = 2 * common.NumLandmarks
	// ScoreWidth is the number of values per anchor in the class score output.
	ScoreWidth = 2
)

// ErrAnchorMismatch is returned when a raw output buffer does not hold one row per anchor.
var ErrAnchorMismatch = errors.New("output rows do not match anchor count")

// rowDecoder turns one fixed-width row of a raw output into a value positioned by its anchor.
type rowDecoder[T any] interface {
	width() int
	decode(row []float32, a Anchor, variance [2]float32) T
}

type boxDecoder struct{}

func (boxDecoder) width() int { return BoxWidth }

func (boxDecoder) decode(row []float32, a Anchor, v [2]float32) images.Rect {
	cx := a.CX + row[0]*v[0]*a.SX
	cy := a.CY + row[1]*v[0]*a.SY
	w := a.SX * math32.Exp(row[2]*v[1])
	h := a.SY * math32.Exp(row[3]*v[1])

	return images.Rect{
		X1: cx - w/2,
		Y1: cy - h/2,
		X2: cx + w/2,
		Y2: cy + h/2,
	}
}

type landmarkDecoder struct{}

func (landmarkDecoder) width() int { return LandmarkWidth }

func (landmarkDecoder) decode(row []float32, a Anchor, v [2]float32) common.Landmarks {
	var l common.Landmarks
	for p := range l {
		l[p] = common.Point{
			X: a.CX + row[2*p]*v[0]*a.SX,
			Y: a.CY + row[2*p+1]*v[0]*a.SY,
		}
	}
	return l
}

// View wraps raw as an [n, width] tensor without copying.
//
// Arguments:
//   - raw: The flat row-major buffer.
//   - n: The expected number of rows, normally the anchor count. Must be positive.
//   - width: The number of values per row.
//
// Returns:
//   - *tensor.Dense: A view sharing raw's storage.
//   - error: ErrAnchorMismatch when len(raw) != n*width.
func View(raw []float32, n, width int) (*tensor.Dense, error) {
	if n <= 0 || width <= 0 {
		return nil, errors.Errorf("cannot view %d rows of %d values", n, width)
	}
	if len(raw) != n*width {
		return nil, errors.Wrapf(ErrAnchorMismatch, "buffer of %d values is not %d rows of %d", len(raw), n, width)
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(n, width),
		tensor.WithBacking(raw),
	), nil
}

// Column extracts column col of an [n, width] buffer.
//
// Arguments:
//   - raw: The flat row-major buffer.
//   - n: The expected number of rows.
//   - width: The number of values per row.
//   - col: The column to extract.
//
// Returns:
//   - []float32: n values, one per row.
//   - error: ErrAnchorMismatch on a size mismatch, or an error for an invalid column.
func Column(raw []float32, n, width, col int) ([]float32, error) {
	if col < 0 || col >= width {
		return nil, errors.Errorf("column %d out of range for width %d", col, width)
	}
	if n == 0 && len(raw) == 0 {
		return []float32{}, nil
	}
	t, err := View(raw, n, width)
	if err != nil {
		return nil, err
	}

	data := t.Float32s()
	out := make([]float32, n)
	for i := range out {
		out[i] = data[i*width+col]
	}

	return out, nil
}

func decodeRows[T any](raw []float32, grid []Anchor, variance [2]float32, dec rowDecoder[T]) ([]T, error) {
	width := dec.width()
	if len(grid) == 0 && len(raw) == 0 {
		return []T{}, nil
	}
	t, err := View(raw, len(grid), width)
	if err != nil {
		return nil, err
	}

	data := t.Float32s()
	out := make([]T, len(grid))
	for i, a := range grid {
		out[i] = dec.decode(data[i*width:(i+1)*width], a, variance)
	}

	return out, nil
}

func decodeRowsAt[T any](raw []float32, grid []Anchor, variance [2]float32, indices []int, dec rowDecoder[T]) ([]T, error) {
	width := dec.width()
	if len(grid) == 0 && len(raw) == 0 {
		return []T{}, nil
	}
	t, err := View(raw, len(grid), width)
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return []T{}, nil
	}

	data := t.Float32s()
	out := make([]T, len(indices))
	for k, i := range indices {
		if i < 0 || i >= len(grid) {
			return nil, errors.Errorf("anchor index %d out of range [0, %d)", i, len(grid))
		}
		out[k] = dec.decode(data[i*width:(i+1)*width], grid[i], variance)
	}

	return out, nil
}

// DecodeBoxes applies the regression deltas in loc to each anchor of grid.
//
// Row i of loc holds (dx, dy, dw, dh) for grid[i]. The decoded boxes are in
// normalized coordinates and are not clamped.
//
// Arguments:
//   - loc: The flat [N, 4] regression buffer.
//   - grid: The N anchors the model was evaluated against.
//   - variance: The center and size variance.
//
// Returns:
//   - []images.Rect: N decoded corner boxes in anchor order.
//   - error: ErrAnchorMismatch when len(loc) != 4*N.
func DecodeBoxes(loc []float32, grid []Anchor, variance [2]float32) ([]images.Rect, error) {
	return decodeRows[images.Rect](loc, grid, variance, boxDecoder{})
}

// DecodeLandmarks applies the landmark offsets in raw to each anchor of grid.
//
// Row i of raw holds five (dx, dy) pairs for grid[i]. The decoded points are in
// normalized coordinates.
func DecodeLandmarks(raw []float32, grid []Anchor, variance [2]float32) ([]common.Landmarks, error) {
	return decodeRows[common.Landmarks](raw, grid, variance, landmarkDecoder{})
}

// DecodeLandmarksAt decodes only the landmark rows named by indices, in that order.
func DecodeLandmarksAt(raw []float32, grid []Anchor, variance [2]float32, indices []int) ([]common.Landmarks, error) {
	return decodeRowsAt[common.Landmarks](raw, grid, variance, indices, landmarkDecoder{})
}
