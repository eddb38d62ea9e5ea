package anchors

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-face/common"
	"github.com/nvr-ai/go-face/images"
)

var testVariance = [2]float32{0.1, 0.2}

func TestDecodeBoxesZeroDelta(t *testing.T) {
	grid := Generate(320, 240, DefaultConfig())
	loc := make([]float32, len(grid)*BoxWidth)

	boxes, err := DecodeBoxes(loc, grid, testVariance)
	require.NoError(t, err)
	require.Len(t, boxes, len(grid))

	for i, a := range grid {
		expected := images.Rect{
			X1: a.CX - a.SX/2,
			Y1: a.CY - a.SY/2,
			X2: a.CX + a.SX/2,
			Y2: a.CY + a.SY/2,
		}
		if !assert.InDeltaSlice(t,
			[]float32{expected.X1, expected.Y1, expected.X2, expected.Y2},
			[]float32{boxes[i].X1, boxes[i].Y1, boxes[i].X2, boxes[i].Y2},
			1e-6, "anchor %d", i) {
			return
		}
	}
}

func TestDecodeBoxes(t *testing.T) {
	grid := []Anchor{
		{CX: 0.5, CY: 0.5, SX: 0.2, SY: 0.2},
		{CX: 0.25, CY: 0.75, SX: 0.1, SY: 0.4},
	}
	loc := []float32{
		1, -1, 5, 0,
		0, 0, -5, 5,
	}

	boxes, err := DecodeBoxes(loc, grid, testVariance)
	require.NoError(t, err)
	require.Len(t, boxes, 2)

	// e = exp(5 * 0.2)
	const e = 2.7182817
	tests := []struct {
		name     string
		got      images.Rect
		expected images.Rect
	}{
		{
			name: "center shift and width growth",
			got:  boxes[0],
			expected: images.Rect{
				X1: 0.52 - 0.2*e/2, Y1: 0.48 - 0.1,
				X2: 0.52 + 0.2*e/2, Y2: 0.48 + 0.1,
			},
		},
		{
			name: "width shrink and height growth",
			got:  boxes[1],
			expected: images.Rect{
				X1: 0.25 - 0.1/e/2, Y1: 0.75 - 0.4*e/2,
				X2: 0.25 + 0.1/e/2, Y2: 0.75 + 0.4*e/2,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected.X1, tt.got.X1, 1e-5)
			assert.InDelta(t, tt.expected.Y1, tt.got.Y1, 1e-5)
			assert.InDelta(t, tt.expected.X2, tt.got.X2, 1e-5)
			assert.InDelta(t, tt.expected.Y2, tt.got.Y2, 1e-5)
		})
	}
}

func TestDecodeMismatch(t *testing.T) {
	grid := Generate(320, 240, DefaultConfig())

	tests := []struct {
		name   string
		decode func() error
	}{
		{
			name: "short box buffer",
			decode: func() error {
				_, err := DecodeBoxes(make([]float32, len(grid)*BoxWidth-1), grid, testVariance)
				return err
			},
		},
		{
			name: "long box buffer",
			decode: func() error {
				_, err := DecodeBoxes(make([]float32, (len(grid)+1)*BoxWidth), grid, testVariance)
				return err
			},
		},
		{
			name: "landmark buffer with box width",
			decode: func() error {
				_, err := DecodeLandmarks(make([]float32, len(grid)*BoxWidth), grid, testVariance)
				return err
			},
		},
		{
			name: "landmark subset without indices",
			decode: func() error {
				_, err := DecodeLandmarksAt(make([]float32, 7), grid, testVariance, nil)
				return err
			},
		},
		{
			name: "score column",
			decode: func() error {
				_, err := Column(make([]float32, len(grid)), len(grid), ScoreWidth, 1)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode()
			require.Error(t, err)
			assert.Equal(t, ErrAnchorMismatch, errors.Cause(err))
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	boxes, err := DecodeBoxes(nil, nil, testVariance)
	require.NoError(t, err)
	assert.Empty(t, boxes)

	_, err = DecodeBoxes([]float32{0, 0, 0, 0}, nil, testVariance)
	assert.Error(t, err)
}

func TestDecodeLandmarks(t *testing.T) {
	grid := []Anchor{
		{CX: 0.5, CY: 0.5, SX: 0.2, SY: 0.4},
		{CX: 0.1, CY: 0.2, SX: 0.1, SY: 0.1},
	}
	raw := []float32{
		1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
		0, 0, 2, 0, 0, 2, -1, -1, 0, 0,
	}

	all, err := DecodeLandmarks(raw, grid, testVariance)
	require.NoError(t, err)
	require.Len(t, all, 2)

	for _, p := range all[0] {
		assert.InDelta(t, 0.52, p.X, 1e-6)
		assert.InDelta(t, 0.54, p.Y, 1e-6)
	}
	assert.InDelta(t, 0.1, all[1][0].X, 1e-6)
	assert.InDelta(t, 0.12, all[1][1].X, 1e-6)
	assert.InDelta(t, 0.22, all[1][2].Y, 1e-6)
	assert.InDelta(t, 0.09, all[1][3].X, 1e-6)
	assert.InDelta(t, 0.19, all[1][3].Y, 1e-6)

	subset, err := DecodeLandmarksAt(raw, grid, testVariance, []int{1})
	require.NoError(t, err)
	assert.Equal(t, []common.Landmarks{all[1]}, subset)

	_, err = DecodeLandmarksAt(raw, grid, testVariance, []int{2})
	assert.Error(t, err, "Out of range index should be rejected")
}

func TestColumn(t *testing.T) {
	scores := []float32{
		0.9, 0.1,
		0.2, 0.8,
		0.5, 0.5,
	}

	face, err := Column(scores, 3, ScoreWidth, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.8, 0.5}, face)

	_, err = Column(scores, 3, ScoreWidth, 2)
	assert.Error(t, err)
}

func TestViewSharesStorage(t *testing.T) {
	raw := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	view, err := View(raw, 2, BoxWidth)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, []int(view.Shape()))

	raw[5] = 42
	assert.Equal(t, float32(42), view.Float32s()[5])
}
