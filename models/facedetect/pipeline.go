package facedetect

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-face/common"
	"github.com/nvr-ai/go-face/images"
	"github.com/nvr-ai/go-face/models/anchors"
	"github.com/nvr-ai/go-face/models/postprocess"
)

// Label is attached to every detection.
const Label = "face"

// RawOutput holds the detector's output buffers for one image. The buffers are
// only read.
type RawOutput struct {
	// Boxes is the [N, 4] regression output.
	Boxes []float32
	// Scores is the [N, 2] class output; column 1 is the face score.
	Scores []float32
	// Landmarks is the optional [N, 10] landmark output.
	Landmarks []float32
}

// Face is a detection in picture coordinates.
type Face struct {
	common.BoundingBox
	// Index is the anchor row the detection was decoded from.
	Index int
	// Landmarks holds the five facial points when the landmark branch is enabled.
	Landmarks *common.Landmarks
}

// Option customizes a Pipeline or a Detector.
type Option func(*options)

type options struct {
	cache  *anchors.Cache
	logger *zap.Logger
}

// WithCache shares an anchor cache between pipelines. The cache must have been
// built for the same anchor configuration.
func WithCache(cache *anchors.Cache) Option {
	return func(o *options) {
		o.cache = cache
	}
}

// WithLogger sets the logger. Stage counts are logged at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(cfg Config, opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cache == nil {
		o.cache = anchors.NewCache(cfg.Anchors)
	}
	return o
}

// Pipeline decodes, filters and suppresses the raw detector outputs.
// It is safe for concurrent use.
type Pipeline struct {
	cfg    Config
	nms    postprocess.NMSConfig
	cache  *anchors.Cache
	logger *zap.Logger
}

// NewPipeline validates cfg and returns a pipeline for it.
//
// Arguments:
//   - cfg: The detector configuration.
//   - opts: Optional cache and logger.
//
// Returns:
//   - *Pipeline: The pipeline.
//   - error: An error wrapping ErrInvalidConfig when cfg is unusable.
//
// @example
// pipeline, err := facedetect.NewPipeline(facedetect.DefaultConfig())
//
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// faces, err := pipeline.Process(raw, 640, 480)
func NewPipeline(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(cfg, opts)

	return &Pipeline{
		cfg:    cfg,
		nms:    cfg.NMS(),
		cache:  o.cache,
		logger: o.logger,
	}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Process turns one image's raw outputs into faces.
//
// Boxes are decoded against the anchor grid of the input size and scaled to
// input pixels. Candidates scoring at least ConfidenceThreshold are ranked,
// cut to TopK and suppressed, and each survivor is mapped to a square in
// picture coordinates.
//
// Arguments:
//   - raw: The model outputs.
//   - imageW: The width of the original picture.
//   - imageH: The height of the original picture.
//
// Returns:
//   - []Face: The detections in suppression order. Empty when nothing passes.
//   - error: anchors.ErrAnchorMismatch (as the cause) when a buffer does not hold one row per anchor.
func (p *Pipeline) Process(raw RawOutput, imageW, imageH int) ([]Face, error) {
	if imageW <= 0 || imageH <= 0 {
		return nil, errors.Errorf("invalid image dimensions: %dx%d", imageW, imageH)
	}

	grid := p.cache.Get(p.cfg.InputWidth, p.cfg.InputHeight)
	n := len(grid)

	boxes, err := anchors.DecodeBoxes(raw.Boxes, grid, p.cfg.Anchors.Variance)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode boxes")
	}
	scores, err := anchors.Column(raw.Scores, n, anchors.ScoreWidth, 1)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scores")
	}
	withLandmarks := p.cfg.Landmarks && raw.Landmarks != nil
	if withLandmarks && len(raw.Landmarks) != n*anchors.LandmarkWidth {
		return nil, errors.Wrapf(anchors.ErrAnchorMismatch,
			"landmark buffer of %d values is not %d rows of %d", len(raw.Landmarks), n, anchors.LandmarkWidth)
	}

	inputW, inputH := float32(p.cfg.InputWidth), float32(p.cfg.InputHeight)
	for i := range boxes {
		boxes[i] = boxes[i].Scale(inputW, inputH)
	}

	candidates := postprocess.FilterByScore(boxes, scores, p.cfg.ConfidenceThreshold)
	ranked := postprocess.SelectTopK(candidates, p.cfg.TopK)
	kept := postprocess.ApplyNMS(ranked, &p.nms)

	scaleX := float32(imageW) / inputW
	scaleY := float32(imageH) / inputH

	faces := make([]Face, len(kept))
	for i, c := range kept {
		rect := postprocess.ScaleToImage(c.Box, scaleX, scaleY, imageW, imageH)
		faces[i] = Face{
			BoundingBox: common.NewBoundingBox(Label, c.Score, rect),
			Index:       c.Index,
		}
	}

	if withLandmarks {
		points, err := p.DecodeLandmarks(raw.Landmarks, faces, imageW, imageH)
		if err != nil {
			return nil, err
		}
		for i := range faces {
			faces[i].Landmarks = &points[i]
		}
	}

	p.logger.Debug("processed detections",
		zap.Int("anchors", n),
		zap.Int("candidates", len(candidates)),
		zap.Int("top_k", len(ranked)),
		zap.Int("kept", len(kept)),
	)

	return faces, nil
}

// DecodeLandmarks decodes the landmark rows of faces from raw and maps them
// to picture coordinates. Faces are matched to rows by their Index.
//
// Arguments:
//   - raw: The [N, 10] landmark output.
//   - faces: The detections returned by Process.
//   - imageW: The width of the original picture.
//   - imageH: The height of the original picture.
//
// Returns:
//   - []common.Landmarks: One set of points per face, in face order.
//   - error: anchors.ErrAnchorMismatch (as the cause) on a size mismatch.
func (p *Pipeline) DecodeLandmarks(raw []float32, faces []Face, imageW, imageH int) ([]common.Landmarks, error) {
	grid := p.cache.Get(p.cfg.InputWidth, p.cfg.InputHeight)

	indices := make([]int, len(faces))
	for i, f := range faces {
		indices[i] = f.Index
	}

	points, err := anchors.DecodeLandmarksAt(raw, grid, p.cfg.Anchors.Variance, indices)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode landmarks")
	}

	// Normalized -> input pixels -> picture pixels.
	sx := float32(imageW)
	sy := float32(imageH)
	for i := range points {
		points[i] = points[i].Scale(sx, sy)
	}

	return points, nil
}

// BestFace returns the index of the face with the largest box area, or -1
// when faces is empty. Ties keep the earlier face.
func BestFace(faces []Face) int {
	best := -1
	var bestArea float32
	for i := range faces {
		area := faces[i].Area()
		if best < 0 || area > bestArea {
			best = i
			bestArea = area
		}
	}
	return best
}

// Rects returns the picture-space rectangles of faces.
func Rects(faces []Face) []images.Rect {
	out := make([]images.Rect, len(faces))
	for i := range faces {
		out[i] = faces[i].Rect()
	}
	return out
}
