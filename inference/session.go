package inference

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// OutputSpec names an output tensor and its fixed shape.
type OutputSpec struct {
	Name  string
	Shape []int64
}

// SessionConfig holds everything needed to open a model.
type SessionConfig struct {
	// ModelPath is the path of the ONNX model file.
	ModelPath string
	// LibraryPath is the onnxruntime shared library. Empty means GetSharedLibPath().
	LibraryPath string
	// InputName is the name of the single input tensor.
	InputName string
	// InputShape is the fixed input shape, e.g. [1, 3, 240, 320].
	InputShape []int64
	// Outputs are the output tensors to bind.
	Outputs []OutputSpec
	// Provider selects the execution provider.
	Provider ProviderConfig
	// Logger receives session lifecycle and timing messages.
	Logger *zap.Logger
}

// Validate checks that the configuration is complete.
func (c SessionConfig) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path is required")
	}
	if c.InputName == "" {
		return errors.New("input name is required")
	}
	if err := validateShape(c.InputShape); err != nil {
		return errors.Wrap(err, "invalid input shape")
	}
	if len(c.Outputs) == 0 {
		return errors.New("at least one output is required")
	}
	for _, out := range c.Outputs {
		if out.Name == "" {
			return errors.New("output name is required")
		}
		if err := validateShape(out.Shape); err != nil {
			return errors.Wrapf(err, "invalid shape for output %q", out.Name)
		}
	}
	return c.Provider.Validate()
}

func validateShape(shape []int64) error {
	if len(shape) == 0 {
		return errors.New("shape is empty")
	}
	for _, d := range shape {
		if d <= 0 {
			return errors.Errorf("shape %v has a non-positive dimension", shape)
		}
	}
	return nil
}

// Stats reports the number of runs and their cumulative duration.
type Stats struct {
	Runs  int64
	Total time.Duration
}

// Average returns the mean run duration.
func (s Stats) Average() time.Duration {
	if s.Runs == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Runs)
}

// Session represents a model session from the onnxruntime.
//
// The input and output tensors are allocated once and reused. Run calls are
// serialized and outputs are copied before Run returns.
type Session struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	outputs []*ort.Tensor[float32]
	names   []string
	logger  *zap.Logger
	stats   Stats
}

// NewSession creates a new ONNX session with preallocated input and output tensors.
//
// Order of operations:
//  1. Library and environment setup, once per process.
//  2. Tensor allocation for the fixed input and output shapes.
//  3. Session options and execution provider.
//  4. Session creation, binding the tensors to the model.
//
// Arguments:
//   - cfg: The session configuration.
//
// Returns:
//   - *Session: The runnable session. Close must be called to release native memory.
//   - error: An error if any step fails. Partially created resources are released.
func NewSession(cfg SessionConfig) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid session config")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model not found at %s", cfg.ModelPath)
	}
	if err := InitializeEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{logger: logger.With(zap.String("model", cfg.ModelPath))}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.InputShape...))
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	s.input = input

	outputs := make([]ort.Value, 0, len(cfg.Outputs))
	for _, spec := range cfg.Outputs {
		t, err := ort.NewEmptyTensor[float32](ort.NewShape(spec.Shape...))
		if err != nil {
			s.Close()
			return nil, errors.Wrapf(err, "error creating output tensor %q", spec.Name)
		}
		s.outputs = append(s.outputs, t)
		s.names = append(s.names, spec.Name)
		outputs = append(outputs, t)
	}

	options, err := newSessionOptions(cfg.Provider)
	if err != nil {
		s.Close()
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		s.names,
		[]ort.Value{input},
		outputs,
		options,
	)
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "error creating ORT session")
	}
	s.session = session

	s.logger.Info("session created",
		zap.String("backend", string(cfg.Provider.Backend)),
		zap.Int64s("input_shape", cfg.InputShape),
		zap.Strings("outputs", s.names),
	)

	return s, nil
}

// Run copies input into the bound input tensor, runs the model and returns a
// copy of every output.
//
// Arguments:
//   - ctx: Checked before the run starts. A run in progress is not interrupted.
//   - input: The preprocessed tensor. Its length must equal the input shape's element count.
//
// Returns:
//   - Outputs: The outputs keyed by tensor name.
//   - error: The context error, a size mismatch, or a runtime failure.
func (s *Session) Run(ctx context.Context, input []float32) (Outputs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, errors.New("session is closed")
	}

	dst := s.input.GetData()
	if len(input) != len(dst) {
		return nil, errors.Errorf("input has %d values, model expects %d", len(input), len(dst))
	}
	copy(dst, input)

	start := time.Now()
	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}
	elapsed := time.Since(start)

	s.stats.Runs++
	s.stats.Total += elapsed
	s.logger.Debug("session run", zap.Duration("elapsed", elapsed))

	out := make(Outputs, len(s.outputs))
	for i, t := range s.outputs {
		data := t.GetData()
		cp := make([]float32, len(data))
		copy(cp, data)
		out[s.names[i]] = cp
	}

	return out, nil
}

// Stats returns the run counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close releases the resources associated with the Session.
//
// Returns:
//   - error: An error if the native session cannot be destroyed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.session != nil {
		if destroyErr := s.session.Destroy(); destroyErr != nil {
			err = errors.Wrap(destroyErr, "error destroying ORT session")
		}
		s.session = nil
	}
	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	for _, t := range s.outputs {
		t.Destroy()
	}
	s.outputs = nil

	return err
}
