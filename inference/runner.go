// Package inference - Model execution behind a small runner interface.
package inference

import (
	"context"

	"github.com/pkg/errors"
)

// Outputs maps output tensor names to their flattened values.
type Outputs map[string][]float32

// Get returns the named output or an error when the runner did not produce it.
func (o Outputs) Get(name string) ([]float32, error) {
	data, ok := o[name]
	if !ok {
		return nil, errors.Errorf("missing output tensor %q", name)
	}
	return data, nil
}

// Runner executes a model on a single preprocessed input tensor.
type Runner interface {
	// Run feeds input to the model and returns a copy of every output.
	Run(ctx context.Context, input []float32) (Outputs, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, input []float32) (Outputs, error)

// Run calls f(ctx, input).
func (f RunnerFunc) Run(ctx context.Context, input []float32) (Outputs, error) {
	return f(ctx, input)
}
