package inference

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-face/models/model"
)

func validSessionConfig() SessionConfig {
	return SessionConfig{
		ModelPath:  "face.onnx",
		InputName:  "input",
		InputShape: []int64{1, 3, 240, 320},
		Outputs: []OutputSpec{
			{Name: "scores", Shape: []int64{1, 4420, 2}},
			{Name: "boxes", Shape: []int64{1, 4420, 4}},
		},
	}
}

func TestSessionConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SessionConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(*SessionConfig) {}},
		{name: "missing model", mutate: func(c *SessionConfig) { c.ModelPath = "" }, wantErr: true},
		{name: "missing input name", mutate: func(c *SessionConfig) { c.InputName = "" }, wantErr: true},
		{name: "empty input shape", mutate: func(c *SessionConfig) { c.InputShape = nil }, wantErr: true},
		{name: "zero dimension", mutate: func(c *SessionConfig) { c.InputShape = []int64{1, 3, 0, 320} }, wantErr: true},
		{name: "no outputs", mutate: func(c *SessionConfig) { c.Outputs = nil }, wantErr: true},
		{name: "unnamed output", mutate: func(c *SessionConfig) { c.Outputs[0].Name = "" }, wantErr: true},
		{name: "bad output shape", mutate: func(c *SessionConfig) { c.Outputs[1].Shape = []int64{1, -1, 4} }, wantErr: true},
		{name: "unknown backend", mutate: func(c *SessionConfig) { c.Provider.Backend = "tpu" }, wantErr: true},
		{name: "unknown precision", mutate: func(c *SessionConfig) { c.Provider.Precision = "INT4" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validSessionConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewSessionMissingModel(t *testing.T) {
	cfg := validSessionConfig()
	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.onnx")

	s, err := NewSession(cfg)
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestSessionRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Session{}
	out, err := s.Run(ctx, []float32{1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
}

func TestSessionRunClosed(t *testing.T) {
	s := &Session{}
	require.NoError(t, s.Close())

	_, err := s.Run(context.Background(), []float32{1})
	assert.Error(t, err)
}

func TestProviderOptions(t *testing.T) {
	cfg := ProviderConfig{
		Backend:        OpenVINOProviderBackend,
		DeviceID:       1,
		DeviceType:     "GPU",
		Precision:      model.PrecisionFP16,
		IntraOpThreads: 4,
	}

	assert.Equal(t, map[string]string{
		"device_id":      "1",
		"device_type":    "GPU",
		"precision":      "FP16",
		"num_of_threads": "4",
	}, cfg.openVINOOptions())

	assert.Equal(t, map[string]string{"device_id": "0"}, ProviderConfig{}.openVINOOptions())
	assert.Equal(t, map[string]string{"device_id": "1"}, cfg.cudaOptions())
}

func TestGetSharedLibPath(t *testing.T) {
	t.Setenv(LibraryPathEnv, "/opt/ort/libonnxruntime.so")
	assert.Equal(t, "/opt/ort/libonnxruntime.so", GetSharedLibPath())

	require.NoError(t, os.Unsetenv(LibraryPathEnv))
	assert.NotEmpty(t, GetSharedLibPath())
}

// TestInitializeEnvironmentRetry verifies that a failed initialization is not
// remembered: each call reports the library path it was given.
//
// @example
// go test -v -run TestInitializeEnvironmentRetry
func TestInitializeEnvironmentRetry(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.so")
	second := filepath.Join(dir, "second.so")

	err := InitializeEnvironment(first)
	require.Error(t, err)
	assert.Contains(t, err.Error(), first)
	assert.False(t, EnvironmentInitialized())

	err = InitializeEnvironment(second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), second, "the second call must retry rather than replay the first error")
	assert.False(t, EnvironmentInitialized())
}

func TestDestroyEnvironmentUninitialized(t *testing.T) {
	require.NoError(t, DestroyEnvironment())
	assert.False(t, EnvironmentInitialized())
}

func TestOutputsGet(t *testing.T) {
	out := Outputs{"scores": {0.1, 0.9}}

	scores, err := out.Get("scores")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.9}, scores)

	_, err = out.Get("boxes")
	assert.Error(t, err)
}

func TestRunnerFunc(t *testing.T) {
	var r Runner = RunnerFunc(func(_ context.Context, input []float32) (Outputs, error) {
		return Outputs{"echo": input}, nil
	})

	out, err := r.Run(context.Background(), []float32{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, out["echo"])
}

func TestStatsAverage(t *testing.T) {
	assert.Equal(t, time.Duration(0), Stats{}.Average())
	assert.Equal(t, 5*time.Millisecond, Stats{Runs: 2, Total: 10 * time.Millisecond}.Average())
}
