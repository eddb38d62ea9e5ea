package inference

import (
	"strconv"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-face/models/model"
)

// ProviderBackend represents different ONNX Runtime execution providers.
type ProviderBackend string

const (
	// CPUProviderBackend runs on the default CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"
	// CoreMLProviderBackend uses Apple CoreML.
	CoreMLProviderBackend ProviderBackend = "coreml"
	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend ProviderBackend = "openvino"
	// CUDAProviderBackend uses NVIDIA CUDA for inference optimization.
	CUDAProviderBackend ProviderBackend = "cuda"
)

// ProviderConfig selects and tunes the execution provider of a session.
type ProviderConfig struct {
	// Backend specifies the backend to use. Empty means CPU.
	Backend ProviderBackend `json:"backend" yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=cpu coreml openvino cuda"`
	// DeviceID selects the accelerator for OpenVINO and CUDA.
	DeviceID int `json:"device_id" yaml:"device_id" mapstructure:"device_id" validate:"gte=0"`
	// DeviceType overrides the OpenVINO hardware type (CPU, GPU, NPU).
	DeviceType string `json:"device_type" yaml:"device_type" mapstructure:"device_type"`
	// Precision overrides the OpenVINO inference precision.
	Precision model.Precision `json:"precision" yaml:"precision" mapstructure:"precision"`
	// IntraOpThreads sets the threads used inside a graph node. Zero lets the runtime decide.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads" mapstructure:"intra_op_threads" validate:"gte=0"`
	// InterOpThreads sets the threads used across independent nodes. Zero lets the runtime decide.
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads" mapstructure:"inter_op_threads" validate:"gte=0"`
}

// Validate checks the backend and precision.
func (c ProviderConfig) Validate() error {
	switch c.Backend {
	case "", CPUProviderBackend, CoreMLProviderBackend, OpenVINOProviderBackend, CUDAProviderBackend:
	default:
		return errors.Errorf("unsupported provider backend: %s", c.Backend)
	}
	if !c.Precision.Valid() {
		return errors.Errorf("unsupported precision: %s", c.Precision)
	}
	return nil
}

// openVINOOptions builds the provider option map.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
func (c ProviderConfig) openVINOOptions() map[string]string {
	opts := map[string]string{
		"device_id": strconv.Itoa(c.DeviceID),
	}
	if c.DeviceType != "" {
		opts["device_type"] = c.DeviceType
	}
	if c.Precision != "" {
		opts["precision"] = string(c.Precision)
	}
	if c.IntraOpThreads > 0 {
		opts["num_of_threads"] = strconv.Itoa(c.IntraOpThreads)
	}
	return opts
}

// cudaOptions builds the provider option map.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
func (c ProviderConfig) cudaOptions() map[string]string {
	return map[string]string{
		"device_id": strconv.Itoa(c.DeviceID),
	}
}

// newSessionOptions creates session options with threading, graph
// optimization and the execution provider configured.
//
// The caller owns the returned options and must destroy them.
func newSessionOptions(c ProviderConfig) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	if err := configureSessionOptions(options, c); err != nil {
		options.Destroy()
		return nil, err
	}

	return options, nil
}

func configureSessionOptions(options *ort.SessionOptions, c ProviderConfig) error {
	if err := options.SetIntraOpNumThreads(c.IntraOpThreads); err != nil {
		return errors.Wrap(err, "error setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(c.InterOpThreads); err != nil {
		return errors.Wrap(err, "error setting inter-op threads")
	}
	// Enables graph rewrites (e.g., fusion, constant folding) during graph loading.
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return errors.Wrap(err, "error setting graph optimization level")
	}

	switch c.Backend {
	case CoreMLProviderBackend:
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			return errors.Wrap(err, "error enabling CoreML")
		}
	case OpenVINOProviderBackend:
		if err := options.AppendExecutionProviderOpenVINO(c.openVINOOptions()); err != nil {
			return errors.Wrap(err, "error enabling OpenVINO")
		}
	case CUDAProviderBackend:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "error creating CUDA options")
		}
		defer cuda.Destroy()
		if err := cuda.Update(c.cudaOptions()); err != nil {
			return errors.Wrap(err, "error converting CUDA options")
		}
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "error enabling CUDA")
		}
	}

	return nil
}
