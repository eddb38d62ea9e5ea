package faceattr

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-face/inference"
	"github.com/nvr-ai/go-face/models/model"
)

// SessionConfig returns the onnxruntime session settings of an attribute model.
//
// Arguments:
//   - name: The catalog name of the model.
//   - modelPath: The path of the ONNX file.
//   - provider: The execution provider settings.
//
// Returns:
//   - inference.SessionConfig: The session settings.
//   - error: An error if the model is unknown or has no fixed output shapes.
func SessionConfig(name model.Name, modelPath string, provider inference.ProviderConfig) (inference.SessionConfig, error) {
	spec, err := model.Lookup(name)
	if err != nil {
		return inference.SessionConfig{}, err
	}
	if len(spec.OutputShapes) != len(spec.Outputs) {
		return inference.SessionConfig{}, errors.Errorf("model %s has no fixed output shapes", name)
	}

	outputs := make([]inference.OutputSpec, len(spec.Outputs))
	for i, out := range spec.Outputs {
		outputs[i] = inference.OutputSpec{Name: out, Shape: spec.OutputShapes[i]}
	}

	return inference.SessionConfig{
		ModelPath:  modelPath,
		InputName:  spec.Input,
		InputShape: spec.InputShape(),
		Outputs:    outputs,
		Provider:   provider,
	}, nil
}

// Sessions holds open attribute model sessions.
type Sessions map[model.Name]*inference.Session

// Runners returns the sessions as runners for NewAnalyzer.
func (s Sessions) Runners() map[model.Name]inference.Runner {
	out := make(map[model.Name]inference.Runner, len(s))
	for name, session := range s {
		out[name] = session
	}
	return out
}

// Close closes every session and returns the first error.
func (s Sessions) Close() error {
	var first error
	for name, session := range s {
		if err := session.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "failed to close %s session", name)
		}
	}
	return first
}

// OpenSessions opens a session for each model path. Already opened sessions
// are closed when one fails.
//
// Arguments:
//   - paths: The ONNX files keyed by model name. Empty paths are skipped.
//   - provider: The execution provider settings.
//   - logger: The session logger.
//
// Returns:
//   - Sessions: The open sessions. The caller must close them.
//   - error: An error if a model cannot be opened.
func OpenSessions(paths map[model.Name]string, provider inference.ProviderConfig, logger *zap.Logger) (Sessions, error) {
	sessions := make(Sessions, len(paths))
	for name, path := range paths {
		if path == "" {
			continue
		}

		cfg, err := SessionConfig(name, path, provider)
		if err != nil {
			_ = sessions.Close()
			return nil, err
		}
		cfg.Logger = logger

		session, err := inference.NewSession(cfg)
		if err != nil {
			_ = sessions.Close()
			return nil, errors.Wrapf(err, "failed to open %s model", name)
		}
		sessions[name] = session
	}

	return sessions, nil
}
