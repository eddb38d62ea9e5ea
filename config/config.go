// Package config loads the settings of the face detection tools from YAML
// files and GOFACE_* environment variables.
package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-face/inference"
	"github.com/nvr-ai/go-face/logger"
	"github.com/nvr-ai/go-face/models/facedetect"
	"github.com/nvr-ai/go-face/models/model"
)

// EnvPrefix prefixes every environment override, e.g. GOFACE_DETECTOR_TOP_K.
const EnvPrefix = "GOFACE"

// Models holds the paths of the ONNX models. Only the detector is required.
type Models struct {
	Detector   string `json:"detector" yaml:"detector" mapstructure:"detector" validate:"required"`
	Landmark   string `json:"landmark" yaml:"landmark" mapstructure:"landmark"`
	Pose       string `json:"pose" yaml:"pose" mapstructure:"pose"`
	Expression string `json:"expression" yaml:"expression" mapstructure:"expression"`
	Liveness   string `json:"liveness" yaml:"liveness" mapstructure:"liveness"`
	Eye        string `json:"eye" yaml:"eye" mapstructure:"eye"`
	Feature    string `json:"feature" yaml:"feature" mapstructure:"feature"`
	Gender     string `json:"gender" yaml:"gender" mapstructure:"gender"`
}

// Attributes returns the configured attribute model paths keyed by model name.
// Models without a path are omitted.
func (m Models) Attributes() map[model.Name]string {
	all := map[model.Name]string{
		model.ModelNameLandmark:   m.Landmark,
		model.ModelNamePose:       m.Pose,
		model.ModelNameExpression: m.Expression,
		model.ModelNameLiveness:   m.Liveness,
		model.ModelNameEye:        m.Eye,
		model.ModelNameFeature:    m.Feature,
		model.ModelNameGender:     m.Gender,
	}
	for name, path := range all {
		if path == "" {
			delete(all, name)
		}
	}
	return all
}

// Config is the root configuration.
type Config struct {
	// LibraryPath is the onnxruntime shared library. Empty means the
	// ONNXRUNTIME_SHARED_LIBRARY_PATH variable or the platform default.
	LibraryPath string                   `json:"library_path" yaml:"library_path" mapstructure:"library_path"`
	Models      Models                   `json:"models" yaml:"models" mapstructure:"models"`
	Provider    inference.ProviderConfig `json:"provider" yaml:"provider" mapstructure:"provider"`
	Detector    facedetect.Config        `json:"detector" yaml:"detector" mapstructure:"detector"`
	Log         logger.Config            `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns the configuration of the 320x240 detector on CPU.
func DefaultConfig() Config {
	return Config{
		Models: Models{
			Detector: "models/face_detector_320x240.onnx",
		},
		Provider: inference.ProviderConfig{Backend: inference.CPUProviderBackend},
		Detector: facedetect.DefaultConfig(),
		Log:      logger.DefaultConfig(),
	}
}

// Validate checks struct tags and the detector settings.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return c.Detector.Validate()
}

// Load reads the configuration.
//
// Defaults come from DefaultConfig. They are overridden by the file at path
// (when path is not empty) and then by GOFACE_* variables, where nested keys
// are joined with underscores.
//
// Arguments:
//   - path: A YAML file, or empty for defaults and environment only.
//
// Returns:
//   - *Config: The validated configuration.
//   - error: An error if the file cannot be read or the result is invalid.
//
// @example
// cfg, err := config.Load("config.yml")
//
//	if err != nil {
//	    log.Fatal(err)
//	}
func Load(path string) (*Config, error) {
	defaults, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode defaults")
	}

	v := viper.New()
	v.SetConfigType("yml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Write stores cfg at path as YAML.
func Write(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write config %s", path)
	}
	return nil
}
