// Package config loads the settings of the OpenPose pipeline from defaults, a
// YAML file and OPENPOSE_ prefixed environment variables, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/swdee/go-openpose"
	"github.com/swdee/go-openpose/postprocess"
)

// EnvPrefix is the prefix of environment variables overriding settings, eg:
// OPENPOSE_PIPELINE_NUMREQUESTS=4
const EnvPrefix = "OPENPOSE_"

// ModelConfig locates the model and describes its input
type ModelConfig struct {
	Path        string `koanf:"path"`
	LibraryPath string `koanf:"librarypath"`
	InputName   string `koanf:"inputname"`
	InputWidth  int    `koanf:"inputwidth"`
	InputHeight int    `koanf:"inputheight"`
	// IntraOpThreads of zero leaves the runtime default
	IntraOpThreads int `koanf:"intraopthreads"`
}

// Config is the complete application configuration
type Config struct {
	Debug    bool                       `koanf:"debug"`
	Model    ModelConfig                `koanf:"model"`
	Pipeline openpose.PipelineConfig    `koanf:"pipeline"`
	Decoder  postprocess.OpenPoseParams `koanf:"decoder"`
}

// defaults returns the flattened default settings
func defaults() map[string]any {

	pipe := openpose.DefaultPipelineConfig()
	dec := postprocess.OpenPoseCOCOParams()

	return map[string]any{
		"debug":                                false,
		"model.librarypath":                    "onnxruntime.so",
		"model.inputname":                      "data",
		"model.inputwidth":                     456,
		"model.inputheight":                    256,
		"model.intraopthreads":                 0,
		"pipeline.numrequests":                 pipe.NumRequests,
		"pipeline.poolpolicy":                  pipe.PoolPolicy,
		"decoder.keypointsnumber":              dec.KeyPointsNumber,
		"decoder.peakthreshold":                dec.PeakThreshold,
		"decoder.minpeaksdistance":             dec.MinPeaksDistance,
		"decoder.midpointsnumber":              dec.MidPointsNumber,
		"decoder.midpointsscorethreshold":      dec.MidPointsScoreThreshold,
		"decoder.foundmidpointsratiothreshold": dec.FoundMidPointsRatioThreshold,
		"decoder.minjointsnumber":              dec.MinJointsNumber,
		"decoder.minsubsetscore":               dec.MinSubsetScore,
		"decoder.stride":                       dec.Stride,
		"decoder.upsampleratio":                dec.UpsampleRatio,
		"decoder.heatmapoutput":                dec.HeatmapOutput,
		"decoder.pafoutput":                    dec.PAFOutput,
	}
}

// Load reads the configuration.  The YAML file at filePath is skipped when
// filePath is empty.
func Load(filePath string) (Config, error) {

	var cfg Config

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return cfg, fmt.Errorf("error loading defaults: %w", err)
	}

	if filePath != "" {
		if err := k.Load(file.Provider(filePath), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("error loading config file %s: %w", filePath, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
		if strings.Contains(v, ",") {
			return key, strings.Split(strings.TrimSpace(v), ",")
		}
		return key, v
	}), nil); err != nil {
		return cfg, fmt.Errorf("error loading environment: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("error decoding config: %w", err)
	}

	// the limb table is only overridden as a whole from a file
	if len(cfg.Decoder.Limbs) == 0 {
		cfg.Decoder.Limbs = postprocess.COCOLimbs()
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration is usable
func (c Config) Validate() error {

	if c.Model.InputWidth <= 0 || c.Model.InputHeight <= 0 {
		return fmt.Errorf("model input size must be positive, got %dx%d",
			c.Model.InputWidth, c.Model.InputHeight)
	}

	if c.Model.InputName == "" {
		return errors.New("model input name is empty")
	}

	if c.Pipeline.NumRequests <= 0 {
		return fmt.Errorf("pipeline requests must be positive, got %d",
			c.Pipeline.NumRequests)
	}

	if _, err := openpose.ParsePoolPolicy(c.Pipeline.PoolPolicy); err != nil {
		return err
	}

	if err := c.Decoder.Validate(); err != nil {
		return fmt.Errorf("invalid decoder settings: %w", err)
	}

	return nil
}
