// Package config loads the service configuration from YAML, .env files and
// environment variables.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-alpr/cache"
	"github.com/nvr-ai/go-alpr/inference"
	"github.com/nvr-ai/go-alpr/inference/gemini"
	"github.com/nvr-ai/go-alpr/inference/onnx"
	"github.com/nvr-ai/go-alpr/inference/triton"
	"github.com/nvr-ai/go-alpr/logger"
	"github.com/nvr-ai/go-alpr/models/postprocess"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ALPR_"

// Config is the root configuration.
type Config struct {
	Server     Server             `json:"server" yaml:"server"`
	Logger     logger.Options     `json:"logger" yaml:"logger"`
	Detector   Detector           `json:"detector" yaml:"detector"`
	Recognizer Recognizer         `json:"recognizer" yaml:"recognizer"`
	Decode     postprocess.Config `json:"decode" yaml:"decode"`
	Pipeline   Pipeline           `json:"pipeline" yaml:"pipeline"`
	Cache      Cache              `json:"cache" yaml:"cache"`
	Benchmark  Benchmark          `json:"benchmark" yaml:"benchmark"`
}

// Server configures the HTTP API.
type Server struct {
	Address        string        `json:"address" yaml:"address" validate:"required"`
	BodyLimitMB    int           `json:"body_limit_mb" yaml:"body_limit_mb" validate:"gt=0"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" validate:"gte=0"`
	// Mode is the decode mode of /predict when the request names none. Empty
	// falls back to the decode section.
	Mode postprocess.Mode `json:"mode" yaml:"mode" validate:"omitempty,oneof=best top"`
}

// Detector selects and configures the plate detector. Only the section named
// by Backend is validated.
type Detector struct {
	Backend inference.Backend      `json:"backend" yaml:"backend" validate:"oneof=triton onnx"`
	Triton  triton.DetectorOptions `json:"triton" yaml:"triton" validate:"-"`
	ONNX    onnx.Options           `json:"onnx" yaml:"onnx" validate:"-"`
}

// Recognizer selects and configures the plate reader.
type Recognizer struct {
	Backend inference.Backend        `json:"backend" yaml:"backend" validate:"oneof=triton gemini"`
	Triton  triton.RecognizerOptions `json:"triton" yaml:"triton" validate:"-"`
	Gemini  gemini.Options           `json:"gemini" yaml:"gemini" validate:"-"`
}

// Pipeline configures the recognition run.
type Pipeline struct {
	// Concurrency bounds the number of crops read at once.
	Concurrency int `json:"concurrency" yaml:"concurrency" validate:"gte=1"`
}

// Cache configures the result cache.
type Cache struct {
	Enabled bool               `json:"enabled" yaml:"enabled"`
	TTL     time.Duration      `json:"ttl" yaml:"ttl" validate:"gte=0"`
	Redis   cache.RedisOptions `json:"redis" yaml:"redis" validate:"-"`
}

// Benchmark configures the CCPD benchmark.
type Benchmark struct {
	DatasetRoot string `json:"dataset_root" yaml:"dataset_root"`
	// Split is the split file, relative to DatasetRoot unless absolute.
	Split   string `json:"split" yaml:"split"`
	Samples int    `json:"samples" yaml:"samples" validate:"gte=0"`
	Seed    int64  `json:"seed" yaml:"seed"`
	Output  string `json:"output" yaml:"output" validate:"required"`
	// Database is the SQLite file runs are recorded in; empty disables it.
	Database string `json:"database" yaml:"database"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{
			Address:        ":8080",
			BodyLimitMB:    50,
			RequestTimeout: 30 * time.Second,
			Mode:           postprocess.ModeBest,
		},
		Logger: logger.DefaultOptions(),
		Detector: Detector{
			Backend: inference.BackendTriton,
			Triton:  triton.DefaultDetectorOptions(),
			ONNX:    onnx.DefaultOptions(),
		},
		Recognizer: Recognizer{
			Backend: inference.BackendTriton,
			Triton:  triton.DefaultRecognizerOptions(),
			Gemini:  gemini.DefaultOptions(),
		},
		Decode:   postprocess.DefaultConfig(),
		Pipeline: Pipeline{Concurrency: 4},
		Cache: Cache{
			TTL: 24 * time.Hour,
			Redis: cache.RedisOptions{
				Address:     "localhost:6379",
				DialTimeout: 5 * time.Second,
			},
		},
		Benchmark: Benchmark{
			DatasetRoot: "CCPD2019",
			Split:       "splits/val.txt",
			Samples:     5000,
			Seed:        42,
			Output:      "benchmark_results.csv",
		},
	}
}

// Load reads the configuration.
//
// Arguments:
//   - path: A YAML file layered over Default; empty skips the file.
//
// Returns:
//   - Config: The merged and validated configuration.
//   - error: An error if the file cannot be read or the result is invalid.
//
// A .env file in the working directory is loaded first when present, then the
// ALPR_* variables override the file.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, errors.Wrap(err, "failed to load .env")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "failed to parse config %s", path)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(NewValidator()); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides fields from the environment.
func (c *Config) applyEnv() {
	c.Server.Address = getEnv(EnvPrefix+"SERVER_ADDRESS", c.Server.Address)
	c.Server.Mode = postprocess.Mode(getEnv(EnvPrefix+"SERVER_MODE", string(c.Server.Mode)))
	c.Logger.Level = getEnv(EnvPrefix+"LOG_LEVEL", c.Logger.Level)
	c.Logger.File = getEnv(EnvPrefix+"LOG_FILE", c.Logger.File)

	c.Detector.Backend = inference.Backend(getEnv(EnvPrefix+"DETECTOR_BACKEND", string(c.Detector.Backend)))
	c.Detector.Triton.URL = getEnv(EnvPrefix+"DETECTOR_URL", c.Detector.Triton.URL)
	c.Detector.Triton.Model = getEnv(EnvPrefix+"DETECTOR_MODEL", c.Detector.Triton.Model)
	c.Detector.ONNX.ModelPath = getEnv(EnvPrefix+"DETECTOR_MODEL_PATH", c.Detector.ONNX.ModelPath)
	c.Detector.ONNX.SharedLibraryPath = getEnv("ONNXRUNTIME_SHARED_LIBRARY_PATH", c.Detector.ONNX.SharedLibraryPath)

	c.Recognizer.Backend = inference.Backend(getEnv(EnvPrefix+"RECOGNIZER_BACKEND", string(c.Recognizer.Backend)))
	c.Recognizer.Triton.URL = getEnv(EnvPrefix+"RECOGNIZER_URL", c.Recognizer.Triton.URL)
	c.Recognizer.Triton.Model = getEnv(EnvPrefix+"RECOGNIZER_MODEL", c.Recognizer.Triton.Model)
	c.Recognizer.Gemini.APIKey = getEnv("GEMINI_API_KEY", c.Recognizer.Gemini.APIKey)

	c.Decode.ConfidenceThreshold = getEnvAsFloat(EnvPrefix+"CONFIDENCE_THRESHOLD", c.Decode.ConfidenceThreshold)
	c.Decode.OverlapTolerance = getEnvAsFloat(EnvPrefix+"OVERLAP_TOLERANCE", c.Decode.OverlapTolerance)
	c.Pipeline.Concurrency = getEnvAsInt(EnvPrefix+"CONCURRENCY", c.Pipeline.Concurrency)

	c.Cache.Enabled = getEnvAsBool(EnvPrefix+"CACHE_ENABLED", c.Cache.Enabled)
	c.Cache.Redis.Address = getEnv(EnvPrefix+"REDIS_ADDRESS", c.Cache.Redis.Address)
	c.Cache.Redis.Password = getEnv(EnvPrefix+"REDIS_PASSWORD", c.Cache.Redis.Password)

	c.Benchmark.DatasetRoot = getEnv(EnvPrefix+"DATASET_ROOT", c.Benchmark.DatasetRoot)
}

// Validate checks the configuration, including the backend-specific section
// that is in use.
func (c Config) Validate(v *validator.Validate) error {
	if err := v.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}

	var sections []any
	switch c.Detector.Backend {
	case inference.BackendTriton:
		sections = append(sections, c.Detector.Triton)
	case inference.BackendONNX:
		sections = append(sections, c.Detector.ONNX)
	}
	switch c.Recognizer.Backend {
	case inference.BackendTriton:
		sections = append(sections, c.Recognizer.Triton)
	case inference.BackendGemini:
		sections = append(sections, c.Recognizer.Gemini)
	}
	if c.Cache.Enabled {
		sections = append(sections, c.Cache.Redis)
	}

	for _, s := range sections {
		if err := v.Struct(s); err != nil {
			return errors.Wrap(err, "invalid config")
		}
	}
	return nil
}

// NewValidator returns the validator used for configuration and requests.
func NewValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
