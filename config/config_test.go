package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-alpr/inference"
	"github.com/nvr-ai/go-alpr/models/postprocess"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, inference.BackendTriton, cfg.Detector.Backend)
	assert.Equal(t, "localhost:8991", cfg.Detector.Triton.URL)
	assert.Equal(t, "yolo", cfg.Detector.Triton.Model)
	assert.Equal(t, 640, cfg.Detector.Triton.InputSize.X)
	assert.Equal(t, 640, cfg.Detector.Triton.InputSize.Y)
	assert.Equal(t, postprocess.ModeTop, cfg.Decode.Mode)
	assert.Equal(t, postprocess.ModeBest, cfg.Server.Mode)
	assert.InDelta(t, 0.05, cfg.Decode.ConfidenceThreshold, 1e-9)
	assert.InDelta(t, 0.30, cfg.Decode.OverlapTolerance, 1e-9)
	assert.Equal(t, 5000, cfg.Benchmark.Samples)
	assert.Equal(t, int64(42), cfg.Benchmark.Seed)

	require.NoError(t, cfg.Validate(NewValidator()))
}

func TestLoadFile(t *testing.T) {
	t.Chdir(t.TempDir())

	path := writeFile(t, ".", "alpr.yaml", `
server:
  address: ":9000"
detector:
  backend: onnx
  onnx:
    model_path: /models/yolo.onnx
decode:
  mode: best
  confidence_threshold: 0.25
cache:
  ttl: 1h
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, inference.BackendONNX, cfg.Detector.Backend)
	assert.Equal(t, "/models/yolo.onnx", cfg.Detector.ONNX.ModelPath)
	assert.Equal(t, postprocess.ModeBest, cfg.Decode.Mode)
	assert.InDelta(t, 0.25, cfg.Decode.ConfidenceThreshold, 1e-9)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	// Untouched keys keep their defaults.
	assert.InDelta(t, 0.30, cfg.Decode.OverlapTolerance, 1e-9)
	assert.Equal(t, "images", cfg.Detector.ONNX.InputName)
	assert.Equal(t, 50, cfg.Server.BodyLimitMB)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ALPR_DETECTOR_URL", "triton:8000")
	t.Setenv("ALPR_CONFIDENCE_THRESHOLD", "0.5")
	t.Setenv("ALPR_CONCURRENCY", "8")
	t.Setenv("ALPR_CACHE_ENABLED", "true")
	t.Setenv("ALPR_REDIS_ADDRESS", "redis:6379")
	t.Setenv("ALPR_SERVER_MODE", "top")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "triton:8000", cfg.Detector.Triton.URL)
	assert.InDelta(t, 0.5, cfg.Decode.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Address)
	assert.Equal(t, postprocess.ModeTop, cfg.Server.Mode)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ALPR_CONCURRENCY", "many")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Pipeline.Concurrency, cfg.Pipeline.Concurrency)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("GEMINI_API_KEY", "")
	require.NoError(t, os.Unsetenv("GEMINI_API_KEY"))
	t.Setenv("ALPR_RECOGNIZER_BACKEND", "gemini")

	writeFile(t, dir, ".env", "GEMINI_API_KEY=from-dotenv\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, inference.BackendGemini, cfg.Recognizer.Backend)
	assert.Equal(t, "from-dotenv", cfg.Recognizer.Gemini.APIKey)
}

func TestLoadErrors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load("missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.yaml")

	bad := writeFile(t, ".", "bad.yaml", "server: [")
	_, err = Load(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestValidate(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown detector backend", func(c *Config) { c.Detector.Backend = "tflite" }},
		{"gemini recognizer for detection", func(c *Config) { c.Detector.Backend = inference.BackendGemini }},
		{"onnx without model", func(c *Config) { c.Detector.Backend = inference.BackendONNX }},
		{"gemini without key", func(c *Config) { c.Recognizer.Backend = inference.BackendGemini }},
		{"triton without url", func(c *Config) { c.Recognizer.Triton.URL = "" }},
		{"unknown decode mode", func(c *Config) { c.Decode.Mode = "all" }},
		{"unknown server mode", func(c *Config) { c.Server.Mode = "all" }},
		{"threshold above one", func(c *Config) { c.Decode.ConfidenceThreshold = 1.5 }},
		{"negative tolerance", func(c *Config) { c.Decode.OverlapTolerance = -0.1 }},
		{"zero concurrency", func(c *Config) { c.Pipeline.Concurrency = 0 }},
		{"cache without redis", func(c *Config) {
			c.Cache.Enabled = true
			c.Cache.Redis.Address = ""
		}},
		{"bad log level", func(c *Config) { c.Logger.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate(v))
		})
	}
}

func TestValidateIgnoresUnusedSections(t *testing.T) {
	cfg := Default()
	cfg.Detector.ONNX.ModelPath = ""
	cfg.Recognizer.Gemini.APIKey = ""
	cfg.Cache.Redis.Address = ""

	assert.NoError(t, cfg.Validate(NewValidator()))
}
