package models

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-alpr/config"
	"github.com/nvr-ai/go-alpr/inference"
	"github.com/nvr-ai/go-alpr/logger"
	"github.com/nvr-ai/go-alpr/profiler"
)

func TestNewService(t *testing.T) {
	srv := readyServer(t, http.StatusOK)

	cfg := config.Default()
	cfg.Detector.Triton.URL = srv.URL
	cfg.Recognizer.Triton.URL = srv.URL
	prof := profiler.New(0)

	s, err := NewService(context.Background(), cfg, prof, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, cfg.Decode, s.Decode())
	assert.Same(t, prof, s.Profiler())
	assert.NoError(t, s.Close())
}

func TestNewServiceCacheUnavailable(t *testing.T) {
	srv := readyServer(t, http.StatusOK)

	cfg := config.Default()
	cfg.Detector.Triton.URL = srv.URL
	cfg.Recognizer.Triton.URL = srv.URL
	cfg.Cache.Enabled = true
	// Nothing listens on the discard port.
	cfg.Cache.Redis.Address = "127.0.0.1:9"

	_, err := NewService(context.Background(), cfg, nil, logger.Discard())
	assert.ErrorContains(t, err, "redis")
}

func TestNewServiceBadBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Recognizer.Backend = inference.BackendONNX
	cfg.Detector.Triton.URL = readyServer(t, http.StatusOK).URL

	_, err := NewService(context.Background(), cfg, nil, logger.Discard())
	assert.ErrorIs(t, err, ErrUnsupportedBackend)
}

func TestCacheSalt(t *testing.T) {
	cfg := config.Default()
	cfg.Detector.Triton.Model = "yolo"
	cfg.Recognizer.Triton.Model = "ocr"
	assert.Equal(t, "triton:yolo|triton:ocr", CacheSalt(cfg))

	cfg.Detector.Backend = inference.BackendONNX
	cfg.Detector.ONNX.ModelPath = "plates.onnx"
	cfg.Recognizer.Backend = inference.BackendGemini
	cfg.Recognizer.Gemini.Model = "gemini-1.5-flash"
	assert.Equal(t, "onnx:plates.onnx|gemini:gemini-1.5-flash", CacheSalt(cfg))
}
