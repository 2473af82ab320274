package models

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-alpr/cache"
	"github.com/nvr-ai/go-alpr/config"
	"github.com/nvr-ai/go-alpr/inference"
	"github.com/nvr-ai/go-alpr/pipeline"
	"github.com/nvr-ai/go-alpr/profiler"
)

// Service is a pipeline wired from the configuration together with the
// resources it owns.
type Service struct {
	*pipeline.Pipeline
	redis *cache.Redis
}

// NewService creates the detector, recognizer and optional cache named by cfg
// and assembles them into a pipeline.
//
// Arguments:
//   - ctx: Bounds backend startup and the cache ping.
//   - cfg: The full configuration.
//   - prof: Receives the stage timings; nil creates a private profiler.
//   - log: The logger for the pipeline and its backends.
//
// Returns:
//   - *Service: The service; close it with Close.
//   - error: An error if a backend or the cache fails to start.
func NewService(ctx context.Context, cfg config.Config, prof *profiler.Profiler, log logrus.FieldLogger) (*Service, error) {
	det, err := NewDetector(ctx, cfg.Detector, log)
	if err != nil {
		return nil, err
	}
	rec, err := NewRecognizer(ctx, cfg.Recognizer, log)
	if err != nil {
		inference.Close(det)
		return nil, err
	}

	b := pipeline.NewBuilder().
		WithDetector(det).
		WithRecognizer(rec).
		WithDecode(cfg.Decode).
		WithConcurrency(cfg.Pipeline.Concurrency).
		WithProfiler(prof).
		WithLogger(log)

	s := &Service{}
	if cfg.Cache.Enabled {
		r, err := cache.NewRedis(ctx, cfg.Cache.Redis, log)
		if err != nil {
			inference.Close(det)
			inference.Close(rec)
			return nil, err
		}
		s.redis = r
		b = b.WithCache(r, cfg.Cache.TTL, CacheSalt(cfg))
	}

	p, err := b.Build()
	if err != nil {
		s.closeCache()
		inference.Close(det)
		inference.Close(rec)
		return nil, err
	}
	s.Pipeline = p
	return s, nil
}

// CacheSalt identifies the models behind a deployment, so cached results of a
// different detector or reader are never served.
func CacheSalt(cfg config.Config) string {
	var det, rec string
	switch cfg.Detector.Backend {
	case inference.BackendONNX:
		det = cfg.Detector.ONNX.ModelPath
	default:
		det = cfg.Detector.Triton.Model
	}
	switch cfg.Recognizer.Backend {
	case inference.BackendGemini:
		rec = cfg.Recognizer.Gemini.Model
	default:
		rec = cfg.Recognizer.Triton.Model
	}
	return fmt.Sprintf("%s:%s|%s:%s", cfg.Detector.Backend, det, cfg.Recognizer.Backend, rec)
}

// Close closes the pipeline backends and the cache connection.
func (s *Service) Close() error {
	err := s.Pipeline.Close()
	if cerr := s.closeCache(); err == nil {
		err = cerr
	}
	return err
}

func (s *Service) closeCache() error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Close()
}
