// Package models - registry for the plate detector and reader backends.
package models

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-alpr/config"
	"github.com/nvr-ai/go-alpr/inference"
	"github.com/nvr-ai/go-alpr/inference/gemini"
	"github.com/nvr-ai/go-alpr/inference/onnx"
	"github.com/nvr-ai/go-alpr/inference/triton"
)

// ErrUnsupportedBackend is returned for a backend that cannot serve the
// requested role.
var ErrUnsupportedBackend = errors.New("unsupported backend")

// NewDetector creates the plate detector selected by cfg.Backend.
//
// Arguments:
//   - ctx: Bounds the readiness probe of remote backends.
//   - cfg: The detector section of the configuration.
//   - log: The logger handed to the backend.
//
// Returns:
//   - inference.Detector: The detector; close it with inference.Close.
//   - error: ErrUnsupportedBackend, or an error if the backend fails to start.
//
// Example:
//
// ```go
//
//	det, err := NewDetector(ctx, config.Default().Detector, log)
//	if err != nil {
//	    log.Fatalf("Failed to create detector: %v", err)
//	}
//	defer inference.Close(det)
//
// ```
func NewDetector(ctx context.Context, cfg config.Detector, log logrus.FieldLogger) (inference.Detector, error) {
	log = log.WithField("backend", cfg.Backend)

	switch cfg.Backend {
	case inference.BackendTriton:
		client, err := newTritonClient(ctx, cfg.Triton.ClientOptions, log)
		if err != nil {
			return nil, err
		}
		det, err := triton.NewDetector(client, cfg.Triton)
		if err != nil {
			return nil, err
		}
		return det, nil
	case inference.BackendONNX:
		det, err := onnx.NewDetector(cfg.ONNX, log)
		if err != nil {
			return nil, err
		}
		return det, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedBackend, "detector %q", cfg.Backend)
	}
}

// NewRecognizer creates the plate reader selected by cfg.Backend.
func NewRecognizer(ctx context.Context, cfg config.Recognizer, log logrus.FieldLogger) (inference.Recognizer, error) {
	log = log.WithField("backend", cfg.Backend)

	switch cfg.Backend {
	case inference.BackendTriton:
		client, err := newTritonClient(ctx, cfg.Triton.ClientOptions, log)
		if err != nil {
			return nil, err
		}
		rec, err := triton.NewRecognizer(client, cfg.Triton)
		if err != nil {
			return nil, err
		}
		return rec, nil
	case inference.BackendGemini:
		rec, err := gemini.NewRecognizer(ctx, cfg.Gemini)
		if err != nil {
			return nil, err
		}
		return rec, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedBackend, "recognizer %q", cfg.Backend)
	}
}

// newTritonClient connects to the server and warns when the model is not
// ready yet; Triton may still be loading it.
func newTritonClient(ctx context.Context, opts triton.ClientOptions, log logrus.FieldLogger) (*triton.Client, error) {
	client, err := triton.NewClient(opts, nil, log)
	if err != nil {
		return nil, err
	}
	if err := client.Ready(ctx); err != nil {
		log.WithError(err).WithField("model", client.Model()).Warn("model not ready")
	}
	return client, nil
}
