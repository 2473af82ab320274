// Package inference - Prediction capabilities shared by the detector and recognizer variants.
package inference

import (
	"context"
	"image"

	"gorgonia.org/tensor"
)

// Predictor runs one model on one image.
//
// Implementations are constructed fully at startup and must be safe for
// concurrent use by the pipeline.
type Predictor[T any] interface {
	Predict(ctx context.Context, img image.Image) (T, error)
}

// Detector returns the raw (1, N, 6) detection tensor for an image.
type Detector = Predictor[*tensor.Dense]

// Recognizer returns the text read from a plate crop.
type Recognizer = Predictor[string]

// PredictorFunc adapts a plain function to Predictor.
type PredictorFunc[T any] func(ctx context.Context, img image.Image) (T, error)

// Predict calls f(ctx, img).
func (f PredictorFunc[T]) Predict(ctx context.Context, img image.Image) (T, error) {
	return f(ctx, img)
}

// Closer is implemented by predictors that hold native or network resources.
type Closer interface {
	Close() error
}

// Close closes p if it holds resources and is a no-op otherwise.
func Close(p any) error {
	if c, ok := p.(Closer); ok {
		return c.Close()
	}
	return nil
}
