package inference

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

type closingRecognizer struct {
	closed bool
}

func (r *closingRecognizer) Predict(context.Context, image.Image) (string, error) {
	return "皖AY339S", nil
}

func (r *closingRecognizer) Close() error {
	r.closed = true
	return nil
}

func TestPredictorFunc(t *testing.T) {
	var detector Detector = PredictorFunc[*tensor.Dense](func(_ context.Context, img image.Image) (*tensor.Dense, error) {
		b := img.Bounds()
		return tensor.New(tensor.WithShape(1, 1, 6), tensor.WithBacking([]float32{
			float32(b.Dx()) / 2, float32(b.Dy()) / 2, 10, 10, 0.9, 1,
		})), nil
	})

	out, err := detector.Predict(context.Background(), image.NewRGBA(image.Rect(0, 0, 64, 32)))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 6}, []int(out.Shape()))
	assert.Equal(t, float32(32), out.Data().([]float32)[0])
}

func TestPredictorFuncError(t *testing.T) {
	var recognizer Recognizer = PredictorFunc[string](func(context.Context, image.Image) (string, error) {
		return "", errors.New("unavailable")
	})

	_, err := recognizer.Predict(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
	assert.EqualError(t, err, "unavailable")
}

func TestClose(t *testing.T) {
	r := &closingRecognizer{}
	require.NoError(t, Close(r))
	assert.True(t, r.closed)

	assert.NoError(t, Close(PredictorFunc[string](nil)))
}
