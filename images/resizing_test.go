package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestImage() image.Image {
	// Create a simple 100x100 red image.
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}

	return img
}

// quadrantImage paints each 50x50 quadrant of a 100x100 image a different color.
func quadrantImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			switch {
			case x < 50 && y < 50:
				img.Set(x, y, color.RGBA{R: 255, A: 255})
			case x >= 50 && y < 50:
				img.Set(x, y, color.RGBA{G: 255, A: 255})
			case x < 50:
				img.Set(x, y, color.RGBA{B: 255, A: 255})
			default:
				img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
			}
		}
	}
	return img
}

func TestDecodeResizing(t *testing.T) {
	var jpegBuf, pngBuf, webpBuf bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpegBuf, getTestImage(), nil))
	require.NoError(t, png.Encode(&pngBuf, getTestImage()))
	require.NoError(t, webp.Encode(&webpBuf, getTestImage(), &webp.Options{Quality: 80}))

	tests := []struct {
		name   string
		data   []byte
		format ImageFormat
	}{
		{"jpeg", jpegBuf.Bytes(), FormatJPEG},
		{"png", pngBuf.Bytes(), FormatPNG},
		{"webp", webpBuf.Bytes(), FormatWebP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, meta, err := Decode(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.format, meta.Format)
			assert.Equal(t, 100, meta.Width)
			assert.Equal(t, 100, meta.Height)
			assert.Equal(t, image.Rect(0, 0, 100, 100), img.Bounds())
		})
	}
}

func TestDecodeErrorsResizing(t *testing.T) {
	_, _, err := Decode(nil)
	assert.True(t, errors.Is(err, ErrEmptyImage))

	_, _, err = Decode([]byte("not an image"))
	assert.Error(t, err)
}

func TestCropResizing(t *testing.T) {
	img := quadrantImage()

	crop, err := Crop(img, Rect{X1: 50, Y1: 0, X2: 100, Y2: 50})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 50, 50), crop.Bounds())
	assert.Equal(t, color.RGBA{G: 255, A: 255}, crop.RGBAAt(10, 10))

	// Boxes running past the frame keep the visible part.
	crop, err = Crop(img, Rect{X1: -20, Y1: 60, X2: 40, Y2: 140})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 40), crop.Bounds())
	assert.Equal(t, color.RGBA{B: 255, A: 255}, crop.RGBAAt(0, 0))
}

func TestCropOutsideBounds(t *testing.T) {
	_, err := Crop(quadrantImage(), Rect{X1: 200, Y1: 200, X2: 300, Y2: 300})
	assert.True(t, errors.Is(err, ErrEmptyCrop))

	_, err = Crop(quadrantImage(), Rect{X1: 10, Y1: 10, X2: 10, Y2: 40})
	assert.True(t, errors.Is(err, ErrEmptyCrop))
}

func TestClampResizing(t *testing.T) {
	bounds := image.Rect(0, 0, 640, 480)

	assert.Equal(t, Rect{X1: 0, Y1: 10, X2: 640, Y2: 480}, Clamp(Rect{X1: -5, Y1: 10, X2: 700, Y2: 500}, bounds))
	assert.Equal(t, Rect{}, Clamp(Rect{X1: 700, Y1: 10, X2: 800, Y2: 20}, bounds))
}

func TestToCHW(t *testing.T) {
	data, err := ToCHW(getTestImage(), image.Point{X: 32, Y: 16})
	require.NoError(t, err)
	require.Len(t, data, 3*32*16)

	channel := 32 * 16
	for i := 0; i < channel; i++ {
		assert.InDelta(t, 1.0, data[i], 0.01, "red plane")
		assert.InDelta(t, 0.0, data[channel+i], 0.01, "green plane")
		assert.InDelta(t, 0.0, data[2*channel+i], 0.01, "blue plane")
	}
}

func TestToCHWInvalid(t *testing.T) {
	_, err := ToCHW(getTestImage(), image.Point{X: 0, Y: 640})
	assert.Error(t, err)

	err = ToCHWInto(getTestImage(), image.Point{X: 4, Y: 4}, make([]float32, 10))
	assert.Error(t, err)
}

func TestEncodePNGRoundTripResizing(t *testing.T) {
	data, err := EncodePNG(quadrantImage())
	require.NoError(t, err)

	img, meta, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, meta.Format)
	assert.Equal(t, color.RGBA{G: 255, A: 255}, color.RGBAModel.Convert(img.At(75, 25)))
}
