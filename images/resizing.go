package images

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ToCHW resizes img to the model input size and lays it out as a normalized
// 1x3xHxW float32 tensor (RGB planes, values in [0, 1]).
//
// Arguments:
//   - img: The image to prepare.
//   - size: The model input size (X = width, Y = height).
//
// Returns:
//   - []float32: The tensor data, len 3*size.X*size.Y.
//   - error: An error if the size is not positive.
func ToCHW(img image.Image, size image.Point) ([]float32, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, errors.Errorf("invalid dimensions: width=%d, height=%d", size.X, size.Y)
	}
	data := make([]float32, 3*size.X*size.Y)
	if err := ToCHWInto(img, size, data); err != nil {
		return nil, err
	}
	return data, nil
}

// ToCHWInto is ToCHW writing into a preallocated destination, typically the
// backing slice of an input tensor that is reused between runs.
func ToCHWInto(img image.Image, size image.Point, dst []float32) error {
	if size.X <= 0 || size.Y <= 0 {
		return errors.Errorf("invalid dimensions: width=%d, height=%d", size.X, size.Y)
	}
	channelSize := size.X * size.Y
	if len(dst) < channelSize*3 {
		return errors.Errorf("destination tensor only holds %d floats, needs %d", len(dst), channelSize*3)
	}

	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	resized := resize.Resize(uint(size.X), uint(size.Y), img, resize.Bilinear)
	b := resized.Bounds()

	i := 0
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			r, g, bl, _ := resized.At(b.Min.X+x, b.Min.Y+y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(bl>>8) / 255.0
			i++
		}
	}
	return nil
}
