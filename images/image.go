// Package images - Image definition for processing utilities.
package images

import (
	"bytes"
	"image"
	_ "image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
)

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

var (
	// ErrEmptyImage is returned when there are no bytes to decode.
	ErrEmptyImage = errors.New("image data is empty")
	// ErrInvalidImage is returned when the bytes are not a supported image.
	ErrInvalidImage = errors.New("invalid image")
)

// Image represents an encoded image with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// Decode decodes JPEG, PNG or WebP bytes.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - image.Image: The decoded image.
//   - *Image: The encoded image with its detected format and dimensions.
//   - error: ErrEmptyImage or ErrInvalidImage.
func Decode(data []byte) (image.Image, *Image, error) {
	if len(data) == 0 {
		return nil, nil, ErrEmptyImage
	}

	if isWebP(data) {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, nil, errors.Wrapf(ErrInvalidImage, "webp: %v", err)
		}
		return img, describe(img, data, FormatWebP), nil
	}

	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, errors.Wrapf(ErrInvalidImage, "%v", err)
	}

	return img, describe(img, data, ImageFormat(name)), nil
}

// EncodePNG encodes an image as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "failed to encode png")
	}
	return buf.Bytes(), nil
}

func describe(img image.Image, data []byte, format ImageFormat) *Image {
	b := img.Bounds()
	return &Image{
		Format: format,
		Data:   data,
		Width:  b.Dx(),
		Height: b.Dy(),
	}
}

// RIFF....WEBP
func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}
