package images

import (
	"image"
	"image/draw"

	"github.com/pkg/errors"
)

// ErrEmptyCrop is returned when a box does not overlap the image.
var ErrEmptyCrop = errors.New("crop region is empty")

// Crop copies the region of img covered by r into a new RGBA image.
//
// The box is canonicalized and clipped to the image bounds first, so boxes
// that run past the frame edge (common for plates near the border) still
// produce the visible part of the plate.
//
// Arguments:
//   - img: The source image.
//   - r: The region to extract, in img's pixel space.
//
// Returns:
//   - *image.RGBA: The cropped region, with its origin at (0, 0).
//   - error: ErrEmptyCrop if the clipped region has no area.
func Crop(img image.Image, r Rect) (*image.RGBA, error) {
	region := r.ToRectangle().Intersect(img.Bounds())
	if region.Empty() {
		return nil, errors.Wrapf(ErrEmptyCrop, "box %s outside bounds %v", r, img.Bounds())
	}

	dst := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	draw.Draw(dst, dst.Bounds(), img, region.Min, draw.Src)
	return dst, nil
}

// Clamp clips r to the image bounds, returning the zero Rect when they do not overlap.
func Clamp(r Rect, bounds image.Rectangle) Rect {
	c := r.ToRectangle().Intersect(bounds)
	if c.Empty() {
		return Rect{}
	}
	return Rect{X1: c.Min.X, Y1: c.Min.Y, X2: c.Max.X, Y2: c.Max.Y}
}
