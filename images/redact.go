package images

import (
	"image"
	"image/draw"
)

// Redact returns a copy of img with every box blurred, e.g. to anonymize
// plates before an annotated image is stored.
//
// Each box is clipped to the image and blurred on its own with a separable
// box blur (window 2*radius+1) that repeats the edge pixels of the box, so
// nothing outside a box leaks into it.
//
// Arguments:
//   - img: The source image; it is not modified.
//   - boxes: The regions to blur. Boxes outside the image are ignored.
//   - radius: The blur radius. Zero or less returns an unblurred copy.
//
// Returns:
//   - *image.RGBA: The redacted copy, with the bounds of img.
func Redact(img image.Image, boxes []Rect, radius int) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	if radius <= 0 {
		return out
	}

	for _, box := range boxes {
		r := box.ToRectangle().Intersect(b)
		if r.Empty() {
			continue
		}
		region := out.SubImage(r).(*image.RGBA)
		tmp := image.NewRGBA(r)
		blurRows(region, tmp, radius)
		blurCols(tmp, region, radius)
	}
	return out
}

// blurRows writes the horizontal sliding-window mean of src into dst. Both
// share the same bounds.
func blurRows(src, dst *image.RGBA, radius int) {
	r := src.Rect
	w := r.Dx()
	window := 2*radius + 1

	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := src.PixOffset(r.Min.X, y)
		out := dst.PixOffset(r.Min.X, y)
		at := func(x int) int { return row + clampIndex(x, w)*4 }

		var sum [4]int
		for x := -radius; x <= radius; x++ {
			for c, o := 0, at(x); c < 4; c++ {
				sum[c] += int(src.Pix[o+c])
			}
		}
		for x := 0; x < w; x++ {
			for c := 0; c < 4; c++ {
				dst.Pix[out+x*4+c] = uint8(sum[c] / window)
			}
			in, drop := at(x+radius+1), at(x-radius)
			for c := 0; c < 4; c++ {
				sum[c] += int(src.Pix[in+c]) - int(src.Pix[drop+c])
			}
		}
	}
}

// blurCols is the vertical counterpart of blurRows.
func blurCols(src, dst *image.RGBA, radius int) {
	r := src.Rect
	h := r.Dy()
	window := 2*radius + 1

	for x := r.Min.X; x < r.Max.X; x++ {
		at := func(y int) int { return src.PixOffset(x, r.Min.Y+clampIndex(y, h)) }

		var sum [4]int
		for y := -radius; y <= radius; y++ {
			for c, o := 0, at(y); c < 4; c++ {
				sum[c] += int(src.Pix[o+c])
			}
		}
		for y := 0; y < h; y++ {
			out := dst.PixOffset(x, r.Min.Y+y)
			for c := 0; c < 4; c++ {
				dst.Pix[out+c] = uint8(sum[c] / window)
			}
			in, drop := at(y+radius+1), at(y-radius)
			for c := 0; c < 4; c++ {
				sum[c] += int(src.Pix[in+c]) - int(src.Pix[drop+c])
			}
		}
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
