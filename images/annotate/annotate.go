// Package annotate draws plate detections onto images with OpenCV.
package annotate

import (
	"image"
	"image/color"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-alpr/images"
)

var (
	// BoxColor is the outline color of plate boxes.
	BoxColor = color.RGBA{R: 255, A: 255}
	// TextColor is the color of plate labels.
	TextColor = color.RGBA{R: 255, G: 255, A: 255}
)

// BoxThickness is the outline width in pixels.
const BoxThickness = 3

// Label is one box to draw, with optional text above it.
type Label struct {
	Box  images.Rect
	Text string
}

// Draw returns a copy of img with every label drawn on it.
//
// Hershey fonts only cover ASCII, so non-ASCII runes (the province
// character of Chinese plates) are left out of the drawn text.
//
// Arguments:
//   - img: The source image; it is not modified.
//   - labels: The boxes to outline.
//
// Returns:
//   - image.Image: The annotated copy.
//   - error: An error if the image cannot be converted to or from a Mat.
func Draw(img image.Image, labels []Label) (image.Image, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert image to mat")
	}
	defer mat.Close()

	drawMat(&mat, labels)

	out, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert mat to image")
	}
	return out, nil
}

// WriteFile draws labels on img and writes it to path. The format follows
// the file extension.
func WriteFile(path string, img image.Image, labels []Label) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrap(err, "failed to convert image to mat")
	}
	defer mat.Close()

	drawMat(&mat, labels)

	if !gocv.IMWrite(path, mat) {
		return errors.Errorf("failed to write %s", path)
	}
	return nil
}

func drawMat(mat *gocv.Mat, labels []Label) {
	for _, l := range labels {
		rect := l.Box.ToRectangle().Canon()
		gocv.Rectangle(mat, rect, BoxColor, BoxThickness)

		text := ASCII(l.Text)
		if text == "" {
			continue
		}
		origin := image.Pt(rect.Min.X, max(rect.Min.Y-6, 12))
		gocv.PutText(mat, text, origin, gocv.FontHersheySimplex, 0.6, TextColor, 2)
	}
}

// ASCII drops the runes a Hershey font cannot render.
func ASCII(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r > 0x7e || r < 0x20 {
			return -1
		}
		return r
	}, s))
}
