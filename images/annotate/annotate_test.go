package annotate

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-alpr/images"
)

func gray(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 40, G: 40, B: 40, A: 255})
		}
	}
	return img
}

func TestASCII(t *testing.T) {
	assert.Equal(t, "AY339S", ASCII("皖AY339S"))
	assert.Equal(t, "AB12", ASCII("A·B12"))
	assert.Equal(t, "", ASCII("皖"))
	assert.Equal(t, "A 1", ASCII(" A 1\n"))
}

func TestDraw(t *testing.T) {
	src := gray(200, 100)
	box := images.Rect{X1: 40, Y1: 30, X2: 160, Y2: 70}

	out, err := Draw(src, []Label{{Box: box, Text: "皖AY339S"}})
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), out.Bounds())

	// The outline is red, the inside untouched.
	r, g, b, _ := out.At(box.X1, 50).RGBA()
	assert.Greater(t, r>>8, uint32(200))
	assert.Less(t, g>>8, uint32(50))
	assert.Less(t, b>>8, uint32(50))

	r, _, _, _ = out.At(100, 50).RGBA()
	assert.Equal(t, uint32(40), r>>8)

	// The source is not modified.
	assert.Equal(t, color.RGBA{R: 40, G: 40, B: 40, A: 255}, src.RGBAAt(box.X1, 50))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotated.png")

	err := WriteFile(path, gray(64, 32), []Label{{Box: images.Rect{X1: 4, Y1: 4, X2: 60, Y2: 28}}})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
