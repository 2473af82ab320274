package images

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

// label is the plate box of a typical CCPD image (232x90 px).
var label = Rect{X1: 154, Y1: 383, X2: 386, Y2: 473}

func TestCalculateIoU(t *testing.T) {
	tests := []struct {
		name      string
		predicted Rect
		want      float32
	}{
		{
			name:      "exact match",
			predicted: label,
			want:      1,
		},
		{
			name:      "shifted 10px right",
			predicted: Rect{X1: 164, Y1: 383, X2: 396, Y2: 473},
			want:      19980.0 / 21780.0,
		},
		{
			name:      "tight box inside the plate",
			predicted: Rect{X1: 164, Y1: 393, X2: 376, Y2: 463},
			want:      14840.0 / 20880.0,
		},
		{
			name:      "lower half overlaps",
			predicted: Rect{X1: 154, Y1: 428, X2: 386, Y2: 518},
			want:      1.0 / 3.0,
		},
		{
			name:      "plate of another car",
			predicted: Rect{X1: 600, Y1: 400, X2: 820, Y2: 480},
			want:      0,
		},
		{
			name:      "touching edges",
			predicted: Rect{X1: 386, Y1: 383, X2: 600, Y2: 473},
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CalculateIoU(label, tt.predicted), 1e-5)
			assert.InDelta(t, tt.want, CalculateIoU(tt.predicted, label), 1e-5, "not symmetric")
		})
	}
}

// rectangleIoU is the same measure computed with image.Rectangle.
func rectangleIoU(r1, r2 image.Rectangle) float32 {
	in := r1.Intersect(r2)
	if in.Empty() {
		return 0
	}
	inter := in.Dx() * in.Dy()
	return float32(inter) / float32(r1.Dx()*r1.Dy()+r2.Dx()*r2.Dy()-inter)
}

func TestCalculateIoUMatchesRectangle(t *testing.T) {
	boxes := []Rect{
		label,
		{X1: 160, Y1: 380, X2: 390, Y2: 470},
		{X1: 0, Y1: 0, X2: 720, Y2: 1160},
		{X1: 300, Y1: 450, X2: 500, Y2: 520},
		{X1: 10, Y1: 10, X2: 40, Y2: 22},
	}

	for _, a := range boxes {
		for _, b := range boxes {
			want := rectangleIoU(a.ToRectangle(), b.ToRectangle())
			assert.InDelta(t, want, CalculateIoU(a, b), 1e-6, "%v vs %v", a, b)
		}
	}
}

func TestCalculateIoUDegenerate(t *testing.T) {
	tests := []struct {
		name   string
		r1, r2 Rect
	}{
		{"zero area prediction", Rect{}, label},
		{"collapsed to a line", label, Rect{X1: 200, Y1: 400, X2: 200, Y2: 450}},
		{"both empty", Rect{}, Rect{X1: 10, Y1: 10, X2: 10, Y2: 10}},
		{"negative coordinates", Rect{X1: -40, Y1: -10, X2: 60, Y2: 30}, Rect{X1: 0, Y1: 0, X2: 100, Y2: 40}},
		{"inverted corners", Rect{X1: 386, Y1: 473, X2: 154, Y2: 383}, label},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, iou := range []float32{CalculateIoU(tt.r1, tt.r2), CalculateIoU(tt.r2, tt.r1)} {
				assert.GreaterOrEqual(t, iou, float32(0))
				assert.LessOrEqual(t, iou, float32(1))
			}
		})
	}
}

func TestRectAccessors(t *testing.T) {
	assert.Equal(t, 232, label.Width())
	assert.Equal(t, 90, label.Height())
	assert.Equal(t, [4]int{154, 383, 386, 473}, label.Corners())
	assert.Equal(t, image.Rect(154, 383, 386, 473), label.ToRectangle())
	assert.Equal(t, "(154, 383), (386, 473)", label.String())
}
