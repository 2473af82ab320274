// Package images - Image processing utilities for plate detection and recognition.
package images

import (
	"fmt"
	"image"
)

// Rect is a bounding box in pixel space.
//
// The corners come straight out of the detection decoder, so X1 <= X2 and
// Y1 <= Y2 is expected but not enforced.
type Rect struct {
	X1 int `json:"x1" yaml:"x1"`
	Y1 int `json:"y1" yaml:"y1"`
	X2 int `json:"x2" yaml:"x2"`
	Y2 int `json:"y2" yaml:"y2"`
}

// Width returns X2 - X1.
func (r Rect) Width() int {
	return r.X2 - r.X1
}

// Height returns Y2 - Y1.
func (r Rect) Height() int {
	return r.Y2 - r.Y1
}

// Corners returns the box as an ordered (x1, y1, x2, y2) quadruple.
func (r Rect) Corners() [4]int {
	return [4]int{r.X1, r.Y1, r.X2, r.Y2}
}

// ToRectangle converts the box to a canonical image.Rectangle.
func (r Rect) ToRectangle() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d, %d), (%d, %d)", r.X1, r.Y1, r.X2, r.Y2)
}

// CalculateIoU returns the Intersection over Union of two boxes.
//
//	IoU = Area of Intersection / Area of Union
//
// A value of 1.0 means the boxes are identical and 0.0 means they do not
// overlap. Boxes with no intersecting area (including zero-area boxes) yield
// 0.0, so the result never divides by zero.
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//
//	iouScore := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	// Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
	areaR := (r.X2 - r.X1) * (r.Y2 - r.Y1)
	areaO := (o.X2 - o.X1) * (o.Y2 - o.Y1)
	unionArea := areaR + areaO - interArea

	return float32(interArea) / float32(unionArea)
}
