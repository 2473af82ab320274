// Package postprocess - Decodes raw plate detector output into image-space boxes.
package postprocess

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-alpr/images"
)

// Column layout of one detector output row.
const (
	ColXCenter = iota
	ColYCenter
	ColWidth
	ColHeight
	ColObjectness
	ColClassConfidence

	// RowSize is the number of columns of a single-class YOLO head.
	RowSize
)

// minCols is the least a row needs to carry a box and an objectness score.
const minCols = ColObjectness + 1

// ErrMalformedTensor is returned when the detector output does not have a
// (batch, N, >=5) layout.
var ErrMalformedTensor = errors.New("malformed detection tensor")

// Candidate is one raw detector row in model-input coordinates.
type Candidate struct {
	XCenter         float32 `json:"x_center"`
	YCenter         float32 `json:"y_center"`
	Width           float32 `json:"width"`
	Height          float32 `json:"height"`
	Objectness      float32 `json:"objectness"`
	ClassConfidence float32 `json:"class_confidence"`
}

// Rect converts the center/size box to corners scaled into original-image
// pixels. Each corner is truncated toward zero, not rounded.
func (c Candidate) Rect(s Scale) images.Rect {
	halfW := c.Width / 2
	halfH := c.Height / 2
	return images.Rect{
		X1: int(float64(c.XCenter-halfW) * s.X),
		Y1: int(float64(c.YCenter-halfH) * s.Y),
		X2: int(float64(c.XCenter+halfW) * s.X),
		Y2: int(float64(c.YCenter+halfH) * s.Y),
	}
}

// CandidatesFromTensor reads batch 0 of a (batch, N, cols) detection tensor.
//
// Arguments:
//   - t: The detector output. Float32 and float64 backings are accepted.
//
// Returns:
//   - []Candidate: One candidate per row, in tensor order; empty, not nil,
//     when the tensor has no rows.
//   - error: ErrMalformedTensor if the shape or dtype cannot be read.
func CandidatesFromTensor(t *tensor.Dense) ([]Candidate, error) {
	if t == nil {
		return nil, errors.Wrap(ErrMalformedTensor, "nil tensor")
	}

	shape := t.Shape()
	if len(shape) != 3 {
		return nil, errors.Wrapf(ErrMalformedTensor, "expected rank 3, got shape %v", shape)
	}
	if shape[0] < 1 {
		return nil, errors.Wrapf(ErrMalformedTensor, "empty batch in shape %v", shape)
	}
	rows, cols := shape[1], shape[2]
	// An empty tensor has no backing array to read.
	if rows == 0 || t.Size() == 0 {
		return []Candidate{}, nil
	}

	switch data := t.Data().(type) {
	case []float32:
		return CandidatesFromSlice(data, rows, cols)
	case []float64:
		if len(data) < rows*cols {
			return nil, errors.Wrapf(ErrMalformedTensor, "buffer holds %d values, shape needs %d", len(data), rows*cols)
		}
		converted := make([]float32, rows*cols)
		for i := range converted {
			converted[i] = float32(data[i])
		}
		return CandidatesFromSlice(converted, rows, cols)
	default:
		return nil, errors.Wrapf(ErrMalformedTensor, "unsupported dtype %v", t.Dtype())
	}
}

// CandidatesFromSlice reads the first rows*cols values of a flat row-major buffer.
func CandidatesFromSlice(data []float32, rows, cols int) ([]Candidate, error) {
	if rows < 0 {
		return nil, errors.Wrapf(ErrMalformedTensor, "negative row count %d", rows)
	}
	if rows > 0 && cols < minCols {
		return nil, errors.Wrapf(ErrMalformedTensor, "rows have %d columns, need at least %d", cols, minCols)
	}
	if len(data) < rows*cols {
		return nil, errors.Wrapf(ErrMalformedTensor, "buffer holds %d values, shape needs %d", len(data), rows*cols)
	}

	candidates := make([]Candidate, rows)
	for i := range candidates {
		row := data[i*cols : (i+1)*cols]
		candidates[i] = Candidate{
			XCenter:    row[ColXCenter],
			YCenter:    row[ColYCenter],
			Width:      row[ColWidth],
			Height:     row[ColHeight],
			Objectness: row[ColObjectness],
		}
		if cols > ColClassConfidence {
			candidates[i].ClassConfidence = row[ColClassConfidence]
		}
	}
	return candidates, nil
}

// NewTensor packs candidates into a (1, N, 6) float32 tensor, the layout the
// detector variants return.
func NewTensor(candidates []Candidate) *tensor.Dense {
	backing := make([]float32, 0, len(candidates)*RowSize)
	for _, c := range candidates {
		backing = append(backing, c.XCenter, c.YCenter, c.Width, c.Height, c.Objectness, c.ClassConfidence)
	}
	return tensor.New(tensor.WithShape(1, len(candidates), RowSize), tensor.WithBacking(backing))
}

// scored reports whether v can take part in a confidence comparison.
func scored(v float32) bool {
	return !math32.IsNaN(v)
}
