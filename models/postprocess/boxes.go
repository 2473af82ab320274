package postprocess

import (
	"image"
	"sort"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-alpr/images"
)

// ErrNoCandidates is returned by BestBox when the detector produced no rows.
// There is no "no box" value in single-box mode, so callers check for
// empty detections first.
var ErrNoCandidates = errors.New("no detection candidates")

// Scale maps model-input coordinates to original-image pixels.
type Scale struct {
	X, Y float64
}

// NewScale derives the per-axis scale factors for one image. It is computed
// per call since image sizes vary per request.
//
// Arguments:
//   - original: The original image size (X = width, Y = height).
//   - model: The model input size. Both axes must be positive.
func NewScale(original, model image.Point) Scale {
	return Scale{
		X: float64(original.X) / float64(model.X),
		Y: float64(original.Y) / float64(model.Y),
	}
}

// Detection is a decoded box together with the objectness that ranked it.
type Detection struct {
	Box   images.Rect `json:"box"`
	Score float32     `json:"score"`
}

// BestDetection selects the candidate with the highest objectness.
//
// Class confidence is not part of the ranking and no threshold applies: the
// most confident row is returned even when its score is near zero. Ties go
// to the earliest row. NaN scores only win when every row is NaN.
//
// Arguments:
//   - candidates: The detector rows for one image.
//   - original: The original image size.
//   - model: The model input size.
//
// Returns:
//   - Detection: The box in original-image pixels and its objectness.
//   - error: ErrNoCandidates if candidates is empty.
func BestDetection(candidates []Candidate, original, model image.Point) (Detection, error) {
	if len(candidates) == 0 {
		return Detection{}, ErrNoCandidates
	}

	best := 0
	for i := 1; i < len(candidates); i++ {
		score := candidates[i].Objectness
		if !scored(score) {
			continue
		}
		if !scored(candidates[best].Objectness) || score > candidates[best].Objectness {
			best = i
		}
	}

	c := candidates[best]
	return Detection{Box: c.Rect(NewScale(original, model)), Score: c.Objectness}, nil
}

// BestBox returns the box of the single most confident candidate.
//
// See BestDetection for the selection rules.
func BestBox(candidates []Candidate, original, model image.Point) (images.Rect, error) {
	d, err := BestDetection(candidates, original, model)
	if err != nil {
		return images.Rect{}, err
	}
	return d.Box, nil
}

// TopDetections returns every candidate whose objectness is strictly greater
// than confidenceThreshold, most confident first, with corner-near duplicates
// removed.
//
// The sort is stable, so equally scored rows keep their tensor order. See
// DeduplicateCorners for the duplicate test.
//
// Arguments:
//   - candidates: The detector rows for one image.
//   - original: The original image size.
//   - model: The model input size.
//   - confidenceThreshold: Rows at or below this objectness are dropped.
//   - overlapTolerance: Fraction of the image width/height used as the
//     corner proximity threshold. Zero disables deduplication.
//
// Returns:
//   - []Detection: The surviving detections; empty (never nil) when none pass.
func TopDetections(
	candidates []Candidate,
	original, model image.Point,
	confidenceThreshold, overlapTolerance float64,
) []Detection {
	passing := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if float64(c.Objectness) > confidenceThreshold {
			passing = append(passing, c)
		}
	}

	sort.SliceStable(passing, func(i, j int) bool {
		return passing[i].Objectness > passing[j].Objectness
	})

	scale := NewScale(original, model)
	detections := make([]Detection, len(passing))
	for i, c := range passing {
		detections[i] = Detection{Box: c.Rect(scale), Score: c.Objectness}
	}

	return DeduplicateCorners(detections, original, overlapTolerance)
}

// TopBoxes is TopDetections without the scores.
func TopBoxes(
	candidates []Candidate,
	original, model image.Point,
	confidenceThreshold, overlapTolerance float64,
) []images.Rect {
	detections := TopDetections(candidates, original, model, confidenceThreshold, overlapTolerance)
	return Boxes(detections)
}

// Boxes projects detections to their boxes, preserving order.
func Boxes(detections []Detection) []images.Rect {
	boxes := make([]images.Rect, len(detections))
	for i, d := range detections {
		boxes[i] = d.Box
	}
	return boxes
}

// BestBoxFromTensor decodes t and applies BestBox.
func BestBoxFromTensor(t *tensor.Dense, original, model image.Point) (images.Rect, error) {
	candidates, err := CandidatesFromTensor(t)
	if err != nil {
		return images.Rect{}, err
	}
	return BestBox(candidates, original, model)
}

// TopBoxesFromTensor decodes t and applies TopBoxes.
func TopBoxesFromTensor(
	t *tensor.Dense,
	original, model image.Point,
	confidenceThreshold, overlapTolerance float64,
) ([]images.Rect, error) {
	candidates, err := CandidatesFromTensor(t)
	if err != nil {
		return nil, err
	}
	return TopBoxes(candidates, original, model, confidenceThreshold, overlapTolerance), nil
}
