package postprocess

import (
	"image"

	"github.com/pkg/errors"
)

// Mode selects how many boxes are decoded per image.
type Mode string

const (
	// ModeBest keeps only the single most confident candidate.
	ModeBest Mode = "best"
	// ModeTop keeps every candidate above the threshold, deduplicated.
	ModeTop Mode = "top"
)

// Config holds the decoding parameters.
type Config struct {
	Mode                Mode    `json:"mode" yaml:"mode" validate:"oneof=best top"`
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold" validate:"gte=0,lte=1"`
	OverlapTolerance    float64 `json:"overlap_tolerance" yaml:"overlap_tolerance" validate:"gte=0,lte=1"`
}

// DefaultConfig returns the settings the plate benchmark runs with.
func DefaultConfig() Config {
	return Config{
		Mode:                ModeTop,
		ConfidenceThreshold: 0.05,
		OverlapTolerance:    0.30,
	}
}

// Apply decodes candidates according to the configured mode.
//
// In ModeBest an empty candidate list yields no detections instead of
// ErrNoCandidates, so callers get one code path for "no plate".
func (c Config) Apply(candidates []Candidate, original, model image.Point) ([]Detection, error) {
	switch c.Mode {
	case ModeBest:
		if len(candidates) == 0 {
			return []Detection{}, nil
		}
		d, err := BestDetection(candidates, original, model)
		if err != nil {
			return nil, err
		}
		return []Detection{d}, nil
	case ModeTop, "":
		return TopDetections(candidates, original, model, c.ConfidenceThreshold, c.OverlapTolerance), nil
	default:
		return nil, errors.Errorf("unsupported decode mode: %s", c.Mode)
	}
}
