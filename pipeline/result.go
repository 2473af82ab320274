package pipeline

import (
	"time"

	"github.com/nvr-ai/go-alpr/images"
)

// Plate is one detected plate and the text read from it.
type Plate struct {
	Box   images.Rect `json:"box"`
	Score float32     `json:"score"`
	Text  string      `json:"text"`
}

// Timings are the per-stage durations of one run.
type Timings struct {
	Decode      time.Duration `json:"decode"`
	Detect      time.Duration `json:"detect"`
	Postprocess time.Duration `json:"postprocess"`
	Recognize   time.Duration `json:"recognize"`
	Total       time.Duration `json:"total"`
}

// Milliseconds returns the timings keyed by stage, in milliseconds.
func (t Timings) Milliseconds() map[string]float64 {
	ms := func(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
	return map[string]float64{
		"decode":      ms(t.Decode),
		"detect":      ms(t.Detect),
		"postprocess": ms(t.Postprocess),
		"recognize":   ms(t.Recognize),
		"total":       ms(t.Total),
	}
}

// Result is the outcome of recognizing one image. An image without plates
// has an empty Plates slice, not an error.
type Result struct {
	Plates  []Plate `json:"plates"`
	Timings Timings `json:"timings"`
	// Cached is set when the result was served from the cache.
	Cached bool `json:"cached"`
}

// Texts returns the plate texts in detection order.
func (r *Result) Texts() []string {
	texts := make([]string, len(r.Plates))
	for i, p := range r.Plates {
		texts[i] = p.Text
	}
	return texts
}

// Boxes returns the plate boxes in detection order.
func (r *Result) Boxes() []images.Rect {
	boxes := make([]images.Rect, len(r.Plates))
	for i, p := range r.Plates {
		boxes[i] = p.Box
	}
	return boxes
}

// First returns the most confident plate text, or "" when there is none.
func (r *Result) First() string {
	if len(r.Plates) == 0 {
		return ""
	}
	return r.Plates[0].Text
}
