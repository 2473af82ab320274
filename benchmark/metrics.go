// Package benchmark - Runs the plate pipeline over a labeled CCPD split and
// scores the predictions.
package benchmark

import (
	"time"

	"github.com/nvr-ai/go-alpr/models/postprocess"
)

// Sample is the outcome of one benchmark image.
type Sample struct {
	// Filename is the image path as listed in the split file.
	Filename string `json:"filename" db:"filename"`
	// Plate is the ground truth decoded from the filename.
	Plate string `json:"plate" db:"plate"`
	// PredictedPlate is the text of the first predicted plate, "" when none.
	PredictedPlate   string  `json:"predicted_plate" db:"predicted_plate"`
	PredictionTimeMS float64 `json:"prediction_time_ms" db:"prediction_time_ms"`
	// IoU of the first predicted box against the labeled box.
	IoU   float64 `json:"iou" db:"iou"`
	Error string  `json:"error,omitempty" db:"failure"`
}

// Summary aggregates the samples of a run.
type Summary struct {
	Samples int `json:"samples"`
	Errors  int `json:"errors"`
	// Skipped counts files whose name could not be decoded into a label.
	Skipped              int     `json:"skipped"`
	MeanPredictionTimeMS float64 `json:"mean_prediction_time_ms"`
	// Accuracy is the exact-match rate after normalizing the predictions.
	Accuracy             float64 `json:"accuracy"`
	MeanLevenshteinRatio float64 `json:"mean_levenshtein_ratio"`
	MeanIoU              float64 `json:"mean_iou"`
}

// PerformanceMetrics captures the run-level timing and resource usage.
type PerformanceMetrics struct {
	TotalDuration   time.Duration `json:"total_duration"`
	FramesPerSecond float64       `json:"frames_per_second"`
	MemoryStats     MemoryMetrics `json:"memory_stats"`
	CPUStats        CPUMetrics    `json:"cpu_stats"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// CPUMetrics captures CPU usage statistics
type CPUMetrics struct {
	NumCPU int `json:"num_cpu"`
}

// Report is a complete benchmark run.
type Report struct {
	RunID       string             `json:"run_id"`
	Timestamp   time.Time          `json:"timestamp"`
	Decode      postprocess.Config `json:"decode"`
	Summary     Summary            `json:"summary"`
	Performance PerformanceMetrics `json:"performance"`
	Samples     []Sample           `json:"samples"`
}
