package benchmark

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-alpr/ccpd"
	"github.com/nvr-ai/go-alpr/images"
	"github.com/nvr-ai/go-alpr/models/postprocess"
	"github.com/nvr-ai/go-alpr/pipeline"
)

// ProgressEvery is the number of samples between progress logs.
const ProgressEvery = 100

// Runner recognizes the plates of a decoded image.
type Runner interface {
	Run(ctx context.Context, img image.Image, cfg postprocess.Config) (*pipeline.Result, error)
}

// Suite runs the pipeline over dataset images and scores the predictions
// against the labels encoded in their filenames.
type Suite struct {
	runner Runner
	decode postprocess.Config
	root   string
	log    logrus.FieldLogger
}

// NewSuiteArgs represents the arguments for creating a new benchmark suite.
type NewSuiteArgs struct {
	Pipeline Runner
	// Decode is the decoding used for every image.
	Decode postprocess.Config
	// DatasetRoot is prepended to relative sample paths.
	DatasetRoot string
	Logger      logrus.FieldLogger
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - args: The arguments for creating a new benchmark suite.
//
// Returns:
//   - *Suite: The benchmark suite.
//   - error: An error if no pipeline is given.
func NewSuite(args NewSuiteArgs) (*Suite, error) {
	if args.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	log := args.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Suite{
		runner: args.Pipeline,
		decode: args.Decode,
		root:   args.DatasetRoot,
		log:    log,
	}, nil
}

// Run benchmarks files in order.
//
// Files whose name is not a CCPD label are skipped. A failing image is
// recorded with its error and the run continues.
//
// Arguments:
//   - ctx: Cancelling stops the run after the current image.
//   - files: Sample paths, relative to the dataset root unless absolute.
//
// Returns:
//   - *Report: The samples and their analysis, partial when ctx is done.
//   - error: The context error if the run was cut short.
func (s *Suite) Run(ctx context.Context, files []string) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Timestamp: time.Now(),
		Decode:    s.decode,
		Samples:   make([]Sample, 0, len(files)),
	}
	log := s.log.WithField("run_id", report.RunID)
	log.WithField("samples", len(files)).Info("benchmark started")

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	start := time.Now()
	skipped := 0
	var runErr error

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			runErr = errors.Wrap(err, "benchmark interrupted")
			break
		}

		label := ccpd.Decode(filepath.Base(file))
		if label == nil {
			skipped++
			continue
		}

		sample := s.runSample(ctx, file, label)
		if sample.Error != "" {
			log.WithField("file", file).Warn(sample.Error)
		}
		report.Samples = append(report.Samples, sample)

		if (i+1)%ProgressEvery == 0 {
			log.WithField("done", i+1).Info("benchmark progress")
		}
	}

	total := time.Since(start)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	report.Summary = Analyze(report.Samples)
	report.Summary.Skipped = skipped
	report.Performance = PerformanceMetrics{
		TotalDuration: total,
		MemoryStats: MemoryMetrics{
			AllocBytes:      endMem.Alloc,
			TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
			SysBytes:        endMem.Sys,
			NumGC:           endMem.NumGC - startMem.NumGC,
			HeapAllocBytes:  endMem.HeapAlloc,
			HeapSysBytes:    endMem.HeapSys,
		},
		CPUStats: CPUMetrics{NumCPU: runtime.NumCPU()},
	}
	if total > 0 {
		report.Performance.FramesPerSecond = float64(len(report.Samples)) / total.Seconds()
	}

	log.WithFields(logrus.Fields{
		"samples":  report.Summary.Samples,
		"errors":   report.Summary.Errors,
		"skipped":  skipped,
		"accuracy": report.Summary.Accuracy,
	}).Info("benchmark finished")

	return report, runErr
}

// runSample times reading, decoding and recognizing one image, then keeps
// the first prediction.
func (s *Suite) runSample(ctx context.Context, file string, label *ccpd.Label) Sample {
	sample := Sample{Filename: file, Plate: label.LicensePlate}

	tick := time.Now()
	res, err := s.predict(ctx, s.resolve(file))
	sample.PredictionTimeMS = float64(time.Since(tick)) / float64(time.Millisecond)
	if err != nil {
		sample.Error = err.Error()
		return sample
	}

	if len(res.Plates) > 0 {
		first := res.Plates[0]
		sample.PredictedPlate = first.Text
		if label.BBox != nil {
			sample.IoU = float64(images.CalculateIoU(first.Box, *label.BBox))
		}
	}
	return sample
}

func (s *Suite) predict(ctx context.Context, path string) (*pipeline.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read image")
	}
	img, _, err := images.Decode(data)
	if err != nil {
		return nil, err
	}
	return s.runner.Run(ctx, img, s.decode)
}

func (s *Suite) resolve(file string) string {
	if filepath.IsAbs(file) || s.root == "" {
		return file
	}
	return filepath.Join(s.root, file)
}
