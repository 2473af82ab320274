package pipeline

import (
	"image"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-alpr/cache"
	"github.com/nvr-ai/go-alpr/inference"
	"github.com/nvr-ai/go-alpr/models/postprocess"
	"github.com/nvr-ai/go-alpr/profiler"
)

// inputSizer is implemented by detectors that know their model input size.
type inputSizer interface {
	InputSize() image.Point
}

// Builder assembles a Pipeline with a fluent API. The first error sticks and
// is returned by Build.
type Builder struct {
	detector    inference.Detector
	recognizer  inference.Recognizer
	inputSize   image.Point
	decode      postprocess.Config
	concurrency int
	cache       cache.Cache
	cacheTTL    time.Duration
	cacheSalt   string
	profiler    *profiler.Profiler
	log         logrus.FieldLogger
	err         error
}

// NewBuilder creates a builder with the default decode settings.
func NewBuilder() *Builder {
	return &Builder{
		decode:      postprocess.DefaultConfig(),
		concurrency: runtime.NumCPU(),
	}
}

// WithDetector sets the detector. Its input size is taken from the detector
// when it exposes one.
func (b *Builder) WithDetector(d inference.Detector) *Builder {
	if b.HasError() {
		return b
	}
	if d == nil {
		b.err = errors.New("detector is nil")
		return b
	}
	b.detector = d
	if s, ok := d.(inputSizer); ok && b.inputSize == (image.Point{}) {
		b.inputSize = s.InputSize()
	}
	return b
}

// WithInputSize sets the model input size the detector boxes refer to.
func (b *Builder) WithInputSize(size image.Point) *Builder {
	if b.HasError() {
		return b
	}
	if size.X <= 0 || size.Y <= 0 {
		b.err = errors.Errorf("invalid input size %v", size)
		return b
	}
	b.inputSize = size
	return b
}

// WithRecognizer sets the recognizer.
func (b *Builder) WithRecognizer(r inference.Recognizer) *Builder {
	if b.HasError() {
		return b
	}
	if r == nil {
		b.err = errors.New("recognizer is nil")
		return b
	}
	b.recognizer = r
	return b
}

// WithDecode sets the default decode settings used when a run passes none.
func (b *Builder) WithDecode(cfg postprocess.Config) *Builder {
	if b.HasError() {
		return b
	}
	b.decode = cfg
	return b
}

// WithConcurrency bounds the number of crops recognized at once.
func (b *Builder) WithConcurrency(n int) *Builder {
	if b.HasError() {
		return b
	}
	if n <= 0 {
		b.err = errors.Errorf("concurrency must be positive, got %d", n)
		return b
	}
	b.concurrency = n
	return b
}

// WithCache enables result caching. salt should identify the models in use so
// that results of different deployments never collide.
func (b *Builder) WithCache(c cache.Cache, ttl time.Duration, salt string) *Builder {
	if b.HasError() {
		return b
	}
	b.cache = c
	b.cacheTTL = ttl
	b.cacheSalt = salt
	return b
}

// WithProfiler records stage timings into p.
func (b *Builder) WithProfiler(p *profiler.Profiler) *Builder {
	if b.HasError() {
		return b
	}
	b.profiler = p
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(l logrus.FieldLogger) *Builder {
	if b.HasError() {
		return b
	}
	b.log = l
	return b
}

// HasError checks if the builder has errors.
func (b *Builder) HasError() bool {
	return b.err != nil
}

// Build builds the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.detector == nil {
		return nil, errors.New("detector not configured")
	}
	if b.recognizer == nil {
		return nil, errors.New("recognizer not configured")
	}
	if b.inputSize.X <= 0 || b.inputSize.Y <= 0 {
		return nil, errors.New("input size not configured")
	}

	log := b.log
	if log == nil {
		log = logrus.StandardLogger()
	}
	prof := b.profiler
	if prof == nil {
		prof = profiler.New(0)
	}

	return &Pipeline{
		detector:    b.detector,
		recognizer:  b.recognizer,
		inputSize:   b.inputSize,
		decode:      b.decode,
		concurrency: b.concurrency,
		cache:       b.cache,
		cacheTTL:    b.cacheTTL,
		cacheSalt:   b.cacheSalt,
		profiler:    prof,
		log:         log,
	}, nil
}

// MustBuild builds the pipeline and panics if there is an error.
func (b *Builder) MustBuild() *Pipeline {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}
