package pipeline

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-alpr/cache"
	"github.com/nvr-ai/go-alpr/images"
	"github.com/nvr-ai/go-alpr/logger"
	"github.com/nvr-ai/go-alpr/models/postprocess"
	"github.com/nvr-ai/go-alpr/profiler"
)

var model640 = image.Point{X: 640, Y: 640}

type fakeDetector struct {
	candidates []postprocess.Candidate
	err        error
	calls      atomic.Int32
	closed     bool
}

func (f *fakeDetector) Predict(context.Context, image.Image) (*tensor.Dense, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return postprocess.NewTensor(f.candidates), nil
}

func (f *fakeDetector) InputSize() image.Point { return model640 }

func (f *fakeDetector) Close() error {
	f.closed = true
	return nil
}

// sizeRecognizer "reads" a crop as its dimensions and tracks concurrency.
type sizeRecognizer struct {
	err      error
	delay    time.Duration
	calls    atomic.Int32
	inflight atomic.Int32
	mu       sync.Mutex
	peak     int32
}

func (r *sizeRecognizer) Predict(ctx context.Context, img image.Image) (string, error) {
	r.calls.Add(1)
	n := r.inflight.Add(1)
	defer r.inflight.Add(-1)

	r.mu.Lock()
	if n > r.peak {
		r.peak = n
	}
	r.mu.Unlock()

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if r.err != nil {
		return "", r.err
	}
	s := img.Bounds().Size()
	return fmt.Sprintf("%dx%d", s.X, s.Y), nil
}

func box(x1, y1, x2, y2, score float32) postprocess.Candidate {
	return postprocess.Candidate{
		XCenter: (x1 + x2) / 2, YCenter: (y1 + y2) / 2,
		Width: x2 - x1, Height: y2 - y1,
		Objectness: score,
	}
}

func newPipeline(t *testing.T, d *fakeDetector, r *sizeRecognizer) *Pipeline {
	p, err := NewBuilder().
		WithDetector(d).
		WithRecognizer(r).
		WithLogger(logger.Discard()).
		Build()
	require.NoError(t, err)
	return p
}

func TestRunBestBox(t *testing.T) {
	d := &fakeDetector{candidates: []postprocess.Candidate{
		box(100, 100, 200, 140, 0.3),
		box(300, 300, 400, 340, 0.8),
	}}
	r := &sizeRecognizer{}
	p := newPipeline(t, d, r)

	// 1280x640 doubles x only.
	res, err := p.Run(context.Background(), image.NewRGBA(image.Rect(0, 0, 1280, 640)), postprocess.Config{Mode: postprocess.ModeBest})
	require.NoError(t, err)
	require.Len(t, res.Plates, 1)
	assert.Equal(t, images.Rect{X1: 600, Y1: 300, X2: 800, Y2: 340}, res.Plates[0].Box)
	assert.Equal(t, "200x40", res.First())
	assert.Equal(t, float32(0.8), res.Plates[0].Score)
	assert.GreaterOrEqual(t, res.Timings.Total, res.Timings.Detect)
}

func TestRunTopBoxes(t *testing.T) {
	d := &fakeDetector{candidates: []postprocess.Candidate{
		box(10, 10, 50, 30, 0.6),
		box(300, 300, 400, 340, 0.9),
		box(302, 301, 401, 341, 0.85),
		box(500, 500, 520, 510, 0.01),
	}}
	r := &sizeRecognizer{}
	p := newPipeline(t, d, r)

	res, err := p.Run(context.Background(), image.NewRGBA(image.Rect(0, 0, 640, 640)), postprocess.Config{})
	require.NoError(t, err)
	assert.Equal(t, []string{"100x40", "40x20"}, res.Texts())
	assert.Equal(t, []images.Rect{
		{X1: 300, Y1: 300, X2: 400, Y2: 340},
		{X1: 10, Y1: 10, X2: 50, Y2: 30},
	}, res.Boxes())
	assert.Equal(t, int32(2), r.calls.Load())

	stats, ok := p.Profiler().Operation(profiler.StageDetect)
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.Count)
}

func TestRunNoPlates(t *testing.T) {
	d := &fakeDetector{candidates: []postprocess.Candidate{box(10, 10, 50, 30, 0.01)}}
	r := &sizeRecognizer{}
	p := newPipeline(t, d, r)

	res, err := p.Run(context.Background(), image.NewRGBA(image.Rect(0, 0, 640, 640)), postprocess.Config{})
	require.NoError(t, err)
	assert.NotNil(t, res.Plates)
	assert.Empty(t, res.Plates)
	assert.Equal(t, "", res.First())
	assert.Equal(t, int32(0), r.calls.Load())
}

func TestRunEmptyDetection(t *testing.T) {
	for _, mode := range []postprocess.Mode{postprocess.ModeTop, postprocess.ModeBest} {
		t.Run(string(mode), func(t *testing.T) {
			d := &fakeDetector{}
			r := &sizeRecognizer{}
			p := newPipeline(t, d, r)

			cfg := postprocess.DefaultConfig()
			cfg.Mode = mode
			res, err := p.Run(context.Background(), image.NewRGBA(image.Rect(0, 0, 640, 480)), cfg)
			require.NoError(t, err)
			assert.Empty(t, res.Plates)
			assert.Equal(t, int32(1), d.calls.Load())
			assert.Equal(t, int32(0), r.calls.Load())
		})
	}
}

func TestRunBoxOutsideImage(t *testing.T) {
	d := &fakeDetector{candidates: []postprocess.Candidate{box(700, 700, 760, 740, 0.9)}}
	r := &sizeRecognizer{}
	p := newPipeline(t, d, r)

	res, err := p.Run(context.Background(), image.NewRGBA(image.Rect(0, 0, 640, 640)), postprocess.Config{Mode: postprocess.ModeBest})
	require.NoError(t, err)
	require.Len(t, res.Plates, 1)
	assert.Equal(t, "", res.Plates[0].Text)
	assert.Equal(t, int32(0), r.calls.Load())
}

func TestRunErrors(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 640))

	p := newPipeline(t, &fakeDetector{err: errors.New("triton down")}, &sizeRecognizer{})
	_, err := p.Run(context.Background(), img, postprocess.Config{})
	assert.ErrorContains(t, err, "triton down")

	d := &fakeDetector{candidates: []postprocess.Candidate{box(10, 10, 50, 30, 0.6)}}
	p = newPipeline(t, d, &sizeRecognizer{err: errors.New("ocr down")})
	_, err = p.Run(context.Background(), img, postprocess.Config{})
	assert.ErrorContains(t, err, "ocr down")

	p = newPipeline(t, d, &sizeRecognizer{})
	_, err = p.Run(context.Background(), img, postprocess.Config{Mode: "all"})
	assert.Error(t, err)
}

func TestRunBoundedConcurrency(t *testing.T) {
	var candidates []postprocess.Candidate
	for i := 0; i < 8; i++ {
		x := float32(i * 70)
		candidates = append(candidates, box(x, 0, x+60, 30, 0.9-float32(i)*0.05))
	}
	d := &fakeDetector{candidates: candidates}
	r := &sizeRecognizer{delay: 5 * time.Millisecond}

	p, err := NewBuilder().
		WithDetector(d).
		WithRecognizer(r).
		WithConcurrency(2).
		WithDecode(postprocess.Config{Mode: postprocess.ModeTop, ConfidenceThreshold: 0.05}).
		WithLogger(logger.Discard()).
		Build()
	require.NoError(t, err)

	res, err := p.Run(context.Background(), image.NewRGBA(image.Rect(0, 0, 640, 640)), postprocess.Config{})
	require.NoError(t, err)
	assert.Len(t, res.Plates, 8)
	for _, text := range res.Texts() {
		assert.Equal(t, "60x30", text)
	}
	assert.LessOrEqual(t, r.peak, int32(2))
}

func TestRunBytesCaches(t *testing.T) {
	d := &fakeDetector{candidates: []postprocess.Candidate{box(10, 10, 50, 30, 0.6)}}
	r := &sizeRecognizer{}
	mem := cache.NewMemory()

	p, err := NewBuilder().
		WithDetector(d).
		WithRecognizer(r).
		WithCache(mem, time.Minute, "yolo/ocr").
		WithLogger(logger.Discard()).
		Build()
	require.NoError(t, err)

	data, err := images.EncodePNG(image.NewRGBA(image.Rect(0, 0, 640, 640)))
	require.NoError(t, err)

	first, err := p.RunBytes(context.Background(), data, postprocess.Config{})
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Greater(t, first.Timings.Decode, time.Duration(0))

	second, err := p.RunBytes(context.Background(), data, postprocess.Config{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Texts(), second.Texts())
	assert.Equal(t, int32(1), d.calls.Load())

	// Different decode settings miss the cache.
	_, err = p.RunBytes(context.Background(), data, postprocess.Config{Mode: postprocess.ModeBest})
	require.NoError(t, err)
	assert.Equal(t, int32(2), d.calls.Load())
	assert.Equal(t, 2, mem.Len())
}

func TestRunBytesInvalidImage(t *testing.T) {
	p := newPipeline(t, &fakeDetector{}, &sizeRecognizer{})
	_, err := p.RunBytes(context.Background(), []byte("not an image"), postprocess.Config{})
	assert.Error(t, err)
}

func TestBuilder(t *testing.T) {
	_, err := NewBuilder().WithRecognizer(&sizeRecognizer{}).Build()
	assert.EqualError(t, err, "detector not configured")

	_, err = NewBuilder().WithDetector(&fakeDetector{}).Build()
	assert.EqualError(t, err, "recognizer not configured")

	_, err = NewBuilder().WithDetector(nil).WithRecognizer(&sizeRecognizer{}).Build()
	assert.EqualError(t, err, "detector is nil")

	_, err = NewBuilder().WithDetector(&fakeDetector{}).WithConcurrency(0).WithRecognizer(&sizeRecognizer{}).Build()
	assert.Error(t, err)

	_, err = NewBuilder().WithInputSize(image.Point{}).Build()
	assert.Error(t, err)

	assert.Panics(t, func() { NewBuilder().MustBuild() })

	p := NewBuilder().
		WithInputSize(image.Point{X: 320, Y: 320}).
		WithDetector(&fakeDetector{}).
		WithRecognizer(&sizeRecognizer{}).
		MustBuild()
	assert.Equal(t, image.Point{X: 320, Y: 320}, p.inputSize)
	assert.Equal(t, postprocess.DefaultConfig(), p.Decode())
}

func TestClose(t *testing.T) {
	d := &fakeDetector{}
	p := newPipeline(t, d, &sizeRecognizer{})
	require.NoError(t, p.Close())
	assert.True(t, d.closed)
}
