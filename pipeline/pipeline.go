// Package pipeline - Detect, decode, crop and recognize license plates in one image.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-alpr/cache"
	"github.com/nvr-ai/go-alpr/images"
	"github.com/nvr-ai/go-alpr/inference"
	"github.com/nvr-ai/go-alpr/models/postprocess"
	"github.com/nvr-ai/go-alpr/profiler"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CachePrefix namespaces the result keys.
const CachePrefix = "alpr:result"

// Pipeline calls the detector, decodes its output into boxes, crops each box
// and recognizes the crops concurrently. Build one with NewBuilder; it is safe
// for concurrent use.
type Pipeline struct {
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
}

// Decode returns the default decode settings.
func (p *Pipeline) Decode() postprocess.Config {
	return p.decode
}

// Profiler returns the profiler stage timings are recorded to.
func (p *Pipeline) Profiler() *profiler.Profiler {
	return p.profiler
}

// RunBytes decodes an encoded image and runs it, consulting the cache when
// one is configured.
//
// Arguments:
//   - ctx: Bounds the inference calls.
//   - data: A JPEG, PNG or WebP image.
//   - cfg: The decode settings; the zero value uses the pipeline default.
//
// Returns:
//   - *Result: The plates found, possibly none.
//   - error: An error if the image cannot be decoded or inference fails.
func (p *Pipeline) RunBytes(ctx context.Context, data []byte, cfg postprocess.Config) (*Result, error) {
	cfg = p.resolve(cfg)

	var key string
	if p.cache != nil {
		key = cache.Key(CachePrefix, data, p.cacheSalt, string(cfg.Mode),
			fmt.Sprint(cfg.ConfidenceThreshold), fmt.Sprint(cfg.OverlapTolerance))
		if res, ok := p.cached(ctx, key); ok {
			return res, nil
		}
	}

	start := time.Now()
	img, meta, err := images.Decode(data)
	if err != nil {
		return nil, err
	}
	decodeTime := time.Since(start)
	p.profiler.RecordOperation(profiler.StageDecode, decodeTime)
	p.log.WithFields(logrus.Fields{
		"format": meta.Format,
		"width":  meta.Width,
		"height": meta.Height,
	}).Debug("decoded image")

	res, err := p.Run(ctx, img, cfg)
	if err != nil {
		return nil, err
	}
	res.Timings.Decode = decodeTime
	res.Timings.Total += decodeTime

	if p.cache != nil {
		p.store(ctx, key, res)
	}
	return res, nil
}

// Run recognizes the plates of a decoded image.
func (p *Pipeline) Run(ctx context.Context, img image.Image, cfg postprocess.Config) (*Result, error) {
	cfg = p.resolve(cfg)
	start := time.Now()

	detections, timings, err := p.detect(ctx, img, cfg)
	if err != nil {
		return nil, err
	}

	recognizeStart := time.Now()
	plates, err := p.recognize(ctx, img, detections)
	if err != nil {
		return nil, err
	}
	timings.Recognize = time.Since(recognizeStart)
	timings.Total = time.Since(start)

	p.profiler.RecordOperation(profiler.StageRecognize, timings.Recognize)
	p.profiler.RecordOperation(profiler.StageTotal, timings.Total)
	p.profiler.RecordMetric("plates", float64(len(plates)))

	return &Result{Plates: plates, Timings: timings}, nil
}

// Detect runs only the detector and decoder.
func (p *Pipeline) Detect(ctx context.Context, img image.Image, cfg postprocess.Config) ([]postprocess.Detection, error) {
	detections, _, err := p.detect(ctx, img, p.resolve(cfg))
	return detections, err
}

func (p *Pipeline) detect(ctx context.Context, img image.Image, cfg postprocess.Config) ([]postprocess.Detection, Timings, error) {
	var timings Timings

	start := time.Now()
	out, err := p.detector.Predict(ctx, img)
	if err != nil {
		return nil, timings, errors.Wrap(err, "detector")
	}
	timings.Detect = time.Since(start)
	p.profiler.RecordOperation(profiler.StageDetect, timings.Detect)

	start = time.Now()
	candidates, err := postprocess.CandidatesFromTensor(out)
	if err != nil {
		return nil, timings, err
	}
	original := img.Bounds().Size()
	detections, err := cfg.Apply(candidates, original, p.inputSize)
	if err != nil {
		return nil, timings, err
	}
	timings.Postprocess = time.Since(start)
	p.profiler.RecordOperation(profiler.StagePost, timings.Postprocess)

	p.log.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"detections": len(detections),
		"mode":       cfg.Mode,
	}).Debug("decoded detections")
	return detections, timings, nil
}

// recognize reads every detection. Boxes are clipped to the image; a box
// with no area left keeps an empty text.
func (p *Pipeline) recognize(ctx context.Context, img image.Image, detections []postprocess.Detection) ([]Plate, error) {
	plates := make([]Plate, len(detections))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, d := range detections {
		plates[i] = Plate{Box: d.Box, Score: d.Score}

		crop, err := images.Crop(img, d.Box)
		if errors.Is(err, images.ErrEmptyCrop) {
			p.log.WithField("box", d.Box.String()).Debug("skipping box outside the image")
			continue
		}
		if err != nil {
			_ = g.Wait()
			return nil, err
		}

		g.Go(func() error {
			text, err := p.recognizer.Predict(gctx, crop)
			if err != nil {
				return errors.Wrapf(err, "recognizer on box %s", d.Box)
			}
			plates[i].Text = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return plates, nil
}

func (p *Pipeline) resolve(cfg postprocess.Config) postprocess.Config {
	if cfg == (postprocess.Config{}) {
		return p.decode
	}
	return cfg
}

func (p *Pipeline) cached(ctx context.Context, key string) (*Result, bool) {
	data, err := p.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			p.log.WithError(err).Warn("cache lookup failed")
		}
		return nil, false
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		p.log.WithError(err).Warn("discarding unreadable cache entry")
		return nil, false
	}
	res.Cached = true
	return &res, true
}

func (p *Pipeline) store(ctx context.Context, key string, res *Result) {
	data, err := json.Marshal(res)
	if err != nil {
		p.log.WithError(err).Warn("failed to encode result for cache")
		return
	}
	if err := p.cache.Set(ctx, key, data, p.cacheTTL); err != nil {
		p.log.WithError(err).Warn("failed to cache result")
	}
}

// Close closes the detector and recognizer when they hold resources.
func (p *Pipeline) Close() error {
	errDetector := inference.Close(p.detector)
	errRecognizer := inference.Close(p.recognizer)
	if errDetector != nil {
		return errDetector
	}
	return errRecognizer
}
