package onnx

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-alpr/images"
	"github.com/nvr-ai/go-alpr/inference"
)

// Options configures a Detector.
type Options struct {
	// ModelPath is the exported plate detector.
	ModelPath string `json:"model_path" yaml:"model_path" validate:"required"`
	// SharedLibraryPath overrides DefaultSharedLibraryPath.
	SharedLibraryPath string `json:"shared_library_path" yaml:"shared_library_path"`

	Provider ProviderOptions `json:"provider" yaml:"provider"`

	// InputSize is the model input (X = width, Y = height).
	InputSize  image.Point `json:"input_size" yaml:"input_size"`
	InputName  string      `json:"input_name" yaml:"input_name"`
	OutputName string      `json:"output_name" yaml:"output_name"`

	// OutputShape is the fixed output shape, e.g. [1, 25200, 6]. When empty
	// it is read from the model, which then must not have dynamic dimensions.
	OutputShape []int64 `json:"output_shape" yaml:"output_shape"`
	// Transposed marks (1, 6, N) outputs, which are transposed to (1, N, 6).
	Transposed bool `json:"transposed" yaml:"transposed"`

	// IntraOpThreads bounds the threads used inside one operator; zero lets
	// the runtime decide.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads" validate:"gte=0"`
}

// DefaultOptions returns the settings of the stock YOLOv5 plate detector.
func DefaultOptions() Options {
	return Options{
		Provider:    ProviderOptions{Backend: ProviderCPU},
		InputSize:   image.Point{X: 640, Y: 640},
		InputName:   "images",
		OutputName:  "output0",
		OutputShape: []int64{1, 25200, 6},
	}
}

// Detector runs the plate detector in process. Runs are serialized since the
// session binds one preallocated input and output tensor.
type Detector struct {
	mu      sync.Mutex
	opts    Options
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	log     logrus.FieldLogger
}

var _ inference.Detector = (*Detector)(nil)

// NewDetector loads the model and allocates its tensors.
//
// Arguments:
//   - opts: The detector options.
//   - log: The logger to trace runs to.
//
// Returns:
//   - *Detector: The detector; Close releases its native resources.
//   - error: An error if the runtime or model cannot be loaded.
func NewDetector(opts Options, log logrus.FieldLogger) (*Detector, error) {
	if opts.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	if opts.InputSize.X <= 0 || opts.InputSize.Y <= 0 {
		return nil, errors.Errorf("invalid input size %v", opts.InputSize)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	if err := initEnvironment(opts.SharedLibraryPath); err != nil {
		return nil, err
	}

	outputShape := opts.OutputShape
	if len(outputShape) == 0 {
		shape, err := modelOutputShape(opts.ModelPath, opts.OutputName)
		if err != nil {
			return nil, err
		}
		outputShape = shape
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(opts.InputSize.Y), int64(opts.InputSize.X)))
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(outputShape...))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	session, err := newSession(opts, input, output)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}

	d := &Detector{
		opts:    opts,
		session: session,
		input:   input,
		output:  output,
		log:     log.WithFields(logrus.Fields{"model": opts.ModelPath, "provider": opts.Provider.Backend}),
	}
	d.log.Info("onnx detector ready")
	return d, nil
}

func newSession(opts Options, input, output *ort.Tensor[float32]) (*ort.AdvancedSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
		return nil, errors.Wrap(err, "error setting intra-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return nil, errors.Wrap(err, "error setting graph optimization level")
	}
	if err := opts.Provider.appendTo(options); err != nil {
		return nil, err
	}

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{opts.InputName},
		[]string{opts.OutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		options,
	)
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session")
	}
	return session, nil
}

// modelOutputShape reads the static shape of the named output.
func modelOutputShape(modelPath, name string) ([]int64, error) {
	_, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading model info from %s", modelPath)
	}
	for _, o := range outputs {
		if o.Name != name {
			continue
		}
		for _, d := range o.Dimensions {
			if d <= 0 {
				return nil, errors.Errorf("output %q has dynamic shape %v, set output_shape", name, o.Dimensions)
			}
		}
		return []int64(o.Dimensions), nil
	}
	return nil, errors.Errorf("model %s has no output %q", modelPath, name)
}

// InputSize returns the model input size the boxes are relative to.
func (d *Detector) InputSize() image.Point {
	return d.opts.InputSize
}

// Predict runs the model on img and returns a copy of the detection output.
func (d *Detector) Predict(ctx context.Context, img image.Image) (*tensor.Dense, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil, errors.New("detector is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := images.ToCHWInto(img, d.opts.InputSize, d.input.GetData()); err != nil {
		return nil, errors.Wrap(err, "failed to preprocess image")
	}

	start := time.Now()
	if err := d.session.Run(); err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}
	d.log.WithField("elapsed", time.Since(start)).Debug("onnx run")

	shape := d.output.GetShape()
	dims := make([]int, len(shape))
	for i, v := range shape {
		dims[i] = int(v)
	}
	return detections(d.output.GetData(), dims, d.opts.Transposed)
}

// Close releases the session and its tensors.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.input != nil {
		d.input.Destroy()
		d.input = nil
	}
	if d.output != nil {
		d.output.Destroy()
		d.output = nil
	}
	if d.session != nil {
		err := d.session.Destroy()
		d.session = nil
		if err != nil {
			return errors.Wrap(err, "error destroying ORT session")
		}
	}
	return nil
}

// detections copies a raw output buffer into a (1, N, C) tensor. Transposed
// buffers are laid out (1, C, N).
func detections(data []float32, shape []int, transposed bool) (*tensor.Dense, error) {
	if len(shape) != 3 {
		return nil, errors.Errorf("expected a rank 3 output, got shape %v", shape)
	}
	if n := shape[0] * shape[1] * shape[2]; n != len(data) {
		return nil, errors.Errorf("output holds %d values, shape %v needs %d", len(data), shape, n)
	}

	backing := make([]float32, len(data))
	copy(backing, data)
	t := tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing))
	if !transposed {
		return t, nil
	}

	if err := t.T(0, 2, 1); err != nil {
		return nil, errors.Wrap(err, "failed to transpose output")
	}
	if err := t.Transpose(); err != nil {
		return nil, errors.Wrap(err, "failed to transpose output")
	}
	return t, nil
}
