package triton

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-alpr/images"
	"github.com/nvr-ai/go-alpr/inference"
)

// DetectorOptions configures a YOLO plate detector served by Triton.
type DetectorOptions struct {
	ClientOptions `yaml:",inline"`

	// InputSize is the model input (X = width, Y = height).
	InputSize image.Point `json:"input_size" yaml:"input_size"`
	// InputName is the image input, "images" for Ultralytics exports.
	InputName string `json:"input_name" yaml:"input_name"`
	// OutputName is the detection output, "output0" for Ultralytics exports.
	OutputName string `json:"output_name" yaml:"output_name"`
}

// DefaultDetectorOptions returns the settings of the stock plate detector.
func DefaultDetectorOptions() DetectorOptions {
	return DetectorOptions{
		ClientOptions: ClientOptions{
			URL:   "localhost:8991",
			Model: "yolo",
		},
		InputSize:  image.Point{X: 640, Y: 640},
		InputName:  "images",
		OutputName: "output0",
	}
}

// Detector sends preprocessed images to a YOLO model and returns its raw
// detection tensor.
type Detector struct {
	client *Client
	opts   DetectorOptions
}

var _ inference.Detector = (*Detector)(nil)

// NewDetector creates a detector using client.
func NewDetector(client *Client, opts DetectorOptions) (*Detector, error) {
	if client == nil {
		return nil, errors.New("triton client is required")
	}
	if opts.InputSize.X <= 0 || opts.InputSize.Y <= 0 {
		return nil, errors.Errorf("invalid input size %v", opts.InputSize)
	}
	if opts.InputName == "" || opts.OutputName == "" {
		return nil, errors.New("input and output names are required")
	}
	return &Detector{client: client, opts: opts}, nil
}

// InputSize returns the model input size the boxes are relative to.
func (d *Detector) InputSize() image.Point {
	return d.opts.InputSize
}

// Predict resizes img to the model input, infers and returns the output as a
// float32 tensor in the shape the server reported.
func (d *Detector) Predict(ctx context.Context, img image.Image) (*tensor.Dense, error) {
	chw, err := images.ToCHW(img, d.opts.InputSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to preprocess image")
	}

	resp, err := d.client.Infer(ctx, &InferRequest{
		Inputs: []InputTensor{{
			Name:     d.opts.InputName,
			Shape:    []int64{1, 3, int64(d.opts.InputSize.Y), int64(d.opts.InputSize.X)},
			Datatype: DatatypeFP32,
			Data:     chw,
		}},
		Outputs: []RequestedOutput{{Name: d.opts.OutputName}},
	})
	if err != nil {
		return nil, err
	}

	out, err := resp.Output(d.opts.OutputName)
	if err != nil {
		return nil, err
	}
	data, err := out.Float32s()
	if err != nil {
		return nil, err
	}

	return tensor.New(tensor.WithShape(out.Dims()...), tensor.WithBacking(data)), nil
}
