package triton

import (
	"context"
	"encoding/base64"
	"image"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-alpr/images"
	"github.com/nvr-ai/go-alpr/inference"
)

// RecognizerOptions configures an OCR model served by Triton, for example a
// Python backend wrapping GOT-OCR.
type RecognizerOptions struct {
	ClientOptions `yaml:",inline"`

	// InputName receives the base64 PNG crop as a BYTES tensor of shape [1].
	InputName string `json:"input_name" yaml:"input_name"`
	// OutputName holds the recognized text as a BYTES tensor.
	OutputName string `json:"output_name" yaml:"output_name"`
}

// DefaultRecognizerOptions returns the settings of the stock OCR model.
func DefaultRecognizerOptions() RecognizerOptions {
	return RecognizerOptions{
		ClientOptions: ClientOptions{
			URL:   "localhost:8991",
			Model: "ocr",
		},
		InputName:  "image",
		OutputName: "text",
	}
}

// Recognizer reads plate text from crops.
type Recognizer struct {
	client *Client
	opts   RecognizerOptions
}

var _ inference.Recognizer = (*Recognizer)(nil)

// NewRecognizer creates a recognizer using client.
func NewRecognizer(client *Client, opts RecognizerOptions) (*Recognizer, error) {
	if client == nil {
		return nil, errors.New("triton client is required")
	}
	if opts.InputName == "" || opts.OutputName == "" {
		return nil, errors.New("input and output names are required")
	}
	return &Recognizer{client: client, opts: opts}, nil
}

// Predict returns the first text element of the output, trimmed.
func (r *Recognizer) Predict(ctx context.Context, img image.Image) (string, error) {
	png, err := images.EncodePNG(img)
	if err != nil {
		return "", err
	}

	resp, err := r.client.Infer(ctx, &InferRequest{
		Inputs: []InputTensor{{
			Name:     r.opts.InputName,
			Shape:    []int64{1},
			Datatype: DatatypeBytes,
			Data:     []string{base64.StdEncoding.EncodeToString(png)},
		}},
		Outputs: []RequestedOutput{{Name: r.opts.OutputName}},
	})
	if err != nil {
		return "", err
	}

	out, err := resp.Output(r.opts.OutputName)
	if err != nil {
		return "", err
	}
	texts, err := out.Strings()
	if err != nil {
		return "", err
	}
	if len(texts) == 0 {
		return "", nil
	}
	return strings.TrimSpace(texts[0]), nil
}
