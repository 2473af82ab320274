// Package gemini - Plate text recognition with a Gemini vision model.
package gemini

import (
	"context"
	"image"
	"strings"
	"unicode"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/nvr-ai/go-alpr/images"
	"github.com/nvr-ai/go-alpr/inference"
)

// DefaultPrompt asks for the bare plate text.
const DefaultPrompt = "This image is a cropped vehicle license plate. " +
	"Reply with the plate characters only, exactly as printed, without spaces or punctuation. " +
	"Reply NONE if no plate is readable."

// ErrNoResponse is returned when the model produced no text part.
var ErrNoResponse = errors.New("no response from Gemini API")

// Options configures the recognizer.
type Options struct {
	APIKey string `json:"-" yaml:"api_key" validate:"required"`
	Model  string `json:"model" yaml:"model"`
	Prompt string `json:"prompt" yaml:"prompt"`
}

// DefaultOptions returns the model and prompt used when none are configured.
func DefaultOptions() Options {
	return Options{
		Model:  "gemini-1.5-flash",
		Prompt: DefaultPrompt,
	}
}

// generator is the part of *genai.GenerativeModel the recognizer uses.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Recognizer reads plates by prompting a Gemini model with the PNG crop.
type Recognizer struct {
	client *genai.Client
	model  generator
	prompt string
}

var _ inference.Recognizer = (*Recognizer)(nil)

// NewRecognizer creates the Gemini client and model.
func NewRecognizer(ctx context.Context, opts Options) (*Recognizer, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	defaults := DefaultOptions()
	if opts.Model == "" {
		opts.Model = defaults.Model
	}
	if opts.Prompt == "" {
		opts.Prompt = defaults.Prompt
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gemini client")
	}

	model := client.GenerativeModel(opts.Model)
	model.SetTemperature(0)

	return &Recognizer{client: client, model: model, prompt: opts.Prompt}, nil
}

// Predict returns the cleaned plate text, or "" when the model saw none.
func (r *Recognizer) Predict(ctx context.Context, img image.Image) (string, error) {
	png, err := images.EncodePNG(img)
	if err != nil {
		return "", err
	}

	res, err := r.model.GenerateContent(ctx, genai.Text(r.prompt), genai.ImageData("png", png))
	if err != nil {
		return "", errors.Wrap(err, "gemini generate content")
	}

	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil ||
		len(res.Candidates[0].Content.Parts) == 0 {
		return "", ErrNoResponse
	}

	var b strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("unexpected response format from Gemini API")
	}

	return CleanPlate(b.String()), nil
}

// Close releases the client.
func (r *Recognizer) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// CleanPlate reduces a free-form model reply to plate characters: the first
// non-empty line with quotes, code fences and separators removed. The middle
// dot used on Chinese plates is kept. A NONE reply becomes "".
func CleanPlate(reply string) string {
	var line string
	for _, l := range strings.Split(reply, "\n") {
		l = strings.TrimSpace(strings.Trim(strings.TrimSpace(l), "`\"'"))
		if l != "" {
			line = l
			break
		}
	}
	if strings.EqualFold(line, "none") {
		return ""
	}

	var b strings.Builder
	for _, r := range line {
		switch {
		case r == '·':
			b.WriteRune(r)
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}
