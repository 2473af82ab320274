// Package triton - Triton Inference Server client speaking the KServe v2 HTTP/REST protocol.
package triton

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotReady is returned by Ready when the server or the model is not serving.
var ErrNotReady = errors.New("triton model not ready")

// ClientOptions configures a Client.
type ClientOptions struct {
	// URL of the server. A bare host:port is treated as http://host:port.
	URL string `json:"url" yaml:"url" validate:"required"`
	// Model is the model name in the repository.
	Model string `json:"model" yaml:"model" validate:"required"`
	// Version pins a model version; empty lets the server choose.
	Version string `json:"version" yaml:"version"`
	// Timeout bounds every request. Zero means no client side timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// Client calls one model on a Triton server.
type Client struct {
	base    *url.URL
	model   string
	version string
	http    *http.Client
	log     logrus.FieldLogger
}

// NewClient creates a client for opts.Model.
//
// Arguments:
//   - opts: The client options.
//   - httpClient: Optional HTTP client; a new one with opts.Timeout is used when nil.
//   - log: The logger requests are traced to.
//
// Returns:
//   - *Client: The client.
//   - error: An error if the URL or model is invalid.
func NewClient(opts ClientOptions, httpClient *http.Client, log logrus.FieldLogger) (*Client, error) {
	if opts.Model == "" {
		return nil, errors.New("triton model name is required")
	}

	raw := opts.URL
	if raw == "" {
		return nil, errors.New("triton url is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	base, err := url.Parse(strings.TrimSuffix(raw, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid triton url %q", opts.URL)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Client{
		base:    base,
		model:   opts.Model,
		version: opts.Version,
		http:    httpClient,
		log:     log.WithFields(logrus.Fields{"model": opts.Model, "server": base.Host}),
	}, nil
}

// Model returns the model name the client targets.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) modelPath() string {
	p := "/v2/models/" + url.PathEscape(c.model)
	if c.version != "" {
		p += "/versions/" + url.PathEscape(c.version)
	}
	return p
}

// Ready checks that the server is live and the model is loaded.
func (c *Client) Ready(ctx context.Context) error {
	for _, p := range []string{"/v2/health/ready", c.modelPath() + "/ready"} {
		resp, err := c.do(ctx, http.MethodGet, p, nil)
		if err != nil {
			return err
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return errors.Wrapf(ErrNotReady, "%s returned status %d", p, resp.StatusCode)
		}
	}
	return nil
}

// Infer runs one inference request.
func (c *Client) Infer(ctx context.Context, req *InferRequest) (*InferResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode infer request")
	}

	start := time.Now()
	resp, err := c.do(ctx, http.MethodPost, c.modelPath()+"/infer", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read infer response")
	}

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		if json.Unmarshal(payload, &e) == nil && e.Error != "" {
			return nil, errors.Errorf("triton infer failed with status %d: %s", resp.StatusCode, e.Error)
		}
		return nil, errors.Errorf("triton infer failed with status %d", resp.StatusCode)
	}

	var out InferResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, errors.Wrap(err, "failed to decode infer response")
	}

	c.log.WithField("elapsed", time.Since(start)).Debug("triton infer")
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build triton request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, u.Path)
	}
	return resp, nil
}
