package server

import (
	"context"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-alpr/images"
	"github.com/nvr-ai/go-alpr/logger"
	"github.com/nvr-ai/go-alpr/models/postprocess"
	"github.com/nvr-ai/go-alpr/profiler"
)

// FileField is the multipart field holding the uploaded image.
const FileField = "file"

// PredictResponse is the body of a successful POST /predict.
type PredictResponse struct {
	LicensePlates []string           `json:"license_plates"`
	Boxes         [][4]int           `json:"boxes"`
	Scores        []float32          `json:"scores"`
	TimingMS      map[string]float64 `json:"timing_ms"`
	Cached        bool               `json:"cached"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	UptimeSeconds float64                            `json:"uptime_s"`
	Operations    map[string]profiler.OperationStats `json:"operations"`
	Metrics       map[string]profiler.MetricStats    `json:"metrics"`
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) stats(c *fiber.Ctx) error {
	return c.JSON(StatsResponse{
		UptimeSeconds: s.profiler.Uptime().Seconds(),
		Operations:    s.profiler.Operations(),
		Metrics:       s.profiler.Metrics(),
	})
}

// predict recognizes the plates of an uploaded image. Decode parameters may
// be overridden per request with the mode, threshold and tolerance queries.
func (s *Server) predict(c *fiber.Ctx) error {
	cfg, err := s.decodeConfig(c)
	if err != nil {
		return s.fail(c, fiber.StatusBadRequest, "INVALID_PARAMETER", err)
	}

	file, err := c.FormFile(FileField)
	if err != nil {
		return s.fail(c, fiber.StatusBadRequest, "MISSING_FILE", errors.Errorf("multipart field %q is required", FileField))
	}
	f, err := file.Open()
	if err != nil {
		return s.fail(c, fiber.StatusBadRequest, "INVALID_FILE", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return s.fail(c, fiber.StatusBadRequest, "INVALID_FILE", err)
	}

	ctx := c.UserContext()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	logger.WithRequestID(ctx, s.log).WithFields(logger.Fields{
		"file_name": file.Filename,
		"file_size": file.Size,
		"mode":      cfg.Mode,
	}).Debug("processing predict request")

	res, err := s.recognizer.RunBytes(ctx, data, cfg)
	switch {
	case errors.Is(err, images.ErrEmptyImage), errors.Is(err, images.ErrInvalidImage):
		return s.fail(c, fiber.StatusBadRequest, "INVALID_IMAGE", err)
	case errors.Is(err, context.DeadlineExceeded):
		return s.fail(c, fiber.StatusGatewayTimeout, "TIMEOUT", err)
	case err != nil:
		return s.fail(c, fiber.StatusBadGateway, "INFERENCE_FAILED", err)
	}

	resp := PredictResponse{
		LicensePlates: res.Texts(),
		Boxes:         make([][4]int, len(res.Plates)),
		Scores:        make([]float32, len(res.Plates)),
		TimingMS:      res.Timings.Milliseconds(),
		Cached:        res.Cached,
	}
	for i, p := range res.Plates {
		resp.Boxes[i] = p.Box.Corners()
		resp.Scores[i] = p.Score
	}
	return c.JSON(resp)
}

// decodeConfig layers the query parameters over the pipeline defaults.
func (s *Server) decodeConfig(c *fiber.Ctx) (postprocess.Config, error) {
	cfg := s.recognizer.Decode()
	if s.cfg.Mode != "" {
		cfg.Mode = s.cfg.Mode
	}

	if m := c.Query("mode"); m != "" {
		cfg.Mode = postprocess.Mode(m)
	}
	for _, q := range []struct {
		name string
		dst  *float64
	}{
		{"threshold", &cfg.ConfidenceThreshold},
		{"tolerance", &cfg.OverlapTolerance},
	} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return cfg, errors.Errorf("%s must be a number, got %q", q.name, raw)
		}
		*q.dst = v
	}

	if err := s.validator.Struct(cfg); err != nil {
		return cfg, errors.Wrap(err, "invalid decode parameters")
	}
	return cfg, nil
}

func (s *Server) fail(c *fiber.Ctx, status int, code string, err error) error {
	id := requestIDOf(c)
	logger.WithRequestID(c.UserContext(), s.log).WithError(err).WithFields(logger.Fields{
		"code":   code,
		"status": status,
	}).Warn("request failed")

	return c.Status(status).JSON(ErrorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: id,
	})
}
