// Package server exposes the plate pipeline over HTTP.
package server

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-alpr/config"
	"github.com/nvr-ai/go-alpr/models/postprocess"
	"github.com/nvr-ai/go-alpr/pipeline"
	"github.com/nvr-ai/go-alpr/profiler"
)

// Recognizer runs the plate pipeline on encoded image bytes.
type Recognizer interface {
	RunBytes(ctx context.Context, data []byte, cfg postprocess.Config) (*pipeline.Result, error)
	Decode() postprocess.Config
}

// Server serves the recognition API.
type Server struct {
	app        *fiber.App
	cfg        config.Server
	recognizer Recognizer
	validator  *validator.Validate
	profiler   *profiler.Profiler
	log        logrus.FieldLogger
}

// Option configures a Server.
type Option func(*Server)

// WithValidator sets the validator for request parameters.
func WithValidator(v *validator.Validate) Option {
	return func(s *Server) {
		s.validator = v
	}
}

// WithLogger sets the request logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithProfiler exposes p on GET /stats.
func WithProfiler(p *profiler.Profiler) Option {
	return func(s *Server) {
		s.profiler = p
	}
}

// NewFiber creates the fiber app with the jsoniter codec.
func NewFiber(cfg config.Server) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               "go-alpr",
		BodyLimit:             cfg.BodyLimitMB * 1024 * 1024,
		StrictRouting:         true,
		CaseSensitive:         true,
		DisableStartupMessage: true,
		JSONEncoder:           jsoniter.Marshal,
		JSONDecoder:           jsoniter.Unmarshal,
	})
}

// New creates a server around r and registers its routes.
//
// Arguments:
//   - cfg: The server section of the configuration.
//   - r: The pipeline requests are run through.
//   - opts: Optional validator, logger and profiler.
//
// Returns:
//   - *Server: The server, not yet listening.
//   - error: An error if r is nil.
func New(cfg config.Server, r Recognizer, opts ...Option) (*Server, error) {
	if r == nil {
		return nil, errors.New("recognizer is required")
	}

	s := &Server{
		app:        NewFiber(cfg),
		cfg:        cfg,
		recognizer: r,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = config.NewValidator()
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.app.Use(s.requestID, s.logRequests, recover.New())

	s.app.Get("/health", s.health)
	s.app.Post("/predict", s.predict)
	if s.profiler != nil {
		s.app.Get("/stats", s.stats)
	}
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens on the configured address until Shutdown.
func (s *Server) Run() error {
	s.log.WithField("address", s.cfg.Address).Info("listening")
	return s.app.Listen(s.cfg.Address)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
