package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-alpr/logger"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// requestID reuses the caller's id or assigns a new one, and stores it in the
// user context for the pipeline logs.
func (s *Server) requestID(c *fiber.Ctx) error {
	id := c.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}

	c.Locals(RequestIDHeader, id)
	c.Set(RequestIDHeader, id)
	c.SetUserContext(context.WithValue(c.UserContext(), logger.RequestIDKey, id))

	return c.Next()
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		// The error handler has not written the response yet.
		status = fiber.StatusInternalServerError
		var ferr *fiber.Error
		if errors.As(err, &ferr) {
			status = ferr.Code
		}
	}
	entry := logger.WithRequestID(c.UserContext(), s.log).WithFields(logger.Fields{
		"method":     c.Method(),
		"path":       c.Path(),
		"status":     status,
		"latency_ms": time.Since(start).Milliseconds(),
		"ip":         c.IP(),
	})

	switch {
	case status >= fiber.StatusInternalServerError:
		entry.Error("server error")
	case status >= fiber.StatusBadRequest:
		entry.Warn("client error")
	default:
		entry.Info("success")
	}
	return err
}

func requestIDOf(c *fiber.Ctx) string {
	id, _ := c.Locals(RequestIDHeader).(string)
	return id
}
