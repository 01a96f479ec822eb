package middleware

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
)

// Logger writes one access log entry per request through l.
// Entries carry request_id, method, path, status and latency in milliseconds.
// 5xx responses log at error level, 4xx at warn.
func Logger(l *log.Logger) fiber.Handler {
	l = l.With("component", "http")
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		rid, _ := c.Locals(RequestIDLocalKey).(string)
		status := statusOf(c, err)
		keyvals := []any{
			"request_id", rid,
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", float64(time.Since(start).Microseconds()) / 1000,
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			l.Error("http_request", keyvals...)
		case status >= fiber.StatusBadRequest:
			l.Warn("http_request", keyvals...)
		default:
			l.Info("http_request", keyvals...)
		}
		return err
	}
}

// statusOf returns the status the client will see. Errors returned up the
// chain are rendered later by the app's ErrorHandler, so the response status is
// not final yet when they pass through middleware.
func statusOf(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}
