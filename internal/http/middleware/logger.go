package middleware

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
)

// Logger writes one structured entry per request with request_id, method,
// path, status and latency in milliseconds.
func Logger(logger *log.Logger) fiber.Handler {
	logger = logger.With("component", "http")

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		kv := []any{
			"request_id", RequestIDFromCtx(c),
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", float64(time.Since(start).Microseconds()) / 1000,
		}
		if status >= fiber.StatusInternalServerError {
			logger.Error("http_request", kv...)
		} else {
			logger.Info("http_request", kv...)
		}
		return err
	}
}
