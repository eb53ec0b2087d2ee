package middleware

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"tumourscan/internal/logger"
)

// Logger logs each HTTP request as one JSON line with
// request_id, method, path, status and latency (milliseconds).
func Logger(log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		rid := RequestIDFrom(c)
		status := responseStatus(c, err)

		entry := log.WithFields(logrus.Fields{
			"request_id": rid,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency":    float64(time.Since(start).Microseconds()) / 1000,
		})
		if u := CurrentUser(c); u != nil {
			entry = entry.WithField("user_id", u.ID)
		}
		if ierr, ok := c.Locals(ErrorLocalKey).(error); ok {
			entry = entry.WithError(ierr)
		} else if err != nil {
			entry = entry.WithError(err)
		}
		if status >= fiber.StatusInternalServerError {
			entry.Error("request")
		} else {
			entry.Info("request")
		}

		return err
	}
}

// LoggerWithWriter is Logger backed by a fresh JSON logger on w.
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	return Logger(logger.New(w, loc, "info"))
}
