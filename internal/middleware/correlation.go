package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/noah-isme/gema-assignment-api/internal/observability"
)

const correlationLocal = "correlation_id"

// CorrelationID reuses the caller's X-Correlation-ID (or X-Request-ID) and
// mints one otherwise. The id is echoed back and stored on the user context so
// outbound gateway calls and notifications carry it.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(observability.CorrelationHeader))
		if id == "" {
			id = strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		}
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		c.Locals(correlationLocal, id)
		c.Set(observability.CorrelationHeader, id)
		c.SetUserContext(observability.WithCorrelationID(c.UserContext(), id))

		return c.Next()
	}
}

// GetCorrelationID returns the correlation id bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(correlationLocal).(string); ok && id != "" {
		return id
	}
	return observability.CorrelationID(c.UserContext())
}
