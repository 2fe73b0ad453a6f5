package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/gema-assignment-api/internal/observability"
	"github.com/noah-isme/gema-assignment-api/internal/utils"
)

// RateLimit throttles each caller to max requests per window on the route it
// guards. Callers are keyed by token user id, falling back to the client IP.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			caller := c.IP()
			if id, ok := c.Locals(localUserID).(uint); ok && id > 0 {
				caller = "user:" + strconv.FormatUint(uint64(id), 10)
			}
			return fmt.Sprintf("%s:%s:%s", identifier, c.Route().Path, caller)
		},
		LimitReached: func(c *fiber.Ctx) error {
			observability.SubmissionAdmissions().WithLabelValues(identifier, "rate_limited").Inc()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds())))
			return utils.SendError(c, fiber.StatusTooManyRequests, "too many submissions, try again later")
		},
	})
}
