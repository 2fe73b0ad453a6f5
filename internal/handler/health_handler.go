package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker"

	"github.com/noah-isme/gema-assignment-api/internal/config"
	"github.com/noah-isme/gema-assignment-api/internal/gateway"
	"github.com/noah-isme/gema-assignment-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Service      string            `json:"service"`
	Environment  string            `json:"environment"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthCheck reports liveness plus the breaker state of each sibling
// service. An open breaker marks the service degraded but still answers 200,
// since reads that need no sibling keep working.
func HealthCheck(cfg config.Config, breakers ...*gateway.Breaker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		for _, breaker := range breakers {
			if breaker == nil {
				continue
			}
			if payload.Dependencies == nil {
				payload.Dependencies = make(map[string]string, len(breakers))
			}
			state := breaker.State()
			payload.Dependencies[breaker.Name()] = state.String()
			if state == gobreaker.StateOpen {
				payload.Status = "degraded"
			}
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
