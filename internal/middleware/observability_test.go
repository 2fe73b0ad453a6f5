package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestObservabilityLogsRouteTemplate(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(CorrelationID())
	app.Use(Observability(zerolog.New(&buf)))
	app.Get("/api/v1/teacher/assignments/:id", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(4))
		return fiber.ErrNotFound
	})
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/teacher/assignments/77", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "/api/v1/teacher/assignments/:id", entry["route"])
	require.Equal(t, float64(404), entry["status"])
	require.Equal(t, float64(4), entry["user_id"])
	require.Equal(t, "warn", entry["level"])
	require.NotEmpty(t, entry["correlation_id"])

	buf.Reset()
	_, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Zero(t, buf.Len())
}
