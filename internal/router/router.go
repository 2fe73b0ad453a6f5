package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-assignment-api/internal/config"
	"github.com/noah-isme/gema-assignment-api/internal/gateway"
	"github.com/noah-isme/gema-assignment-api/internal/handler"
	"github.com/noah-isme/gema-assignment-api/internal/middleware"
	"github.com/noah-isme/gema-assignment-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssignmentHandler        *handler.AssignmentHandler
	SubmissionHandler        *handler.SubmissionHandler
	McqHandler               *handler.McqHandler
	StudentAssignmentHandler *handler.StudentAssignmentHandler
	StudentMcqHandler        *handler.StudentMcqHandler
	JWTMiddleware            fiber.Handler
	Breakers                 []*gateway.Breaker
}

// Role names carried in the bearer token.
const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Breakers...))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	teacher := api.Group("/teacher", jwtMiddleware, middleware.RequireRole(RoleTeacher, RoleAdmin))
	if deps.AssignmentHandler != nil {
		assignments := teacher.Group("/assignments")
		deps.AssignmentHandler.Register(assignments)

		if deps.SubmissionHandler != nil {
			deps.SubmissionHandler.Register(assignments)
		}
	}
	if deps.McqHandler != nil {
		deps.McqHandler.Register(teacher.Group("/mcq"))
	}

	student := api.Group("/student", jwtMiddleware, middleware.RequireRole(RoleStudent))
	if deps.StudentAssignmentHandler != nil {
		deps.StudentAssignmentHandler.Register(student.Group("/assignments"))
	}
	if deps.StudentMcqHandler != nil {
		deps.StudentMcqHandler.Register(student.Group("/mcq"))
	}
}
