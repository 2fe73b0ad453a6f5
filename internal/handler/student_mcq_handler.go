package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assignment-api/internal/dto"
	"github.com/noah-isme/gema-assignment-api/internal/service"
	"github.com/noah-isme/gema-assignment-api/internal/utils"
)

// StudentMcqHandler lets students take and review MCQ assignments.
type StudentMcqHandler struct {
	service     service.StudentMcqService
	submitGuard fiber.Handler
	logger      zerolog.Logger
}

// NewStudentMcqHandler constructs the handler.
func NewStudentMcqHandler(service service.StudentMcqService, submitGuard fiber.Handler, logger zerolog.Logger) *StudentMcqHandler {
	return &StudentMcqHandler{
		service:     service,
		submitGuard: submitGuard,
		logger:      logger.With().Str("component", "student_mcq_handler").Logger(),
	}
}

// Register attaches student MCQ routes.
func (h *StudentMcqHandler) Register(router fiber.Router) {
	router.Get("/:id", h.get)
	router.Post("/:id/submit", withGuard(h.submitGuard, h.submit)...)
	router.Get("/:id/result", h.result)
}

func (h *StudentMcqHandler) get(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return unauthenticated(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	view, err := h.service.Get(c.UserContext(), id, studentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "mcq assignment retrieved", view)
}

func (h *StudentMcqHandler) submit(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return unauthenticated(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.McqSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Submit(c.UserContext(), id, studentID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "mcq submitted", result)
}

func (h *StudentMcqHandler) result(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return unauthenticated(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.Result(c.UserContext(), id, studentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "mcq result retrieved", result)
}
