package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assignment-api/internal/dto"
	"github.com/noah-isme/gema-assignment-api/internal/service"
	"github.com/noah-isme/gema-assignment-api/internal/utils"
)

// McqHandler wires teacher MCQ authoring and review routes.
type McqHandler struct {
	service   service.McqService
	lifecycle service.LifecycleService
	logger    zerolog.Logger
}

// NewMcqHandler constructs the handler.
func NewMcqHandler(service service.McqService, lifecycle service.LifecycleService, logger zerolog.Logger) *McqHandler {
	return &McqHandler{
		service:   service,
		lifecycle: lifecycle,
		logger:    logger.With().Str("component", "mcq_handler").Logger(),
	}
}

// Register attaches MCQ endpoints to the router group.
func (h *McqHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Post("/:id/publish", h.publish)
	router.Post("/:id/close", h.close)
	router.Get("/:id/submissions", h.submissions)
}

func (h *McqHandler) create(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	if teacherID == 0 {
		return unauthenticated(c)
	}

	var payload dto.McqAssignmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.service.Create(c.UserContext(), teacherID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "mcq assignment created", assignment)
}

func (h *McqHandler) get(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	if teacherID == 0 {
		return unauthenticated(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignment, err := h.service.Get(c.UserContext(), id, teacherID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "mcq assignment retrieved", assignment)
}

func (h *McqHandler) update(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	if teacherID == 0 {
		return unauthenticated(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.McqAssignmentUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.service.Update(c.UserContext(), id, teacherID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "mcq assignment updated", assignment)
}

func (h *McqHandler) submissions(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	if teacherID == 0 {
		return unauthenticated(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	summaries, err := h.service.ListSubmissions(c.UserContext(), id, teacherID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "mcq submissions retrieved", summaries)
}

func (h *McqHandler) publish(c *fiber.Ctx) error {
	return runTransition(c, h.logger, h.lifecycle.Publish, "mcq published")
}

func (h *McqHandler) close(c *fiber.Ctx) error {
	return runTransition(c, h.logger, h.lifecycle.Close, "mcq closed")
}

func (h *McqHandler) delete(c *fiber.Ctx) error {
	return runTransition(c, h.logger, h.lifecycle.Delete, "mcq deleted")
}
