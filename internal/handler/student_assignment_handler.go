package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assignment-api/internal/dto"
	"github.com/noah-isme/gema-assignment-api/internal/service"
	"github.com/noah-isme/gema-assignment-api/internal/utils"
)

// StudentAssignmentHandler serves the student's assignment list and TEXT/FILE submissions.
type StudentAssignmentHandler struct {
	service     service.StudentAssignmentService
	submitGuard fiber.Handler
	logger      zerolog.Logger
}

// NewStudentAssignmentHandler constructs the handler. submitGuard, when set,
// runs in front of the submission routes only.
func NewStudentAssignmentHandler(service service.StudentAssignmentService, submitGuard fiber.Handler, logger zerolog.Logger) *StudentAssignmentHandler {
	return &StudentAssignmentHandler{
		service:     service,
		submitGuard: submitGuard,
		logger:      logger.With().Str("component", "student_assignment_handler").Logger(),
	}
}

// Register attaches student assignment routes.
func (h *StudentAssignmentHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("/refresh", h.refresh)
	router.Post("/:id/submissions/text", withGuard(h.submitGuard, h.submitText)...)
	router.Post("/:id/submissions/file", withGuard(h.submitGuard, h.submitFile)...)
}

func (h *StudentAssignmentHandler) list(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return unauthenticated(c)
	}

	assignments, err := h.service.List(c.UserContext(), studentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *StudentAssignmentHandler) refresh(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return unauthenticated(c)
	}

	if err := h.service.Refresh(c.UserContext(), studentID); err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignment cache refreshed", nil)
}

func (h *StudentAssignmentHandler) submitText(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return unauthenticated(c)
	}
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.TextSubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.SubmitText(c.UserContext(), assignmentID, studentID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission received", submission)
}

func (h *StudentAssignmentHandler) submitFile(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return unauthenticated(c)
	}
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	header, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}
	file, err := header.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read uploaded file")
	}
	defer file.Close()

	upload := dto.FileUpload{Name: header.Filename, Size: header.Size}
	submission, err := h.service.SubmitFile(c.UserContext(), assignmentID, studentID, upload, file)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission received", submission)
}

func withGuard(guard fiber.Handler, handler fiber.Handler) []fiber.Handler {
	if guard == nil {
		return []fiber.Handler{handler}
	}
	return []fiber.Handler{guard, handler}
}
