package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assignment-api/internal/apperror"
	"github.com/noah-isme/gema-assignment-api/internal/dto"
	"github.com/noah-isme/gema-assignment-api/internal/middleware"
	"github.com/noah-isme/gema-assignment-api/internal/utils"
)

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := c.Params(name)
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// respondError maps service errors onto the API envelope.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(validationErrors))
	case errors.Is(err, apperror.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, apperror.Message(err))
	case errors.Is(err, apperror.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, apperror.Message(err))
	case errors.Is(err, apperror.ErrInvalidState):
		return utils.SendError(c, fiber.StatusConflict, apperror.Message(err))
	case errors.Is(err, apperror.ErrBadRequest):
		return utils.SendError(c, fiber.StatusBadRequest, apperror.Message(err))
	case errors.Is(err, apperror.ErrServiceUnavailable):
		requestLogger(logger, c).Warn().Err(err).Msg("dependency unavailable")
		return utils.SendError(c, fiber.StatusServiceUnavailable, apperror.Message(err))
	default:
		requestLogger(logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func validationDetails(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	return details
}

func unauthenticated(c *fiber.Ctx) error {
	return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
}

type transitionFunc func(ctx context.Context, assignmentID, teacherID uint) (dto.LifecycleResponse, error)

// runTransition serves publish, close and delete for both assignment kinds.
func runTransition(c *fiber.Ctx, logger zerolog.Logger, fn transitionFunc, message string) error {
	teacherID := userIDFromContext(c)
	if teacherID == 0 {
		return unauthenticated(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := fn(c.UserContext(), id, teacherID)
	if err != nil {
		return respondError(c, logger, err)
	}

	return utils.SendSuccess(c, message, result)
}
