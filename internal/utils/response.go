package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope every endpoint answers with. Meta carries list
// pagination; Details carries per-field validation failures.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Message string      `json:"message"`
}

// SendSuccess sends a 200 envelope.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus sends a success envelope with status, e.g. 201 for
// accepted submissions.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	return write(c, status, APIResponse{Success: true, Data: data, Message: orDefault(message, "success")})
}

// OK sends a 200 response carrying data and optional pagination metadata.
func OK(c *fiber.Ctx, data interface{}, message string, meta interface{}) error {
	return write(c, fiber.StatusOK, APIResponse{Success: true, Data: data, Meta: meta, Message: orDefault(message, "success")})
}

// SendError sends an error envelope without details.
func SendError(c *fiber.Ctx, status int, message string) error {
	return Fail(c, status, message, nil)
}

// Fail sends an error response with optional structured details.
func Fail(c *fiber.Ctx, status int, message string, details interface{}) error {
	return write(c, status, APIResponse{Details: details, Message: orDefault(message, "error")})
}

func write(c *fiber.Ctx, status int, body APIResponse) error {
	return c.Status(status).JSON(body)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
