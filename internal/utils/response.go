package utils

import "github.com/gofiber/fiber/v2"

const (
	defaultSuccessMessage = "success"
	defaultErrorMessage   = "error"
)

// APIResponse describes the common structure for API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SendSuccess sends a 200 envelope.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus sends a success envelope with the given status, 200 when zero.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: orDefault(message, defaultSuccessMessage),
	})
}

// Fail sends an error envelope. Details may carry the message key and any
// context a client needs to react to the failure.
func Fail(c *fiber.Ctx, status int, message string, details interface{}) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Message: orDefault(message, defaultErrorMessage),
		Details: details,
	})
}

// FailWithKey sends an error envelope whose details hold only the message key.
func FailWithKey(c *fiber.Ctx, status int, message, key string) error {
	if key == "" {
		return Fail(c, status, message, nil)
	}
	return Fail(c, status, message, fiber.Map{"key": key})
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
