package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"smartstock.app/internal/domain"
)

// ErrorResponse 统一的错误响应结构
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleError maps an error to a JSON response. It is also the app's
// fiber error handler, so middleware can simply return domain errors.
func handleError(c *fiber.Ctx, err error) error {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Code).JSON(ErrorResponse{Error: appErr.Message})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(ErrorResponse{Error: fiberErr.Message})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal server error"})
}
