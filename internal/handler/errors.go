package handler

import (
	"errors"

	"go-pos-engine/internal/logging"
	"go-pos-engine/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrGateway):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes a service error as {"error", "kind"}.
func respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= 500 {
		logging.FromContext(c.UserContext()).Error("request failed", zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{
		"error": service.MessageOf(err),
		"kind":  service.KindOf(err),
	})
}
