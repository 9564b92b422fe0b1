package api

import (
	"github.com/gofiber/fiber/v2"

	"smartstock.app/internal/domain"
)

// HealthHandler serves liveness, readiness and status.
type HealthHandler struct {
	store  domain.StoreReadiness
	status StatusProvider
}

func NewHealthHandler(store domain.StoreReadiness, status StatusProvider) *HealthHandler {
	return &HealthHandler{store: store, status: status}
}

// Live GET /health
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "ok",
		"message": "Service is healthy",
	})
}

// Ready GET /ready. 503 while the backing store is unreachable.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	if !h.store.EnsureConnected(c.UserContext()) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "unavailable",
			"message": "Backing store is not connected",
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "ready",
		"message": "Backing store is connected",
	})
}

// Status GET /api/status
func (h *HealthHandler) Status(c *fiber.Ctx) error {
	return c.JSON(h.status.Status())
}
