package middleware

import (
	"github.com/gofiber/fiber/v2"

	"smartstock.app/internal/domain"
)

// RequireStore rejects the request with 503 unless the backing store is
// connected, connecting first if needed.
func RequireStore(store domain.StoreReadiness) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !store.EnsureConnected(c.UserContext()) {
			c.Set(fiber.HeaderRetryAfter, "5")
			return domain.NewUnavailableError("store temporarily unavailable")
		}
		return c.Next()
	}
}
