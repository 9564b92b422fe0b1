package api

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"smartstock.app/internal/domain"
	"smartstock.app/internal/gateway"
)

// WatchlistHandler exposes the saved symbols a session will auto-subscribe.
type WatchlistHandler struct {
	source gateway.WatchlistSource
}

func NewWatchlistHandler(source gateway.WatchlistSource) *WatchlistHandler {
	return &WatchlistHandler{source: source}
}

// GetWatchlist 获取用户自选列表
// GET /api/users/:userID/watchlist
func (h *WatchlistHandler) GetWatchlist(c *fiber.Ctx) error {
	userID, err := url.PathUnescape(c.Params("userID"))
	userID = strings.TrimSpace(userID)
	if err != nil || userID == "" {
		return handleError(c, domain.NewBadRequestError("user id is required", domain.ErrInvalidPayload))
	}

	symbols, err := h.source.Symbols(c.UserContext(), userID)
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return handleError(c, domain.NewUnavailableError("store temporarily unavailable"))
	}
	if err != nil {
		return handleError(c, domain.NewInternalError("failed to load watchlist", err))
	}

	return c.JSON(fiber.Map{
		"userId":  userID,
		"symbols": symbols,
	})
}
