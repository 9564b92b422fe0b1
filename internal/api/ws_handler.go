package api

import (
	"context"
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"smartstock.app/internal/config"
	"smartstock.app/internal/domain"
	"smartstock.app/internal/gateway"
	"smartstock.app/internal/infra"
)

// InitWebsocket mounts /ws. Each connection gets one read loop, which keeps
// that client's events in arrival order, and one writer goroutine.
func InitWebsocket(app *fiber.App, gw *gateway.Gateway, cfg config.GatewayConfig, logger *zap.Logger) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		ctx := context.Background()
		userID := c.Query("userID")

		sender := infra.NewWsClient(c, cfg.SendBuffer, logger)
		client := gw.Connect(sender, userID)
		defer func() {
			gw.Disconnect(ctx, client)
			sender.Close()
		}()

		// 自动订阅用户保存的自选
		if userID != "" {
			go gw.RestoreWatchlist(ctx, client)
		}

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Debug("ws read error", zap.String("conn_id", client.ID), zap.Error(err))
				}
				return
			}

			if err := gw.Handle(ctx, client, msg); errors.Is(err, domain.ErrConnectionClosed) {
				return
			}
		}
	}))
}
