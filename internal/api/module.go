package api

import (
	"context"
	"net"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"smartstock.app/internal/config"
	"smartstock.app/internal/engine"
	"smartstock.app/internal/gateway"
	"smartstock.app/internal/infra"
	"smartstock.app/internal/supervisor"
)

var Module = fx.Module("api",
	fx.Provide(NewServer),
	fx.Invoke(func(
		lc fx.Lifecycle,
		app *fiber.App,
		cfg *config.Config,
		sup *supervisor.Supervisor,
		eng *engine.Engine,
		gw *gateway.Gateway,
		repo *infra.WatchlistRepository,
		logger *zap.Logger,
	) {
		NewRouter(app, cfg, sup, eng, gw, repo, logger).RegisterRoutes()

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				ln, err := net.Listen("tcp", cfg.Server.Port)
				if err != nil {
					return err
				}
				logger.Info("server listening", zap.String("addr", ln.Addr().String()))
				go func() {
					if err := app.Listener(ln); err != nil {
						logger.Error("server stopped", zap.Error(err))
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return app.ShutdownWithContext(ctx)
			},
		})
	}),
)
