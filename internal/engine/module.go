package engine

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"smartstock.app/internal/config"
	"smartstock.app/internal/gateway"
	"smartstock.app/internal/infra"
	"smartstock.app/internal/registry"
	"smartstock.app/internal/supervisor"
)

const moduleName = "engine"

var Module = fx.Module(moduleName,
	fx.Provide(
		func(driver *infra.PostgresDriver, cfg *config.Config, logger *zap.Logger) *supervisor.Supervisor {
			return supervisor.New(driver, cfg.Supervisor, logger)
		},
		func(cfg *config.Config, queue *infra.CommandQueue, logger *zap.Logger) *Feeds {
			return NewFeeds(cfg.Feed, queue, logger)
		},
		func(feeds *Feeds, logger *zap.Logger) *registry.Registry {
			return registry.New(feeds.Router(), logger)
		},
		func(reg *registry.Registry, sup *supervisor.Supervisor, repo *infra.WatchlistRepository, cfg *config.Config, logger *zap.Logger) *gateway.Gateway {
			return gateway.New(reg, sup, repo, cfg.Gateway, logger)
		},
		func(feeds *Feeds, gw *gateway.Gateway, logger *zap.Logger) *infra.PriceDispatcher {
			return infra.NewPriceDispatcher(feeds.Updates, gw, logger)
		},
		NewEngine,
	),
	fx.Invoke(func(lc fx.Lifecycle, eng *Engine) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return eng.Start()
			},
			OnStop: func(ctx context.Context) error {
				return eng.Stop()
			},
		})
	}),
)
