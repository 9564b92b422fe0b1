package infra

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"smartstock.app/internal/config"
	"smartstock.app/internal/event"
)

const busBufferSize = 256

var Module = fx.Module("infra",
	fx.Provide(
		func(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) *redis.Client {
			rdb := NewRedisClient(cfg.Redis)
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					return PingRedis(ctx, rdb)
				},
				OnStop: func(ctx context.Context) error {
					logger.Info("closing redis client")
					return rdb.Close()
				},
			})
			return rdb
		},
		func(cfg *config.Config, logger *zap.Logger) *PostgresDriver {
			return NewPostgresDriver(cfg.Database, cfg.Supervisor, logger)
		},
		NewWatchlistRepository,
		func(rdb *redis.Client, cfg *config.Config) *CommandQueue {
			return NewCommandQueue(rdb, cfg.Feed.CommandQueue)
		},
		func(lc fx.Lifecycle, logger *zap.Logger) *event.Bus {
			bus := event.NewBus(busBufferSize, logger)
			lc.Append(fx.StopHook(bus.Shutdown))
			return bus
		},
		NewAnnouncementSubscriber,
	),
)
