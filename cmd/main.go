package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"smartstock.app/internal/api"
	"smartstock.app/internal/config"
	"smartstock.app/internal/engine"
	"smartstock.app/internal/infra"
	"smartstock.app/pkg/logger"
)

func main() {
	fx.New(
		config.Module,
		logger.Module,
		infra.Module,
		engine.Module,
		api.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	).Run()
}
