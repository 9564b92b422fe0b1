package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"smartstock.app/internal/api/middleware"
	"smartstock.app/internal/config"
	"smartstock.app/internal/domain"
	"smartstock.app/internal/engine"
	"smartstock.app/internal/gateway"
)

// StatusProvider reports the running engine's state.
type StatusProvider interface {
	Status() engine.Status
}

// Router 负责注册所有路由
type Router struct {
	app       *fiber.App
	cfg       *config.Config
	store     domain.StoreReadiness
	status    StatusProvider
	gateway   *gateway.Gateway
	watchlist gateway.WatchlistSource
	logger    *zap.Logger
}

func NewRouter(
	app *fiber.App,
	cfg *config.Config,
	store domain.StoreReadiness,
	status StatusProvider,
	gw *gateway.Gateway,
	watchlist gateway.WatchlistSource,
	logger *zap.Logger,
) *Router {
	return &Router{
		app:       app,
		cfg:       cfg,
		store:     store,
		status:    status,
		gateway:   gw,
		watchlist: watchlist,
		logger:    logger.Named("api"),
	}
}

// RegisterRoutes 注册所有路由
func (r *Router) RegisterRoutes() {
	health := NewHealthHandler(r.store, r.status)
	watchlist := NewWatchlistHandler(r.watchlist)

	// WebSocket 不经过存储检查
	InitWebsocket(r.app, r.gateway, r.cfg.Gateway, r.logger)

	r.app.Get("/health", health.Live)
	r.app.Get("/ready", health.Ready)

	api := r.app.Group("/api")
	api.Get("/status", health.Status)

	users := api.Group("/users/:userID", middleware.RequireStore(r.store))
	users.Get("/watchlist", watchlist.GetWatchlist)
}
