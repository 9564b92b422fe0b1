package engine

import (
	"go.uber.org/zap"

	"smartstock.app/internal/config"
	"smartstock.app/internal/feed"
	"smartstock.app/internal/model"
)

// Feeds holds one adapter per market and the channel both push prices on.
type Feeds struct {
	Domestic      *feed.RedisAdapter
	International *feed.RedisAdapter
	Updates       chan model.PriceUpdate
}

func NewFeeds(cfg config.FeedConfig, cmds feed.Commander, logger *zap.Logger) *Feeds {
	updates := make(chan model.PriceUpdate, cfg.BufferSize)
	return &Feeds{
		Domestic:      feed.NewRedisAdapter(feed.Domestic, cmds, updates, logger),
		International: feed.NewRedisAdapter(feed.International, cmds, updates, logger),
		Updates:       updates,
	}
}

func (f *Feeds) Adapters() []*feed.RedisAdapter {
	return []*feed.RedisAdapter{f.Domestic, f.International}
}

// Router maps classified symbols onto these adapters.
func (f *Feeds) Router() *feed.Router {
	return feed.NewRouter(f.Domestic, f.International)
}
