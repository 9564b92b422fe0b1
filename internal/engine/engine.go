package engine

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"smartstock.app/internal/config"
	"smartstock.app/internal/constants"
	"smartstock.app/internal/event"
	"smartstock.app/internal/gateway"
	"smartstock.app/internal/infra"
	"smartstock.app/internal/model"
	"smartstock.app/internal/supervisor"
)

// Engine 是一个轻量级协调器，负责：
// 1. 启动后台进程（存储连接监督、行情监听、公告监听）
// 2. 将行情和公告交给网关分发
// 3. 停止时按顺序回收
type Engine struct {
	cfg *config.Config
	rdb *redis.Client

	supervisor    *supervisor.Supervisor
	feeds         *Feeds
	dispatcher    *infra.PriceDispatcher
	announcements *infra.AnnouncementSubscriber
	bus           *event.Bus
	gateway       *gateway.Gateway
	logger        *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEngine(
	cfg *config.Config,
	rdb *redis.Client,
	sup *supervisor.Supervisor,
	feeds *Feeds,
	dispatcher *infra.PriceDispatcher,
	announcements *infra.AnnouncementSubscriber,
	bus *event.Bus,
	gw *gateway.Gateway,
	logger *zap.Logger,
) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		cfg:           cfg,
		rdb:           rdb,
		supervisor:    sup,
		feeds:         feeds,
		dispatcher:    dispatcher,
		announcements: announcements,
		bus:           bus,
		gateway:       gw,
		logger:        logger.Named("engine"),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start 启动引擎后台进程. It returns at once; the first store connect runs
// in the background and schedules its own retries on failure.
func (e *Engine) Start() error {
	e.logger.Info("starting")

	e.bus.Subscribe(constants.BusAnnouncementReceived, e.onAnnouncement)

	e.spawn(e.supervisor.Run)
	e.spawn(func(ctx context.Context) {
		if err := e.supervisor.Connect(ctx); err != nil {
			e.logger.Warn("initial store connect failed", zap.Error(err))
		}
	})

	for _, adapter := range e.feeds.Adapters() {
		e.spawn(func(ctx context.Context) {
			e.keepRunning(ctx, "feed."+adapter.Name(), func(ctx context.Context) error {
				return adapter.Run(ctx, e.rdb, e.cfg.Feed.ChannelPrefix)
			})
		})
	}
	e.spawn(func(ctx context.Context) {
		e.keepRunning(ctx, "announcements", e.announcements.Run)
	})
	e.spawn(e.dispatcher.Run)

	e.logger.Info("started")
	return nil
}

// Stop 停止引擎. Background loops are cancelled and awaited before the
// store connection is closed.
func (e *Engine) Stop() error {
	e.logger.Info("stopping")
	e.cancel()
	e.wg.Wait()
	return e.supervisor.Close()
}

// Status is a point-in-time view for the status endpoint.
type Status struct {
	Store          string         `json:"store"`
	RetryCount     int            `json:"retryCount"`
	NextRetryDelay string         `json:"nextRetryDelay"`
	Clients        int            `json:"clients"`
	Rooms          int            `json:"rooms"`
	Upstream       map[string]int `json:"upstream"`
}

func (e *Engine) Status() Status {
	upstream := make(map[string]int, 2)
	for _, a := range e.feeds.Adapters() {
		upstream[a.Name()] = len(a.Symbols())
	}
	return Status{
		Store:          e.supervisor.Phase().String(),
		RetryCount:     e.supervisor.RetryCount(),
		NextRetryDelay: e.supervisor.NextRetryDelay().String(),
		Clients:        e.gateway.ClientCount(),
		Rooms:          e.gateway.RoomCount(),
		Upstream:       upstream,
	}
}

func (e *Engine) onAnnouncement(_ context.Context, ev event.Event) error {
	ann, ok := ev.Data.(model.Announcement)
	if !ok {
		e.logger.Warn("unexpected announcement payload", zap.Any("data", ev.Data))
		return nil
	}
	n := e.gateway.Announce(ann)
	e.logger.Debug("announcement delivered", zap.String("kind", ann.Kind), zap.Int("clients", n))
	return nil
}

func (e *Engine) spawn(fn func(ctx context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn(e.ctx)
	}()
}

// keepRunning restarts fn with exponential backoff until ctx is done. The
// backoff resets once a run has lasted longer than the maximum delay.
func (e *Engine) keepRunning(ctx context.Context, name string, fn func(context.Context) error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.Supervisor.BaseRetryDelay
	b.MaxInterval = e.cfg.Supervisor.MaxRetryDelay

	for {
		started := time.Now()
		err := fn(ctx)
		if ctx.Err() != nil {
			return
		}
		if time.Since(started) > b.MaxInterval {
			b.Reset()
		}

		sleep := b.NextBackOff()
		e.logger.Warn("loop exited, restarting",
			zap.String("loop", name),
			zap.Duration("in", sleep),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}
