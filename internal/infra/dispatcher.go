package infra

import (
	"context"

	"go.uber.org/zap"

	"smartstock.app/internal/model"
)

// PricePublisher fans a price update out to subscribed clients.
type PricePublisher interface {
	PublishPrice(update model.PriceUpdate) int
}

// PriceDispatcher drains the adapters' shared price channel into the
// gateway. A panic while publishing one update is logged and the loop keeps
// running.
type PriceDispatcher struct {
	updates   <-chan model.PriceUpdate
	publisher PricePublisher
	logger    *zap.Logger
}

func NewPriceDispatcher(updates <-chan model.PriceUpdate, publisher PricePublisher, logger *zap.Logger) *PriceDispatcher {
	return &PriceDispatcher{
		updates:   updates,
		publisher: publisher,
		logger:    logger.Named("dispatcher"),
	}
}

// Run returns when ctx is done or the channel is closed.
func (d *PriceDispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatching price updates")
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-d.updates:
			if !ok {
				d.logger.Info("price channel closed, stopping")
				return
			}
			d.safePublish(update)
		}
	}
}

func (d *PriceDispatcher) safePublish(update model.PriceUpdate) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while publishing price",
				zap.String("symbol", update.Symbol),
				zap.Any("panic", r),
			)
		}
	}()
	d.publisher.PublishPrice(update)
}
