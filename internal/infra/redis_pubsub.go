package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"smartstock.app/internal/constants"
	"smartstock.app/internal/domain"
	"smartstock.app/internal/event"
	"smartstock.app/internal/model"
)

// AnnouncementSubscriber relays IPO notices published on Redis to the event
// bus, where the gateway picks them up for the announcement room.
type AnnouncementSubscriber struct {
	rdb    *redis.Client
	bus    *event.Bus
	logger *zap.Logger
}

func NewAnnouncementSubscriber(rdb *redis.Client, bus *event.Bus, logger *zap.Logger) *AnnouncementSubscriber {
	return &AnnouncementSubscriber{
		rdb:    rdb,
		bus:    bus,
		logger: logger.Named("announcements"),
	}
}

// Run blocks until ctx is done.
func (s *AnnouncementSubscriber) Run(ctx context.Context) error {
	pubsub := s.rdb.Subscribe(ctx, constants.RedisPubSubIPOAnnouncements)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", constants.RedisPubSubIPOAnnouncements, err)
	}

	s.logger.Info("listening", zap.String("channel", constants.RedisPubSubIPOAnnouncements))
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			ann, err := decodeAnnouncement(msg.Payload, time.Now())
			if err != nil {
				s.logger.Warn("dropping announcement", zap.Error(err))
				continue
			}
			s.bus.Publish(event.Event{
				Type:   constants.BusAnnouncementReceived,
				Source: msg.Channel,
				Data:   ann,
			})
		}
	}
}

// decodeAnnouncement accepts either a full announcement object or any bare
// JSON document, which becomes the data of an "ipo" announcement.
func decodeAnnouncement(payload string, now time.Time) (model.Announcement, error) {
	raw := []byte(payload)
	if !json.Valid(raw) {
		return model.Announcement{}, fmt.Errorf("%w: announcement is not JSON", domain.ErrInvalidPayload)
	}

	var ann model.Announcement
	if err := json.Unmarshal(raw, &ann); err != nil || ann.Kind == "" || len(ann.Data) == 0 {
		ann = model.Announcement{Kind: "ipo", Data: json.RawMessage(raw)}
	}
	if ann.Timestamp.IsZero() {
		ann.Timestamp = now.UTC()
	}
	return ann, nil
}
