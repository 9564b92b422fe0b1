package infra

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"smartstock.app/internal/feed"
	"smartstock.app/internal/model"
)

// CommandQueue pushes feed commands onto a Redis list.
// Direction: gateway -> feed process. LPUSH here, the feed process BRPOPs.
type CommandQueue struct {
	rdb redis.Cmdable
	key string
}

var _ feed.Commander = (*CommandQueue)(nil)

func NewCommandQueue(rdb redis.Cmdable, key string) *CommandQueue {
	return &CommandQueue{rdb: rdb, key: key}
}

func (q *CommandQueue) Send(ctx context.Context, cmd model.FeedCommand) error {
	data, err := encodeCommand(cmd)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("push command to %s: %w", q.key, err)
	}
	return nil
}

func encodeCommand(cmd model.FeedCommand) ([]byte, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}
	return data, nil
}
