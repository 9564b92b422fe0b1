package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"smartstock.app/internal/constants"
	"smartstock.app/internal/domain"
	"smartstock.app/internal/model"
)

// Commander delivers subscribe/unsubscribe commands to the feed process.
type Commander interface {
	Send(ctx context.Context, cmd model.FeedCommand) error
}

// RedisAdapter serves one market. It keeps the connections interested in
// each symbol and only tells the upstream feed about the first subscriber
// and the last one leaving. Price payloads arrive on market.<market>.<symbol>.
type RedisAdapter struct {
	market Market
	cmds   Commander
	out    chan<- model.PriceUpdate
	logger *zap.Logger

	mu          sync.Mutex
	subscribers map[string]map[string]struct{}
}

var _ domain.FeedAdapter = (*RedisAdapter)(nil)

func NewRedisAdapter(market Market, cmds Commander, out chan<- model.PriceUpdate, logger *zap.Logger) *RedisAdapter {
	return &RedisAdapter{
		market:      market,
		cmds:        cmds,
		out:         out,
		logger:      logger.Named("feed").With(zap.String("market", string(market))),
		subscribers: make(map[string]map[string]struct{}),
	}
}

func (a *RedisAdapter) Name() string {
	return string(a.market)
}

// Subscribe, Unsubscribe and Cleanup hold a.mu across the upstream command,
// so the first-subscriber SUBSCRIBE and last-subscriber UNSUBSCRIBE for a
// symbol always reach the feed in the order the set changed.
func (a *RedisAdapter) Subscribe(ctx context.Context, connID, symbol string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	conns, ok := a.subscribers[symbol]
	if ok {
		conns[connID] = struct{}{}
		return nil
	}

	a.logger.Info("first subscriber, subscribing upstream", zap.String("symbol", symbol))
	if err := a.send(ctx, constants.FeedCommandSubscribe, symbol); err != nil {
		return err
	}
	a.subscribers[symbol] = map[string]struct{}{connID: {}}
	return nil
}

func (a *RedisAdapter) Unsubscribe(ctx context.Context, connID, symbol string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	conns, ok := a.subscribers[symbol]
	if !ok {
		return nil
	}
	if _, ok := conns[connID]; !ok {
		return nil
	}
	delete(conns, connID)
	if len(conns) > 0 {
		return nil
	}

	delete(a.subscribers, symbol)
	a.logger.Info("no more subscribers, unsubscribing upstream", zap.String("symbol", symbol))
	return a.send(ctx, constants.FeedCommandUnsubscribe, symbol)
}

// Cleanup drops every subscription held by connID and releases upstream
// symbols nobody else wants. A failed command does not stop the others.
func (a *RedisAdapter) Cleanup(ctx context.Context, connID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for symbol, conns := range a.subscribers {
		if _, ok := conns[connID]; !ok {
			continue
		}
		delete(conns, connID)
		if len(conns) > 0 {
			continue
		}
		delete(a.subscribers, symbol)
		if err := a.send(ctx, constants.FeedCommandUnsubscribe, symbol); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Symbols returns the symbols currently subscribed upstream.
func (a *RedisAdapter) Symbols() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	symbols := make([]string, 0, len(a.subscribers))
	for symbol := range a.subscribers {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// Run listens for this market's price channels until ctx is done.
func (a *RedisAdapter) Run(ctx context.Context, rdb *redis.Client, channelPrefix string) error {
	prefix := channelPrefix + string(a.market) + "."
	pubsub := rdb.PSubscribe(ctx, prefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("feed %s: subscribe %s*: %w", a.market, prefix, err)
	}

	a.logger.Info("listening for price updates", zap.String("pattern", prefix+"*"))
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			a.forward(strings.TrimPrefix(msg.Channel, prefix), msg.Payload)
		}
	}
}

func (a *RedisAdapter) forward(symbol, payload string) {
	if !json.Valid([]byte(payload)) {
		a.logger.Warn("dropping non-JSON price payload", zap.String("symbol", symbol))
		return
	}

	update := model.PriceUpdate{
		Symbol: NormalizeSymbol(symbol),
		Data:   json.RawMessage(payload),
	}

	select {
	case a.out <- update:
	default:
		a.logger.Warn("price channel full, dropping update", zap.String("symbol", update.Symbol))
	}
}

func (a *RedisAdapter) send(ctx context.Context, cmdType, symbol string) error {
	cmd := model.FeedCommand{
		Type:      cmdType,
		Market:    string(a.market),
		Payload:   map[string]string{"Symbol": symbol},
		RequestID: uuid.NewString(),
	}
	if err := a.cmds.Send(ctx, cmd); err != nil {
		return fmt.Errorf("feed %s: %s %s: %w", a.market, strings.ToLower(cmdType), symbol, err)
	}
	return nil
}
