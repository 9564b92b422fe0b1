// Package gateway ties client connections to the subscription registry and
// the room broadcaster and owns each connection's lifecycle.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"smartstock.app/internal/config"
	"smartstock.app/internal/constants"
	"smartstock.app/internal/domain"
	"smartstock.app/internal/feed"
	"smartstock.app/internal/model"
	"smartstock.app/internal/registry"
	"smartstock.app/internal/room"
)

// Sender is the outbound half of a client transport. Send must not block;
// false means the frame was dropped.
type Sender interface {
	Send(event string, payload any) bool
}

// WatchlistSource returns the symbols a user saved for auto-subscription.
type WatchlistSource interface {
	Symbols(ctx context.Context, userID string) ([]string, error)
}

// Client is one live connection. Its operations are serialized by mu, which
// is what gives per-connection ordering.
type Client struct {
	ID     string
	UserID string

	sender Sender

	mu     sync.Mutex
	closed bool
}

// Closed reports whether the client has been torn down.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type Gateway struct {
	registry  *registry.Registry
	rooms     *room.Broadcaster
	stamper   *room.Stamper
	store     domain.StoreReadiness
	watchlist WatchlistSource
	cfg       config.GatewayConfig
	logger    *zap.Logger

	mu      sync.RWMutex
	clients map[string]*Client

	pricesMu sync.RWMutex
	prices   map[string]cachedPrice
}

// cachedPrice is the last update for a symbol and the connections it was
// sent to live, so a concurrent subscribe does not replay it a second time.
type cachedPrice struct {
	update     model.PriceUpdate
	recipients []string
}

var _ domain.Deliverer = (*Gateway)(nil)

func New(reg *registry.Registry, store domain.StoreReadiness, watchlist WatchlistSource, cfg config.GatewayConfig, logger *zap.Logger) *Gateway {
	g := &Gateway{
		registry:  reg,
		stamper:   room.NewStamper(),
		store:     store,
		watchlist: watchlist,
		cfg:       cfg,
		logger:    logger.Named("gateway"),
		clients:   make(map[string]*Client),
		prices:    make(map[string]cachedPrice),
	}
	g.rooms = room.NewBroadcaster(g, logger)
	return g
}

// Connect registers a new client and returns it.
func (g *Gateway) Connect(sender Sender, userID string) *Client {
	c := &Client{
		ID:     uuid.NewString(),
		UserID: strings.TrimSpace(userID),
		sender: sender,
	}

	g.mu.Lock()
	g.clients[c.ID] = c
	total := len(g.clients)
	g.mu.Unlock()

	g.logger.Info("client connected",
		zap.String("conn_id", c.ID),
		zap.String("user_id", c.UserID),
		zap.Int("clients", total),
	)
	return c
}

// RestoreWatchlist subscribes c to the symbols its user saved. It is skipped
// for anonymous clients and when the store is not reachable.
func (g *Gateway) RestoreWatchlist(ctx context.Context, c *Client) {
	if c.UserID == "" || g.watchlist == nil {
		return
	}
	if !g.store.EnsureConnected(ctx) {
		g.logger.Warn("store unavailable, skipping watchlist restore",
			zap.String("conn_id", c.ID),
			zap.String("user_id", c.UserID),
		)
		return
	}

	symbols, err := g.watchlist.Symbols(ctx, c.UserID)
	if err != nil {
		g.logger.Error("failed to load watchlist", zap.String("user_id", c.UserID), zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, symbol := range symbols {
		if err := g.subscribeLocked(ctx, c, symbol); err != nil {
			g.logger.Warn("watchlist subscribe failed",
				zap.String("conn_id", c.ID),
				zap.String("symbol", symbol),
				zap.Error(err),
			)
		}
	}
	g.logger.Info("watchlist restored", zap.String("conn_id", c.ID), zap.Int("symbols", len(symbols)))
}

// Handle processes one inbound frame for c. Rejections are reported to c as
// an error event and returned; they never affect other clients.
func (g *Gateway) Handle(ctx context.Context, c *Client, frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.ErrConnectionClosed
	}

	var req model.Request
	if err := json.Unmarshal(frame, &req); err != nil {
		err = fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		g.reject(c, "", err)
		return err
	}

	var err error
	switch req.Event {
	case constants.EventSubscribePrice:
		var symbol string
		if symbol, err = decodeSymbol(req.Data); err == nil {
			err = g.subscribeLocked(ctx, c, symbol)
		}
	case constants.EventUnsubscribePrice:
		var symbol string
		if symbol, err = decodeSymbol(req.Data); err == nil {
			err = g.registry.Unsubscribe(ctx, c.ID, symbol)
		}
	case constants.EventSubscribeIPO:
		g.rooms.Join(c.ID, g.cfg.AnnouncementRoom)
	case constants.EventUnsubscribeIPO:
		g.rooms.Leave(c.ID, g.cfg.AnnouncementRoom)
	case constants.EventJoinTradingRoom:
		var symbol string
		if symbol, err = decodeSymbol(req.Data); err == nil {
			name := g.tradingRoom(symbol)
			size, _ := g.rooms.Join(c.ID, name)
			g.announceSize(name, size)
		}
	case constants.EventLeaveTradingRoom:
		var symbol string
		if symbol, err = decodeSymbol(req.Data); err == nil {
			name := g.tradingRoom(symbol)
			if size, left := g.rooms.Leave(c.ID, name); left {
				g.announceSize(name, size)
			}
		}
	case constants.EventTradingMessage:
		err = g.tradingMessage(c, req.Data)
	default:
		err = fmt.Errorf("%w: %q", domain.ErrUnknownEvent, req.Event)
	}

	if err != nil {
		g.reject(c, req.Event, err)
		return err
	}
	return nil
}

// Disconnect tears c down. Subscriptions are cleaned up and room
// memberships dropped exactly once; later calls are no-ops.
func (g *Gateway) Disconnect(ctx context.Context, c *Client) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	g.mu.Lock()
	delete(g.clients, c.ID)
	total := len(g.clients)
	g.mu.Unlock()

	if err := g.registry.CleanupConnection(ctx, c.ID); err != nil {
		g.logger.Warn("subscription cleanup incomplete", zap.String("conn_id", c.ID), zap.Error(err))
	}
	for name, size := range g.rooms.LeaveAll(c.ID) {
		if size > 0 && g.isTradingRoom(name) {
			g.announceSize(name, size)
		}
	}

	g.logger.Info("client disconnected", zap.String("conn_id", c.ID), zap.Int("clients", total))
}

// PublishPrice caches update as the latest price for its symbol and sends it
// to every subscribed client. It returns how many clients accepted it.
func (g *Gateway) PublishPrice(update model.PriceUpdate) int {
	update.Symbol = feed.NormalizeSymbol(update.Symbol)

	g.pricesMu.Lock()
	recipients := g.registry.Subscribers(update.Symbol)
	g.prices[update.Symbol] = cachedPrice{update: update, recipients: recipients}
	g.pricesMu.Unlock()

	delivered := 0
	for _, connID := range recipients {
		if g.Deliver(connID, constants.EventPriceUpdate, update) {
			delivered++
		}
	}
	return delivered
}

// Announce fans a to the announcement room.
func (g *Gateway) Announce(a model.Announcement) int {
	return g.rooms.Broadcast(g.cfg.AnnouncementRoom, constants.EventIPODataUpdated, a, "")
}

// Deliver sends to a live client without blocking.
func (g *Gateway) Deliver(connID, event string, payload any) bool {
	g.mu.RLock()
	c, ok := g.clients[connID]
	g.mu.RUnlock()
	if !ok {
		return false
	}
	return c.sender.Send(event, payload)
}

func (g *Gateway) ClientCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients)
}

func (g *Gateway) RoomCount() int {
	return g.rooms.RoomCount()
}

// Rooms exposes the broadcaster for status reporting and tests.
func (g *Gateway) Rooms() *room.Broadcaster {
	return g.rooms
}

func (g *Gateway) subscribeLocked(ctx context.Context, c *Client, symbol string) error {
	sub, created, err := g.registry.Subscribe(ctx, c.ID, symbol)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	g.pricesMu.RLock()
	last, ok := g.prices[sub.Symbol]
	g.pricesMu.RUnlock()
	if ok && !slices.Contains(last.recipients, c.ID) {
		c.sender.Send(constants.EventPriceUpdate, last.update)
	}
	return nil
}

func (g *Gateway) tradingMessage(c *Client, data json.RawMessage) error {
	var req model.TradingMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	req.Symbol = feed.NormalizeSymbol(req.Symbol)
	if req.Symbol == "" {
		return domain.ErrInvalidSymbol
	}
	if strings.TrimSpace(req.Message) == "" {
		return fmt.Errorf("%w: empty message", domain.ErrInvalidPayload)
	}

	// The session's user wins over whatever the payload claims.
	if c.UserID != "" {
		req.UserID = c.UserID
	}
	msg := g.stamper.Stamp(req)
	g.rooms.Broadcast(g.tradingRoom(req.Symbol), constants.EventTradingMessage, msg, c.ID)
	return nil
}

func (g *Gateway) announceSize(name string, size int) {
	g.rooms.Broadcast(name, constants.EventRoomUsersCount, model.RoomUsersCount{Room: name, Count: size}, "")
}

func (g *Gateway) tradingRoom(symbol string) string {
	return g.cfg.TradingRoomPrefix + feed.NormalizeSymbol(symbol)
}

func (g *Gateway) isTradingRoom(name string) bool {
	return strings.HasPrefix(name, g.cfg.TradingRoomPrefix)
}

func (g *Gateway) reject(c *Client, event string, err error) {
	g.logger.Debug("request rejected",
		zap.String("conn_id", c.ID),
		zap.String("event", event),
		zap.Error(err),
	)
	c.sender.Send(constants.EventError, model.ErrorMessage{Event: event, Message: err.Error()})
}

// decodeSymbol accepts either a bare JSON string or {"symbol": "..."}.
func decodeSymbol(data json.RawMessage) (string, error) {
	if len(data) == 0 {
		return "", domain.ErrInvalidSymbol
	}

	var symbol string
	if err := json.Unmarshal(data, &symbol); err != nil {
		var req model.SymbolRequest
		if err2 := json.Unmarshal(data, &req); err2 != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrInvalidPayload, errors.Join(err, err2))
		}
		symbol = req.Symbol
	}

	if feed.NormalizeSymbol(symbol) == "" {
		return "", domain.ErrInvalidSymbol
	}
	return symbol, nil
}
