// Package registry indexes which symbols each client connection receives
// and through which feed adapter.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"smartstock.app/internal/domain"
)

// Router selects the adapter for a symbol and returns the normalized symbol.
type Router interface {
	Route(symbol string) (domain.FeedAdapter, string, error)
}

// Subscription is one (connection, symbol) pair and the adapter serving it.
type Subscription struct {
	ConnID  string
	Symbol  string
	Adapter domain.FeedAdapter
}

type Registry struct {
	router Router
	logger *zap.Logger

	mu       sync.RWMutex
	byConn   map[string]map[string]domain.FeedAdapter
	bySymbol map[string]map[string]struct{}
}

func New(router Router, logger *zap.Logger) *Registry {
	return &Registry{
		router:   router,
		logger:   logger.Named("registry"),
		byConn:   make(map[string]map[string]domain.FeedAdapter),
		bySymbol: make(map[string]map[string]struct{}),
	}
}

// Subscribe records (connID, symbol) and forwards to the routed adapter.
// Repeating an existing pair does nothing and reports created=false.
func (r *Registry) Subscribe(ctx context.Context, connID, symbol string) (Subscription, bool, error) {
	adapter, normalized, err := r.router.Route(symbol)
	if err != nil {
		if !errors.Is(err, domain.ErrRoutingAmbiguity) {
			return Subscription{}, false, err
		}
		r.logger.Warn("ambiguous symbol, using default adapter",
			zap.String("symbol", normalized),
			zap.String("adapter", adapter.Name()),
		)
	}

	sub := Subscription{ConnID: connID, Symbol: normalized, Adapter: adapter}

	r.mu.Lock()
	subs, ok := r.byConn[connID]
	if !ok {
		subs = make(map[string]domain.FeedAdapter)
		r.byConn[connID] = subs
	}
	if existing, dup := subs[normalized]; dup {
		r.mu.Unlock()
		sub.Adapter = existing
		return sub, false, nil
	}
	subs[normalized] = adapter
	r.indexLocked(connID, normalized)
	r.mu.Unlock()

	if err := adapter.Subscribe(ctx, connID, normalized); err != nil {
		r.mu.Lock()
		r.removeLocked(connID, normalized)
		r.mu.Unlock()
		return Subscription{}, false, err
	}
	return sub, true, nil
}

// Unsubscribe removes the pair if present and tells the adapter that served
// it. Unknown pairs are a no-op.
func (r *Registry) Unsubscribe(ctx context.Context, connID, symbol string) error {
	_, normalized, err := r.router.Route(symbol)
	if err != nil && !errors.Is(err, domain.ErrRoutingAmbiguity) {
		return err
	}

	r.mu.Lock()
	adapter, ok := r.byConn[connID][normalized]
	if ok {
		r.removeLocked(connID, normalized)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return adapter.Unsubscribe(ctx, connID, normalized)
}

// CleanupConnection removes every subscription of connID and calls Cleanup
// once on each adapter that served at least one of them. An adapter error is
// logged and does not stop the remaining adapters.
func (r *Registry) CleanupConnection(ctx context.Context, connID string) error {
	r.mu.Lock()
	subs := r.byConn[connID]
	delete(r.byConn, connID)
	adapters := make([]domain.FeedAdapter, 0, 2)
	seen := make(map[domain.FeedAdapter]struct{}, 2)
	for symbol, adapter := range subs {
		r.unindexLocked(connID, symbol)
		if _, ok := seen[adapter]; !ok {
			seen[adapter] = struct{}{}
			adapters = append(adapters, adapter)
		}
	}
	r.mu.Unlock()

	var errs []error
	for _, adapter := range adapters {
		if err := r.safeCleanup(ctx, adapter, connID); err != nil {
			r.logger.Error("adapter cleanup failed",
				zap.String("conn_id", connID),
				zap.String("adapter", adapter.Name()),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribers returns the connections receiving symbol.
func (r *Registry) Subscribers(symbol string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.bySymbol[symbol]
	out := make([]string, 0, len(conns))
	for id := range conns {
		out = append(out, id)
	}
	return out
}

// Symbols returns the sorted symbols connID is subscribed to.
func (r *Registry) Symbols(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs := r.byConn[connID]
	out := make([]string, 0, len(subs))
	for symbol := range subs {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Count(connID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn[connID])
}

func (r *Registry) safeCleanup(ctx context.Context, adapter domain.FeedAdapter, connID string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.New("adapter cleanup panicked")
			r.logger.Error("panic in adapter cleanup", zap.Any("panic", rec))
		}
	}()
	return adapter.Cleanup(ctx, connID)
}

func (r *Registry) indexLocked(connID, symbol string) {
	conns, ok := r.bySymbol[symbol]
	if !ok {
		conns = make(map[string]struct{})
		r.bySymbol[symbol] = conns
	}
	conns[connID] = struct{}{}
}

func (r *Registry) unindexLocked(connID, symbol string) {
	if conns, ok := r.bySymbol[symbol]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.bySymbol, symbol)
		}
	}
}

func (r *Registry) removeLocked(connID, symbol string) {
	if subs, ok := r.byConn[connID]; ok {
		delete(subs, symbol)
		if len(subs) == 0 {
			delete(r.byConn, connID)
		}
	}
	r.unindexLocked(connID, symbol)
}
