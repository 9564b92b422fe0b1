package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartstock.app/internal/domain"
	"smartstock.app/internal/feed"
)

type fakeAdapter struct {
	name string

	mu           sync.Mutex
	subscribes   []string
	unsubscribes []string
	cleanups     []string
	subErr       error
	cleanupErr   error
	panicOnClean bool
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Subscribe(_ context.Context, connID, symbol string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.subErr != nil {
		return a.subErr
	}
	a.subscribes = append(a.subscribes, connID+":"+symbol)
	return nil
}

func (a *fakeAdapter) Unsubscribe(_ context.Context, connID, symbol string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unsubscribes = append(a.unsubscribes, connID+":"+symbol)
	return nil
}

func (a *fakeAdapter) Cleanup(_ context.Context, connID string) error {
	a.mu.Lock()
	a.cleanups = append(a.cleanups, connID)
	a.mu.Unlock()
	if a.panicOnClean {
		panic("adapter exploded")
	}
	return a.cleanupErr
}

func (a *fakeAdapter) counts() (int, int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subscribes), len(a.unsubscribes), len(a.cleanups)
}

func newTestRegistry() (*Registry, *fakeAdapter, *fakeAdapter) {
	domestic := &fakeAdapter{name: "domestic"}
	international := &fakeAdapter{name: "international"}
	return New(feed.NewRouter(domestic, international), zap.NewNop()), domestic, international
}

func TestRegistry_IdempotentSubscribe(t *testing.T) {
	r, _, intl := newTestRegistry()
	ctx := context.Background()

	_, created, err := r.Subscribe(ctx, "c", "AAPL")
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = r.Subscribe(ctx, "c", "aapl ")
	require.NoError(t, err)
	assert.False(t, created)

	subs, _, _ := intl.counts()
	assert.Equal(t, 1, subs)
	assert.Equal(t, 1, r.Count("c"))
	assert.Equal(t, []string{"c"}, r.Subscribers("AAPL"))
}

func TestRegistry_RoutingStability(t *testing.T) {
	r, dom, intl := newTestRegistry()
	ctx := context.Background()

	sub, _, err := r.Subscribe(ctx, "c", "TCS.NS")
	require.NoError(t, err)
	assert.Same(t, dom, sub.Adapter)

	require.NoError(t, r.Unsubscribe(ctx, "c", " tcs.ns"))

	assert.Equal(t, []string{"c:TCS.NS"}, dom.subscribes)
	assert.Equal(t, []string{"c:TCS.NS"}, dom.unsubscribes)
	assert.Empty(t, intl.subscribes)
	assert.Empty(t, intl.unsubscribes)
	assert.Zero(t, r.Count("c"))
	assert.Empty(t, r.Subscribers("TCS.NS"))
}

func TestRegistry_UnsubscribeAbsentIsNoop(t *testing.T) {
	r, dom, intl := newTestRegistry()

	require.NoError(t, r.Unsubscribe(context.Background(), "ghost", "AAPL"))
	_, u1, _ := dom.counts()
	_, u2, _ := intl.counts()
	assert.Zero(t, u1+u2)
}

func TestRegistry_InvalidSymbol(t *testing.T) {
	r, _, _ := newTestRegistry()
	_, _, err := r.Subscribe(context.Background(), "c", "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidSymbol)
	assert.Zero(t, r.Count("c"))
}

func TestRegistry_AmbiguousSymbolDefaultsToInternational(t *testing.T) {
	r, dom, intl := newTestRegistry()

	sub, created, err := r.Subscribe(context.Background(), "c", "TATAMOTORS")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Same(t, intl, sub.Adapter)
	assert.Empty(t, dom.subscribes)
}

func TestRegistry_AdapterSubscribeFailureRollsBack(t *testing.T) {
	r, _, intl := newTestRegistry()
	intl.subErr = errors.New("upstream unavailable")

	_, _, err := r.Subscribe(context.Background(), "c", "AAPL")
	assert.Error(t, err)
	assert.Zero(t, r.Count("c"))
	assert.Empty(t, r.Subscribers("AAPL"))
}

func TestRegistry_CleanupOncePerAdapter(t *testing.T) {
	r, dom, intl := newTestRegistry()
	ctx := context.Background()

	for _, s := range []string{"RELIANCE.NS", "TCS.NS", "AAPL", "MSFT"} {
		_, _, err := r.Subscribe(ctx, "A", s)
		require.NoError(t, err)
	}
	_, _, err := r.Subscribe(ctx, "B", "AAPL")
	require.NoError(t, err)

	require.NoError(t, r.CleanupConnection(ctx, "A"))

	assert.Equal(t, []string{"A"}, dom.cleanups)
	assert.Equal(t, []string{"A"}, intl.cleanups)
	assert.Zero(t, r.Count("A"))
	assert.Empty(t, r.Symbols("A"))
	assert.Equal(t, []string{"B"}, r.Subscribers("AAPL"))
	assert.Empty(t, r.Subscribers("TCS.NS"))

	// Second cleanup and cleanup of an unknown connection touch no adapter.
	require.NoError(t, r.CleanupConnection(ctx, "A"))
	require.NoError(t, r.CleanupConnection(ctx, "never-seen"))
	assert.Len(t, dom.cleanups, 1)
	assert.Len(t, intl.cleanups, 1)
}

func TestRegistry_CleanupSkipsAdaptersWithoutSubscriptions(t *testing.T) {
	r, dom, intl := newTestRegistry()
	_, _, err := r.Subscribe(context.Background(), "A", "AAPL")
	require.NoError(t, err)

	require.NoError(t, r.CleanupConnection(context.Background(), "A"))
	assert.Empty(t, dom.cleanups)
	assert.Equal(t, []string{"A"}, intl.cleanups)
}

func TestRegistry_CleanupIsolatesAdapterFailures(t *testing.T) {
	r, dom, intl := newTestRegistry()
	ctx := context.Background()
	dom.panicOnClean = true
	intl.cleanupErr = errors.New("redis down")

	_, _, err := r.Subscribe(ctx, "A", "TCS.NS")
	require.NoError(t, err)
	_, _, err = r.Subscribe(ctx, "A", "AAPL")
	require.NoError(t, err)

	err = r.CleanupConnection(ctx, "A")
	assert.Error(t, err)
	assert.Len(t, dom.cleanups, 1)
	assert.Len(t, intl.cleanups, 1)
	assert.Zero(t, r.Count("A"))
}

func TestRegistry_ConcurrentConnections(t *testing.T) {
	r, _, intl := newTestRegistry()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _, _ = r.Subscribe(ctx, id, "AAPL")
			_, _, _ = r.Subscribe(ctx, id, "AAPL")
			_ = r.CleanupConnection(ctx, id)
		}(fmt.Sprintf("conn-%d", i))
	}
	wg.Wait()

	subs, _, cleanups := intl.counts()
	assert.Equal(t, 50, subs)
	assert.Equal(t, 50, cleanups)
	assert.Empty(t, r.Subscribers("AAPL"))
}
