package infra

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartstock.app/internal/model"
)

type fakeConn struct {
	mu      sync.Mutex
	written []model.Envelope
	failAt  int
	closed  bool
	gate    chan struct{}
}

func (c *fakeConn) WriteJSON(v any) error {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAt > 0 && len(c.written)+1 == c.failAt {
		return errors.New("broken pipe")
	}
	c.written = append(c.written, v.(model.Envelope))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) snapshot() ([]model.Envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Envelope(nil), c.written...), c.closed
}

func TestWsClient_PreservesOrder(t *testing.T) {
	conn := &fakeConn{}
	c := NewWsClient(conn, 8, zap.NewNop())

	for i := 0; i < 5; i++ {
		require.True(t, c.Send("price-update", i))
	}
	c.Close()

	written, _ := conn.snapshot()
	require.Len(t, written, 5)
	for i, env := range written {
		assert.Equal(t, "price-update", env.Event)
		assert.Equal(t, i, env.Data)
	}
}

func TestWsClient_DropsWhenFull(t *testing.T) {
	conn := &fakeConn{gate: make(chan struct{})}
	c := NewWsClient(conn, 1, zap.NewNop())

	// The writer takes the first frame and blocks on the gate; the second
	// fills the buffer and later ones are dropped.
	require.True(t, c.Send("a", 1))
	require.Eventually(t, func() bool { return c.Send("b", 2) }, time.Second, time.Millisecond)
	assert.False(t, c.Send("c", 3))

	close(conn.gate)
	c.Close()

	written, _ := conn.snapshot()
	assert.Len(t, written, 2)
}

func TestWsClient_SendAfterClose(t *testing.T) {
	c := NewWsClient(&fakeConn{}, 1, zap.NewNop())
	c.Close()
	c.Close()
	assert.False(t, c.Send("x", nil))
}

func TestWsClient_WriteErrorClosesConn(t *testing.T) {
	conn := &fakeConn{failAt: 2}
	c := NewWsClient(conn, 4, zap.NewNop())

	c.Send("a", 1)
	c.Send("b", 2)
	c.Send("c", 3)

	require.Eventually(t, func() bool {
		_, closed := conn.snapshot()
		return closed
	}, time.Second, time.Millisecond)
	c.Close()

	written, _ := conn.snapshot()
	assert.Len(t, written, 1)
}
