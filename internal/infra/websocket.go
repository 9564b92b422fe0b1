package infra

import (
	"sync"

	"go.uber.org/zap"

	"smartstock.app/internal/model"
)

// JSONConn is the part of a websocket connection the writer needs.
type JSONConn interface {
	WriteJSON(v any) error
	Close() error
}

// WsClient owns the write side of one websocket connection. Frames are
// queued on a buffered channel drained by a dedicated writer goroutine so a
// slow client never blocks fan-out; when the buffer is full the frame is
// dropped for this client only.
type WsClient struct {
	conn   JSONConn
	logger *zap.Logger

	mu     sync.RWMutex
	send   chan model.Envelope
	closed bool
	done   chan struct{}
}

func NewWsClient(conn JSONConn, buffer int, logger *zap.Logger) *WsClient {
	c := &WsClient{
		conn:   conn,
		logger: logger.Named("ws"),
		send:   make(chan model.Envelope, buffer),
		done:   make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// Send queues a frame without blocking.
func (c *WsClient) Send(event string, payload any) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}

	select {
	case c.send <- model.Envelope{Event: event, Data: payload}:
		return true
	default:
		c.logger.Debug("send buffer full, dropping frame", zap.String("event", event))
		return false
	}
}

// Close stops accepting frames and waits for the writer to flush what is
// already queued. It does not close the underlying connection.
func (c *WsClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	<-c.done
}

func (c *WsClient) writeLoop() {
	defer close(c.done)

	for env := range c.send {
		if err := c.conn.WriteJSON(env); err != nil {
			c.logger.Debug("write failed, closing connection", zap.Error(err))
			_ = c.conn.Close()
			return
		}
	}
}
