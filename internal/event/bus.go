package event

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event 进程内事件
type Event struct {
	Type      string
	Source    string
	Data      any
	Timestamp time.Time
}

// Handler 事件处理函数
type Handler func(ctx context.Context, ev Event) error

// Bus decouples producers such as the Redis announcement subscriber from the
// gateway. Publish is asynchronous and never blocks; handlers for one event
// run concurrently and a failing or panicking handler does not affect the
// others.
type Bus struct {
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBus(bufferSize int, logger *zap.Logger) *Bus {
	ctx, cancel := context.WithCancel(context.Background())

	b := &Bus{
		logger:   logger.Named("bus"),
		handlers: make(map[string][]Handler),
		events:   make(chan Event, bufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	b.wg.Add(1)
	go b.loop()

	return b
}

// Subscribe 订阅事件类型
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("subscribed", zap.String("type", eventType))
}

// Publish 异步发布; false when the bus is closed or its buffer is full.
func (b *Bus) Publish(ev Event) bool {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false
	}

	select {
	case b.events <- ev:
		return true
	default:
		b.logger.Warn("event buffer full, dropping", zap.String("type", ev.Type))
		return false
	}
}

// PublishSync 同步发布, returning the handlers' joined errors.
func (b *Bus) PublishSync(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	return b.dispatch(ctx, ev)
}

func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// Shutdown stops the dispatch loop. Events still buffered are discarded.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	b.logger.Info("shutdown complete")
}

func (b *Bus) loop() {
	defer b.wg.Done()

	for {
		select {
		case ev := <-b.events:
			if err := b.dispatch(b.ctx, ev); err != nil {
				b.logger.Error("handler failed", zap.String("type", ev.Type), zap.Error(err))
			}
		case <-b.ctx.Done():
			return
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, ev Event) error {
	b.mu.RLock()
	handlers := b.handlers[ev.Type]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(handlers))
	for i, h := range handlers {
		wg.Add(1)
		go func(i int, h Handler) {
			defer wg.Done()
			errs[i] = b.call(ctx, h, ev)
		}(i, h)
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (b *Bus) call(ctx context.Context, h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic in event handler", zap.String("type", ev.Type), zap.Any("panic", r))
			err = errors.New("event handler panicked")
		}
	}()
	return h(ctx, ev)
}
