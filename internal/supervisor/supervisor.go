// Package supervisor owns the single backing-store connection: it
// deduplicates concurrent connect attempts, retries failures with capped
// exponential backoff and reconnects after the store drops.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"smartstock.app/internal/config"
	"smartstock.app/internal/domain"
)

const connectKey = "connect"

// Supervisor is safe for concurrent use. Only the supervisor moves the
// connection between phases; consumers call IsReady or EnsureConnected.
type Supervisor struct {
	driver Driver
	cfg    config.SupervisorConfig
	logger *zap.Logger

	group  singleflight.Group
	events chan Event

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	phase       Phase
	closed      bool
	attempts    int
	retryCount  int
	nextDelay   time.Duration
	backoff     *backoff.ExponentialBackOff
	retryTimer  *time.Timer
	watchCancel context.CancelFunc
}

func New(driver Driver, cfg config.SupervisorConfig, logger *zap.Logger) *Supervisor {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BaseRetryDelay
	b.MaxInterval = cfg.MaxRetryDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()

	ctx, cancel := context.WithCancel(context.Background())

	return &Supervisor{
		driver:  driver,
		cfg:     cfg,
		logger:  logger.Named("supervisor"),
		events:  make(chan Event, 16),
		ctx:     ctx,
		cancel:  cancel,
		backoff: b,
	}
}

// Run consumes driver events until ctx is done or the supervisor is closed.
// It is the only place asynchronous drops and restores change the phase.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			s.handleEvent(ev)
		}
	}
}

// Connect returns nil immediately when connected. Otherwise it joins the
// in-flight attempt or starts one; every caller of the same attempt sees the
// same result. A caller whose ctx ends first gets ctx.Err() while the
// attempt carries on.
func (s *Supervisor) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.phase == Connected {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	ch := s.group.DoChan(connectKey, func() (any, error) {
		return nil, s.attempt()
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsReady never blocks.
func (s *Supervisor) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == Connected
}

// EnsureConnected connects if needed and reports the outcome without
// returning the error; callers treat false as "temporarily unavailable".
func (s *Supervisor) EnsureConnected(ctx context.Context) bool {
	if s.IsReady() {
		return true
	}
	return s.Connect(ctx) == nil
}

func (s *Supervisor) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// RetryCount is the number of consecutive failed attempts.
func (s *Supervisor) RetryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryCount
}

// NextRetryDelay is the delay armed after the last failure, zero after a success.
func (s *Supervisor) NextRetryDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextDelay
}

// Close stops timers and the health watch and closes the driver. Later
// Connect calls return ErrClosed.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopRetryTimerLocked()
	s.stopWatchLocked()
	s.phase = Disconnected
	s.mu.Unlock()

	s.cancel()
	s.logger.Info("closed")
	return s.driver.Close()
}

func (s *Supervisor) attempt() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.phase == Connected {
		s.mu.Unlock()
		return nil
	}
	s.stopRetryTimerLocked()
	s.phase = Connecting
	s.attempts++
	n := s.attempts
	s.mu.Unlock()

	s.logger.Info("connecting", zap.Int("attempt", n))

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.ConnectTimeout)
	err := s.driver.Connect(ctx)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if err != nil {
		s.phase = Disconnected
		delay := s.backoff.NextBackOff()
		s.nextDelay = delay
		s.retryCount++
		s.scheduleRetryLocked(delay)
		s.logger.Warn("connect failed, retry scheduled",
			zap.Int("attempt", n),
			zap.Int("retry_count", s.retryCount),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)
		return &domain.ConnectionError{Attempt: n, Err: err}
	}

	s.phase = Connected
	s.retryCount = 0
	s.nextDelay = 0
	s.backoff.Reset()
	s.startWatchLocked()
	s.logger.Info("connected", zap.Int("attempt", n))
	return nil
}

func (s *Supervisor) handleEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	switch ev.Kind {
	case EventDropped:
		if s.phase != Connected {
			return
		}
		s.phase = Reconnecting
		s.scheduleRetryLocked(s.cfg.ReconnectDelay)
		s.logger.Warn("connection dropped, reconnecting",
			zap.Duration("reconnect_in", s.cfg.ReconnectDelay),
			zap.Error(ev.Err),
		)
	case EventRestored:
		if s.phase == Connected || s.phase == Connecting {
			return
		}
		s.stopRetryTimerLocked()
		s.phase = Connected
		s.retryCount = 0
		s.nextDelay = 0
		s.backoff.Reset()
		s.logger.Info("connection restored")
	}
}

func (s *Supervisor) scheduleRetryLocked(delay time.Duration) {
	s.stopRetryTimerLocked()
	s.retryTimer = time.AfterFunc(delay, func() {
		// Failures are logged in attempt and re-armed there.
		_ = s.Connect(s.ctx)
	})
}

func (s *Supervisor) stopRetryTimerLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

func (s *Supervisor) startWatchLocked() {
	s.stopWatchLocked()
	ctx, cancel := context.WithCancel(s.ctx)
	s.watchCancel = cancel
	go s.driver.Watch(ctx, s.events)
}

func (s *Supervisor) stopWatchLocked() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
}
