package room

import (
	"strings"
	"sync/atomic"
	"time"

	"smartstock.app/internal/constants"
	"smartstock.app/internal/model"
)

// Stamper assigns server-side ids and timestamps to chat messages. Ids are
// derived from the wall clock in milliseconds and never repeat or go
// backwards within a process, even when the clock does.
type Stamper struct {
	last atomic.Int64
	now  func() time.Time
}

func NewStamper() *Stamper {
	return &Stamper{now: time.Now}
}

// Stamp builds the message delivered to room members. Client-provided ids
// and timestamps are never trusted; an empty user id becomes Anonymous.
func (s *Stamper) Stamp(req model.TradingMessageRequest) model.ChatMessage {
	now := s.now()
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = constants.AnonymousUser
	}
	return model.ChatMessage{
		ID:        s.nextID(now.UnixMilli()),
		Symbol:    req.Symbol,
		Message:   req.Message,
		UserID:    userID,
		Timestamp: now.UTC(),
	}
}

func (s *Stamper) nextID(candidate int64) int64 {
	for {
		last := s.last.Load()
		id := candidate
		if id <= last {
			id = last + 1
		}
		if s.last.CompareAndSwap(last, id) {
			return id
		}
	}
}
