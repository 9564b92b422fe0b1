package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"smartstock.app/internal/constants"
	"smartstock.app/internal/model"
)

func TestStamper_DefaultsAnonymous(t *testing.T) {
	s := NewStamper()

	msg := s.Stamp(model.TradingMessageRequest{Symbol: "AAPL", Message: "buy"})
	assert.Equal(t, constants.AnonymousUser, msg.UserID)
	assert.Equal(t, "AAPL", msg.Symbol)
	assert.Equal(t, "buy", msg.Message)
	assert.False(t, msg.Timestamp.IsZero())

	msg = s.Stamp(model.TradingMessageRequest{Symbol: "AAPL", Message: "sell", UserID: "u-1"})
	assert.Equal(t, "u-1", msg.UserID)
}

func TestStamper_IDsStrictlyIncrease(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	s := NewStamper()
	s.now = func() time.Time { return fixed }

	first := s.Stamp(model.TradingMessageRequest{})
	second := s.Stamp(model.TradingMessageRequest{})
	assert.Equal(t, fixed.UnixMilli(), first.ID)
	assert.Equal(t, first.ID+1, second.ID)

	// Clock going backwards still yields a fresh id.
	s.now = func() time.Time { return fixed.Add(-time.Minute) }
	third := s.Stamp(model.TradingMessageRequest{})
	assert.Greater(t, third.ID, second.ID)
}
