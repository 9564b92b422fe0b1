package room

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type delivery struct {
	connID  string
	event   string
	payload any
}

type recordingDeliverer struct {
	mu       sync.Mutex
	got      []delivery
	rejected map[string]bool
}

func (d *recordingDeliverer) Deliver(connID, event string, payload any) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rejected[connID] {
		return false
	}
	d.got = append(d.got, delivery{connID: connID, event: event, payload: payload})
	return true
}

func (d *recordingDeliverer) recipients() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.got))
	for _, g := range d.got {
		out = append(out, g.connID)
	}
	return out
}

func newTestBroadcaster() (*Broadcaster, *recordingDeliverer) {
	d := &recordingDeliverer{rejected: map[string]bool{}}
	return NewBroadcaster(d, zap.NewNop()), d
}

func TestBroadcaster_JoinIsIdempotent(t *testing.T) {
	b, _ := newTestBroadcaster()

	size, joined := b.Join("a", "trading-AAPL")
	assert.Equal(t, 1, size)
	assert.True(t, joined)

	size, joined = b.Join("a", "trading-AAPL")
	assert.Equal(t, 1, size)
	assert.False(t, joined)

	size, _ = b.Join("b", "trading-AAPL")
	assert.Equal(t, 2, size)
	assert.Equal(t, []string{"a", "b"}, b.Members("trading-AAPL"))
}

func TestBroadcaster_LeaveNeverJoinedIsNoop(t *testing.T) {
	b, _ := newTestBroadcaster()

	size, left := b.Leave("a", "trading-AAPL")
	assert.Zero(t, size)
	assert.False(t, left)

	b.Join("b", "trading-AAPL")
	size, left = b.Leave("a", "trading-AAPL")
	assert.Equal(t, 1, size)
	assert.False(t, left)
}

func TestBroadcaster_EmptyRoomsAreRemoved(t *testing.T) {
	b, _ := newTestBroadcaster()
	b.Join("a", "trading-AAPL")
	require.Equal(t, 1, b.RoomCount())

	size, left := b.Leave("a", "trading-AAPL")
	assert.Zero(t, size)
	assert.True(t, left)
	assert.Zero(t, b.RoomCount())
	assert.Empty(t, b.Rooms("a"))
}

func TestBroadcaster_BroadcastExcludesSender(t *testing.T) {
	tests := []struct {
		name    string
		members []string
		exclude string
		want    []string
	}{
		{name: "empty room", members: nil, exclude: "a", want: []string{}},
		{name: "sender alone", members: []string{"a"}, exclude: "a", want: []string{}},
		{name: "sender and others", members: []string{"a", "b", "c"}, exclude: "a", want: []string{"b", "c"}},
		{name: "no exclusion", members: []string{"a", "b"}, exclude: "", want: []string{"a", "b"}},
		{name: "excluded not a member", members: []string{"b"}, exclude: "z", want: []string{"b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, d := newTestBroadcaster()
			for _, m := range tt.members {
				b.Join(m, "trading-AAPL")
			}

			n := b.Broadcast("trading-AAPL", "trading-message", "hi", tt.exclude)
			assert.Equal(t, len(tt.want), n)
			assert.ElementsMatch(t, tt.want, d.recipients())
		})
	}
}

func TestBroadcaster_BroadcastSkipsRejectingMember(t *testing.T) {
	b, d := newTestBroadcaster()
	b.Join("a", "ipo-updates")
	b.Join("b", "ipo-updates")
	d.rejected["b"] = true

	n := b.Broadcast("ipo-updates", "ipo-data-updated", map[string]int{"count": 1}, "")
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"a"}, d.recipients())
}

func TestBroadcaster_LeaveAll(t *testing.T) {
	b, d := newTestBroadcaster()
	b.Join("a", "trading-AAPL")
	b.Join("a", "trading-MSFT")
	b.Join("a", "ipo-updates")
	b.Join("b", "trading-AAPL")
	assert.Equal(t, []string{"ipo-updates", "trading-AAPL", "trading-MSFT"}, b.Rooms("a"))

	left := b.LeaveAll("a")
	assert.Equal(t, map[string]int{"trading-AAPL": 1, "trading-MSFT": 0, "ipo-updates": 0}, left)
	assert.Empty(t, b.Rooms("a"))
	assert.Equal(t, 1, b.RoomCount())

	b.Broadcast("trading-AAPL", "trading-message", "x", "")
	assert.Equal(t, []string{"b"}, d.recipients())

	assert.Empty(t, b.LeaveAll("a"))
}

func TestBroadcaster_ConcurrentMembership(t *testing.T) {
	b, _ := newTestBroadcaster()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			room := fmt.Sprintf("trading-%d", len(id)%3)
			b.Join(id, room)
			b.Broadcast(room, "trading-message", "x", id)
			b.Join(id, "ipo-updates")
			b.LeaveAll(id)
		}(fmt.Sprintf("conn-%d", i))
	}
	wg.Wait()

	assert.Zero(t, b.RoomCount())
}
