package api

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartstock.app/internal/constants"
	"smartstock.app/internal/model"
)

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func startServer(t *testing.T) (string, *fakeStore) {
	t.Helper()
	store := &fakeStore{}
	app, _ := newTestApp(store, fakeWatchlist{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.ShutdownWithTimeout(time.Second) })

	return "ws://" + ln.Addr().String() + "/ws", store
}

func dial(t *testing.T, url string) *gws.Conn {
	t.Helper()
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func emit(t *testing.T, conn *gws.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

// next reads frames until one named event arrives.
func next(t *testing.T, conn *gws.Conn, event string) wireFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f wireFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Event == event {
			return f
		}
	}
}

func TestWebsocket_TradingRoomExcludesSender(t *testing.T) {
	url, _ := startServer(t)
	a := dial(t, url)
	b := dial(t, url)

	emit(t, a, constants.EventJoinTradingRoom, "TCS")
	next(t, a, constants.EventRoomUsersCount)

	emit(t, b, constants.EventJoinTradingRoom, "TCS")
	var count model.RoomUsersCount
	require.NoError(t, json.Unmarshal(next(t, b, constants.EventRoomUsersCount).Data, &count))
	assert.Equal(t, model.RoomUsersCount{Room: "trading-TCS", Count: 2}, count)

	emit(t, a, constants.EventTradingMessage, map[string]any{
		"symbol":  "TCS",
		"message": "breakout above 4000",
		"id":      1,
	})

	var msg model.ChatMessage
	require.NoError(t, json.Unmarshal(next(t, b, constants.EventTradingMessage).Data, &msg))
	assert.Equal(t, "breakout above 4000", msg.Message)
	assert.Equal(t, constants.AnonymousUser, msg.UserID)
	assert.Greater(t, msg.ID, int64(1))
	assert.WithinDuration(t, time.Now(), msg.Timestamp, time.Minute)

	// A only ever sees membership counts, never its own message.
	require.NoError(t, a.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	for {
		var f wireFrame
		if err := a.ReadJSON(&f); err != nil {
			break
		}
		assert.NotEqual(t, constants.EventTradingMessage, f.Event)
	}
}

func TestWebsocket_RejectedRequestReturnsError(t *testing.T) {
	url, _ := startServer(t)
	a := dial(t, url)

	emit(t, a, constants.EventSubscribePrice, "  ")

	var e model.ErrorMessage
	require.NoError(t, json.Unmarshal(next(t, a, constants.EventError).Data, &e))
	assert.Equal(t, constants.EventSubscribePrice, e.Event)
	assert.NotEmpty(t, e.Message)

	// The connection stays usable.
	emit(t, a, constants.EventJoinTradingRoom, "AAPL")
	next(t, a, constants.EventRoomUsersCount)
}
