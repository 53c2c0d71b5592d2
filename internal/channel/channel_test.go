package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/heist-sync/pkg/types"
)

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel event")
		return nil
	}
}

// flakyServer drops the first connection right after asking for a join and
// echoes frames back on every later one.
func flakyServer(t *testing.T) (string, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()

		ctx := r.Context()
		n := conns.Add(1)
		if err := wsjson.Write(ctx, c, types.Message[any]{Type: types.MsgRequestJoin}); err != nil {
			return
		}
		if n == 1 {
			c.Close(websocket.StatusGoingAway, "restarting")
			return
		}
		for {
			var env types.Envelope
			if err := wsjson.Read(ctx, c, &env); err != nil {
				return
			}
			if err := wsjson.Write(ctx, c, env); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), &conns
}

func TestWebSocket_ReconnectBumpsGeneration(t *testing.T) {
	url, conns := flakyServer(t)
	ch := Dial(context.Background(), url, WithRetryInterval(5*time.Millisecond, 20*time.Millisecond))
	t.Cleanup(func() { _ = ch.Close() })

	assert.Equal(t, EventConnected{Conn: 1}, recvEvent(t, ch.Events()))

	msg, ok := recvEvent(t, ch.Events()).(EventMessage)
	require.True(t, ok)
	assert.Equal(t, uint64(1), msg.Conn)
	assert.Equal(t, types.MsgRequestJoin, msg.Type)

	drop, ok := recvEvent(t, ch.Events()).(EventTransportError)
	require.True(t, ok, "expected a transport error after the server hung up")
	assert.Equal(t, uint64(1), drop.Conn)
	assert.Error(t, drop.Err)

	assert.Equal(t, EventConnected{Conn: 2}, recvEvent(t, ch.Events()))
	msg = recvEvent(t, ch.Events()).(EventMessage)
	assert.Equal(t, EventMessage{Conn: 2, Type: types.MsgRequestJoin}, msg)
	assert.Equal(t, int32(2), conns.Load())

	require.NoError(t, ch.Send(context.Background(), types.MsgJoinGame, types.JoinGame{PlayerID: "U1"}))
	echo := recvEvent(t, ch.Events()).(EventMessage)
	assert.Equal(t, types.MsgJoinGame, echo.Type)

	var jg types.JoinGame
	require.NoError(t, types.Envelope{Type: echo.Type, Data: echo.Data}.Decode(&jg))
	assert.Equal(t, types.PlayerID("U1"), jg.PlayerID)
}

func TestWebSocket_DialFailuresAreReportedAndRetried(t *testing.T) {
	// Nothing listens here, so every dial fails.
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	ch := Dial(context.Background(), url, WithRetryInterval(5*time.Millisecond, 10*time.Millisecond))

	for i := 0; i < 2; i++ {
		ev, ok := recvEvent(t, ch.Events()).(EventTransportError)
		require.True(t, ok)
		assert.Equal(t, uint64(0), ev.Conn)
	}
	assert.ErrorIs(t, ch.Send(context.Background(), types.MsgStartGame, nil), ErrNotConnected)

	_ = ch.Close()
	for range ch.Events() {
	}
}

func TestWebSocket_CloseEndsEventStream(t *testing.T) {
	url, _ := flakyServer(t)
	ch := Dial(context.Background(), url, WithRetryInterval(5*time.Millisecond, 20*time.Millisecond))
	require.IsType(t, EventConnected{}, recvEvent(t, ch.Events()))

	done := make(chan struct{})
	go func() {
		_ = ch.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	for range ch.Events() {
	}
}
