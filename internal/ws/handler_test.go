package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/heist-sync/internal/engine"
	"github.com/DoyleJ11/heist-sync/internal/hub"
	"github.com/DoyleJ11/heist-sync/pkg/types"
)

func TestToEngineCommand(t *testing.T) {
	cases := []struct {
		name    string
		env     string
		want    engine.Command
		wantErr error
	}{
		{
			name: "join",
			env:  `{"type":"joinGame","data":{"playerId":"U1","name":""}}`,
			want: engine.Command{Type: engine.CmdJoin, PlayerID: "U1"},
		},
		{
			name: "take from center",
			env:  `{"type":"takeChip","data":{"chipValue":2,"source":"center"}}`,
			want: engine.Command{Type: engine.CmdTakeChip, ChipValue: 2, Source: types.Center()},
		},
		{
			name: "steal",
			env:  `{"type":"takeChip","data":{"chipValue":3,"source":"p-2"}}`,
			want: engine.Command{Type: engine.CmdTakeChip, ChipValue: 3, Source: types.FromPlayer("p-2")},
		},
		{
			name:    "empty source",
			env:     `{"type":"takeChip","data":{"chipValue":3,"source":""}}`,
			wantErr: types.ErrInvalidSource,
		},
		{
			name: "rename",
			env:  `{"type":"changeName","data":"Rook"}`,
			want: engine.Command{Type: engine.CmdChangeName, Name: "Rook"},
		},
		{
			name: "remove",
			env:  `{"type":"removePlayer","data":{"targetPlayerId":"p-3"}}`,
			want: engine.Command{Type: engine.CmdRemovePlayer, PlayerID: "p-3"},
		},
		{
			name: "settle",
			env:  `{"type":"toggleSettle"}`,
			want: engine.Command{Type: engine.CmdToggleSettle},
		},
		{
			name:    "unknown",
			env:     `{"type":"LockPick"}`,
			wantErr: ErrUnknownMessage,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var env types.Envelope
			require.NoError(t, json.Unmarshal([]byte(tc.env), &env))

			got, err := toEngineCommand(env)
			if tc.wantErr != nil {
				assert.True(t, errors.Is(err, tc.wantErr), "want %v, got %v", tc.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func newServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub(ctx)
	srv := httptest.NewServer(Handler(h, Options{Rules: engine.DefaultRules()}))
	t.Cleanup(srv.Close)
	return srv, h
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+query, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) types.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var env types.Envelope
	require.NoError(t, wsjson.Read(ctx, conn, &env))
	return env
}

func TestHandler_JoinFlow(t *testing.T) {
	srv, _ := newServer(t)
	conn := dial(t, srv, "")

	assert.Equal(t, types.MsgRequestJoin, read(t, conn).Type)
	first := read(t, conn)
	require.Equal(t, types.MsgGameUpdate, first.Type)

	var snap types.Snapshot
	require.NoError(t, first.Decode(&snap))
	assert.Nil(t, snap.Me)

	ctx := context.Background()
	require.NoError(t, wsjson.Write(ctx, conn, types.Message[types.JoinGame]{
		Type: types.MsgJoinGame,
		Data: types.JoinGame{PlayerID: "U1", Name: "Ann"},
	}))

	env := read(t, conn)
	require.Equal(t, types.MsgGameUpdate, env.Type)
	require.NoError(t, env.Decode(&snap))
	require.NotNil(t, snap.Me)
	assert.Equal(t, types.PlayerID("U1"), snap.Me.PlayerID)
	assert.Equal(t, types.PhaseLobby, snap.Phase)
}

func TestHandler_ErrorFrames(t *testing.T) {
	srv, _ := newServer(t)
	conn := dial(t, srv, "")
	read(t, conn)
	read(t, conn)

	ctx := context.Background()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))
	env := read(t, conn)
	assert.Equal(t, types.MsgError, env.Type)

	// Commands before joining are rejected by the table, not the socket.
	require.NoError(t, wsjson.Write(ctx, conn, types.Message[any]{Type: types.MsgStartGame}))
	env = read(t, conn)
	require.Equal(t, types.MsgError, env.Type)
	var text string
	require.NoError(t, env.Decode(&text))
	assert.Equal(t, engine.ErrNotJoined.Error(), text)
}

func TestHandler_UnknownTableIs404(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "?code=NOPE42")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_StoppedHubAnswers503(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub(ctx)
	srv := httptest.NewServer(Handler(h, Options{Rules: engine.DefaultRules()}))
	t.Cleanup(srv.Close)
	cancel()
	<-h.Done()

	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
