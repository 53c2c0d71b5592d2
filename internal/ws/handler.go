package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/heist-sync/internal/engine"
	"github.com/DoyleJ11/heist-sync/internal/hub"
	"github.com/DoyleJ11/heist-sync/internal/lobby"
	"github.com/DoyleJ11/heist-sync/pkg/types"
)

var ErrUnknownMessage = errors.New("unknown message type")

type Options struct {
	Logger *zap.Logger
	// Rules seed the default table when it is created on first connect.
	Rules engine.Rules
	// OriginPatterns are passed to websocket.Accept. Empty means same-origin only.
	OriginPatterns []string
	WriteTimeout   time.Duration
}

func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 3 * time.Second
	}

	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")

		var (
			lb  *lobby.Lobby
			err error
		)
		if code == "" {
			code = hub.DefaultCode
			lb, err = h.Ensure(r.Context(), code, engine.NewEmptyState(opts.Rules))
		} else {
			lb, err = h.Get(r.Context(), code)
		}
		if err != nil {
			log.Debug("table lookup abandoned", zap.String("table", code), zap.Error(err))
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		if lb == nil {
			http.Error(w, "table not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Warn("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.CloseNow()

		sid := types.SessionID(uuid.NewString())
		log := log.With(zap.String("table", code), zap.String("session_id", string(sid)))
		out := make(chan lobby.Outbound, 32)

		if !post(lb, lobby.Join{Session: sid, Outbox: out}) {
			conn.Close(websocket.StatusGoingAway, "table closed")
			return
		}
		defer post(lb, lobby.Leave{Session: sid})
		log.Info("session connected")

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case frame, ok := <-out:
					if !ok {
						// Dropped by the lobby or the table shut down.
						conn.Close(websocket.StatusTryAgainLater, "session dropped")
						return
					}
					if err := write(writeCtx, conn, writeTimeout, frame.Type, frame.Payload); err != nil {
						log.Debug("write failed", zap.Error(err))
						conn.CloseNow()
						return
					}
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					log.Info("session closed")
				default:
					log.Debug("session read ended", zap.Error(err))
				}
				return
			}

			var env types.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				_ = write(r.Context(), conn, writeTimeout, types.MsgError, "bad json")
				continue
			}

			cmd, err := toEngineCommand(env)
			if err != nil {
				_ = write(r.Context(), conn, writeTimeout, types.MsgError, err.Error())
				continue
			}

			if !post(lb, lobby.FromClient{Session: sid, Cmd: cmd}) {
				return
			}
		}
	}
}

// post delivers msg unless the lobby has already stopped.
func post(lb *lobby.Lobby, msg lobby.Msg) bool {
	select {
	case lb.Inbox() <- msg:
		return true
	case <-lb.Done():
		return false
	}
}

func write(ctx context.Context, conn *websocket.Conn, timeout time.Duration, msgType string, payload any) error {
	data, err := types.Encode(msgType, payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

func toEngineCommand(env types.Envelope) (engine.Command, error) {
	switch env.Type {
	case types.MsgJoinGame:
		var jg types.JoinGame
		if err := env.Decode(&jg); err != nil {
			return engine.Command{}, err
		}
		return engine.Command{Type: engine.CmdJoin, PlayerID: jg.PlayerID, Name: jg.Name}, nil

	case types.MsgChangeName:
		var name string
		if err := env.Decode(&name); err != nil {
			return engine.Command{}, err
		}
		return engine.Command{Type: engine.CmdChangeName, Name: name}, nil

	case types.MsgTakeChip:
		var tc types.TakeChip
		if err := env.Decode(&tc); err != nil {
			return engine.Command{}, err
		}
		return engine.Command{Type: engine.CmdTakeChip, ChipValue: tc.ChipValue, Source: tc.Source}, nil

	case types.MsgRemovePlayer:
		var rp types.RemovePlayer
		if err := env.Decode(&rp); err != nil {
			return engine.Command{}, err
		}
		return engine.Command{Type: engine.CmdRemovePlayer, PlayerID: rp.TargetPlayerID}, nil

	case types.MsgStartGame:
		return engine.Command{Type: engine.CmdStartGame}, nil
	case types.MsgRestartGame:
		return engine.Command{Type: engine.CmdRestartGame}, nil
	case types.MsgReturnChip:
		return engine.Command{Type: engine.CmdReturnChip}, nil
	case types.MsgToggleSettle:
		return engine.Command{Type: engine.CmdToggleSettle}, nil

	default:
		return engine.Command{}, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
}
