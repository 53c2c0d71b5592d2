package lobby

import (
	"context"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/heist-sync/internal/engine"
	"github.com/DoyleJ11/heist-sync/pkg/types"
)

type Msg interface{ isLobbyMsg() }

// FromClient carries a command from one session. The lobby fills in
// Cmd.Session and Cmd.At.
type FromClient struct {
	Session types.SessionID
	Cmd     engine.Command
}

func (FromClient) isLobbyMsg() {}

// Join registers a new connection. The lobby immediately asks it to
// identify itself with requestJoin.
type Join struct {
	Session types.SessionID
	Outbox  chan Outbound
}

func (Join) isLobbyMsg() {}

type Leave struct{ Session types.SessionID }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

// Outbound is one frame for one session.
type Outbound struct {
	Type    string
	Payload any
}

type View struct {
	Version     int
	NumSessions int
	State       engine.State
}

type Option func(*Lobby)

func WithClock(c clockwork.Clock) Option { return func(l *Lobby) { l.clock = c } }

func WithLogger(log *zap.Logger) Option { return func(l *Lobby) { l.log = log } }

// Lobby owns one table. All state lives on the loop goroutine; everything
// else talks to it through Inbox.
type Lobby struct {
	inbox    chan Msg
	state    engine.State
	version  int
	sessions map[types.SessionID]chan Outbound
	clock    clockwork.Clock
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewLobby(parent context.Context, initial engine.State, opts ...Option) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		inbox:    make(chan Msg, 64),
		state:    initial,
		sessions: make(map[types.SessionID]chan Outbound),
		clock:    clockwork.NewRealClock(),
		log:      zap.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				l.sessions[msg.Session] = msg.Outbox
				l.log.Debug("session opened", zap.String("session_id", string(msg.Session)))
				l.send(msg.Session, Outbound{Type: types.MsgRequestJoin})
				l.send(msg.Session, l.snapshotFor(msg.Session))

			case Leave:
				delete(l.sessions, msg.Session)
				l.log.Debug("session closed", zap.String("session_id", string(msg.Session)))
				l.apply(msg.Session, engine.Command{Type: engine.CmdDisconnect})

			case FromClient:
				l.apply(msg.Session, msg.Cmd)

			case GetState:
				// test-only: reflect internal state without data races
				msg.Reply <- View{
					Version:     l.version,
					NumSessions: len(l.sessions),
					State:       l.state,
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

// apply runs one command. A rejection goes back to the sender only; an
// accepted command that changed something bumps the version and fans out.
func (l *Lobby) apply(session types.SessionID, cmd engine.Command) {
	cmd.Session = session
	cmd.At = l.clock.Now()

	events, newState, err := engine.Apply(l.state, cmd)
	if err != nil {
		l.log.Debug("command rejected",
			zap.String("session_id", string(session)),
			zap.String("command", string(cmd.Type)),
			zap.Error(err))
		l.send(session, Outbound{Type: types.MsgError, Payload: err.Error()})
		return
	}
	if len(events) == 0 {
		return
	}

	l.state = newState
	l.version++
	for _, ev := range events {
		l.log.Info("table event",
			zap.String("event", string(ev.Type)),
			zap.String("player_id", string(ev.PlayerID)),
			zap.String("detail", ev.Detail),
			zap.Int("version", l.version))
	}
	l.broadcast()
}

func (l *Lobby) snapshotFor(session types.SessionID) Outbound {
	viewer := l.state.Sessions[session]
	snap := engine.SnapshotFor(l.state, viewer, l.version)
	return Outbound{Type: types.MsgGameUpdate, Payload: snap}
}

func (l *Lobby) shutdown() {
	for id, ch := range l.sessions {
		close(ch) // Tell the connection no more frames are coming
		delete(l.sessions, id)
	}
	l.cancel()
}

// broadcast sends every session its own view of the table.
func (l *Lobby) broadcast() {
	for id := range l.sessions {
		l.send(id, l.snapshotFor(id))
	}
}

func (l *Lobby) send(id types.SessionID, frame Outbound) {
	ch, ok := l.sessions[id]
	if !ok {
		return
	}
	select {
	case ch <- frame:
	default:
		// Session is slow/full - drop it. Its connection sees the closed
		// outbox, hangs up and comes back through Leave.
		l.log.Warn("dropping slow session", zap.String("session_id", string(id)))
		close(ch)
		delete(l.sessions, id)
	}
}

// Inbox exposes the inbox so tests or the WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed once the lobby has stopped.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }
