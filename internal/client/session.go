package client

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/heist-sync/internal/channel"
	"github.com/DoyleJ11/heist-sync/internal/identity"
	"github.com/DoyleJ11/heist-sync/internal/view"
	"github.com/DoyleJ11/heist-sync/pkg/types"
)

var ErrChannelClosed = errors.New("channel closed")

// Renderer draws view models. Alert shows a rejection from the authority.
type Renderer interface {
	Render(m view.Model)
	Alert(msg string)
}

type Option func(*Session)

func WithClock(c clockwork.Clock) Option { return func(s *Session) { s.clock = c } }

func WithLogger(l *zap.Logger) Option { return func(s *Session) { s.log = l } }

func WithReducer(r view.Reducer) Option { return func(s *Session) { s.reducer = r } }

// Session is the client event loop. Channel events and clock ticks are
// handled one at a time on the goroutine running Run.
type Session struct {
	ch        channel.Channel
	handshake *Handshake
	ids       *identity.Store
	renderer  Renderer
	reducer   view.Reducer
	clock     clockwork.Clock
	log       *zap.Logger

	latest atomic.Pointer[types.Snapshot]
}

func NewSession(ch channel.Channel, ids *identity.Store, r Renderer, opts ...Option) *Session {
	s := &Session{
		ch:        ch,
		handshake: NewHandshake(ch, ids),
		ids:       ids,
		renderer:  r,
		clock:     clockwork.NewRealClock(),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Latest returns the last snapshot received, or nil before the first one.
func (s *Session) Latest() *types.Snapshot { return s.latest.Load() }

// Run processes events until ctx ends or the channel's event stream closes.
func (s *Session) Run(ctx context.Context) error {
	ticker := NewClockTicker(s.clock, TickInterval)
	defer ticker.Stop()

	events := s.ch.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return ErrChannelClosed
			}
			s.handle(ctx, ev)
		case now := <-ticker.C():
			s.render(now)
		}
	}
}

func (s *Session) handle(ctx context.Context, ev channel.Event) {
	switch ev := ev.(type) {
	case channel.EventConnected:
		s.log.Info("connected", zap.Uint64("conn", ev.Conn))
	case channel.EventTransportError:
		s.log.Warn("transport error", zap.Uint64("conn", ev.Conn), zap.Error(ev.Err))
	case channel.EventMessage:
		s.handleMessage(ctx, ev)
	}
}

func (s *Session) handleMessage(ctx context.Context, msg channel.EventMessage) {
	env := types.Envelope{Type: msg.Type, Data: msg.Data}
	switch msg.Type {
	case types.MsgRequestJoin:
		sent, err := s.handshake.Answer(ctx, msg.Conn)
		if err != nil {
			s.log.Warn("join not sent", zap.Uint64("conn", msg.Conn), zap.Error(err))
			return
		}
		if !sent {
			s.log.Debug("duplicate join request ignored", zap.Uint64("conn", msg.Conn))
		}

	case types.MsgGameUpdate:
		var snap types.Snapshot
		if err := env.Decode(&snap); err != nil {
			s.log.Warn("bad snapshot", zap.Error(err))
			return
		}
		s.latest.Store(&snap)
		s.confirmName(ctx, &snap)
		s.render(s.clock.Now())

	case types.MsgError:
		var text string
		if err := env.Decode(&text); err != nil {
			s.log.Warn("bad error frame", zap.Error(err))
			return
		}
		s.renderer.Alert(text)

	default:
		s.log.Debug("unknown message", zap.String("type", msg.Type))
	}
}

// confirmName stores the name the authority shows on our seat. A rename the
// authority rejected never reaches the store, so the next join cannot carry it.
func (s *Session) confirmName(ctx context.Context, snap *types.Snapshot) {
	if snap.Me == nil {
		return
	}
	id, err := s.ids.GetOrCreate(ctx)
	if err != nil {
		s.log.Warn("identity unavailable", zap.Error(err))
		return
	}
	if id.ID != snap.Me.PlayerID || id.DisplayName == snap.Me.Name {
		return
	}
	if err := s.ids.SetDisplayName(ctx, snap.Me.Name); err != nil {
		s.log.Warn("failed to persist display name", zap.Error(err))
	}
}

func (s *Session) render(now time.Time) {
	snap := s.latest.Load()
	if snap == nil {
		return
	}
	m := s.reducer.Reduce(snap, now)
	if !m.Joined {
		return
	}
	s.renderer.Render(m)
}
