package command

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/heist-sync/pkg/types"
)

// Transport is the send half of a channel.
type Transport interface {
	Send(ctx context.Context, msgType string, payload any) error
}

// Sender turns user intents into wire messages. Every method is fire and
// forget: the effect shows up in a later snapshot or not at all. Transport
// failures are logged, never returned.
type Sender struct {
	tr      Transport
	log     *zap.Logger
	timeout time.Duration
}

func NewSender(tr Transport, log *zap.Logger) *Sender {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sender{tr: tr, log: log, timeout: 5 * time.Second}
}

func (s *Sender) StartGame(ctx context.Context) {
	s.send(ctx, types.MsgStartGame, nil)
}

// ChangeName asks the authority for a new name. Nothing is stored locally
// until a snapshot shows the name on our seat. Blank names are ignored.
func (s *Sender) ChangeName(ctx context.Context, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	s.send(ctx, types.MsgChangeName, name)
}

func (s *Sender) TakeChip(ctx context.Context, value int, src types.ChipSource) {
	if value <= 0 || !src.Valid() {
		return
	}
	s.send(ctx, types.MsgTakeChip, types.TakeChip{ChipValue: value, Source: src})
}

func (s *Sender) ReturnChip(ctx context.Context) {
	s.send(ctx, types.MsgReturnChip, nil)
}

func (s *Sender) ToggleSettle(ctx context.Context) {
	s.send(ctx, types.MsgToggleSettle, nil)
}

// RequestRestart wipes vaults and alarms for everyone, so it waits for an
// explicit Confirm.
func (s *Sender) RequestRestart() *Pending {
	return &Pending{
		prompt: "Restart the entire game?\n\nThis will reset Vaults and Alarms to 0\nand send everyone back to the lobby.",
		fire:   func(ctx context.Context) { s.send(ctx, types.MsgRestartGame, nil) },
	}
}

// RequestRemove kicks a disconnected seat. name is only used in the prompt.
func (s *Sender) RequestRemove(target types.PlayerID, name string) *Pending {
	target = types.PlayerID(strings.TrimSpace(string(target)))
	if name == "" {
		name = string(target)
	}
	return &Pending{
		prompt: fmt.Sprintf("Remove %s from the game?", name),
		fire: func(ctx context.Context) {
			if target == "" {
				return
			}
			s.send(ctx, types.MsgRemovePlayer, types.RemovePlayer{TargetPlayerID: target})
		},
	}
}

func (s *Sender) send(ctx context.Context, msgType string, payload any) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.tr.Send(ctx, msgType, payload); err != nil {
		s.log.Warn("command not sent", zap.String("type", msgType), zap.Error(err))
	}
}

// Pending is a destructive intent waiting for the user to confirm. Only the
// first Confirm or Cancel has any effect.
type Pending struct {
	prompt string
	fire   func(ctx context.Context)
	once   sync.Once
}

func (p *Pending) Prompt() string { return p.prompt }

// Confirm sends the intent. It reports whether this call was the one that
// resolved the confirmation.
func (p *Pending) Confirm(ctx context.Context) bool {
	resolved := false
	p.once.Do(func() {
		resolved = true
		p.fire(ctx)
	})
	return resolved
}

func (p *Pending) Cancel() bool {
	resolved := false
	p.once.Do(func() { resolved = true })
	return resolved
}
