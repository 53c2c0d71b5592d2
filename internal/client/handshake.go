package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/DoyleJ11/heist-sync/internal/command"
	"github.com/DoyleJ11/heist-sync/internal/identity"
	"github.com/DoyleJ11/heist-sync/pkg/types"
)

// Handshake answers the authority's requestJoin with the stored identity.
// It answers at most once per connection; a reconnect gets a fresh answer
// so the authority can re-bind the same seat to the new connection.
type Handshake struct {
	tr  command.Transport
	ids *identity.Store

	mu       sync.Mutex
	answered uint64
}

func NewHandshake(tr command.Transport, ids *identity.Store) *Handshake {
	return &Handshake{tr: tr, ids: ids}
}

// Answer sends joinGame for connection conn. It returns false without
// sending when conn was already answered or is older than one that was.
func (h *Handshake) Answer(ctx context.Context, conn uint64) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn <= h.answered {
		return false, nil
	}
	id, err := h.ids.GetOrCreate(ctx)
	if err != nil {
		return false, fmt.Errorf("handshake identity: %w", err)
	}
	join := types.JoinGame{PlayerID: id.ID, Name: id.DisplayName}
	if err := h.tr.Send(ctx, types.MsgJoinGame, join); err != nil {
		return false, fmt.Errorf("handshake send: %w", err)
	}
	h.answered = conn
	return true, nil
}
