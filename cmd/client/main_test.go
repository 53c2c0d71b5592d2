package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/heist-sync/internal/view"
)

func TestTableURL(t *testing.T) {
	got, err := tableURL("ws://localhost:8080/ws", "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws?code=AB12CD", got)

	got, err = tableURL("ws://localhost:8080/ws", "")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws", got)
}

func TestLineRenderer_SkipsUnchangedFrames(t *testing.T) {
	var buf bytes.Buffer
	r := newLineRenderer(&buf)

	m := view.Model{Joined: true, Header: view.HeaderLobby, Me: &view.Seat{PlayerID: "U1", Name: "Ann"}}
	r.Render(m)
	r.Render(m)
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(view.HeaderLobby)))

	m.Opponents = []view.Seat{{PlayerID: "p2", Name: "Bob", StatusLabel: view.StatusDisconnected, DisconnectedFor: "5s", Removable: true}}
	r.Render(m)
	assert.Contains(t, buf.String(), "Bob <p2> "+view.StatusDisconnected+" 5s")
	assert.Contains(t, buf.String(), "(remove)")
}

func TestFormatModel_Result(t *testing.T) {
	out := formatModel(view.Model{
		Joined: true,
		Vaults: 1,
		Result: &view.Result{
			Message: "SUCCESS! The vault is open.",
			Success: true,
			Actions: []view.Action{{Label: view.LabelNextHeist}},
		},
	})
	assert.Contains(t, out, "== RESULT (SUCCESS) ==")
	assert.Contains(t, out, "["+view.LabelNextHeist+"]")
	assert.Contains(t, out, "Vaults 1  Alarms 0")
}
