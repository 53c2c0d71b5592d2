package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChipSourceJSON(t *testing.T) {
	b, err := json.Marshal(TakeChip{ChipValue: 2, Source: Center()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"chipValue":2,"source":"center"}`, string(b))

	b, err = json.Marshal(TakeChip{ChipValue: 3, Source: FromPlayer("p-7")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"chipValue":3,"source":"p-7"}`, string(b))

	_, err = json.Marshal(TakeChip{ChipValue: 1})
	assert.Error(t, err)

	var tc TakeChip
	require.NoError(t, json.Unmarshal([]byte(`{"chipValue":3,"source":"p-7"}`), &tc))
	id, ok := tc.Source.Player()
	assert.True(t, ok)
	assert.Equal(t, PlayerID("p-7"), id)

	for _, bad := range []string{`{"source":""}`, `{"source":7}`, `{"source":"   "}`} {
		err := json.Unmarshal([]byte(bad), &tc)
		assert.ErrorIs(t, err, ErrInvalidSource, bad)
	}
}

func TestEncodeAndDecode(t *testing.T) {
	b, err := Encode(MsgRequestJoin, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"requestJoin"}`, string(b))

	b, err = Encode(MsgJoinGame, JoinGame{PlayerID: "U1", Name: "Ann"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(b, &env))
	assert.Equal(t, MsgJoinGame, env.Type)

	var jg JoinGame
	require.NoError(t, env.Decode(&jg))
	assert.Equal(t, JoinGame{PlayerID: "U1", Name: "Ann"}, jg)

	env = Envelope{Type: MsgTakeChip, Data: json.RawMessage(`{"chipValue":"two"}`)}
	var take TakeChip
	assert.ErrorContains(t, env.Decode(&take), "decode takeChip")

	// Missing data is not an error.
	assert.NoError(t, Envelope{Type: MsgStartGame}.Decode(&take))
}

func TestSnapshotHelpers(t *testing.T) {
	one := 1
	snap := Snapshot{Players: []PlayerView{{PlayerID: "a", Chip: &one}, {PlayerID: "b"}}}

	a, ok := snap.Player("a")
	require.True(t, ok)
	assert.True(t, a.HasChip())

	b, _ := snap.Player("b")
	assert.False(t, b.HasChip())

	_, ok = snap.Player("zz")
	assert.False(t, ok)

	assert.Equal(t, KindLobby, PhaseLobby.Kind())
	assert.Equal(t, KindResult, PhaseResult.Kind())
	assert.Equal(t, KindActive, Phase("HEIST").Kind())
	assert.False(t, Phase("HEIST").Known())
}

func TestCardWireNames(t *testing.T) {
	b, err := json.Marshal(Card{Suit: "♥", Rank: "10", Display: "10♥"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"suit":"♥","rank":"10","displayString":"10♥"}`, string(b))
}
