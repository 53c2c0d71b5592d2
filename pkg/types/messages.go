package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Message names. Authority -> client:
//
//	requestJoin   (no data)      ask the session to identify itself
//	gameUpdate    Snapshot       full replacement of table state
//	error         string         a command was rejected
//
// Client -> authority:
//
//	joinGame      JoinGame
//	startGame     (no data)
//	restartGame   (no data)
//	changeName    string
//	takeChip      TakeChip
//	returnChip    (no data)
//	toggleSettle  (no data)
//	removePlayer  RemovePlayer
const (
	MsgRequestJoin = "requestJoin"
	MsgGameUpdate  = "gameUpdate"
	MsgError       = "error"

	MsgJoinGame     = "joinGame"
	MsgStartGame    = "startGame"
	MsgRestartGame  = "restartGame"
	MsgChangeName   = "changeName"
	MsgTakeChip     = "takeChip"
	MsgReturnChip   = "returnChip"
	MsgToggleSettle = "toggleSettle"
	MsgRemovePlayer = "removePlayer"
)

// Message is the typed form of an outgoing frame.
type Message[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data,omitempty"`
}

// Envelope is the decode side of Message; Data is left raw until the type is known.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode marshals a frame. A nil payload produces a frame without data.
func Encode(msgType string, payload any) ([]byte, error) {
	return json.Marshal(Message[any]{Type: msgType, Data: payload})
}

// Decode unmarshals the data of an envelope into v. Empty data leaves v untouched.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", e.Type, err)
	}
	return nil
}

// PlayerID is the durable seat key. It survives reconnects.
type PlayerID string

// SessionID identifies one transport connection on the authority. It changes
// on every reconnect and must never be used to address a seat.
type SessionID string

type JoinGame struct {
	PlayerID PlayerID `json:"playerId"`
	Name     string   `json:"name"`
}

type TakeChip struct {
	ChipValue int        `json:"chipValue"`
	Source    ChipSource `json:"source"`
}

type RemovePlayer struct {
	TargetPlayerID PlayerID `json:"targetPlayerId"`
}

const centerSource = "center"

var ErrInvalidSource = errors.New("chip source must be \"center\" or a player id")

// ChipSource is where a chip is taken from: the shared bank or another
// player's seat. It can only be built from Center or FromPlayer.
type ChipSource struct {
	player PlayerID
	center bool
}

func Center() ChipSource { return ChipSource{center: true} }

func FromPlayer(id PlayerID) ChipSource { return ChipSource{player: id} }

func (s ChipSource) IsCenter() bool { return s.center }

// Player returns the seat a steal targets; ok is false for the bank.
func (s ChipSource) Player() (PlayerID, bool) {
	if s.center || s.player == "" {
		return "", false
	}
	return s.player, true
}

func (s ChipSource) Valid() bool {
	return s.center || strings.TrimSpace(string(s.player)) != ""
}

func (s ChipSource) String() string {
	if s.center {
		return centerSource
	}
	return string(s.player)
}

func (s ChipSource) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, ErrInvalidSource
	}
	return json.Marshal(s.String())
}

func (s *ChipSource) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return ErrInvalidSource
	}
	raw = strings.TrimSpace(raw)
	switch raw {
	case "":
		return ErrInvalidSource
	case centerSource:
		*s = Center()
	default:
		*s = FromPlayer(PlayerID(raw))
	}
	return nil
}
