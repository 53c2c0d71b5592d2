package view

import (
	"github.com/DoyleJ11/heist-sync/pkg/types"
)

// Model is everything a renderer needs for one frame. It is rebuilt from
// scratch on every snapshot and every tick; nothing in it outlives the call.
type Model struct {
	// Joined is false until the authority has bound this client to a seat.
	// Renderers draw nothing while it is false.
	Joined bool

	Phase      types.Phase
	PhaseKind  types.PhaseKind
	PhaseKnown bool
	// Header is empty in RESULT, where Result takes over.
	Header string
	Result *Result

	Vaults    int
	Alarms    int
	ChipColor string
	ChipClass string

	CommunityCards []CardView
	Bank           []int
	BankEnabled    bool

	Me        *Seat
	Opponents []Seat

	SettleEnabled bool
	SettleLabel   string
	ReturnEnabled bool
}

type Result struct {
	Message string
	Success bool
	Actions []Action
}

// Intent names the command an action triggers.
type Intent int

const (
	IntentStartGame Intent = iota
	IntentRestartGame
)

type Action struct {
	Label        string
	Intent       Intent
	NeedsConfirm bool
}

type CardView struct {
	Display string
	Red     bool
}

type ChipMark struct {
	Value int
	Class string
}

// Seat is one player as rendered. Chip is zero when the seat holds none.
type Seat struct {
	PlayerID  types.PlayerID
	Name      string
	Observer  bool
	Hand      []CardView
	Chip      int
	History   []ChipMark
	Settled   bool
	Connected bool

	StatusLabel     string
	DisconnectedFor string
	Removable       bool
	// Stealable is set when the local player may take this seat's chip.
	Stealable bool
}

func (s Seat) HasChip() bool { return s.Chip > 0 }
