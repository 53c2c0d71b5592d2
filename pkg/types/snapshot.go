package types

// Phase is the table phase as sent by the authority. Clients only
// special-case LOBBY and RESULT; everything else is an in-round phase.
type Phase string

const (
	PhaseLobby    Phase = "LOBBY"
	PhasePreflop  Phase = "PREFLOP"
	PhaseFlop     Phase = "FLOP"
	PhaseTurn     Phase = "TURN"
	PhaseRiver    Phase = "RIVER"
	PhaseShowdown Phase = "SHOWDOWN"
	PhaseResult   Phase = "RESULT"
)

type PhaseKind int

const (
	KindActive PhaseKind = iota
	KindLobby
	KindResult
)

// Kind classifies a phase. Unrecognised phases are treated as active so a
// newer authority never breaks an older client.
func (p Phase) Kind() PhaseKind {
	switch p {
	case PhaseLobby:
		return KindLobby
	case PhaseResult:
		return KindResult
	default:
		return KindActive
	}
}

// Known reports whether the phase is one this build recognises.
func (p Phase) Known() bool {
	switch p {
	case PhaseLobby, PhasePreflop, PhaseFlop, PhaseTurn, PhaseRiver, PhaseShowdown, PhaseResult:
		return true
	}
	return false
}

type ViewerRole string

const (
	RolePlayer   ViewerRole = "player"
	RoleObserver ViewerRole = "observer"
	RoleUnknown  ViewerRole = "unknown"
)

type Card struct {
	Suit    string `json:"suit"`
	Rank    string `json:"rank"`
	Display string `json:"displayString"`
}

// IsRed is true for hearts and diamonds.
func (c Card) IsRed() bool { return c.Suit == "♥" || c.Suit == "♦" }

type ChipRecord struct {
	Value int    `json:"value"`
	Color string `json:"color"`
}

type PlayerView struct {
	PlayerID       PlayerID     `json:"playerId"`
	Name           string       `json:"name"`
	IsObserver     bool         `json:"isObserver"`
	Hand           []Card       `json:"hand"`
	Chip           *int         `json:"chip"`
	ChipHistory    []ChipRecord `json:"chipHistory"`
	IsSettled      bool         `json:"isSettled"`
	IsConnected    bool         `json:"isConnected"`
	DisconnectedAt *float64     `json:"disconnectedAt"` // unix seconds
}

// HasChip treats a zero chip like no chip; chip values start at 1.
func (p PlayerView) HasChip() bool { return p.Chip != nil && *p.Chip > 0 }

// Snapshot is one complete table state as seen by a single viewer. Each
// snapshot replaces the previous one; there are no deltas.
type Snapshot struct {
	Version        int          `json:"version"`
	Phase          Phase        `json:"phase"`
	ChipColor      string       `json:"chipColor"`
	Vaults         int          `json:"vaults"`
	Alarms         int          `json:"alarms"`
	CommunityCards []Card       `json:"communityCards"`
	ChipsAvailable []int        `json:"chipsAvailable"`
	ResultMessage  string       `json:"resultMessage,omitempty"`
	Players        []PlayerView `json:"players"`
	Me             *PlayerView  `json:"me"`
	ViewerRole     ViewerRole   `json:"viewerRole"`
}

// Player looks up a seat by id.
func (s *Snapshot) Player(id PlayerID) (PlayerView, bool) {
	for _, p := range s.Players {
		if p.PlayerID == id {
			return p, true
		}
	}
	return PlayerView{}, false
}
