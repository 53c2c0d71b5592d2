package engine

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/DoyleJ11/heist-sync/internal/rules"
	"github.com/DoyleJ11/heist-sync/pkg/types"
)

// PhaseOrder is the in-round progression once a heist starts.
var PhaseOrder = []types.Phase{
	types.PhasePreflop,
	types.PhaseFlop,
	types.PhaseTurn,
	types.PhaseRiver,
	types.PhaseShowdown,
	types.PhaseResult,
}

var ChipColors = map[types.Phase]string{
	types.PhasePreflop:  "White",
	types.PhaseFlop:     "Yellow",
	types.PhaseTurn:     "Orange",
	types.PhaseRiver:    "Red",
	types.PhaseShowdown: "Red",
	types.PhaseResult:   "Red",
}

type Player struct {
	ID             types.PlayerID
	Name           string
	IsObserver     bool
	Hand           []rules.Card
	Chip           int // 0 means no chip
	ChipHistory    []types.ChipRecord
	IsSettled      bool
	IsConnected    bool
	DisconnectedAt time.Time
}

type Rules struct {
	MinPlayers   int
	WinThreshold int
	// NewDeck is swapped in tests to deal a known order.
	NewDeck func() *rules.Deck
}

func (r Rules) newDeck() *rules.Deck {
	if r.NewDeck != nil {
		return r.NewDeck()
	}
	return rules.NewDeck()
}

func DefaultRules() Rules {
	return Rules{MinPlayers: 3, WinThreshold: 3}
}

type State struct {
	Players        map[types.PlayerID]*Player
	Order          []types.PlayerID // join order
	Sessions       map[types.SessionID]types.PlayerID
	Community      []rules.Card
	Deck           *rules.Deck
	PhaseIndex     int
	Started        bool
	ChipsAvailable []int
	Result         string
	Vaults         int
	Alarms         int
	Rules          Rules
}

func NewEmptyState(r Rules) State {
	return State{
		Players:  map[types.PlayerID]*Player{},
		Sessions: map[types.SessionID]types.PlayerID{},
		Rules:    r,
	}
}

// Clone deep-copies everything Apply mutates.
func (s State) Clone() State {
	c := s
	c.Players = make(map[types.PlayerID]*Player, len(s.Players))
	for id, p := range s.Players {
		cp := *p
		cp.Hand = slices.Clone(p.Hand)
		cp.ChipHistory = slices.Clone(p.ChipHistory)
		c.Players[id] = &cp
	}
	c.Order = slices.Clone(s.Order)
	c.Sessions = maps.Clone(s.Sessions)
	if c.Sessions == nil {
		c.Sessions = map[types.SessionID]types.PlayerID{}
	}
	c.Community = slices.Clone(s.Community)
	c.Deck = s.Deck.Clone()
	c.ChipsAvailable = slices.Clone(s.ChipsAvailable)
	return c
}

func (s *State) Phase() types.Phase {
	if !s.Started {
		return types.PhaseLobby
	}
	if s.PhaseIndex >= len(PhaseOrder) {
		return types.PhaseResult
	}
	return PhaseOrder[s.PhaseIndex]
}

func (s *State) ChipColor() string {
	if c, ok := ChipColors[s.Phase()]; ok {
		return c
	}
	return ChipColors[types.PhasePreflop]
}

// inRound is true while chips can still move.
func (s *State) inRound() bool {
	switch s.Phase() {
	case types.PhasePreflop, types.PhaseFlop, types.PhaseTurn, types.PhaseRiver:
		return true
	}
	return false
}

func (s *State) gameOver() bool {
	return s.Vaults >= s.Rules.WinThreshold || s.Alarms >= s.Rules.WinThreshold
}

func (s *State) canAct(p *Player) error {
	if !s.inRound() {
		return ErrNotInRound
	}
	if p.IsObserver || len(p.Hand) < 2 {
		return ErrObserver
	}
	return nil
}

// allSettled requires every connected active player to be settled on a chip.
// Disconnected players never hold up the table.
func (s *State) allSettled() bool {
	seen := false
	for _, id := range s.Order {
		p := s.Players[id]
		if !p.IsConnected || p.IsObserver {
			continue
		}
		seen = true
		if !p.IsSettled || p.Chip == 0 {
			return false
		}
	}
	return seen
}

func (s *State) releaseChip(p *Player) {
	if p.Chip == 0 {
		return
	}
	s.ChipsAvailable = append(s.ChipsAvailable, p.Chip)
	slices.Sort(s.ChipsAvailable)
	p.Chip = 0
}

// setupPhaseChips puts chips 1..n back in the bank for n active players.
func (s *State) setupPhaseChips() {
	n := 0
	for _, id := range s.Order {
		p := s.Players[id]
		p.Chip = 0
		p.IsSettled = false
		if !p.IsObserver {
			n++
		}
	}
	s.ChipsAvailable = make([]int, 0, n)
	for v := 1; v <= n; v++ {
		s.ChipsAvailable = append(s.ChipsAvailable, v)
	}
}

// reset drops back to the lobby with fresh counters. Seats are kept.
func (s *State) reset() {
	s.Started = false
	s.PhaseIndex = 0
	s.Vaults, s.Alarms = 0, 0
	s.Community = nil
	s.Deck = nil
	s.ChipsAvailable = nil
	s.Result = ""
	for _, p := range s.Players {
		p.IsObserver = false
		p.Hand = nil
		p.Chip = 0
		p.ChipHistory = nil
		p.IsSettled = false
	}
}

func (s *State) nameTaken(name string, except types.PlayerID) bool {
	fold := cases.Fold()
	want := fold.String(name)
	for id, p := range s.Players {
		if id != except && fold.String(p.Name) == want {
			return true
		}
	}
	return false
}

func (s *State) guestName(id types.PlayerID) string {
	tag := strings.ToUpper(strings.ReplaceAll(string(id), "-", ""))
	if len(tag) > 4 {
		tag = tag[:4]
	}
	name := "Guest " + tag
	for n := 2; s.nameTaken(name, id); n++ {
		name = fmt.Sprintf("Guest %s %d", tag, n)
	}
	return name
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
