package engine

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/DoyleJ11/heist-sync/internal/rules"
	"github.com/DoyleJ11/heist-sync/pkg/types"
)

var ErrNotJoined = errors.New("join the game first")
var ErrMissingPlayerID = errors.New("player id cannot be empty")
var ErrEmptyName = errors.New("name cannot be empty")
var ErrNameTaken = errors.New("name already taken")
var ErrPlayerNotFound = errors.New("player not found")
var ErrPlayerConnected = errors.New("cannot remove a connected player")
var ErrNotEnoughPlayers = errors.New("not enough players to start")
var ErrRoundInProgress = errors.New("a heist is already in progress")
var ErrNotInRound = errors.New("no heist in progress")
var ErrObserver = errors.New("observers cannot act until the next heist")
var ErrSettled = errors.New("cancel settle first")
var ErrNoChip = errors.New("you are not holding a chip")
var ErrChipUnavailable = errors.New("that chip is not available")
var ErrInvalidSource = errors.New("invalid chip source")
var ErrUnsupportedCommand = errors.New("unsupported command")

type CommandType string

const (
	CmdJoin         CommandType = "Join"
	CmdDisconnect   CommandType = "Disconnect"
	CmdChangeName   CommandType = "ChangeName"
	CmdStartGame    CommandType = "StartGame"
	CmdRestartGame  CommandType = "RestartGame"
	CmdTakeChip     CommandType = "TakeChip"
	CmdReturnChip   CommandType = "ReturnChip"
	CmdToggleSettle CommandType = "ToggleSettle"
	CmdRemovePlayer CommandType = "RemovePlayer"
)

/*
	CmdJoin         -> EvtPlayerJoined | EvtPlayerReconnected
	CmdDisconnect   -> EvtPlayerDisconnected (only when the last session of a seat drops)
	CmdStartGame    -> EvtHeistStarted
	CmdTakeChip     -> EvtChipTaken | EvtChipStolen
	CmdToggleSettle -> EvtSettleToggled -> EvtPhaseAdvanced ... -> EvtHeistScored
	CmdRestartGame  -> EvtGameReset
*/

// Command is an intent addressed by the session it arrived on. PlayerID is
// the claimed seat for CmdJoin and the target for CmdRemovePlayer.
type Command struct {
	Type      CommandType
	Session   types.SessionID
	PlayerID  types.PlayerID
	Name      string
	ChipValue int
	Source    types.ChipSource
	At        time.Time
}

type EventType string

const (
	EvtPlayerJoined       EventType = "PlayerJoined"
	EvtPlayerReconnected  EventType = "PlayerReconnected"
	EvtPlayerDisconnected EventType = "PlayerDisconnected"
	EvtPlayerRemoved      EventType = "PlayerRemoved"
	EvtNameChanged        EventType = "NameChanged"
	EvtHeistStarted       EventType = "HeistStarted"
	EvtChipTaken          EventType = "ChipTaken"
	EvtChipStolen         EventType = "ChipStolen"
	EvtChipReturned       EventType = "ChipReturned"
	EvtSettleToggled      EventType = "SettleToggled"
	EvtPhaseAdvanced      EventType = "PhaseAdvanced"
	EvtHeistScored        EventType = "HeistScored"
	EvtGameReset          EventType = "GameReset"
)

type Event struct {
	Type     EventType
	PlayerID types.PlayerID
	Detail   string
}

func Apply(s State, cmd Command) ([]Event, State, error) {
	newState := s.Clone()

	var (
		events []Event
		err    error
	)
	switch cmd.Type {
	case CmdJoin:
		events, err = join(&newState, cmd)
	case CmdDisconnect:
		events = disconnect(&newState, cmd)
	default:
		actor, ok := newState.Sessions[cmd.Session]
		if !ok {
			return nil, s, ErrNotJoined
		}
		p := newState.Players[actor]
		if p == nil {
			return nil, s, ErrPlayerNotFound
		}
		events, err = applyPlayerCommand(&newState, p, cmd)
	}
	if err != nil {
		return nil, s, err
	}
	return events, newState, nil
}

func applyPlayerCommand(s *State, p *Player, cmd Command) ([]Event, error) {
	switch cmd.Type {
	case CmdChangeName:
		return changeName(s, p, cmd.Name)
	case CmdStartGame:
		return startGame(s)
	case CmdRestartGame:
		s.reset()
		return []Event{{Type: EvtGameReset, PlayerID: p.ID}}, nil
	case CmdTakeChip:
		return takeChip(s, p, cmd.ChipValue, cmd.Source)
	case CmdReturnChip:
		return returnChip(s, p)
	case CmdToggleSettle:
		return toggleSettle(s, p)
	case CmdRemovePlayer:
		return removePlayer(s, cmd.PlayerID)
	default:
		return nil, ErrUnsupportedCommand
	}
}

func join(s *State, cmd Command) ([]Event, error) {
	id := types.PlayerID(strings.TrimSpace(string(cmd.PlayerID)))
	if id == "" {
		return nil, ErrMissingPlayerID
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		// Keep a returning player's name; new players get a guest name.
		if p := s.Players[id]; p != nil {
			name = p.Name
		} else {
			name = s.guestName(id)
		}
	}
	p, exists := s.Players[id]
	if s.nameTaken(name, id) {
		if !exists {
			return nil, ErrNameTaken
		}
		// A returning seat keeps its name rather than losing the rebind.
		name = p.Name
	}

	if prev, ok := s.Sessions[cmd.Session]; ok && prev != id {
		disconnect(s, Command{Session: cmd.Session, At: cmd.At})
	}
	s.Sessions[cmd.Session] = id

	if !exists {
		p = &Player{ID: id, Name: name, IsConnected: true}
		p.IsObserver = s.inRound()
		s.Players[id] = p
		s.Order = append(s.Order, id)
		detail := "joined"
		if p.IsObserver {
			detail = "joined as observer until the next heist"
		}
		return []Event{{Type: EvtPlayerJoined, PlayerID: id, Detail: detail}}, nil
	}

	p.Name = name
	p.IsConnected = true
	p.DisconnectedAt = time.Time{}
	detail := "reconnected"
	if s.inRound() && len(p.Hand) < 2 && !p.IsObserver {
		p.IsObserver = true
		detail = "reconnected as observer until the next heist"
	}
	if p.IsObserver {
		s.releaseChip(p)
		p.IsSettled = false
		p.Hand = nil
		p.ChipHistory = nil
	}
	return []Event{{Type: EvtPlayerReconnected, PlayerID: id, Detail: detail}}, nil
}

func disconnect(s *State, cmd Command) []Event {
	id, ok := s.Sessions[cmd.Session]
	if !ok {
		return nil
	}
	delete(s.Sessions, cmd.Session)
	p := s.Players[id]
	if p == nil {
		return nil
	}
	for _, other := range s.Sessions {
		if other == id {
			return nil
		}
	}
	p.IsConnected = false
	p.DisconnectedAt = cmd.At
	events := []Event{{Type: EvtPlayerDisconnected, PlayerID: id}}
	return append(events, s.advanceIfSettled()...)
}

func removePlayer(s *State, target types.PlayerID) ([]Event, error) {
	target = types.PlayerID(strings.TrimSpace(string(target)))
	if target == "" {
		return nil, ErrMissingPlayerID
	}
	p, ok := s.Players[target]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	if p.IsConnected {
		return nil, ErrPlayerConnected
	}
	for sid, pid := range s.Sessions {
		if pid == target {
			delete(s.Sessions, sid)
		}
	}
	s.releaseChip(p)
	delete(s.Players, target)
	s.Order = slices.DeleteFunc(s.Order, func(id types.PlayerID) bool { return id == target })
	events := []Event{{Type: EvtPlayerRemoved, PlayerID: target}}
	return append(events, s.advanceIfSettled()...), nil
}

func changeName(s *State, p *Player, name string) ([]Event, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if s.nameTaken(name, p.ID) {
		return nil, ErrNameTaken
	}
	p.Name = name
	return []Event{{Type: EvtNameChanged, PlayerID: p.ID, Detail: name}}, nil
}

func startGame(s *State) ([]Event, error) {
	if s.inRound() {
		return nil, ErrRoundInProgress
	}
	if len(s.Players) < s.Rules.MinPlayers {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrNotEnoughPlayers, s.Rules.MinPlayers, len(s.Players))
	}

	if s.gameOver() {
		s.Vaults, s.Alarms = 0, 0
	}

	s.Deck = s.Rules.newDeck()
	s.Started = true
	s.PhaseIndex = 0
	s.Community = nil
	s.Result = ""

	for _, id := range s.Order {
		p := s.Players[id]
		p.IsObserver = false
		hand, err := s.Deck.Draw(2)
		if err != nil {
			return nil, err
		}
		p.Hand = hand
		p.ChipHistory = nil
	}
	s.setupPhaseChips()
	return []Event{{Type: EvtHeistStarted, Detail: string(s.Phase())}}, nil
}

func takeChip(s *State, actor *Player, value int, src types.ChipSource) ([]Event, error) {
	if err := s.canAct(actor); err != nil {
		return nil, err
	}
	if actor.IsSettled {
		return nil, ErrSettled
	}
	if !src.Valid() {
		return nil, ErrInvalidSource
	}

	if src.IsCenter() {
		if !slices.Contains(s.ChipsAvailable, value) {
			return nil, ErrChipUnavailable
		}
		s.releaseChip(actor)
		i := slices.Index(s.ChipsAvailable, value)
		s.ChipsAvailable = slices.Delete(s.ChipsAvailable, i, i+1)
		actor.Chip = value
		return []Event{{Type: EvtChipTaken, PlayerID: actor.ID, Detail: fmt.Sprint(value)}}, nil
	}

	victimID, _ := src.Player()
	victim, ok := s.Players[victimID]
	if !ok || victim.ID == actor.ID || victim.Chip != value || value == 0 {
		// The victim may have moved the chip since the stealer saw it.
		return nil, ErrChipUnavailable
	}
	s.releaseChip(actor)
	victim.Chip = 0
	victim.IsSettled = false
	actor.Chip = value
	return []Event{{Type: EvtChipStolen, PlayerID: actor.ID, Detail: string(victim.ID)}}, nil
}

func returnChip(s *State, p *Player) ([]Event, error) {
	if err := s.canAct(p); err != nil {
		return nil, err
	}
	if p.IsSettled {
		return nil, ErrSettled
	}
	if p.Chip == 0 {
		return nil, ErrNoChip
	}
	s.releaseChip(p)
	return []Event{{Type: EvtChipReturned, PlayerID: p.ID}}, nil
}

func toggleSettle(s *State, p *Player) ([]Event, error) {
	if err := s.canAct(p); err != nil {
		return nil, err
	}
	if p.Chip == 0 {
		return nil, ErrNoChip
	}
	p.IsSettled = !p.IsSettled
	events := []Event{{Type: EvtSettleToggled, PlayerID: p.ID, Detail: fmt.Sprint(p.IsSettled)}}

	return append(events, s.advanceIfSettled()...), nil
}

// advanceIfSettled moves the round on once every seat still in play has
// settled on a chip.
func (s *State) advanceIfSettled() []Event {
	if !s.inRound() || !s.allSettled() {
		return nil
	}
	return s.nextPhase()
}

// nextPhase records the round's chips and moves on. Leaving RIVER runs the
// showdown and lands on RESULT in one step.
func (s *State) nextPhase() []Event {
	color := s.ChipColor()
	for _, id := range s.Order {
		p := s.Players[id]
		if p.IsObserver || p.Chip == 0 {
			continue
		}
		p.ChipHistory = append(p.ChipHistory, types.ChipRecord{Value: p.Chip, Color: color})
	}

	s.PhaseIndex++
	events := []Event{{Type: EvtPhaseAdvanced, Detail: string(s.Phase())}}

	switch s.Phase() {
	case types.PhaseFlop, types.PhaseTurn, types.PhaseRiver:
		n := 1
		if s.Phase() == types.PhaseFlop {
			n = 3
		}
		cards, err := s.Deck.Draw(n)
		if err == nil {
			s.Community = append(s.Community, cards...)
		}
		s.setupPhaseChips()
	case types.PhaseShowdown:
		events = append(events, s.scoreShowdown())
		s.PhaseIndex++
	}
	return events
}

func (s *State) scoreShowdown() Event {
	var holders []*Player
	for _, id := range s.Order {
		if p := s.Players[id]; !p.IsObserver && p.Chip != 0 {
			holders = append(holders, p)
		}
	}
	// Highest chip claims the strongest hand.
	slices.SortStableFunc(holders, func(a, b *Player) int { return b.Chip - a.Chip })

	claims := make([]rules.Claim, 0, len(holders))
	for _, p := range holders {
		claims = append(claims, rules.Claim{Name: p.Name, Hand: p.Hand})
	}
	outcome := rules.Showdown(s.Community, claims)

	var lines []string
	if outcome.Cracked() {
		s.Vaults++
		lines = append(lines,
			fmt.Sprintf("HEIST SUCCESS! (%d/%d)", s.Vaults, s.Rules.WinThreshold),
			fmt.Sprintf("Everyone nailed their spot. Total error: %d", outcome.TotalError))
	} else {
		s.Alarms++
		lines = append(lines,
			fmt.Sprintf("ALARM TRIPPED! (%d/%d)", s.Alarms, s.Rules.WinThreshold),
			fmt.Sprintf("Missed spots, but we learn together. Total error: %d", outcome.TotalError))
	}
	lines = append(lines, outcome.Summary()...)

	switch {
	case s.Alarms >= s.Rules.WinThreshold:
		lines = append(lines, "", "GAME OVER! THE POLICE ARRIVED!")
	case s.Vaults >= s.Rules.WinThreshold:
		lines = append(lines, "", "YOU WIN! RETIRE RICH!")
	}
	s.Result = strings.Join(lines, "\n")
	return Event{Type: EvtHeistScored, Detail: lines[0]}
}
