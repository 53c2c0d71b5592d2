package engine

import (
	"slices"

	"github.com/DoyleJ11/heist-sync/internal/rules"
	"github.com/DoyleJ11/heist-sync/pkg/types"
)

// SnapshotFor renders the table as one viewer may see it. Hands are hidden
// except the viewer's own, all of them for observers, and all of them once
// the heist is in RESULT. An empty viewer gets a snapshot with no Me.
func SnapshotFor(s State, viewer types.PlayerID, version int) types.Snapshot {
	phase := s.Phase()
	showAll := phase == types.PhaseResult

	me := s.Players[viewer]
	role := types.RoleUnknown
	if me != nil {
		role = types.RolePlayer
		if me.IsObserver {
			role = types.RoleObserver
		}
	}

	chips := slices.Clone(s.ChipsAvailable)
	slices.Sort(chips)
	if chips == nil {
		chips = []int{}
	}

	snap := types.Snapshot{
		Version:        version,
		Phase:          phase,
		ChipColor:      s.ChipColor(),
		Vaults:         s.Vaults,
		Alarms:         s.Alarms,
		CommunityCards: rules.Views(s.Community),
		ChipsAvailable: chips,
		ResultMessage:  s.Result,
		Players:        make([]types.PlayerView, 0, len(s.Order)),
		ViewerRole:     role,
	}
	if phase != types.PhaseResult {
		snap.ResultMessage = ""
	}

	for _, id := range s.Order {
		p := s.Players[id]
		showHand := showAll || role == types.RoleObserver || id == viewer
		snap.Players = append(snap.Players, playerView(p, showHand))
	}
	if me != nil {
		v := playerView(me, true)
		snap.Me = &v
	}
	return snap
}

func playerView(p *Player, showHand bool) types.PlayerView {
	v := types.PlayerView{
		PlayerID:    p.ID,
		Name:        p.Name,
		IsObserver:  p.IsObserver,
		Hand:        []types.Card{},
		ChipHistory: slices.Clone(p.ChipHistory),
		IsSettled:   p.IsSettled,
		IsConnected: p.IsConnected,
	}
	if v.ChipHistory == nil {
		v.ChipHistory = []types.ChipRecord{}
	}
	if showHand {
		v.Hand = rules.Views(p.Hand)
	}
	if p.Chip != 0 {
		chip := p.Chip
		v.Chip = &chip
	}
	if !p.IsConnected && !p.DisconnectedAt.IsZero() {
		at := float64(p.DisconnectedAt.UnixMilli()) / 1000
		v.DisconnectedAt = &at
	}
	return v
}
