package view

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/DoyleJ11/heist-sync/pkg/types"
)

const (
	HeaderLobby = "Waiting for Players..."

	LabelNextHeist    = "Next Heist"
	LabelRestartGame  = "Restart Game (Reset 0/0)"
	LabelSettle       = "I'm Settled"
	LabelCancelSettle = "Cancel Settle"

	StatusDisconnected = "⛔ DISCONNECTED"
	StatusSettled      = "✔ SETTLED"
	StatusObserving    = "OBSERVING"
	StatusThinking     = "..."
)

// DefaultSuccessMarkers are matched case-sensitively against the result text.
var DefaultSuccessMarkers = []string{"SUCCESS", "WIN"}

type Reducer struct {
	// SuccessMarkers overrides DefaultSuccessMarkers when non-empty.
	SuccessMarkers []string
}

// Reduce uses the default markers.
func Reduce(snap *types.Snapshot, now time.Time) Model {
	return Reducer{}.Reduce(snap, now)
}

// Reduce builds the view model for snap as of now. It reads snap and never
// writes to it, so it can be called again with a later now at any time.
func (r Reducer) Reduce(snap *types.Snapshot, now time.Time) Model {
	if snap == nil {
		return Model{}
	}

	kind := snap.Phase.Kind()
	m := Model{
		Phase:          snap.Phase,
		PhaseKind:      kind,
		PhaseKnown:     snap.Phase.Known(),
		Vaults:         snap.Vaults,
		Alarms:         snap.Alarms,
		ChipColor:      snap.ChipColor,
		ChipClass:      chipClass(snap.ChipColor),
		CommunityCards: cardViews(snap.CommunityCards),
		Bank:           slices.Clone(snap.ChipsAvailable),
	}

	switch kind {
	case types.KindLobby:
		m.Header = HeaderLobby
	case types.KindResult:
		m.Result = r.result(snap.ResultMessage)
	default:
		m.Header = fmt.Sprintf("%s - %s Chips", snap.Phase, snap.ChipColor)
	}

	me := snap.Me
	if me == nil {
		return m
	}
	m.Joined = true
	m.BankEnabled = kind == types.KindActive && !me.IsSettled && !me.IsObserver
	m.SettleEnabled = me.HasChip()
	m.ReturnEnabled = me.HasChip() && !me.IsSettled
	m.SettleLabel = LabelSettle
	if me.IsSettled {
		m.SettleLabel = LabelCancelSettle
	}

	self := seat(*me, snap.ChipColor, now)
	m.Me = &self

	for _, p := range snap.Players {
		if p.PlayerID == me.PlayerID {
			continue
		}
		s := seat(p, snap.ChipColor, now)
		s.Stealable = m.BankEnabled && s.HasChip()
		m.Opponents = append(m.Opponents, s)
	}
	return m
}

func (r Reducer) result(msg string) *Result {
	markers := r.SuccessMarkers
	if len(markers) == 0 {
		markers = DefaultSuccessMarkers
	}
	success := slices.ContainsFunc(markers, func(tok string) bool {
		return tok != "" && strings.Contains(msg, tok)
	})
	return &Result{
		Message: msg,
		Success: success,
		Actions: []Action{
			{Label: LabelNextHeist, Intent: IntentStartGame},
			{Label: LabelRestartGame, Intent: IntentRestartGame, NeedsConfirm: true},
		},
	}
}

func seat(p types.PlayerView, chipColor string, now time.Time) Seat {
	s := Seat{
		PlayerID:  p.PlayerID,
		Name:      p.Name,
		Observer:  p.IsObserver,
		Hand:      cardViews(p.Hand),
		Settled:   p.IsSettled,
		Connected: p.IsConnected,
		Removable: !p.IsConnected,
	}
	if p.HasChip() {
		s.Chip = *p.Chip
	}
	for _, h := range p.ChipHistory {
		s.History = append(s.History, ChipMark{Value: h.Value, Class: chipClass(h.Color)})
	}

	switch {
	case !p.IsConnected:
		s.StatusLabel = StatusDisconnected
		if p.DisconnectedAt != nil {
			s.DisconnectedFor = FormatDuration(since(*p.DisconnectedAt, now))
		}
	case p.IsSettled:
		s.StatusLabel = StatusSettled
	case p.IsObserver:
		s.StatusLabel = StatusObserving
	default:
		s.StatusLabel = StatusThinking
	}
	return s
}

func since(unixSeconds float64, now time.Time) time.Duration {
	nowSeconds := float64(now.UnixMilli()) / 1000
	return time.Duration(math.Floor(nowSeconds-unixSeconds)) * time.Second
}

// FormatDuration renders d as "Xh Ym", "Xm Ys" or "Xs" using the largest
// unit that applies. Partial seconds are dropped and negatives read as 0s.
func FormatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	h, m, s := total/3600, (total%3600)/60, total%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func chipClass(color string) string {
	if color == "" {
		return ""
	}
	return "chip-" + strings.ToLower(color)
}

func cardViews(cards []types.Card) []CardView {
	out := make([]CardView, 0, len(cards))
	for _, c := range cards {
		display := c.Display
		if display == "" {
			display = c.Rank + c.Suit
		}
		out = append(out, CardView{Display: display, Red: c.IsRed()})
	}
	return out
}
