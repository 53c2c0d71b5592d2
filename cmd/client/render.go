package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/DoyleJ11/heist-sync/internal/view"
)

// lineRenderer prints a plain-text frame whenever the model's text changes.
type lineRenderer struct {
	mu   sync.Mutex
	w    io.Writer
	last string
}

func newLineRenderer(w io.Writer) *lineRenderer { return &lineRenderer{w: w} }

func (r *lineRenderer) Render(m view.Model) {
	frame := formatModel(m)

	r.mu.Lock()
	defer r.mu.Unlock()
	if frame == r.last {
		return
	}
	r.last = frame
	fmt.Fprintln(r.w, frame)
}

func (r *lineRenderer) Alert(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "! %s\n", msg)
}

func (r *lineRenderer) Println(a ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, a...)
}

func formatModel(m view.Model) string {
	var b strings.Builder

	if m.Result != nil {
		outcome := "FAILED"
		if m.Result.Success {
			outcome = "SUCCESS"
		}
		fmt.Fprintf(&b, "== RESULT (%s) ==\n%s\n", outcome, m.Result.Message)
		for _, a := range m.Result.Actions {
			fmt.Fprintf(&b, "  [%s]\n", a.Label)
		}
	} else {
		fmt.Fprintf(&b, "== %s ==\n", m.Header)
	}
	fmt.Fprintf(&b, "Vaults %d  Alarms %d\n", m.Vaults, m.Alarms)

	if len(m.CommunityCards) > 0 {
		b.WriteString("Board:")
		for _, c := range m.CommunityCards {
			b.WriteString(" " + c.Display)
		}
		b.WriteByte('\n')
	}
	if len(m.Bank) > 0 {
		b.WriteString("Bank:")
		for _, v := range m.Bank {
			fmt.Fprintf(&b, " [%d]", v)
		}
		if !m.BankEnabled {
			b.WriteString(" (locked)")
		}
		b.WriteByte('\n')
	}

	if me := m.Me; me != nil {
		fmt.Fprintf(&b, "You: %s", me.Name)
		writeSeat(&b, *me)
		if m.SettleEnabled {
			fmt.Fprintf(&b, "  settle: %q", m.SettleLabel)
		}
		b.WriteByte('\n')
	}
	for _, s := range m.Opponents {
		fmt.Fprintf(&b, "  %s <%s> %s", s.Name, s.PlayerID, s.StatusLabel)
		if s.DisconnectedFor != "" {
			b.WriteString(" " + s.DisconnectedFor)
		}
		writeSeat(&b, s)
		if s.Stealable {
			b.WriteString("  (steal)")
		}
		if s.Removable {
			b.WriteString("  (remove)")
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeSeat(b *strings.Builder, s view.Seat) {
	for _, c := range s.Hand {
		b.WriteString(" " + c.Display)
	}
	if s.HasChip() {
		fmt.Fprintf(b, "  chip %d", s.Chip)
	}
	if len(s.History) > 0 {
		b.WriteString("  history")
		for _, h := range s.History {
			fmt.Fprintf(b, " %d", h.Value)
		}
	}
}
