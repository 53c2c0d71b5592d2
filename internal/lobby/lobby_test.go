package lobby

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/DoyleJ11/heist-sync/internal/engine"
	"github.com/DoyleJ11/heist-sync/pkg/types"
)

// helper: receive one frame with a timeout so tests never hang
func recvFrame(t *testing.T, ch <-chan Outbound, within time.Duration) Outbound {
	t.Helper()
	select {
	case f, ok := <-ch:
		if !ok {
			t.Fatalf("session outbox closed unexpectedly")
		}
		return f
	case <-time.After(within):
		t.Fatalf("timed out waiting for frame")
		return Outbound{} // unreachable
	}
}

func recvSnapshot(t *testing.T, ch <-chan Outbound, within time.Duration) types.Snapshot {
	t.Helper()
	f := recvFrame(t, ch, within)
	if f.Type != types.MsgGameUpdate {
		t.Fatalf("want %s, got %s (%v)", types.MsgGameUpdate, f.Type, f.Payload)
	}
	return f.Payload.(types.Snapshot)
}

func recvNoFrame(t *testing.T, ch <-chan Outbound, within time.Duration) {
	t.Helper()
	select {
	case f, ok := <-ch:
		if !ok {
			// channel closed → that's fine; no further frames possible
			return
		}
		t.Fatalf("expected no frame within %v, but got: %+v", within, f)
	case <-time.After(within):
		// good: no frame
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func getView(t *testing.T, l *Lobby) View {
	t.Helper()
	reply := make(chan View, 1)
	l.Inbox() <- GetState{Reply: reply}
	return recvView(t, reply, 100*time.Millisecond)
}

// connect opens a session and consumes the requestJoin and the anonymous
// snapshot that follow.
func connect(t *testing.T, l *Lobby, sid types.SessionID) chan Outbound {
	t.Helper()
	out := make(chan Outbound, 16)
	l.Inbox() <- Join{Session: sid, Outbox: out}

	if f := recvFrame(t, out, 100*time.Millisecond); f.Type != types.MsgRequestJoin {
		t.Fatalf("first frame should be %s, got %s", types.MsgRequestJoin, f.Type)
	}
	if snap := recvSnapshot(t, out, 100*time.Millisecond); snap.Me != nil {
		t.Fatalf("unjoined session should not get a seat: %+v", snap.Me)
	}
	return out
}

func joinAs(l *Lobby, sid types.SessionID, id types.PlayerID, name string) {
	l.Inbox() <- FromClient{Session: sid, Cmd: engine.Command{Type: engine.CmdJoin, PlayerID: id, Name: name}}
}

func newTestLobby(t *testing.T, opts ...Option) *Lobby {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewLobby(ctx, engine.NewEmptyState(engine.DefaultRules()), opts...)
}

func TestLobby_Join_BroadcastsSnapshotAndVersionIncrements(t *testing.T) {
	l := newTestLobby(t)
	out := connect(t, l, "s1")

	joinAs(l, "s1", "U1", "")
	snap := recvSnapshot(t, out, 100*time.Millisecond)
	if snap.Version != 1 {
		t.Fatalf("after join: want version=1, got %d", snap.Version)
	}
	if snap.Me == nil || snap.Me.PlayerID != "U1" || snap.Phase != types.PhaseLobby {
		t.Fatalf("after join: want me=U1 in LOBBY, got %+v", snap)
	}

	l.Inbox() <- Shutdown{}
}

func TestLobby_ReplayedJoinKeepsOneSeat(t *testing.T) {
	l := newTestLobby(t)

	// The same player joins twice on one connection, then again after a reconnect.
	out1 := connect(t, l, "s1")
	joinAs(l, "s1", "U1", "Ann")
	recvSnapshot(t, out1, 100*time.Millisecond)
	joinAs(l, "s1", "U1", "Ann")
	recvSnapshot(t, out1, 100*time.Millisecond)

	l.Inbox() <- Leave{Session: "s1"}
	out2 := connect(t, l, "s2")
	joinAs(l, "s2", "U1", "Ann")

	snap := recvSnapshot(t, out2, 100*time.Millisecond)
	count := 0
	for _, p := range snap.Players {
		if p.PlayerID == "U1" {
			count++
			if !p.IsConnected {
				t.Fatalf("reconnected seat should be connected")
			}
		}
	}
	if count != 1 {
		t.Fatalf("want exactly one U1 seat, got %d (%+v)", count, snap.Players)
	}
}

func TestLobby_RejectionGoesOnlyToSender(t *testing.T) {
	l := newTestLobby(t)
	a := connect(t, l, "a")
	b := connect(t, l, "b")

	joinAs(l, "a", "pa", "Ann")
	recvSnapshot(t, a, 100*time.Millisecond)
	recvSnapshot(t, b, 100*time.Millisecond)

	// Not enough players yet.
	l.Inbox() <- FromClient{Session: "a", Cmd: engine.Command{Type: engine.CmdStartGame}}

	f := recvFrame(t, a, 100*time.Millisecond)
	if f.Type != types.MsgError {
		t.Fatalf("want error frame, got %+v", f)
	}
	if msg, _ := f.Payload.(string); msg == "" {
		t.Fatalf("error frame should carry a reason")
	}
	recvNoFrame(t, b, 50*time.Millisecond)

	if v := getView(t, l); v.Version != 1 {
		t.Fatalf("rejected command must not bump the version; got %d", v.Version)
	}
}

func TestLobby_SnapshotsArePerViewer(t *testing.T) {
	l := newTestLobby(t)
	outs := map[types.SessionID]chan Outbound{}
	for _, sid := range []types.SessionID{"a", "b", "c"} {
		outs[sid] = connect(t, l, sid)
	}
	for i, sid := range []types.SessionID{"a", "b", "c"} {
		joinAs(l, sid, types.PlayerID("p"+sid), string(rune('A'+i)))
		for _, out := range outs {
			recvSnapshot(t, out, 100*time.Millisecond)
		}
	}

	l.Inbox() <- FromClient{Session: "a", Cmd: engine.Command{Type: engine.CmdStartGame}}
	for sid, out := range outs {
		snap := recvSnapshot(t, out, 100*time.Millisecond)
		if snap.Phase != types.PhasePreflop {
			t.Fatalf("%s: want PREFLOP, got %s", sid, snap.Phase)
		}
		if snap.Me == nil || snap.Me.PlayerID != types.PlayerID("p"+sid) || len(snap.Me.Hand) != 2 {
			t.Fatalf("%s: should see its own hand: %+v", sid, snap.Me)
		}
		for _, p := range snap.Players {
			if p.PlayerID != snap.Me.PlayerID && len(p.Hand) != 0 {
				t.Fatalf("%s: sees %s's hand", sid, p.PlayerID)
			}
		}
	}
}

func TestLobby_LeaveStampsDisconnectTime(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	l := newTestLobby(t, WithClock(clock))

	a := connect(t, l, "a")
	b := connect(t, l, "b")
	joinAs(l, "a", "pa", "Ann")
	joinAs(l, "b", "pb", "Bob")
	recvSnapshot(t, a, 100*time.Millisecond)
	recvSnapshot(t, a, 100*time.Millisecond)
	recvSnapshot(t, b, 100*time.Millisecond)
	recvSnapshot(t, b, 100*time.Millisecond)

	clock.Advance(42 * time.Second)
	l.Inbox() <- Leave{Session: "b"}

	snap := recvSnapshot(t, a, 100*time.Millisecond)
	bob, ok := snap.Player("pb")
	if !ok || bob.IsConnected || bob.DisconnectedAt == nil {
		t.Fatalf("bob should be disconnected: %+v", bob)
	}
	if *bob.DisconnectedAt != 1_700_000_042 {
		t.Fatalf("disconnectedAt: got %v", *bob.DisconnectedAt)
	}
	if v := getView(t, l); v.NumSessions != 1 {
		t.Fatalf("want 1 session after leave, got %d", v.NumSessions)
	}
}

func TestLobby_DropSlowSession(t *testing.T) {
	l := newTestLobby(t)

	// Room for requestJoin and the first snapshot, nothing more.
	out := make(chan Outbound, 2)
	l.Inbox() <- Join{Session: "s1", Outbox: out}
	joinAs(l, "s1", "U1", "Ann")

	v := getView(t, l)
	if v.NumSessions != 0 {
		t.Fatalf("expected slow session to be dropped; NumSessions=%d", v.NumSessions)
	}
}

func TestLobby_ShutdownClosesOutboxes(t *testing.T) {
	l := newTestLobby(t)
	out := connect(t, l, "s1")
	l.Inbox() <- Shutdown{}

	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected closed outbox")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("outbox not closed on shutdown")
	}
	<-l.Done()
}
