package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vhoang/loto-live/pkg/protocol"
)

func TestReconcile_SnapshotSupersedesDeltas(t *testing.T) {
	s, d := newTestSession(t)
	c := bindRoom(t, s, d)

	c.deliver(t, protocol.GameStarted{})
	c.deliver(t, protocol.NumberCalled{Number: 7})
	c.deliver(t, protocol.NumberCalled{Number: 42})

	snapshot := protocol.Room{
		ID: "R1",
		Players: []protocol.Player{
			{ID: s.PlayerID(), Name: "Alice", Host: true, Caller: true},
			{ID: "p2", Name: "Bob"},
		},
		State:         protocol.GameStatePlaying,
		CallerMode:    protocol.CallerAuto,
		CallerID:      s.PlayerID(),
		CalledNumbers: []int{1, 2, 3},
		CurrentNumber: 3,
		Round:         2,
	}
	c.deliver(t, protocol.RoomUpdate{Room: snapshot})

	require.Eventually(t, func() bool {
		room, ok := s.Room()
		return ok && room.Round == 2
	}, time.Second, 5*time.Millisecond)

	room, ok := s.Room()
	require.True(t, ok)
	require.Equal(t, snapshot, room, "replica must equal the snapshot exactly, discarding prior deltas")
}

func TestReconcile_RoundTrip(t *testing.T) {
	s, d := newTestSession(t)
	require.NoError(t, s.Initialize(context.Background()))
	c := d.lastConn()
	self := s.PlayerID()

	// create_room("Alice", 2) is answered by a one-player snapshot.
	require.NoError(t, s.CreateRoom("Alice", 2))
	recvSent(t, c, time.Second)
	c.deliver(t, roomSnapshot("R1", self))

	require.Eventually(t, func() bool { return s.RoomID() == "R1" },
		time.Second, 5*time.Millisecond)
	room, ok := s.Room()
	require.True(t, ok)
	require.Len(t, room.Players, 1)
	require.Equal(t, "Alice", room.Players[0].Name)
	require.Equal(t, protocol.GameStateWaiting, room.State)

	c.deliver(t, protocol.GameStarted{})
	require.Eventually(t, func() bool { return s.GameState() == protocol.GameStatePlaying },
		time.Second, 5*time.Millisecond)

	for _, n := range []int{7, 42, 13} {
		c.deliver(t, protocol.NumberCalled{Number: n})
	}
	require.Eventually(t, func() bool {
		room, _ := s.Room()
		return room.CurrentNumber == 13
	}, time.Second, 5*time.Millisecond)
	room, _ = s.Room()
	require.Equal(t, []int{7, 42, 13}, room.CalledNumbers)

	c.deliver(t, protocol.GameFinished{Winner: protocol.Winner{PlayerID: self, Name: "Alice", Round: 1}})
	require.Eventually(t, func() bool { return s.GameState() == protocol.GameStateFinished },
		time.Second, 5*time.Millisecond)
	room, _ = s.Room()
	require.NotNil(t, room.Winner)
	require.Equal(t, "Alice", room.Winner.Name)

	c.deliver(t, protocol.GameReset{})
	require.Eventually(t, func() bool { return s.GameState() == protocol.GameStateWaiting },
		time.Second, 5*time.Millisecond)
	room, _ = s.Room()
	require.Nil(t, room.Winner)
	require.Zero(t, room.CurrentNumber)
	// History clearing is deferred to the next room_update.
	require.Equal(t, []int{7, 42, 13}, room.CalledNumbers)
}

func TestReconcile_PlayerLeftRemovesWithoutSnapshot(t *testing.T) {
	s, d := newTestSession(t)
	c := bindRoom(t, s, d)

	snap := roomSnapshot("R1", s.PlayerID())
	snap.Room.Players = append(snap.Room.Players, protocol.Player{ID: "p2", Name: "Bob"})
	c.deliver(t, snap)
	require.Eventually(t, func() bool {
		room, _ := s.Room()
		return len(room.Players) == 2
	}, time.Second, 5*time.Millisecond)

	c.deliver(t, protocol.PlayerLeft{PlayerID: "p2"})
	require.Eventually(t, func() bool {
		room, _ := s.Room()
		return len(room.Players) == 1
	}, time.Second, 5*time.Millisecond)
	room, _ := s.Room()
	require.Equal(t, s.PlayerID(), room.Players[0].ID)
}

func TestReconcile_TargetedTickets(t *testing.T) {
	s, d := newTestSession(t)
	c := bindRoom(t, s, d)

	foreign := protocol.TicketsGenerated{
		PlayerID: "someone-else",
		Tickets:  []protocol.Ticket{{ID: "t1", Rows: [][]int{{1}}}},
	}
	c.deliver(t, foreign)

	mine := protocol.TicketsGenerated{
		PlayerID: s.PlayerID(),
		Tickets:  []protocol.Ticket{{ID: "t2", Rows: [][]int{{2}}}},
	}
	c.deliver(t, mine)

	require.Eventually(t, func() bool { return len(s.Tickets()) == 1 },
		time.Second, 5*time.Millisecond)
	tickets := s.Tickets()
	require.Equal(t, "t2", tickets[0].ID, "a foreign player's tickets must never land locally")
}

func TestReconcile_InformationalEventsDontMutate(t *testing.T) {
	s, d := newTestSession(t)
	c := bindRoom(t, s, d)
	before, _ := s.Room()

	c.deliver(t, protocol.PlayerJoined{Player: protocol.Player{ID: "p2", Name: "Bob"}})
	c.deliver(t, protocol.CallerModeChanged{Mode: protocol.CallerAuto, IntervalSec: 3})
	c.deliver(t, protocol.CallerChanged{PlayerID: "p2"})
	c.deliver(t, protocol.MarkingModeChanged{Manual: true})

	// Force a round trip through the router so prior events are applied.
	c.deliver(t, protocol.NumberCalled{Number: 1})
	require.Eventually(t, func() bool {
		room, _ := s.Room()
		return room.CurrentNumber == 1
	}, time.Second, 5*time.Millisecond)

	after, _ := s.Room()
	require.Equal(t, before.Players, after.Players)
	require.Equal(t, before.CallerMode, after.CallerMode)
	require.Equal(t, before.CallerID, after.CallerID)
	require.Equal(t, before.ManualMarking, after.ManualMarking)
}

func TestReconcile_DeltasBeforeFirstSnapshotAreDropped(t *testing.T) {
	s, d := newTestSession(t)
	require.NoError(t, s.Initialize(context.Background()))
	c := d.lastConn()

	c.deliver(t, protocol.GameStarted{})
	c.deliver(t, protocol.NumberCalled{Number: 5})
	c.deliver(t, protocol.PlayerLeft{PlayerID: "p2"})

	time.Sleep(50 * time.Millisecond)
	_, ok := s.Room()
	require.False(t, ok)
}

func TestNotice_ServerErrorAutoClears(t *testing.T) {
	s, d := newTestSession(t) // NoticeTTL 80ms
	require.NoError(t, s.Initialize(context.Background()))
	c := d.lastConn()

	c.deliver(t, protocol.ServerError{Message: "room is full"})
	require.Eventually(t, func() bool { return s.Notice() == "room is full" },
		time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return s.Notice() == "" },
		time.Second, 5*time.Millisecond)
}

func TestNotice_TimersAreIndependent(t *testing.T) {
	s, d := newTestSession(t)
	require.NoError(t, s.Initialize(context.Background()))
	c := d.lastConn()

	c.deliver(t, protocol.ServerError{Message: "first"})
	require.Eventually(t, func() bool { return s.Notice() == "first" },
		time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	c.deliver(t, protocol.ServerError{Message: "second"})
	require.Eventually(t, func() bool { return s.Notice() == "second" },
		time.Second, 5*time.Millisecond)

	// The first notice's timer is not extended by the second: it fires on
	// its own schedule and clears whatever is displayed.
	require.Eventually(t, func() bool { return s.Notice() == "" },
		time.Second, 5*time.Millisecond)
}
