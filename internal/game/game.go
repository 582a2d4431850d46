// Package game holds the authoritative lô tô room rules. Apply is a pure
// transition: it validates a command against the current state and returns
// the events to publish plus the next state, never mutating its input.
package game

import (
	"errors"

	"github.com/vhoang/loto-live/pkg/protocol"
)

var (
	ErrGameInProgress = errors.New("game already in progress")
	ErrGameNotStarted = errors.New("game has not started")
	ErrNotHost        = errors.New("only the host can do that")
	ErrNotCaller      = errors.New("only the caller can call numbers")
	ErrUnknownPlayer  = errors.New("unknown player")
	ErrNumberRange    = errors.New("number out of range")
	ErrAlreadyCalled  = errors.New("number already called")
	ErrInvalidClaim   = errors.New("no winning row")
)

// MaxNumber is the top of the lô tô draw range (1..90).
const MaxNumber = 90

// DefaultAutoIntervalSec is used when an automated caller mode is selected
// without an explicit interval.
const DefaultAutoIntervalSec = 5

type CommandType string

const (
	CmdJoin        CommandType = "Join"
	CmdLeave       CommandType = "Leave"
	CmdStart       CommandType = "Start"
	CmdCall        CommandType = "Call"
	CmdClaim       CommandType = "Claim"
	CmdTickets     CommandType = "Tickets"
	CmdKick        CommandType = "Kick"
	CmdCallerMode  CommandType = "CallerMode"
	CmdCaller      CommandType = "Caller"
	CmdMarkingMode CommandType = "MarkingMode"
	CmdReset       CommandType = "Reset"
)

// Command is one validated player intent. ActorID is the issuing player's
// connection identity; the remaining fields are per-type.
type Command struct {
	Type    CommandType
	ActorID string

	PlayerName    string
	CardCount     int
	BoardsPerCard int
	Number        int
	TargetID      string
	Mode          protocol.CallerMode
	IntervalSec   int
	Manual        bool
}

// State is one room's full authoritative state: the wire-visible Room plus
// per-player tickets, which travel only in targeted events.
type State struct {
	Room    protocol.Room
	Tickets map[string][]protocol.Ticket
}

func NewState(roomID string) State {
	return State{
		Room: protocol.Room{
			ID:              roomID,
			Players:         []protocol.Player{},
			State:           protocol.GameStateWaiting,
			CallerMode:      protocol.CallerManual,
			AutoIntervalSec: DefaultAutoIntervalSec,
			CalledNumbers:   []int{},
		},
		Tickets: map[string][]protocol.Ticket{},
	}
}

// Apply validates cmd against s and returns the events to publish with the
// next state. Membership and configuration changes emit their delta event
// followed by a room_update snapshot, in that order, which is what lets
// clients treat the deltas as informational.
func Apply(s State, cmd Command, gen *TicketGenerator) ([]protocol.Event, State, error) {
	ns := clone(s)

	switch cmd.Type {
	case CmdJoin:
		if s.Room.State != protocol.GameStateWaiting {
			return nil, s, ErrGameInProgress
		}
		p := protocol.Player{
			ID:        cmd.ActorID,
			Name:      cmd.PlayerName,
			CardCount: cmd.CardCount,
		}
		if len(ns.Room.Players) == 0 {
			p.Host = true
			p.Caller = true
			ns.Room.CallerID = p.ID
		}
		ns.Room.Players = append(ns.Room.Players, p)
		return withSnapshot(ns, protocol.PlayerJoined{Player: p}), ns, nil

	case CmdLeave:
		return applyRemoval(s, ns, cmd.ActorID)

	case CmdStart:
		actor, ok := s.Room.Player(cmd.ActorID)
		if !ok {
			return nil, s, ErrUnknownPlayer
		}
		if !actor.Host {
			return nil, s, ErrNotHost
		}
		if s.Room.State != protocol.GameStateWaiting {
			return nil, s, ErrGameInProgress
		}
		ns.Room.State = protocol.GameStatePlaying
		ns.Room.Round++
		ns.Room.CalledNumbers = []int{}
		ns.Room.CurrentNumber = 0
		ns.Room.Winner = nil
		return withSnapshot(ns, protocol.GameStarted{}), ns, nil

	case CmdCall:
		actor, ok := s.Room.Player(cmd.ActorID)
		if !ok {
			return nil, s, ErrUnknownPlayer
		}
		if !actor.Caller {
			return nil, s, ErrNotCaller
		}
		return applyCall(s, ns, cmd.Number)

	case CmdClaim:
		claimant, ok := s.Room.Player(cmd.ActorID)
		if !ok {
			return nil, s, ErrUnknownPlayer
		}
		if s.Room.State != protocol.GameStatePlaying {
			return nil, s, ErrGameNotStarted
		}
		if !HasWinningRow(s.Tickets[cmd.ActorID], s.Room.CalledNumbers) {
			return nil, s, ErrInvalidClaim
		}
		winner := protocol.Winner{
			PlayerID: claimant.ID,
			Name:     claimant.Name,
			Round:    s.Room.Round,
		}
		ns.Room.Winner = &winner
		ns.Room.State = protocol.GameStateFinished
		return withSnapshot(ns, protocol.GameFinished{Winner: winner}), ns, nil

	case CmdTickets:
		actor, ok := s.Room.Player(cmd.ActorID)
		if !ok {
			return nil, s, ErrUnknownPlayer
		}
		if s.Room.State != protocol.GameStateWaiting {
			return nil, s, ErrGameInProgress
		}
		count := cmd.CardCount
		if count <= 0 {
			count = 1
		}
		boards := cmd.BoardsPerCard
		if boards <= 0 {
			boards = 1
		}
		tickets := gen.Generate(count * boards)
		ns.Tickets[actor.ID] = tickets
		for i := range ns.Room.Players {
			if ns.Room.Players[i].ID == actor.ID {
				ns.Room.Players[i].CardCount = count
			}
		}
		ev := protocol.TicketsGenerated{PlayerID: actor.ID, Tickets: tickets}
		return withSnapshot(ns, ev), ns, nil

	case CmdKick:
		actor, ok := s.Room.Player(cmd.ActorID)
		if !ok {
			return nil, s, ErrUnknownPlayer
		}
		if !actor.Host {
			return nil, s, ErrNotHost
		}
		if _, ok := s.Room.Player(cmd.TargetID); !ok {
			return nil, s, ErrUnknownPlayer
		}
		return applyRemoval(s, ns, cmd.TargetID)

	case CmdCallerMode:
		actor, ok := s.Room.Player(cmd.ActorID)
		if !ok {
			return nil, s, ErrUnknownPlayer
		}
		if !actor.Host {
			return nil, s, ErrNotHost
		}
		if cmd.Mode != protocol.CallerManual && cmd.Mode != protocol.CallerAuto {
			return nil, s, errors.New("unknown caller mode")
		}
		ns.Room.CallerMode = cmd.Mode
		if cmd.Mode == protocol.CallerAuto {
			switch {
			case cmd.IntervalSec > 0:
				ns.Room.AutoIntervalSec = cmd.IntervalSec
			case ns.Room.AutoIntervalSec <= 0:
				ns.Room.AutoIntervalSec = DefaultAutoIntervalSec
			}
		}
		ev := protocol.CallerModeChanged{Mode: ns.Room.CallerMode, IntervalSec: ns.Room.AutoIntervalSec}
		return withSnapshot(ns, ev), ns, nil

	case CmdCaller:
		actor, ok := s.Room.Player(cmd.ActorID)
		if !ok {
			return nil, s, ErrUnknownPlayer
		}
		if !actor.Host {
			return nil, s, ErrNotHost
		}
		if _, ok := s.Room.Player(cmd.TargetID); !ok {
			return nil, s, ErrUnknownPlayer
		}
		setCaller(&ns.Room, cmd.TargetID)
		return withSnapshot(ns, protocol.CallerChanged{PlayerID: cmd.TargetID}), ns, nil

	case CmdMarkingMode:
		actor, ok := s.Room.Player(cmd.ActorID)
		if !ok {
			return nil, s, ErrUnknownPlayer
		}
		if !actor.Host {
			return nil, s, ErrNotHost
		}
		ns.Room.ManualMarking = cmd.Manual
		return withSnapshot(ns, protocol.MarkingModeChanged{Manual: cmd.Manual}), ns, nil

	case CmdReset:
		actor, ok := s.Room.Player(cmd.ActorID)
		if !ok {
			return nil, s, ErrUnknownPlayer
		}
		if !actor.Host {
			return nil, s, ErrNotHost
		}
		if s.Room.State == protocol.GameStateWaiting {
			return nil, s, ErrGameNotStarted
		}
		ns.Room.State = protocol.GameStateWaiting
		ns.Room.Winner = nil
		ns.Room.CurrentNumber = 0
		ns.Room.CalledNumbers = []int{}
		return withSnapshot(ns, protocol.GameReset{}), ns, nil

	default:
		return nil, s, errors.New("unsupported command")
	}
}

// AutoCall draws one undrawn number for the automated caller. ok is false
// when the room is not playing or the pool is exhausted.
func AutoCall(s State, draw func(called []int) (int, bool)) ([]protocol.Event, State, bool) {
	if s.Room.State != protocol.GameStatePlaying {
		return nil, s, false
	}
	n, ok := draw(s.Room.CalledNumbers)
	if !ok {
		return nil, s, false
	}
	ns := clone(s)
	events, ns, err := applyCall(s, ns, n)
	if err != nil {
		return nil, s, false
	}
	return events, ns, true
}

// applyCall appends a drawn number. number_called is the one cheap delta in
// the vocabulary: no snapshot follows it.
func applyCall(s, ns State, number int) ([]protocol.Event, State, error) {
	if s.Room.State != protocol.GameStatePlaying {
		return nil, s, ErrGameNotStarted
	}
	if number < 1 || number > MaxNumber {
		return nil, s, ErrNumberRange
	}
	for _, n := range s.Room.CalledNumbers {
		if n == number {
			return nil, s, ErrAlreadyCalled
		}
	}
	ns.Room.CalledNumbers = append(ns.Room.CalledNumbers, number)
	ns.Room.CurrentNumber = number
	return []protocol.Event{protocol.NumberCalled{Number: number}}, ns, nil
}

func applyRemoval(s, ns State, playerID string) ([]protocol.Event, State, error) {
	removed, ok := s.Room.Player(playerID)
	if !ok {
		return nil, s, ErrUnknownPlayer
	}
	players := ns.Room.Players[:0]
	for _, p := range ns.Room.Players {
		if p.ID != playerID {
			players = append(players, p)
		}
	}
	ns.Room.Players = players
	delete(ns.Tickets, playerID)

	// Host and caller roles fall to the oldest remaining player.
	if len(ns.Room.Players) > 0 {
		if removed.Host {
			ns.Room.Players[0].Host = true
		}
		if removed.Caller {
			setCaller(&ns.Room, ns.Room.Players[0].ID)
		}
	} else {
		ns.Room.CallerID = ""
	}
	return withSnapshot(ns, protocol.PlayerLeft{PlayerID: playerID}), ns, nil
}

func setCaller(room *protocol.Room, playerID string) {
	for i := range room.Players {
		room.Players[i].Caller = room.Players[i].ID == playerID
	}
	room.CallerID = playerID
}

// withSnapshot pairs a delta with the authoritative snapshot that makes it
// safe to treat as informational on the client.
func withSnapshot(ns State, delta protocol.Event) []protocol.Event {
	return []protocol.Event{delta, protocol.RoomUpdate{Room: ns.Room}}
}

func clone(s State) State {
	ns := s
	ns.Room.Players = append([]protocol.Player(nil), s.Room.Players...)
	ns.Room.CalledNumbers = append([]int(nil), s.Room.CalledNumbers...)
	if s.Room.Winner != nil {
		w := *s.Room.Winner
		ns.Room.Winner = &w
	}
	ns.Tickets = make(map[string][]protocol.Ticket, len(s.Tickets))
	for id, ts := range s.Tickets {
		ns.Tickets[id] = ts
	}
	return ns
}
