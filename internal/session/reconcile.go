package session

import (
	"go.uber.org/zap"

	"github.com/vhoang/loto-live/pkg/protocol"
)

// apply is the reconciliation rule set: one exhaustive match over the event
// vocabulary. Full snapshots replace the replica wholesale; deltas mutate a
// narrow slice of it. Later snapshots always supersede earlier deltas, so
// events must never be reordered or coalesced before reaching here.
func (s *Session) apply(ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.RoomUpdate:
		s.replica.replaceRoom(e.Room)
		s.mu.Lock()
		s.roomID = e.Room.ID
		s.mu.Unlock()

	case protocol.PlayerJoined:
		// Informational; the accompanying room_update carries the roster.
		s.log.Debug("player joined", zap.String("player_id", e.Player.ID))

	case protocol.PlayerLeft:
		s.replica.mutate(func(room *protocol.Room) {
			players := room.Players[:0]
			for _, p := range room.Players {
				if p.ID != e.PlayerID {
					players = append(players, p)
				}
			}
			room.Players = players
		})

	case protocol.GameStarted:
		s.replica.mutate(func(room *protocol.Room) {
			room.State = protocol.GameStatePlaying
		})

	case protocol.NumberCalled:
		s.replica.mutate(func(room *protocol.Room) {
			room.CalledNumbers = append(room.CalledNumbers, e.Number)
			room.CurrentNumber = e.Number
		})

	case protocol.GameFinished:
		s.replica.mutate(func(room *protocol.Room) {
			w := e.Winner
			room.Winner = &w
			room.State = protocol.GameStateFinished
		})

	case protocol.GameReset:
		// History clearing is deferred to the room_update that follows a
		// reset; only the round-scoped pointers are dropped here.
		s.replica.mutate(func(room *protocol.Room) {
			room.State = protocol.GameStateWaiting
			room.Winner = nil
			room.CurrentNumber = 0
		})

	case protocol.ServerError:
		s.raiseNotice(e.Message)

	case protocol.TicketsGenerated:
		// Targeted despite the shared channel: only the addressed
		// participant applies it.
		s.mu.Lock()
		mine := e.PlayerID == s.playerID
		s.mu.Unlock()
		if mine {
			s.replica.setTickets(e.Tickets)
		}

	case protocol.CallerModeChanged:
		s.log.Debug("caller mode changed", zap.String("mode", string(e.Mode)))
	case protocol.CallerChanged:
		s.log.Debug("caller changed", zap.String("player_id", e.PlayerID))
	case protocol.MarkingModeChanged:
		s.log.Debug("marking mode changed", zap.Bool("manual", e.Manual))
	}
}
