package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vhoang/loto-live/pkg/protocol"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrNotInRoom    = errors.New("not in a room")
)

// emit sends one fire-and-forget command. Precondition failures surface a
// notice and never reach the channel; nothing waits for an acknowledgment —
// side effects arrive as events.
func (s *Session) emit(event string, payload any, needsRoom bool) error {
	s.mu.Lock()
	conn := s.conn
	connected := s.status == StatusConnected
	roomID := s.roomID
	s.mu.Unlock()

	if conn == nil || !connected {
		s.raiseNotice("not connected")
		return ErrNotConnected
	}
	if needsRoom && roomID == "" {
		s.raiseNotice("not in a room")
		return ErrNotInRoom
	}

	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	if err := conn.Send(context.Background(), env); err != nil {
		s.log.Warn("send failed", zap.String("event", event), zap.Error(err))
		return err
	}
	return nil
}

// CreateRoom asks the server for a new room with this player as host. The
// server picks the default caller mode.
func (s *Session) CreateRoom(playerName string, cardCount int) error {
	return s.emit(protocol.CmdCreateRoom, protocol.CreateRoomPayload{
		PlayerName: playerName,
		CardCount:  cardCount,
	}, false)
}

func (s *Session) JoinRoom(roomID, playerName string, cardCount int) error {
	return s.emit(protocol.CmdJoinRoom, protocol.JoinRoomPayload{
		RoomID:     roomID,
		PlayerName: playerName,
		CardCount:  cardCount,
	}, false)
}

func (s *Session) StartGame() error {
	return s.emit(protocol.CmdStartGame, nil, true)
}

// CallNumber announces a caller-supplied number; the client never draws
// numbers itself.
func (s *Session) CallNumber(number int) error {
	return s.emit(protocol.CmdCallNumber, protocol.CallNumberPayload{Number: number}, true)
}

func (s *Session) ClaimWin() error {
	return s.emit(protocol.CmdClaimWin, nil, true)
}

func (s *Session) GenerateTickets(cardCount, boardsPerCard int) error {
	return s.emit(protocol.CmdGenerateTickets, protocol.GenerateTicketsPayload{
		CardCount:     cardCount,
		BoardsPerCard: boardsPerCard,
	}, true)
}

// LeaveRoom silently no-ops when unconnected or roomless; leaving without a
// room is not an error state worth surfacing. On send, the local replica is
// dropped immediately since no further events for the room will arrive.
func (s *Session) LeaveRoom() error {
	s.mu.Lock()
	conn := s.conn
	ok := s.status == StatusConnected && s.roomID != ""
	s.mu.Unlock()
	if conn == nil || !ok {
		return nil
	}

	env, err := protocol.NewEnvelope(protocol.CmdLeaveRoom, nil)
	if err != nil {
		return err
	}
	if err := conn.Send(context.Background(), env); err != nil {
		return err
	}

	s.mu.Lock()
	s.roomID = ""
	s.mu.Unlock()
	s.replica.reset()
	return nil
}

func (s *Session) KickPlayer(playerID string) error {
	return s.emit(protocol.CmdKickPlayer, protocol.KickPlayerPayload{PlayerID: playerID}, true)
}

// ChangeCallerMode switches between manual and automated calling. interval
// only matters for the automated mode; zero keeps the server default.
func (s *Session) ChangeCallerMode(mode protocol.CallerMode, interval time.Duration) error {
	return s.emit(protocol.CmdChangeCallerMode, protocol.ChangeCallerModePayload{
		Mode:        mode,
		IntervalSec: int(interval / time.Second),
	}, true)
}

func (s *Session) ChangeCaller(targetPlayerID string) error {
	return s.emit(protocol.CmdChangeCaller, protocol.ChangeCallerPayload{PlayerID: targetPlayerID}, true)
}

func (s *Session) ChangeMarkingMode(manual bool) error {
	return s.emit(protocol.CmdChangeMarkingMode, protocol.ChangeMarkingModePayload{Manual: manual}, true)
}

func (s *Session) ResetGame() error {
	return s.emit(protocol.CmdResetGame, nil, true)
}
