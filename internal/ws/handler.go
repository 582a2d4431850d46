// Package ws accepts client channels, assigns their identity, and bridges
// decoded command envelopes into room actors.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vhoang/loto-live/internal/game"
	"github.com/vhoang/loto-live/internal/hub"
	"github.com/vhoang/loto-live/internal/room"
	"github.com/vhoang/loto-live/internal/transport"
	"github.com/vhoang/loto-live/pkg/protocol"
)

const writeTimeout = 3 * time.Second

func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		clog := log.With(zap.String("client_id", clientID))

		// First frame: the identity the client session binds to.
		welcome, err := protocol.NewEnvelope(transport.WelcomeEvent, transport.Welcome{ID: clientID})
		if err != nil {
			return
		}
		if err := write(r.Context(), conn, welcome); err != nil {
			return
		}

		outbox := make(chan protocol.Envelope, 16)

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case env := <-outbox:
					if err := write(writeCtx, conn, env); err != nil {
						return
					}
				}
			}
		}()

		// current is set only once the room acknowledges the join; evicted
		// closes if the room removes this client without a leave of its own,
		// so membership here never outlives membership there.
		var (
			current *room.Room
			evicted chan struct{}
		)
		defer func() {
			if current != nil {
				current.Inbox() <- room.Leave{ClientID: clientID}
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					clog.Debug("read failed", zap.Error(err))
				}
				return
			}

			if current != nil {
				select {
				case <-evicted:
					current = nil
				default:
				}
			}

			var env protocol.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				sendError(outbox, "bad json")
				continue
			}

			switch env.Event {
			case protocol.CmdCreateRoom:
				var p protocol.CreateRoomPayload
				if err := json.Unmarshal(env.Data, &p); err != nil {
					sendError(outbox, "bad payload")
					continue
				}
				if current != nil {
					sendError(outbox, "already in a room")
					continue
				}
				reply := make(chan *room.Room, 1)
				h.Inbox() <- hub.CreateRoom{Reply: reply}
				current, evicted = join(<-reply, clientID, p.PlayerName, p.CardCount, outbox)

			case protocol.CmdJoinRoom:
				var p protocol.JoinRoomPayload
				if err := json.Unmarshal(env.Data, &p); err != nil {
					sendError(outbox, "bad payload")
					continue
				}
				if current != nil {
					sendError(outbox, "already in a room")
					continue
				}
				reply := make(chan *room.Room, 1)
				h.Inbox() <- hub.GetRoom{Code: p.RoomID, Reply: reply}
				rm := <-reply
				if rm == nil {
					sendError(outbox, "room not found")
					continue
				}
				current, evicted = join(rm, clientID, p.PlayerName, p.CardCount, outbox)

			case protocol.CmdLeaveRoom:
				if current != nil {
					current.Inbox() <- room.Leave{ClientID: clientID}
					current = nil
				}

			default:
				cmd, ok := toGameCommand(env)
				if !ok {
					sendError(outbox, "unknown command")
					continue
				}
				if current == nil {
					sendError(outbox, "not in a room")
					continue
				}
				current.Inbox() <- room.FromClient{ClientID: clientID, Cmd: cmd}
			}
		}
	}
}

// join asks the room to admit the client and waits for its answer. A rejected
// join binds nothing; the room has already sent the error to the outbox.
func join(rm *room.Room, clientID, playerName string, cardCount int, outbox chan protocol.Envelope) (*room.Room, chan struct{}) {
	reply := make(chan error, 1)
	removed := make(chan struct{})
	rm.Inbox() <- room.Join{
		ClientID:   clientID,
		PlayerName: playerName,
		CardCount:  cardCount,
		Outbox:     outbox,
		Reply:      reply,
		Removed:    removed,
	}
	if err := <-reply; err != nil {
		return nil, nil
	}
	return rm, removed
}

func toGameCommand(env protocol.Envelope) (game.Command, bool) {
	switch env.Event {
	case protocol.CmdStartGame:
		return game.Command{Type: game.CmdStart}, true

	case protocol.CmdCallNumber:
		var p protocol.CallNumberPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return game.Command{}, false
		}
		return game.Command{Type: game.CmdCall, Number: p.Number}, true

	case protocol.CmdClaimWin:
		return game.Command{Type: game.CmdClaim}, true

	case protocol.CmdGenerateTickets:
		var p protocol.GenerateTicketsPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return game.Command{}, false
		}
		return game.Command{
			Type:          game.CmdTickets,
			CardCount:     p.CardCount,
			BoardsPerCard: p.BoardsPerCard,
		}, true

	case protocol.CmdKickPlayer:
		var p protocol.KickPlayerPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return game.Command{}, false
		}
		return game.Command{Type: game.CmdKick, TargetID: p.PlayerID}, true

	case protocol.CmdChangeCallerMode:
		var p protocol.ChangeCallerModePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return game.Command{}, false
		}
		return game.Command{Type: game.CmdCallerMode, Mode: p.Mode, IntervalSec: p.IntervalSec}, true

	case protocol.CmdChangeCaller:
		var p protocol.ChangeCallerPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return game.Command{}, false
		}
		return game.Command{Type: game.CmdCaller, TargetID: p.PlayerID}, true

	case protocol.CmdChangeMarkingMode:
		var p protocol.ChangeMarkingModePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return game.Command{}, false
		}
		return game.Command{Type: game.CmdMarkingMode, Manual: p.Manual}, true

	case protocol.CmdResetGame:
		return game.Command{Type: game.CmdReset}, true

	default:
		return game.Command{}, false
	}
}

func write(ctx context.Context, conn *websocket.Conn, env protocol.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}

func sendError(outbox chan protocol.Envelope, msg string) {
	env, err := protocol.EncodeEvent(protocol.ServerError{Message: msg})
	if err != nil {
		return
	}
	select {
	case outbox <- env:
	default:
	}
}
