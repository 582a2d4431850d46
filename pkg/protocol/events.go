package protocol

import (
	"encoding/json"
	"fmt"
)

// Server -> Client event names.
const (
	EvtRoomUpdate         = "room_update"
	EvtPlayerJoined       = "player_joined"
	EvtPlayerLeft         = "player_left"
	EvtGameStarted        = "game_started"
	EvtNumberCalled       = "number_called"
	EvtGameFinished       = "game_finished"
	EvtGameReset          = "game_reset"
	EvtError              = "error"
	EvtTicketsGenerated   = "tickets_generated"
	EvtCallerModeChanged  = "caller_mode_changed"
	EvtCallerChanged      = "caller_changed"
	EvtMarkingModeChanged = "marking_mode_changed"
)

// Event is the closed set of inbound message variants. The router matches
// it exhaustively, so adding or removing a variant is a compile-time change.
type Event interface{ isEvent() }

type RoomUpdate struct {
	Room Room `json:"room"`
}

type PlayerJoined struct {
	Player Player `json:"player"`
}

type PlayerLeft struct {
	PlayerID string `json:"player_id"`
}

type GameStarted struct{}

type NumberCalled struct {
	Number int `json:"number"`
}

type GameFinished struct {
	Winner Winner `json:"winner"`
}

type GameReset struct{}

type ServerError struct {
	Message string `json:"message"`
}

// TicketsGenerated is targeted: only the client whose participant id equals
// PlayerID applies it, even though it may arrive on a shared channel.
type TicketsGenerated struct {
	PlayerID string   `json:"player_id"`
	Tickets  []Ticket `json:"tickets"`
}

type CallerModeChanged struct {
	Mode        CallerMode `json:"mode"`
	IntervalSec int        `json:"interval_sec,omitempty"`
}

type CallerChanged struct {
	PlayerID string `json:"player_id"`
}

type MarkingModeChanged struct {
	Manual bool `json:"manual"`
}

func (RoomUpdate) isEvent()         {}
func (PlayerJoined) isEvent()       {}
func (PlayerLeft) isEvent()         {}
func (GameStarted) isEvent()        {}
func (NumberCalled) isEvent()       {}
func (GameFinished) isEvent()       {}
func (GameReset) isEvent()          {}
func (ServerError) isEvent()        {}
func (TicketsGenerated) isEvent()   {}
func (CallerModeChanged) isEvent()  {}
func (CallerChanged) isEvent()      {}
func (MarkingModeChanged) isEvent() {}

// DecodeEvent turns an inbound envelope into its typed variant. Unknown
// event names are an error rather than a silently-ignored string.
func DecodeEvent(env Envelope) (Event, error) {
	switch env.Event {
	case EvtRoomUpdate:
		return decodeAs[RoomUpdate](env)
	case EvtPlayerJoined:
		return decodeAs[PlayerJoined](env)
	case EvtPlayerLeft:
		return decodeAs[PlayerLeft](env)
	case EvtGameStarted:
		return GameStarted{}, nil
	case EvtNumberCalled:
		return decodeAs[NumberCalled](env)
	case EvtGameFinished:
		return decodeAs[GameFinished](env)
	case EvtGameReset:
		return GameReset{}, nil
	case EvtError:
		return decodeAs[ServerError](env)
	case EvtTicketsGenerated:
		return decodeAs[TicketsGenerated](env)
	case EvtCallerModeChanged:
		return decodeAs[CallerModeChanged](env)
	case EvtCallerChanged:
		return decodeAs[CallerChanged](env)
	case EvtMarkingModeChanged:
		return decodeAs[MarkingModeChanged](env)
	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}
}

func decodeAs[T Event](env Envelope) (Event, error) {
	var v T
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
	}
	return v, nil
}

// EncodeEvent is the server-side inverse of DecodeEvent.
func EncodeEvent(ev Event) (Envelope, error) {
	switch v := ev.(type) {
	case RoomUpdate:
		return NewEnvelope(EvtRoomUpdate, v)
	case PlayerJoined:
		return NewEnvelope(EvtPlayerJoined, v)
	case PlayerLeft:
		return NewEnvelope(EvtPlayerLeft, v)
	case GameStarted:
		return NewEnvelope(EvtGameStarted, nil)
	case NumberCalled:
		return NewEnvelope(EvtNumberCalled, v)
	case GameFinished:
		return NewEnvelope(EvtGameFinished, v)
	case GameReset:
		return NewEnvelope(EvtGameReset, nil)
	case ServerError:
		return NewEnvelope(EvtError, v)
	case TicketsGenerated:
		return NewEnvelope(EvtTicketsGenerated, v)
	case CallerModeChanged:
		return NewEnvelope(EvtCallerModeChanged, v)
	case CallerChanged:
		return NewEnvelope(EvtCallerChanged, v)
	case MarkingModeChanged:
		return NewEnvelope(EvtMarkingModeChanged, v)
	default:
		return Envelope{}, fmt.Errorf("unknown event type %T", ev)
	}
}
