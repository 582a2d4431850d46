// Package protocol is the wire contract between the lô tô server and its
// clients. Event and command names are the bit-exact interface both sides
// must match; anything not listed here is rejected by the router.
package protocol

import "encoding/json"

// Envelope is the framing for every message on the channel, in both
// directions: a snake_case event name plus a JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an Envelope for the named event.
func NewEnvelope(event string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

type GameState string

const (
	GameStateWaiting  GameState = "waiting"
	GameStatePlaying  GameState = "playing"
	GameStateFinished GameState = "finished"
)

type CallerMode string

const (
	CallerManual CallerMode = "manual"
	CallerAuto   CallerMode = "auto"
)

type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Host      bool   `json:"host"`
	Caller    bool   `json:"caller"`
	CardCount int    `json:"card_count"`
}

// Ticket is one 9x3 lô tô board. Rows hold 9 cells each; five carry a
// number from the column's decade range, the rest are 0 (blank).
type Ticket struct {
	ID   string  `json:"id"`
	Rows [][]int `json:"rows"`
}

type Winner struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Round    int    `json:"round"`
}

// Room is the authoritative snapshot shape carried by room_update. Clients
// replace their replica wholesale with it and never reconstruct it from
// command acknowledgments.
type Room struct {
	ID              string     `json:"id"`
	Players         []Player   `json:"players"`
	State           GameState  `json:"state"`
	CallerMode      CallerMode `json:"caller_mode"`
	CallerID        string     `json:"caller_id"`
	AutoIntervalSec int        `json:"auto_interval_sec,omitempty"`
	ManualMarking   bool       `json:"manual_marking"`
	CalledNumbers   []int      `json:"called_numbers"`
	CurrentNumber   int        `json:"current_number,omitempty"`
	Winner          *Winner    `json:"winner,omitempty"`
	Round           int        `json:"round"`
}

// Player looks up a player by id; ok is false if absent.
func (r *Room) Player(id string) (Player, bool) {
	for _, p := range r.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}
