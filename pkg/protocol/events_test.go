package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeEvent_UnknownNameIsAnError(t *testing.T) {
	_, err := DecodeEvent(Envelope{Event: "player_teleported"})
	require.Error(t, err)
}

func TestDecodeEvent_RoomUpdateCarriesFullSnapshot(t *testing.T) {
	room := Room{
		ID: "R1",
		Players: []Player{
			{ID: "p1", Name: "Alice", Host: true, Caller: true, CardCount: 2},
		},
		State:         GameStatePlaying,
		CallerMode:    CallerAuto,
		CallerID:      "p1",
		CalledNumbers: []int{7, 42},
		CurrentNumber: 42,
		Round:         1,
	}
	env, err := EncodeEvent(RoomUpdate{Room: room})
	require.NoError(t, err)
	require.Equal(t, EvtRoomUpdate, env.Event)

	ev, err := DecodeEvent(env)
	require.NoError(t, err)
	update, ok := ev.(RoomUpdate)
	require.True(t, ok)
	require.Equal(t, room, update.Room)
}

func TestDecodeEvent_EmptyPayloadVariants(t *testing.T) {
	ev, err := DecodeEvent(Envelope{Event: EvtGameStarted})
	require.NoError(t, err)
	require.IsType(t, GameStarted{}, ev)

	ev, err = DecodeEvent(Envelope{Event: EvtGameReset})
	require.NoError(t, err)
	require.IsType(t, GameReset{}, ev)
}

func TestDecodeEvent_MalformedPayload(t *testing.T) {
	_, err := DecodeEvent(Envelope{Event: EvtNumberCalled, Data: json.RawMessage(`{"number":"x"}`)})
	require.Error(t, err)
}

func TestEnvelope_WireShape(t *testing.T) {
	env, err := NewEnvelope(EvtNumberCalled, NumberCalled{Number: 13})
	require.NoError(t, err)
	data, err := json.Marshal(env)
	require.NoError(t, err)
	require.JSONEq(t, `{"event":"number_called","data":{"number":13}}`, string(data))
}
