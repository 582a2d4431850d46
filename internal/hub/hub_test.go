package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vhoang/loto-live/internal/room"
	"github.com/vhoang/loto-live/pkg/protocol"
)

func TestHub_Create_Get_SamePointer(t *testing.T) {
	h := NewHub(context.Background(), nil, nil)
	reply := make(chan *room.Room, 1)

	h.Inbox() <- CreateRoom{Reply: reply}
	r1 := <-reply
	require.NotNil(t, r1)
	require.Len(t, r1.ID(), 6)

	h.Inbox() <- GetRoom{Code: r1.ID(), Reply: reply}
	r2 := <-reply
	require.Same(t, r1, r2)
}

func TestHub_GetUnknownCodeIsNil(t *testing.T) {
	h := NewHub(context.Background(), nil, nil)
	reply := make(chan *room.Room, 1)
	h.Inbox() <- GetRoom{Code: "NOPE42", Reply: reply}
	require.Nil(t, <-reply)
}

func TestHub_RemoveForgetsRoom(t *testing.T) {
	h := NewHub(context.Background(), nil, nil)
	reply := make(chan *room.Room, 1)
	h.Inbox() <- CreateRoom{Reply: reply}
	r := <-reply

	h.Inbox() <- RemoveRoom{Code: r.ID()}
	h.Inbox() <- GetRoom{Code: r.ID(), Reply: reply}
	require.Nil(t, <-reply)
}

func TestHub_ShutdownStopsRooms(t *testing.T) {
	h := NewHub(context.Background(), nil, nil)
	reply := make(chan *room.Room, 1)
	h.Inbox() <- CreateRoom{Reply: reply}
	r := <-reply

	h.Inbox() <- ShutdownHub{}

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("room did not stop with the hub")
	}
}

func TestRandomSeed_IsNotSequential(t *testing.T) {
	seen := make(map[uint64]struct{})
	for i := 0; i < 16; i++ {
		seen[randomSeed()] = struct{}{}
	}
	require.Len(t, seen, 16)
}

func TestHub_EmptyRoomRemovesItself(t *testing.T) {
	h := NewHub(context.Background(), nil, nil)
	reply := make(chan *room.Room, 1)
	h.Inbox() <- CreateRoom{Reply: reply}
	r := <-reply

	// Join and immediately leave; the hub should forget the code.
	joinOut := make(chan protocol.Envelope, 8)
	r.Inbox() <- room.Join{ClientID: "c1", PlayerName: "Alice", Outbox: joinOut}
	r.Inbox() <- room.Leave{ClientID: "c1"}

	require.Eventually(t, func() bool {
		h.Inbox() <- GetRoom{Code: r.ID(), Reply: reply}
		return <-reply == nil
	}, time.Second, 10*time.Millisecond)
}
