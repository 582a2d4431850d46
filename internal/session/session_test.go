package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitialize_IsIdempotent(t *testing.T) {
	s, d := newTestSession(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Initialize(context.Background()))
	}

	require.Equal(t, 1, d.dialCount(), "repeated initialize must reuse the one live channel")
	require.True(t, s.Connected())
	require.Equal(t, "client-1", s.PlayerID())
}

func TestInitialize_ConcurrentCallsCreateOneChannel(t *testing.T) {
	s, d := newTestSession(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Initialize(context.Background())
		}()
	}
	wg.Wait()

	require.Equal(t, 1, d.dialCount())
}

func TestInitialize_HandshakeFailureRaisesNotice(t *testing.T) {
	s, d := newTestSession(t)
	d.dialErr = errors.New("refused")

	err := s.Initialize(context.Background())
	require.Error(t, err)
	require.False(t, s.Connected())
	require.False(t, s.Connecting())
	require.Contains(t, s.Notice(), "connection error")

	// The failure is not fatal: a later attempt can succeed, and the
	// successful connect clears the held error.
	d.mu.Lock()
	d.dialErr = nil
	d.mu.Unlock()
	require.NoError(t, s.Initialize(context.Background()))
	require.True(t, s.Connected())
	require.Empty(t, s.Notice())
}

func TestTeardown_ThenReinitializeRestoresFunctionality(t *testing.T) {
	s, d := newTestSession(t)

	require.NoError(t, s.Initialize(context.Background()))
	first := d.lastConn()

	require.NoError(t, s.Teardown())
	require.True(t, first.isClosed(), "teardown must close the channel")
	require.False(t, s.Connected())
	require.Empty(t, s.PlayerID())

	require.NoError(t, s.Initialize(context.Background()))
	require.Equal(t, 2, d.dialCount())
	require.True(t, s.Connected())
	require.Equal(t, "client-2", s.PlayerID())

	// The old channel's handler set is gone: events delivered on the new
	// conn apply exactly once.
	second := d.lastConn()
	second.deliver(t, roomSnapshot("R9", "client-2"))
	require.Eventually(t, func() bool { return s.RoomID() == "R9" },
		time.Second, 5*time.Millisecond)
}

func TestTeardown_WithoutInitializeIsNoOp(t *testing.T) {
	s, d := newTestSession(t)
	require.NoError(t, s.Teardown())
	require.Equal(t, 0, d.dialCount())
}

func TestDisconnect_UpdatesFlagsAndNotices(t *testing.T) {
	s, d := newTestSession(t)
	require.NoError(t, s.Initialize(context.Background()))

	d.lastConn().failWith(errors.New("peer reset"))

	require.Eventually(t, func() bool { return !s.Connected() },
		time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return s.Notice() != "" },
		time.Second, 5*time.Millisecond)
	require.Contains(t, s.Notice(), "disconnected")
}

func TestWatch_SignalsOnReplicaChange(t *testing.T) {
	s, d := newTestSession(t)
	require.NoError(t, s.Initialize(context.Background()))

	ch := s.Watch()
	d.lastConn().deliver(t, roomSnapshot("R1", "client-1"))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a change notification")
	}
}
