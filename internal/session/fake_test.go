package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vhoang/loto-live/internal/transport"
	"github.com/vhoang/loto-live/pkg/protocol"
)

// fakeConn is an in-memory channel: tests deliver inbound envelopes and
// capture outbound ones.
type fakeConn struct {
	id    string
	inbox chan protocol.Envelope
	sent  chan protocol.Envelope

	mu        sync.Mutex
	err       error
	closed    bool
	closeOnce sync.Once
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{
		id:    id,
		inbox: make(chan protocol.Envelope, 32),
		sent:  make(chan protocol.Envelope, 32),
	}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Inbox() <-chan protocol.Envelope { return c.inbox }

func (c *fakeConn) Send(_ context.Context, env protocol.Envelope) error {
	c.sent <- env
	return nil
}

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.inbox)
	})
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// failWith simulates a transport-level disconnect with a reason.
func (c *fakeConn) failWith(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.Close()
}

func (c *fakeConn) deliver(t *testing.T, ev protocol.Event) {
	t.Helper()
	env, err := protocol.EncodeEvent(ev)
	if err != nil {
		t.Fatalf("encode event: %v", err)
	}
	c.inbox <- env
}

type fakeDialer struct {
	mu      sync.Mutex
	dialErr error
	dials   int
	conns   []*fakeConn
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	c := newFakeConn(fmt.Sprintf("client-%d", d.dials))
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func newTestSession(t *testing.T) (*Session, *fakeDialer) {
	t.Helper()
	d := &fakeDialer{}
	s := New(Config{
		Endpoint:  "fake://room",
		Dialer:    d,
		NoticeTTL: 80 * time.Millisecond,
	})
	t.Cleanup(func() { s.Teardown() })
	return s, d
}

// recvSent receives one outbound envelope with a timeout so tests never hang.
func recvSent(t *testing.T, c *fakeConn, within time.Duration) protocol.Envelope {
	t.Helper()
	select {
	case env := <-c.sent:
		return env
	case <-time.After(within):
		t.Fatalf("timed out waiting for outbound envelope")
		return protocol.Envelope{} // unreachable
	}
}

func recvNoSend(t *testing.T, c *fakeConn, within time.Duration) {
	t.Helper()
	select {
	case env := <-c.sent:
		t.Fatalf("expected nothing on the channel, got %q", env.Event)
	case <-time.After(within):
	}
}
