// Package session is the client-side synchronization layer for a lô tô
// room: one long-lived duplex channel, fire-and-forget commands out, and a
// reconciler that keeps a local replica of the server-owned room consistent
// under snapshots and deltas.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vhoang/loto-live/internal/transport"
	"github.com/vhoang/loto-live/pkg/protocol"
)

// Status is the channel connection status exposed to the presentation layer.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// lifecycle is the guard for the one-channel-per-process invariant.
// Overlapping Initialize/Teardown calls observe it and no-op instead of
// creating a second live channel or leaking handlers.
type lifecycle int

const (
	lifecycleUninitialized lifecycle = iota
	lifecycleInitializing
	lifecycleReady
	lifecycleTearingDown
)

const defaultNoticeTTL = 5 * time.Second

type Config struct {
	Endpoint string
	Dialer   transport.Dialer
	Logger   *zap.Logger
	// NoticeTTL is the display lifetime of an ephemeral notice.
	NoticeTTL time.Duration
}

// Session owns the single channel for the process. Construct one per
// process and pass it to whatever renders state; never a second one.
type Session struct {
	endpoint  string
	dialer    transport.Dialer
	log       *zap.Logger
	noticeTTL time.Duration

	mu         sync.Mutex
	phase      lifecycle
	status     Status
	conn       transport.Conn
	playerID   string
	roomID     string
	routerDone chan struct{}
	timers     map[*time.Timer]struct{}

	replica *replica
}

func New(cfg Config) *Session {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ttl := cfg.NoticeTTL
	if ttl <= 0 {
		ttl = defaultNoticeTTL
	}
	return &Session{
		endpoint:  cfg.Endpoint,
		dialer:    cfg.Dialer,
		log:       log,
		noticeTTL: ttl,
		status:    StatusDisconnected,
		timers:    make(map[*time.Timer]struct{}),
		replica:   newReplica(),
	}
}

// Initialize establishes the channel if and only if none is live. Re-entrant
// calls, including ones overlapping an in-flight dial, are no-ops.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != lifecycleUninitialized {
		s.mu.Unlock()
		return nil
	}
	s.phase = lifecycleInitializing
	s.status = StatusConnecting
	s.mu.Unlock()

	conn, err := s.dialer.Dial(ctx, s.endpoint)
	if err != nil {
		s.mu.Lock()
		s.status = StatusDisconnected
		s.phase = lifecycleUninitialized
		s.mu.Unlock()
		s.raiseNotice(fmt.Sprintf("connection error: %v", err))
		return err
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.conn = conn
	s.playerID = conn.ID()
	s.status = StatusConnected
	s.routerDone = done
	s.phase = lifecycleReady
	s.mu.Unlock()
	s.replica.setNotice("")

	go s.route(conn, done)

	s.log.Info("session connected",
		zap.String("endpoint", s.endpoint),
		zap.String("player_id", conn.ID()))
	return nil
}

// Teardown closes the channel, waits for the router to unregister, and
// resets the lifecycle flag so a later Initialize runs cleanly. Calling it
// without a live channel is a no-op.
func (s *Session) Teardown() error {
	s.mu.Lock()
	if s.phase != lifecycleReady {
		s.mu.Unlock()
		return nil
	}
	s.phase = lifecycleTearingDown
	conn := s.conn
	done := s.routerDone
	s.conn = nil
	s.mu.Unlock()

	conn.Close()
	<-done

	s.mu.Lock()
	for t := range s.timers {
		t.Stop()
		delete(s.timers, t)
	}
	s.status = StatusDisconnected
	s.playerID = ""
	s.roomID = ""
	s.routerDone = nil
	s.phase = lifecycleUninitialized
	s.mu.Unlock()
	s.replica.reset()

	s.log.Info("session torn down")
	return nil
}

// route consumes the channel inbox until disconnect. It is the only
// subscriber for the life of the connection; events are applied one at a
// time in arrival order.
func (s *Session) route(conn transport.Conn, done chan struct{}) {
	defer close(done)
	for env := range conn.Inbox() {
		ev, err := protocol.DecodeEvent(env)
		if err != nil {
			s.log.Warn("dropping event", zap.Error(err))
			continue
		}
		s.apply(ev)
	}

	s.mu.Lock()
	stale := s.conn != conn // teardown already detached us
	if !stale {
		s.status = StatusDisconnected
	}
	s.mu.Unlock()
	if !stale {
		if err := conn.Err(); err != nil {
			s.raiseNotice(fmt.Sprintf("disconnected: %v", err))
		}
		s.log.Info("channel disconnected", zap.Error(conn.Err()))
	}
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusConnected
}

func (s *Session) Connecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusConnecting
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// PlayerID is the participant identity assigned by the server on connect.
func (s *Session) PlayerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerID
}

// RoomID is the bound room, empty when not in one.
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Room returns a copy of the reconciled room replica.
func (s *Session) Room() (protocol.Room, bool) { return s.replica.snapshot() }

func (s *Session) GameState() protocol.GameState {
	room, ok := s.replica.snapshot()
	if !ok {
		return ""
	}
	return room.State
}

// Tickets are this player's boards, set only by a tickets_generated event
// targeted at this session's participant id.
func (s *Session) Tickets() []protocol.Ticket { return s.replica.ticketsCopy() }

// Notice is the current ephemeral error/notice text, empty when none.
func (s *Session) Notice() string { return s.replica.noticeText() }

// Watch signals whenever the replica changes. Intended for the
// presentation layer's render loop.
func (s *Session) Watch() <-chan struct{} { return s.replica.watch() }

// raiseNotice surfaces msg and arms its own expiry timer. Timers are
// independent: an older one firing clears whatever notice is current.
func (s *Session) raiseNotice(msg string) {
	s.replica.setNotice(msg)
	s.mu.Lock()
	var t *time.Timer
	t = time.AfterFunc(s.noticeTTL, func() {
		s.replica.setNotice("")
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()
	})
	s.timers[t] = struct{}{}
	s.mu.Unlock()
}
