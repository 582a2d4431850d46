// Package room runs one actor goroutine per lô tô room. All state changes
// flow through the inbox, so events reach every subscriber in a single
// authoritative order per connection.
package room

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/vhoang/loto-live/internal/game"
	"github.com/vhoang/loto-live/internal/store"
	"github.com/vhoang/loto-live/pkg/protocol"
)

type Msg interface{ isRoomMsg() }

// Join registers a client's outbox and adds them as a player. The outbox is
// subscribed only when the join is accepted; a rejected joiner gets a single
// targeted error and stays out.
type Join struct {
	ClientID   string
	PlayerName string
	CardCount  int
	Outbox     chan protocol.Envelope
	// Reply, when set, receives the join outcome exactly once. A nil error
	// means the player is in the room.
	Reply chan error
	// Removed, when set, is closed if the room later evicts this client
	// without a leave of their own (a kick), so the connection can drop its
	// membership.
	Removed chan struct{}
}

type Leave struct{ ClientID string }

// FromClient carries one decoded command from a connection.
type FromClient struct {
	ClientID string
	Cmd      game.Command
}

// GetView reflects internal state without data races; used by tests and the
// http existence check.
type GetView struct{ Reply chan View }

type Shutdown struct{}

// autoTick is the automated caller's alarm. Gen guards against stale fires
// from timers armed before an intervening state change.
type autoTick struct{ gen int }

func (Join) isRoomMsg()       {}
func (Leave) isRoomMsg()      {}
func (FromClient) isRoomMsg() {}
func (GetView) isRoomMsg()    {}
func (Shutdown) isRoomMsg()   {}
func (autoTick) isRoomMsg()   {}

type View struct {
	NumClients int
	State      game.State
}

type Options struct {
	Archive store.Archive
	Logger  *zap.Logger
	Seed    uint64
	// OnEmpty is called once when the last player leaves, so the registry
	// can forget the room.
	OnEmpty func(roomID string)
}

type Room struct {
	id      string
	inbox   chan Msg
	state   game.State
	gen     *game.TicketGenerator
	clients map[string]chan protocol.Envelope
	removed map[string]chan struct{}

	timerGen int
	timer    *time.Timer

	archive store.Archive
	onEmpty func(string)
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(parent context.Context, id string, opts Options) *Room {
	ctx, cancel := context.WithCancel(parent)
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	archive := opts.Archive
	if archive == nil {
		archive = store.Noop{}
	}
	r := &Room{
		id:      id,
		inbox:   make(chan Msg, 64),
		state:   game.NewState(id),
		gen:     game.NewTicketGenerator(opts.Seed),
		clients: make(map[string]chan protocol.Envelope),
		removed: make(map[string]chan struct{}),
		archive: archive,
		onEmpty: opts.OnEmpty,
		log:     log.With(zap.String("room_id", id)),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *Room) ID() string { return r.id }

func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Done closes when the actor goroutine has exited.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				cmd := game.Command{
					Type:       game.CmdJoin,
					ActorID:    msg.ClientID,
					PlayerName: msg.PlayerName,
					CardCount:  msg.CardCount,
				}
				events, ns, err := game.Apply(r.state, cmd, r.gen)
				if err != nil {
					r.sendErrorOn(msg.Outbox, err.Error())
					if msg.Reply != nil {
						msg.Reply <- err
					}
					break
				}
				r.clients[msg.ClientID] = msg.Outbox
				if msg.Removed != nil {
					r.removed[msg.ClientID] = msg.Removed
				}
				r.state = ns
				if msg.Reply != nil {
					msg.Reply <- nil
				}
				r.publish(events)

			case Leave:
				r.removePlayer(msg.ClientID)

			case FromClient:
				msg.Cmd.ActorID = msg.ClientID
				if msg.Cmd.Type == game.CmdKick {
					r.handleKick(msg)
					break
				}
				events, ns, err := game.Apply(r.state, msg.Cmd, r.gen)
				if err != nil {
					r.sendError(msg.ClientID, err.Error())
					break
				}
				r.state = ns
				r.publish(events)
				r.rearmAutoCaller()

			case autoTick:
				if msg.gen != r.timerGen {
					break // stale fire
				}
				if r.state.Room.CallerMode != protocol.CallerAuto {
					break
				}
				events, ns, ok := game.AutoCall(r.state, r.gen.Draw)
				if !ok {
					break
				}
				r.state = ns
				r.publish(events)
				r.rearmAutoCaller()

			case GetView:
				msg.Reply <- View{NumClients: len(r.clients), State: r.state}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handleKick(msg FromClient) {
	target := msg.Cmd.TargetID
	events, ns, err := game.Apply(r.state, msg.Cmd, r.gen)
	if err != nil {
		r.sendError(msg.ClientID, err.Error())
		return
	}
	r.state = ns
	r.publish(events)
	r.sendError(target, "you were removed from the room")
	delete(r.clients, target)
	r.evict(target)
	r.checkEmpty()
}

// evict tells the target's connection its membership ended without a leave
// of its own.
func (r *Room) evict(clientID string) {
	if ch, ok := r.removed[clientID]; ok {
		close(ch)
		delete(r.removed, clientID)
	}
}

func (r *Room) removePlayer(clientID string) {
	events, ns, err := game.Apply(r.state, game.Command{Type: game.CmdLeave, ActorID: clientID}, r.gen)
	delete(r.clients, clientID)
	delete(r.removed, clientID)
	if err != nil {
		return // never joined as a player; nothing to announce
	}
	r.state = ns
	r.publish(events)
	r.checkEmpty()
}

func (r *Room) checkEmpty() {
	if len(r.state.Room.Players) > 0 {
		return
	}
	r.log.Info("room empty, shutting down")
	if r.onEmpty != nil {
		r.onEmpty(r.id)
	}
	r.cancel()
}

// rearmAutoCaller bumps the timer generation and schedules the next draw
// when the automated caller is active. Any previously armed fire becomes
// stale by generation.
func (r *Room) rearmAutoCaller() {
	r.timerGen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.state.Room.CallerMode != protocol.CallerAuto ||
		r.state.Room.State != protocol.GameStatePlaying {
		return
	}
	gen := r.timerGen
	interval := time.Duration(r.state.Room.AutoIntervalSec) * time.Second
	if interval <= 0 {
		interval = game.DefaultAutoIntervalSec * time.Second
	}
	r.timer = time.AfterFunc(interval, func() {
		select {
		case r.inbox <- autoTick{gen: gen}:
		case <-r.ctx.Done():
		}
	})
}

// publish routes events to subscribers: tickets_generated only to its
// target, everything else to the whole room. Slow clients are dropped
// rather than allowed to stall the actor.
func (r *Room) publish(events []protocol.Event) {
	for _, ev := range events {
		env, err := protocol.EncodeEvent(ev)
		if err != nil {
			r.log.Error("encode event", zap.Error(err))
			continue
		}
		switch e := ev.(type) {
		case protocol.TicketsGenerated:
			r.send(e.PlayerID, env)
		case protocol.GameFinished:
			r.broadcast(env)
			r.archiveResult(e)
		default:
			r.broadcast(env)
		}
	}
}

func (r *Room) broadcast(env protocol.Envelope) {
	for id, ch := range r.clients {
		select {
		case ch <- env:
		default:
			r.log.Warn("dropping slow client", zap.String("client_id", id))
			delete(r.clients, id)
		}
	}
}

func (r *Room) send(clientID string, env protocol.Envelope) {
	ch, ok := r.clients[clientID]
	if !ok {
		return
	}
	select {
	case ch <- env:
	default:
		r.log.Warn("dropping slow client", zap.String("client_id", clientID))
		delete(r.clients, clientID)
	}
}

func (r *Room) sendError(clientID, msg string) {
	env, err := protocol.EncodeEvent(protocol.ServerError{Message: msg})
	if err != nil {
		return
	}
	r.send(clientID, env)
}

// sendErrorOn delivers a targeted error to an outbox that was never
// subscribed, such as a rejected joiner's.
func (r *Room) sendErrorOn(ch chan protocol.Envelope, msg string) {
	env, err := protocol.EncodeEvent(protocol.ServerError{Message: msg})
	if err != nil {
		return
	}
	select {
	case ch <- env:
	default:
	}
}

func (r *Room) archiveResult(ev protocol.GameFinished) {
	numbers, _ := json.Marshal(r.state.Room.CalledNumbers)
	rec := store.GameRecord{
		RoomID:        r.id,
		WinnerID:      ev.Winner.PlayerID,
		WinnerName:    ev.Winner.Name,
		Round:         ev.Winner.Round,
		CalledNumbers: string(numbers),
		FinishedAt:    time.Now(),
	}
	archive := r.archive
	log := r.log
	go func() {
		if err := archive.SaveResult(context.Background(), rec); err != nil {
			log.Error("archive game result", zap.Error(err))
		}
	}()
}

func (r *Room) shutdown() {
	if r.timer != nil {
		r.timer.Stop()
	}
	clear(r.clients)
	clear(r.removed)
	r.cancel()
}
