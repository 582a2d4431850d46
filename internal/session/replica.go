package session

import (
	"sync"

	"github.com/vhoang/loto-live/pkg/protocol"
)

// replica is the client's eventually-consistent copy of the server-owned
// room. Only the reconciler writes it; everyone else gets copies through
// the Session's read methods or a change notification via Watch.
type replica struct {
	mu       sync.RWMutex
	room     *protocol.Room
	tickets  []protocol.Ticket
	notice   string
	watchers []chan struct{}
}

func newReplica() *replica {
	return &replica{}
}

// watch returns a channel that receives a coalesced signal whenever the
// replica changes. The channel is buffered; a slow reader misses
// intermediate signals, never the fact that something changed.
func (r *replica) watch() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan struct{}, 1)
	r.watchers = append(r.watchers, ch)
	return ch
}

func (r *replica) notify() {
	for _, ch := range r.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (r *replica) snapshot() (protocol.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.room == nil {
		return protocol.Room{}, false
	}
	return cloneRoom(*r.room), true
}

func (r *replica) ticketsCopy() []protocol.Ticket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.Ticket, len(r.tickets))
	copy(out, r.tickets)
	return out
}

func (r *replica) noticeText() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notice
}

func (r *replica) setNotice(msg string) {
	r.mu.Lock()
	r.notice = msg
	r.mu.Unlock()
	r.notify()
}

// replaceRoom is the room_update rule: wholesale replacement, superseding
// every prior delta including called-number history and winner.
func (r *replica) replaceRoom(room protocol.Room) {
	clone := cloneRoom(room)
	r.mu.Lock()
	r.room = &clone
	r.mu.Unlock()
	r.notify()
}

func (r *replica) setTickets(tickets []protocol.Ticket) {
	r.mu.Lock()
	r.tickets = append([]protocol.Ticket(nil), tickets...)
	r.mu.Unlock()
	r.notify()
}

// mutate runs fn against the current room, if any. Deltas arriving before
// the first snapshot have nothing to mutate and are dropped.
func (r *replica) mutate(fn func(room *protocol.Room)) {
	r.mu.Lock()
	if r.room == nil {
		r.mu.Unlock()
		return
	}
	fn(r.room)
	r.mu.Unlock()
	r.notify()
}

func (r *replica) reset() {
	r.mu.Lock()
	r.room = nil
	r.tickets = nil
	r.notice = ""
	r.mu.Unlock()
	r.notify()
}

func cloneRoom(room protocol.Room) protocol.Room {
	room.Players = append([]protocol.Player(nil), room.Players...)
	room.CalledNumbers = append([]int(nil), room.CalledNumbers...)
	if room.Winner != nil {
		w := *room.Winner
		room.Winner = &w
	}
	return room
}
