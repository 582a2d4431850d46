// Package hub is the room registry: one actor goroutine owning the map of
// live rooms, addressed by message passing.
package hub

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/vhoang/loto-live/internal/room"
	"github.com/vhoang/loto-live/internal/store"
)

type HubMsg interface{ isHubMsg() }

// CreateRoom makes a room under a fresh collision-free code.
type CreateRoom struct {
	Reply chan *room.Room
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

type RemoveRoom struct {
	Code string
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox   chan HubMsg
	rooms   map[string]*room.Room
	archive store.Archive
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context, archive store.Archive, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}
	if archive == nil {
		archive = store.Noop{}
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		rooms:   make(map[string]*room.Room),
		archive: archive,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done closes once the hub and every room it shut down have stopped.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				code := h.freshCode()
				r := room.New(h.ctx, code, room.Options{
					Archive: h.archive,
					Logger:  h.log,
					Seed:    randomSeed(),
					OnEmpty: func(id string) {
						// Called from the room goroutine; re-enter via the inbox.
						select {
						case h.inbox <- RemoveRoom{Code: id}:
						case <-h.ctx.Done():
						}
					},
				})
				h.rooms[code] = r
				h.log.Info("room created", zap.String("room_id", code))
				msg.Reply <- r

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // May be nil

			case RemoveRoom:
				delete(h.rooms, msg.Code)

			case ShutdownHub:
				for _, r := range h.rooms {
					r.Inbox() <- room.Shutdown{}
					<-r.Done()
				}
				clear(h.rooms)
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) freshCode() string {
	for {
		code, err := generateCode()
		if err != nil {
			continue
		}
		if _, taken := h.rooms[code]; !taken {
			return code
		}
		h.log.Debug("collision on code, regenerating")
	}
}

func generateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

// randomSeed picks an unpredictable per-room seed so ticket layouts and
// auto-caller draws cannot be derived from room-creation order. Tests that
// need determinism set Options.Seed directly.
func randomSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}
