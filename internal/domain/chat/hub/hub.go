package hub

import (
	"context"
	"sync"

	"github.com/questx-lab/coursechat/pkg/xcontext"
)

// Hub fans out the events of one room to the sessions of this node. Events
// are delivered in the order they were broadcast.
type Hub struct {
	roomKey string

	mutex    sync.RWMutex
	sessions map[string]*Session

	events chan []byte
	done   chan struct{}
}

func NewHub(ctx context.Context, roomKey string, bufferSize int) *Hub {
	h := &Hub{
		roomKey:  roomKey,
		sessions: make(map[string]*Session),
		events:   make(chan []byte, bufferSize),
		done:     make(chan struct{}),
	}

	go h.run(ctx)

	return h
}

func (h *Hub) Register(s *Session) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.sessions[s.ID] = s
}

func (h *Hub) Unregister(s *Session) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	delete(h.sessions, s.ID)
}

func (h *Hub) Size() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.sessions)
}

// Broadcast queues msg for every session. It blocks while the queue is full
// and drops msg if the hub is stopped.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.events <- msg:
	case <-h.done:
	}
}

func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case msg := <-h.events:
			h.fanOut(ctx, msg)
		case <-h.done:
			return
		}
	}
}

func (h *Hub) fanOut(ctx context.Context, msg []byte) {
	var slow []*Session

	h.mutex.RLock()
	for _, s := range h.sessions {
		select {
		case s.C <- msg:
		default:
			slow = append(slow, s)
		}
	}
	h.mutex.RUnlock()

	for _, s := range slow {
		xcontext.Logger(ctx).Warnf("Session %s of user %s is too slow, kick it out of room %s",
			s.ID, s.UserID, h.roomKey)
		h.Unregister(s)
		s.kick()
	}
}
