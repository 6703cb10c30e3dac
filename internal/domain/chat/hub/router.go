package hub

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync"
	"github.com/questx-lab/coursechat/pkg/xcontext"
)

// Router keeps one hub per room having sessions on this node.
type Router struct {
	bufferSize int

	// mutex serializes the creation and removal of hubs so a session is never
	// registered to a hub being removed. Broadcasting does not take it.
	mutex sync.Mutex
	hubs  *xsync.MapOf[string, *Hub]
}

func NewRouter(bufferSize int) *Router {
	return &Router{
		bufferSize: bufferSize,
		hubs:       xsync.NewMapOf[*Hub](),
	}
}

func (r *Router) Register(ctx context.Context, roomKey string, s *Session) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	h, ok := r.hubs.Load(roomKey)
	if !ok {
		h = NewHub(ctx, roomKey, r.bufferSize)
		r.hubs.Store(roomKey, h)
	}

	h.Register(s)
}

func (r *Router) Unregister(roomKey string, s *Session) {
	if h, ok := r.hubs.Load(roomKey); ok {
		h.Unregister(s)
	}
}

// Broadcast sends msg to every session of the room on this node. Rooms
// without local sessions are ignored.
func (r *Router) Broadcast(roomKey string, msg []byte) {
	if h, ok := r.hubs.Load(roomKey); ok {
		h.Broadcast(msg)
	}
}

// Cleanup stops and removes the hubs having no session.
func (r *Router) Cleanup(ctx context.Context) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.hubs.Range(func(roomKey string, h *Hub) bool {
		if h.Size() == 0 {
			r.hubs.Delete(roomKey)
			h.Stop()
			xcontext.Logger(ctx).Debugf("Removed hub of room %s", roomKey)
		}
		return true
	})
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (r *Router) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Cleanup(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Router) Size() int {
	return r.hubs.Size()
}
