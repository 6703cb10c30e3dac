package hub

import (
	"sync"

	"github.com/google/uuid"
)

// Session is the receiving end of one connection inside a hub.
type Session struct {
	ID     string
	UserID string

	// C receives every event broadcast to the room of this session.
	C chan []byte

	kicked   chan struct{}
	kickOnce sync.Once
}

func NewSession(userID string, bufferSize int) *Session {
	return &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		C:      make(chan []byte, bufferSize),
		kicked: make(chan struct{}),
	}
}

// Kicked is closed when the hub drops the session because it could not keep
// up with the room.
func (s *Session) Kicked() <-chan struct{} {
	return s.kicked
}

func (s *Session) kick() {
	s.kickOnce.Do(func() { close(s.kicked) })
}
