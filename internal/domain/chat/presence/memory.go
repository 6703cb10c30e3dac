package presence

import (
	"context"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type memoryRegistry struct {
	mutex sync.RWMutex

	// rooms holds the connection count of every (room, user) pair.
	rooms map[string]map[string]int
	users map[string]map[string]struct{}
}

func NewMemoryRegistry() *memoryRegistry {
	return &memoryRegistry{
		rooms: make(map[string]map[string]int),
		users: make(map[string]map[string]struct{}),
	}
}

func (r *memoryRegistry) Join(ctx context.Context, userID, roomKey string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.rooms[roomKey]; !ok {
		r.rooms[roomKey] = make(map[string]int)
	}
	r.rooms[roomKey][userID]++

	if _, ok := r.users[userID]; !ok {
		r.users[userID] = make(map[string]struct{})
	}
	r.users[userID][roomKey] = struct{}{}

	return nil
}

func (r *memoryRegistry) Leave(ctx context.Context, userID, roomKey string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	room, ok := r.rooms[roomKey]
	if !ok || room[userID] == 0 {
		return false, nil
	}

	room[userID]--
	if room[userID] > 0 {
		return false, nil
	}

	delete(room, userID)
	if len(room) == 0 {
		delete(r.rooms, roomKey)
	}

	delete(r.users[userID], roomKey)
	if len(r.users[userID]) == 0 {
		delete(r.users, userID)
	}

	return true, nil
}

func (r *memoryRegistry) ListOnline(ctx context.Context, roomKey string) ([]string, error) {
	r.mutex.RLock()
	users := maps.Keys(r.rooms[roomKey])
	r.mutex.RUnlock()

	slices.Sort(users)
	return users, nil
}

func (r *memoryRegistry) RoomsOf(ctx context.Context, userID string) ([]string, error) {
	r.mutex.RLock()
	rooms := maps.Keys(r.users[userID])
	r.mutex.RUnlock()

	slices.Sort(rooms)
	return rooms, nil
}
