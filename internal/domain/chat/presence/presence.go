package presence

import "context"

// Registry tracks which users hold at least one live connection to a room.
// A user connected twice to the same room stays online until both
// connections leave.
type Registry interface {
	Join(ctx context.Context, userID, roomKey string) error

	// Leave removes one connection of the user. It reports whether it was the
	// last one, i.e. the user is now offline in the room.
	Leave(ctx context.Context, userID, roomKey string) (bool, error)

	ListOnline(ctx context.Context, roomKey string) ([]string, error)
	RoomsOf(ctx context.Context, userID string) ([]string, error)
}

// Departure is a user who went offline in a room without leaving by itself,
// e.g. because the node serving it died.
type Departure struct {
	RoomKey string
	UserID  string
}

// Keeper is implemented by registries shared between nodes. Each node must
// call Heartbeat more often than the registry ttl.
type Keeper interface {
	Heartbeat(ctx context.Context) error
	CleanupDeadNodes(ctx context.Context) ([]Departure, error)
}
