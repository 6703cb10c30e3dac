package storage

import "context"

// Storage answers questions about files which were uploaded by the course
// application. Uploading itself happens outside of the chat server.
type Storage interface {
	Exists(ctx context.Context, key string) (bool, error)
}
