package session

import "context"

// Store is the capability set a session middleware needs from a backend.
// FolderStore implements it; hosts should depend on this interface only.
type Store interface {
	// Get returns the live record for id or an error matching ErrSessionNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// Set stores record under id, replacing any previous value.
	Set(ctx context.Context, id string, record Record) error

	// Destroy removes id. Destroying a missing id is not an error.
	Destroy(ctx context.Context, id string) error

	// All returns every live record.
	All(ctx context.Context) ([]Record, error)

	// Clear removes every session.
	Clear(ctx context.Context) error

	// Len returns the number of stored sessions.
	Len(ctx context.Context) (int, error)
}

var _ Store = (*FolderStore)(nil)
