package file

import (
	"context"
	"fmt"
	"strings"
)

// DefaultFileName is the name of the record file kept in every session directory.
const DefaultFileName = "session-info"

// Entry represents a file or directory inside a session directory.
type Entry struct {
	Name  string
	Path  string
	IsDir bool
	Size  int64
}

// Storage persists one record file per storage key, each inside its own
// directory, and removes whole directories. Implementations must be safe
// for concurrent use by multiple goroutines; callers serialize create and
// remove of the same key themselves.
type Storage interface {
	// Init prepares the storage root. A failure here is fatal for the store.
	Init(ctx context.Context) error
	// Exists reports whether the record file of key is present.
	Exists(ctx context.Context, key string) bool
	// Read returns the raw record file of key or ErrRecordNotFound.
	Read(ctx context.Context, key string) ([]byte, error)
	// Write creates the directory of key if needed and replaces its record file atomically.
	Write(ctx context.Context, key string, data []byte) error
	// Remove deletes the directory of key recursively. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// List returns the names of all top-level directories.
	List(ctx context.Context) ([]string, error)
	// Files returns the entries of the directory of key except the record file.
	Files(ctx context.Context, key string) ([]Entry, error)
}

// validateKey rejects keys that could escape the storage root.
func validateKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	case len(key) > 255:
		return fmt.Errorf("%w: key too long", ErrInvalidKey)
	case strings.HasPrefix(key, "."):
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	case strings.ContainsAny(key, `/\`+"\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

var (
	_ Storage = (*LocalStorage)(nil)
	_ Storage = (*S3Storage)(nil)
)
