package session

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/sessionfolder/pkg/storagekey"
)

// Option is a functional option for configuring the FolderStore
type Option func(*FolderStore)

// WithConfig sets custom configuration
func WithConfig(cfg Config) Option {
	return func(s *FolderStore) {
		s.cfg = cfg
	}
}

// WithIndex sets the session index. Default is a MemoryIndex.
func WithIndex(index Index) Option {
	return func(s *FolderStore) {
		if index != nil {
			s.index = index
		}
	}
}

// WithLogger sets the logger. Nil keeps the discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *FolderStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithResolver sets the storage key resolver. It overrides Config.KeySecret.
func WithResolver(r *storagekey.Resolver) Option {
	return func(s *FolderStore) {
		s.resolver = r
	}
}

// WithReapInterval sets the sweep period. Negative disables the timer.
func WithReapInterval(d time.Duration) Option {
	return func(s *FolderStore) {
		s.cfg.ReapInterval = d
	}
}

// WithAsync dispatches directory removal in the background
func WithAsync(enabled bool) Option {
	return func(s *FolderStore) {
		s.cfg.Async = enabled
	}
}

// WithFolderPerSession keys directories by session id instead of owner
func WithFolderPerSession(enabled bool) Option {
	return func(s *FolderStore) {
		s.cfg.FolderPerSession = enabled
	}
}

// WithPersistOnSet writes the record to the session directory on every Set
func WithPersistOnSet(enabled bool) Option {
	return func(s *FolderStore) {
		s.cfg.PersistOnSet = enabled
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *FolderStore) {
		if now != nil {
			s.now = now
		}
	}
}
