package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage implements Storage on the local filesystem.
// Every key maps to <root>/<key>/<fileName>.
type LocalStorage struct {
	root     string
	fileName string
	dirMode  os.FileMode
	fileMode os.FileMode
	sync     bool
}

// LocalOption defines a function that configures LocalStorage.
type LocalOption func(*LocalStorage)

// WithFileName sets the record file name. Default is DefaultFileName.
func WithFileName(name string) LocalOption {
	return func(s *LocalStorage) {
		if name != "" {
			s.fileName = name
		}
	}
}

// WithDirMode sets the permission bits of the root and of session directories. Default is 0755.
func WithDirMode(mode os.FileMode) LocalOption {
	return func(s *LocalStorage) {
		if mode != 0 {
			s.dirMode = mode.Perm()
		}
	}
}

// WithFileMode sets the permission bits of record files. Default is 0644.
func WithFileMode(mode os.FileMode) LocalOption {
	return func(s *LocalStorage) {
		if mode != 0 {
			s.fileMode = mode.Perm()
		}
	}
}

// WithSync enables fsync of record files before they are renamed into place.
func WithSync(enabled bool) LocalOption {
	return func(s *LocalStorage) {
		s.sync = enabled
	}
}

// NewLocalStorage creates a filesystem storage rooted at root.
// The root is not touched until Init is called.
func NewLocalStorage(root string, opts ...LocalOption) (*LocalStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: root path is required", ErrInvalidConfig)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s := &LocalStorage{
		root:     abs,
		fileName: DefaultFileName,
		dirMode:  0o755,
		fileMode: 0o644,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := validateKey(s.fileName); err != nil {
		return nil, fmt.Errorf("%w: record file name: %v", ErrInvalidConfig, err)
	}

	return s, nil
}

// Root returns the absolute storage root.
func (s *LocalStorage) Root() string {
	return s.root
}

// Dir returns the absolute path of the directory of key.
func (s *LocalStorage) Dir(key string) string {
	return filepath.Join(s.root, key)
}

// Init creates the root directory with the configured mode if it is missing.
// Permissions are applied with Chmod so the process umask has no effect.
func (s *LocalStorage) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrInit, err)
	}

	// an existing root keeps its permissions
	if _, err := os.Stat(s.root); errors.Is(err, fs.ErrNotExist) {
		if err := s.mkdir(s.root); err != nil {
			return errors.Join(ErrInit, err)
		}
	}

	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInit, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInit, s.root)
	}

	return nil
}

// Exists reports whether the record file of key is present.
func (s *LocalStorage) Exists(ctx context.Context, key string) bool {
	if ctx.Err() != nil || validateKey(key) != nil {
		return false
	}

	info, err := os.Stat(s.recordPath(key))
	return err == nil && info.Mode().IsRegular()
}

// Read returns the record file of key.
func (s *LocalStorage) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.recordPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, key)
		}
		return nil, fmt.Errorf("%w: %v", ErrFailedToReadRecord, err)
	}

	return data, nil
}

// Write stores data as the record file of key.
// The content lands in a temporary file first and is renamed into place, so
// readers see either the old or the new record, never a partial one.
func (s *LocalStorage) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	dir := s.Dir(key)
	if err := s.mkdir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+s.fileName+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToWriteRecord, err)
	}
	tmpName := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToWriteRecord, err)
	}
	if s.sync {
		if err := tmp.Sync(); err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToWriteRecord, err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToWriteRecord, err)
	}
	if err := os.Chmod(tmpName, s.fileMode); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToWriteRecord, err)
	}
	if err := os.Rename(tmpName, s.recordPath(key)); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToWriteRecord, err)
	}

	success = true
	return nil
}

// Remove deletes the directory of key with everything inside it.
func (s *LocalStorage) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	if err := os.RemoveAll(s.Dir(key)); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToRemoveDirectory, err)
	}
	return nil
}

// List returns the names of the directories directly under the root.
func (s *LocalStorage) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToReadDirectory, err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || validateKey(e.Name()) != nil {
			continue
		}
		keys = append(keys, e.Name())
	}

	return keys, nil
}

// Files returns the entries of the directory of key, record file and
// in-progress temporary files excluded. Paths are relative to the root.
func (s *LocalStorage) Files(ctx context.Context, key string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(s.Dir(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, key)
		}
		return nil, fmt.Errorf("%w: %v", ErrFailedToReadDirectory, err)
	}

	tmpPrefix := "." + s.fileName + "-"
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if name == s.fileName || (strings.HasPrefix(name, tmpPrefix) && strings.HasSuffix(name, ".tmp")) {
			continue
		}

		info, err := de.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}

		entry := Entry{
			Name:  name,
			Path:  filepath.Join(key, name),
			IsDir: de.IsDir(),
		}
		if !de.IsDir() {
			entry.Size = info.Size()
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (s *LocalStorage) recordPath(key string) string {
	return filepath.Join(s.root, key, s.fileName)
}

// mkdir creates dir if missing and forces the configured mode on it.
func (s *LocalStorage) mkdir(dir string) error {
	if err := os.MkdirAll(dir, s.dirMode); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}
	if err := os.Chmod(dir, s.dirMode); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}
	return nil
}
