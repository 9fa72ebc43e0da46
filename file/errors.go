package file

import "errors"

var (
	// ErrInit is returned when the storage root cannot be prepared.
	ErrInit = errors.New("failed to initialize storage root")

	// ErrInvalidKey is returned when a storage key is empty or contains path separators
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrInvalidConfig is returned when a storage is constructed with missing settings
	ErrInvalidConfig = errors.New("invalid storage configuration")

	// ErrRecordNotFound is returned when a session directory has no record file
	ErrRecordNotFound = errors.New("record file not found")

	// ErrDirectoryNotFound is returned when a session directory does not exist
	ErrDirectoryNotFound = errors.New("directory not found")

	ErrFailedToReadRecord      = errors.New("failed to read record file")
	ErrFailedToWriteRecord     = errors.New("failed to write record file")
	ErrFailedToCreateDirectory = errors.New("failed to create directory")
	ErrFailedToRemoveDirectory = errors.New("failed to remove directory")
	ErrFailedToReadDirectory   = errors.New("failed to read directory")
)
