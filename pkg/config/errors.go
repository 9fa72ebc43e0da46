package config

import "errors"

var (
	ErrParsingConfig   = errors.New("config: cannot parse environment")
	ErrConfigNotLoaded = errors.New("config: not loaded")
	ErrNilPointer      = errors.New("config: nil destination")

	// ErrReadingFile wraps failures to read a YAML or .env file.
	ErrReadingFile = errors.New("config: cannot read file")
	// ErrParsingFile wraps YAML decode failures.
	ErrParsingFile = errors.New("config: cannot parse file")
)
