// Package config loads typed configuration from environment variables and,
// optionally, a YAML file.
//
// It wraps github.com/joho/godotenv, github.com/caarlos0/env/v11 and
// gopkg.in/yaml.v3:
//
//   - Load parses the environment into any struct using `env` tags and caches
//     the result per type for the lifetime of the process.
//   - LoadFile parses the environment and then overlays the keys present in a
//     YAML file (`yaml` tags). Useful for a deployment file that pins a few
//     values while the rest come from the environment.
//   - LoadEnv loads one or more .env files into the process environment.
//   - MustLoad panics on failure, for configuration the process cannot start
//     without.
//
// # Usage
//
//	import "github.com/dmitrymomot/sessionfolder/pkg/config"
//
//	var cfg session.Config
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatalf("parsing env: %v", err)
//	}
//
//	// or, with a file overlay
//	if err := config.LoadFile("sessionfolder.yaml", &cfg); err != nil {
//	    log.Fatalf("loading config: %v", err)
//	}
//
// # Error Handling
//
// Sentinel errors can be compared with errors.Is: ErrParsingConfig,
// ErrConfigNotLoaded, ErrNilPointer, ErrReadingFile and ErrParsingFile.
//
// # Testing Helpers
//
// ResetCache clears the cache so the next Load re-reads the environment.
package config
