package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// entry holds the parsed value of one configuration type.
type entry struct {
	once  sync.Once
	value any
	err   error
}

var (
	cache          sync.Map // reflect.Type -> *entry
	defaultEnvOnce sync.Once
)

// Load parses environment variables into v according to its `env` tags.
// Each configuration type is parsed once; later calls for the same type
// receive the cached value. A failed parse is not cached.
//
// The .env file in the working directory is loaded on first use if present.
//
// Example:
//
//	type StoreConfig struct {
//		RootPath string        `env:"SESSION_FOLDER_ROOT"`
//		Interval time.Duration `env:"SESSION_FOLDER_REAP_INTERVAL" envDefault:"10m"`
//	}
//
//	var cfg StoreConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	defaultEnvOnce.Do(func() { _ = godotenv.Load() })

	key := reflect.TypeFor[T]()
	raw, _ := cache.LoadOrStore(key, &entry{})
	e := raw.(*entry)

	e.once.Do(func() {
		var parsed T
		if err := env.Parse(&parsed); err != nil {
			e.err = errors.Join(ErrParsingConfig, err)
			return
		}
		e.value = parsed
	})

	if e.err != nil {
		cache.CompareAndDelete(key, e)
		return e.err
	}
	parsed, ok := e.value.(T)
	if !ok {
		return ErrConfigNotLoaded
	}
	*v = parsed
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}

// LoadFile fills v from the environment first and then overlays the keys
// present in the YAML file at path, matched by `yaml` tags. Keys absent from
// the file keep their environment or default value. The result is not cached.
//
// An empty path behaves like a plain uncached environment parse.
func LoadFile[T any](path string, v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	defaultEnvOnce.Do(func() { _ = godotenv.Load() })

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReadingFile, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrParsingFile, err)
	}

	return nil
}

// LoadEnv loads the given .env files into the process environment.
// With no arguments it loads .env from the working directory.
// Variables already set are not overridden.
func LoadEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("%w: %v", ErrReadingFile, err)
	}
	return nil
}

// ResetCache drops every cached configuration so the next Load parses the
// environment again. Intended for tests.
func ResetCache() {
	cache.Clear()
}
