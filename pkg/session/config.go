package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultReapInterval is used when Config.ReapInterval is zero.
const DefaultReapInterval = 10 * time.Minute

// Config holds folder store configuration
type Config struct {
	// RootPath is the directory holding all session directories (default: <os.TempDir()>/sessionfolder)
	RootPath string `env:"SESSION_FOLDER_ROOT" yaml:"root_path"`

	// FileName is the record file name inside each session directory
	FileName string `env:"SESSION_FOLDER_FILE_NAME" envDefault:"session-info" yaml:"file_name"`

	// Mode is the octal permission of the root and session directories
	Mode string `env:"SESSION_FOLDER_MODE" envDefault:"0755" yaml:"mode"`

	// ReapInterval between sweeps. Negative disables the timer, zero means DefaultReapInterval.
	ReapInterval time.Duration `env:"SESSION_FOLDER_REAP_INTERVAL" envDefault:"10m" yaml:"reap_interval"`

	// ReapSchedule is a standard cron expression. Takes precedence over ReapInterval when set.
	ReapSchedule string `env:"SESSION_FOLDER_REAP_SCHEDULE" yaml:"reap_schedule"`

	// Async dispatches directory removal in the background instead of blocking Destroy
	Async bool `env:"SESSION_FOLDER_ASYNC" envDefault:"false" yaml:"async"`

	// Debug logs every store operation at debug level
	Debug bool `env:"SESSION_FOLDER_DEBUG" envDefault:"false" yaml:"debug"`

	// FolderPerSession derives the directory from the session id instead of the owner
	FolderPerSession bool `env:"SESSION_FOLDER_PER_SESSION" envDefault:"false" yaml:"folder_per_session"`

	// PersistOnSet also writes the record to the session directory on every Set
	PersistOnSet bool `env:"SESSION_FOLDER_PERSIST_ON_SET" envDefault:"false" yaml:"persist_on_set"`

	// KeySecret keys the directory name hash. Empty means unkeyed.
	KeySecret string `env:"SESSION_FOLDER_KEY_SECRET" yaml:"key_secret"`
}

// DefaultConfig returns default folder store configuration
func DefaultConfig() Config {
	return Config{
		RootPath:     filepath.Join(os.TempDir(), "sessionfolder"),
		FileName:     "session-info",
		Mode:         "0755",
		ReapInterval: DefaultReapInterval,
	}
}

// Root returns RootPath, or a "sessionfolder" directory in the platform temp dir when empty.
func (c Config) Root() string {
	if c.RootPath == "" {
		return filepath.Join(os.TempDir(), "sessionfolder")
	}
	return c.RootPath
}

// DirMode parses Mode as octal permission bits. Empty means 0755.
func (c Config) DirMode() (os.FileMode, error) {
	if c.Mode == "" {
		return 0o755, nil
	}
	v, err := strconv.ParseUint(c.Mode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidMode, c.Mode, err)
	}
	if v == 0 || v > 0o777 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidMode, c.Mode)
	}
	return os.FileMode(v), nil
}

// Validate checks the fields that can be wrong independently of the filesystem.
func (c Config) Validate() error {
	if _, err := c.DirMode(); err != nil {
		return err
	}
	if c.ReapSchedule != "" {
		if _, err := cron.ParseStandard(c.ReapSchedule); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
	}
	return nil
}
