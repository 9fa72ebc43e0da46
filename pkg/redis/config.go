package redis

import "time"

type Config struct {
	ConnectionURL  string        `env:"REDIS_URL" yaml:"url"`                                              // ConnectionURL is the URL of the database. It should be in the format "redis://:password@localhost:6379/0"
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3" yaml:"retry_attempts"`         // RetryAttempts is the number of retry attempts to connect to the database.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s" yaml:"retry_interval"`        // RetryInterval is the interval between retry attempts.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s" yaml:"connect_timeout"`     // ConnectTimeout is the timeout for connecting to the database.
	IndexPrefix    string        `env:"REDIS_INDEX_PREFIX" envDefault:"sessionfolder:" yaml:"index_prefix"` // IndexPrefix namespaces session index entries.
	ScanBatchSize  int           `env:"REDIS_SCAN_BATCH_SIZE" envDefault:"1000" yaml:"scan_batch_size"`    // ScanBatchSize is the COUNT hint for SCAN.
}
