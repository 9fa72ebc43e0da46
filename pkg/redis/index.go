package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Index is a session index backed by Redis. Every entry is a plain string
// key <prefix><session id> holding the serialized session.
// Unlike the in-memory index it survives restarts and can be shared by
// several processes pointing at the same session root.
type Index struct {
	db            redis.UniversalClient
	prefix        string
	scanBatchSize int64
}

// NewIndex creates an index with the default prefix and scan batch size.
func NewIndex(client redis.UniversalClient) *Index {
	return &Index{
		db:            client,
		prefix:        "sessionfolder:",
		scanBatchSize: 1000,
	}
}

// NewIndexFromConfig creates an index using the prefix and batch size from cfg.
func NewIndexFromConfig(client redis.UniversalClient, cfg Config) *Index {
	idx := NewIndex(client)
	if cfg.IndexPrefix != "" {
		idx.prefix = cfg.IndexPrefix
	}
	if cfg.ScanBatchSize > 0 {
		idx.scanBatchSize = int64(cfg.ScanBatchSize)
	}
	return idx
}

// Get returns the serialized session for id. A missing entry is reported
// with ok == false and a nil error.
func (i *Index) Get(ctx context.Context, id string) ([]byte, bool, error) {
	val, err := i.db.Get(ctx, i.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get: %v", ErrIndexOperation, err)
	}
	return val, true, nil
}

// Set stores the serialized session for id without expiration; expiry is
// enforced by the session store itself.
func (i *Index) Set(ctx context.Context, id string, data []byte) error {
	if err := i.db.Set(ctx, i.prefix+id, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: set: %v", ErrIndexOperation, err)
	}
	return nil
}

// Delete removes id. Removing a missing entry is not an error.
func (i *Index) Delete(ctx context.Context, id string) error {
	if err := i.db.Del(ctx, i.prefix+id).Err(); err != nil {
		return fmt.Errorf("%w: delete: %v", ErrIndexOperation, err)
	}
	return nil
}

// All returns every entry under the prefix keyed by session id.
func (i *Index) All(ctx context.Context) (map[string][]byte, error) {
	keys, err := i.keys(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(keys))
	for start := 0; start < len(keys); start += int(i.scanBatchSize) {
		end := min(start+int(i.scanBatchSize), len(keys))
		vals, err := i.db.MGet(ctx, keys[start:end]...).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: mget: %v", ErrIndexOperation, err)
		}
		for n, v := range vals {
			s, ok := v.(string)
			if !ok {
				// deleted between SCAN and MGET
				continue
			}
			out[strings.TrimPrefix(keys[start+n], i.prefix)] = []byte(s)
		}
	}

	return out, nil
}

// Len returns the number of entries under the prefix.
func (i *Index) Len(ctx context.Context) (int, error) {
	keys, err := i.keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Clear removes every entry under the prefix. Other keys in the database are untouched.
func (i *Index) Clear(ctx context.Context) error {
	keys, err := i.keys(ctx)
	if err != nil {
		return err
	}

	for start := 0; start < len(keys); start += int(i.scanBatchSize) {
		end := min(start+int(i.scanBatchSize), len(keys))
		if err := i.db.Del(ctx, keys[start:end]...).Err(); err != nil {
			return fmt.Errorf("%w: clear: %v", ErrIndexOperation, err)
		}
	}
	return nil
}

// keys collects the full keys under the prefix using SCAN to avoid blocking Redis.
func (i *Index) keys(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := i.db.Scan(ctx, cursor, i.prefix+"*", i.scanBatchSize).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrIndexOperation, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// Healthcheck pings the server. It suits readiness probes.
func (i *Index) Healthcheck(ctx context.Context) error {
	if err := i.db.Ping(ctx).Err(); err != nil {
		return errors.Join(ErrHealthcheckFailed, err)
	}
	return nil
}
