// Package redis provides helpers for connecting to a Redis server and a
// Redis-backed session index.
//
// The package wraps the go-redis client and adds:
//
//   - Connect, which retries the connection using the supplied configuration.
//   - Index, a session index that keeps serialized sessions under a key
//     prefix and enumerates them with SCAN, so several processes can share
//     one session root.
//   - Index.Healthcheck, for readiness probes.
//
// Configuration is described by the Config struct whose fields can be
// populated from environment variables via pkg/config.
//
// # Usage
//
//	import "github.com/dmitrymomot/sessionfolder/pkg/redis"
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    // handle error, probably terminate the application
//	}
//	defer client.Close()
//
//	store, err := session.NewFolderStore(storage,
//	    session.WithIndex(redis.NewIndexFromConfig(client, cfg)),
//	)
//
// # Errors
//
// Sentinel errors (ErrRedisNotReady, ErrIndexOperation, ...) wrap the
// underlying go-redis errors and can be matched with errors.Is.
package redis
