// Package session stores web sessions in an index and provisions a durable
// directory per owner on disk or in object storage.
//
// Session records live in an Index (MemoryIndex, or the Redis index from
// pkg/redis) and are served by FolderStore.Get and FolderStore.Set. A
// separate provisioning call, CheckExists, creates the owner's directory
// under the storage root and writes an initial record file to it:
//
//	<root>/<storage key>/session-info
//
// The storage key is a one-way hash of the owner (or of the session id when
// FolderPerSession is set), see pkg/storagekey. Sessions of the same owner
// share a directory. It is removed when the last of them is destroyed.
//
// # Expiry
//
// A record expires at record["cookie"]["expires"]. Get never returns an
// expired record: it destroys the session and returns ErrSessionNotFound
// joined with ErrSessionExpired. A Set that renews the session concurrently
// wins over the destroy.
//
// # Reaper
//
// The Reaper sweeps all directories on a cron schedule or fixed interval.
// Every session sharing a directory is checked, expired ones are destroyed
// and the directory is removed with the last of them. Directories whose
// record file names a session missing from the index are removed, and
// unreadable records are skipped. A failure to list storage is kept as
// Reaper.LastError and reported by Healthcheck.
//
// # Usage
//
//	store, err := session.NewFromConfig(cfg, session.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	if err := store.Open(ctx); err != nil {
//		return err
//	}
//	defer store.Close(context.Background())
//
//	_ = store.Set(ctx, sid, session.Record{"cookie": map[string]any{"maxAge": 2000}})
//	key, err := store.CheckExists(ctx, session.ProvisionParams{SessionID: sid, Owner: "alice"})
package session
