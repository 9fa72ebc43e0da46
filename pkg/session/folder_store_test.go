package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionfolder/file"
	"github.com/dmitrymomot/sessionfolder/pkg/session"
	"github.com/dmitrymomot/sessionfolder/pkg/storagekey"
)

func newLocalStorage(t *testing.T) *file.LocalStorage {
	t.Helper()
	ls, err := file.NewLocalStorage(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)
	return ls
}

func openStore(t *testing.T, storage file.Storage, opts ...session.Option) *session.FolderStore {
	t.Helper()
	store, err := session.NewFolderStore(storage, append([]session.Option{session.WithReapInterval(-1)}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, store.Open(context.Background()))
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func newStore(t *testing.T, opts ...session.Option) (*session.FolderStore, *file.LocalStorage) {
	t.Helper()
	ls := newLocalStorage(t)
	return openStore(t, ls, opts...), ls
}

func readRecordFile(t *testing.T, ls *file.LocalStorage, key string) map[string]any {
	t.Helper()
	data, err := ls.Read(context.Background(), key)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(data, &rec))
	return rec
}

func dirExists(ls *file.LocalStorage, key string) bool {
	info, err := os.Stat(ls.Dir(key))
	return err == nil && info.IsDir()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingStorage counts record writes and slows them down to widen races.
type countingStorage struct {
	file.Storage
	writes atomic.Int32
}

func (c *countingStorage) Write(ctx context.Context, key string, data []byte) error {
	c.writes.Add(1)
	time.Sleep(5 * time.Millisecond)
	return c.Storage.Write(ctx, key, data)
}

func TestNewFolderStore(t *testing.T) {
	t.Parallel()

	t.Run("nil storage", func(t *testing.T) {
		t.Parallel()
		_, err := session.NewFolderStore(nil)
		assert.ErrorIs(t, err, session.ErrNoStorage)
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()
		cfg := session.DefaultConfig()
		cfg.Mode = "999"
		_, err := session.NewFolderStore(newLocalStorage(t), session.WithConfig(cfg))
		assert.ErrorIs(t, err, session.ErrInvalidMode)
	})

	t.Run("from config", func(t *testing.T) {
		t.Parallel()
		cfg := session.DefaultConfig()
		cfg.RootPath = filepath.Join(t.TempDir(), "sessions")
		cfg.Mode = "0700"
		cfg.ReapInterval = -1

		store, err := session.NewFromConfig(cfg)
		require.NoError(t, err)
		require.NoError(t, store.Open(context.Background()))
		defer store.Close(context.Background())

		info, err := os.Stat(cfg.RootPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
	})

	t.Run("from config with invalid mode", func(t *testing.T) {
		t.Parallel()
		cfg := session.DefaultConfig()
		cfg.Mode = "rwx"
		_, err := session.NewFromConfig(cfg)
		assert.ErrorIs(t, err, session.ErrInvalidMode)
	})
}

func TestFolderStore_ExampleScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, ls := newStore(t)

	rec := session.Record{
		"cookie": map[string]any{"maxAge": float64(2000)},
		"name":   "dc",
	}
	require.NoError(t, store.Set(ctx, "123", rec))

	key, err := store.CheckExists(ctx, session.ProvisionParams{SessionID: "123", Owner: "alice"})
	require.NoError(t, err)
	assert.Equal(t, storagekey.Resolve("alice"), key)

	_, err = os.Stat(filepath.Join(ls.Root(), key, "session-info"))
	require.NoError(t, err)

	initial := readRecordFile(t, ls, key)
	assert.Equal(t, "123", initial["sid"])
	assert.Equal(t, "alice", initial["user"])
	assert.Equal(t, map[string]any{"maxAge": float64(2000)}, initial["cookie"])

	got, err := store.Get(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	require.NoError(t, store.Destroy(ctx, "123"))
	assert.False(t, dirExists(ls, key))

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFolderStore_CheckExistsConcurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cs := &countingStorage{Storage: newLocalStorage(t)}
	store := openStore(t, cs)

	const n = 32
	keys := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			sid := "sid-" + string(rune('a'+i%26)) + string(rune('0'+i/26))
			keys[i], errs[i] = store.CheckExists(ctx, session.ProvisionParams{SessionID: sid, Owner: "alice"})
		}()
	}
	close(start)
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, keys[0], keys[i])
	}
	assert.Equal(t, int32(1), cs.writes.Load())

	listed, err := cs.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{keys[0]}, listed)
}

func TestFolderStore_CheckExistsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cs := &countingStorage{Storage: newLocalStorage(t)}
	store := openStore(t, cs)

	p := session.ProvisionParams{SessionID: "s1", Owner: "alice", Extra: map[string]any{"plan": "pro"}}
	first, err := store.CheckExists(ctx, p)
	require.NoError(t, err)
	second, err := store.CheckExists(ctx, p)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first, store.KeyFor(p))
	assert.Equal(t, int32(1), cs.writes.Load())
}

func TestFolderStore_CheckExistsExtraFields(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, ls := newStore(t)

	key, err := store.CheckExists(ctx, session.ProvisionParams{
		SessionID: "s1",
		Owner:     "alice",
		Extra:     map[string]any{"plan": "pro", "sid": "spoofed"},
	})
	require.NoError(t, err)

	rec := readRecordFile(t, ls, key)
	assert.Equal(t, "s1", rec["sid"])
	assert.Equal(t, "pro", rec["plan"])
	assert.NotContains(t, rec, "cookie")
}

func TestFolderStore_CheckExistsMissingIdentity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cs := &countingStorage{Storage: newLocalStorage(t)}
	store := openStore(t, cs)

	_, err := store.CheckExists(ctx, session.ProvisionParams{Owner: "alice"})
	assert.ErrorIs(t, err, session.ErrMissingIdentity)

	_, err = store.CheckExists(ctx, session.ProvisionParams{SessionID: "s1"})
	assert.ErrorIs(t, err, session.ErrMissingIdentity)

	future := store.CheckExistsAsync(ctx, session.ProvisionParams{})
	assert.True(t, future.IsComplete())

	assert.Equal(t, int32(0), cs.writes.Load())
}

func TestFolderStore_CheckExistsAsync(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, ls := newStore(t)

	future := store.CheckExistsAsync(ctx, session.ProvisionParams{SessionID: "s1", Owner: "bob"})
	key, err := future.AwaitWithTimeout(time.Second)
	require.NoError(t, err)
	assert.True(t, ls.Exists(ctx, key))
}

func TestFolderStore_CheckExistsWriteFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := &failingStorage{Storage: newLocalStorage(t), writeErr: errors.New("disk full")}
	store := openStore(t, fs)

	_, err := store.CheckExists(ctx, session.ProvisionParams{SessionID: "s1", Owner: "alice"})
	require.Error(t, err)

	// the failed reference is dropped, so no folder is tracked for s1
	_, err = store.Files(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestFolderStore_FolderPerSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, ls := newStore(t, session.WithFolderPerSession(true))

	k1, err := store.CheckExists(ctx, session.ProvisionParams{SessionID: "s1"})
	require.NoError(t, err)
	k2, err := store.CheckExists(ctx, session.ProvisionParams{SessionID: "s2", Owner: "alice"})
	require.NoError(t, err)

	assert.Equal(t, storagekey.Resolve("s1"), k1)
	assert.Equal(t, storagekey.Resolve("s2"), k2)

	require.NoError(t, store.Destroy(ctx, "s1"))
	assert.False(t, dirExists(ls, k1))
	assert.True(t, dirExists(ls, k2))
}

func TestFolderStore_KeySecret(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := session.DefaultConfig()
	cfg.KeySecret = "s3cr3t"
	cfg.ReapInterval = -1
	store := openStore(t, newLocalStorage(t), session.WithConfig(cfg))

	key, err := store.CheckExists(ctx, session.ProvisionParams{SessionID: "s1", Owner: "alice"})
	require.NoError(t, err)
	assert.Equal(t, storagekey.New("s3cr3t").Resolve("alice"), key)
	assert.NotEqual(t, storagekey.Resolve("alice"), key)
}

func TestFolderStore_GetExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newFakeClock()
	store, ls := newStore(t, session.WithClock(clock.Now))

	expires := clock.Now().Add(time.Hour).Format(time.RFC3339Nano)
	rec := session.Record{"cookie": map[string]any{"expires": expires}}
	require.NoError(t, store.Set(ctx, "s1", rec))

	key, err := store.CheckExists(ctx, session.ProvisionParams{SessionID: "s1", Owner: "alice"})
	require.NoError(t, err)

	_, err = store.Get(ctx, "s1")
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)

	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.ErrorIs(t, err, session.ErrSessionExpired)
	assert.False(t, dirExists(ls, key))

	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.NotErrorIs(t, err, session.ErrSessionExpired)
}

func TestFolderStore_GetExpiredInPast(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newStore(t)

	past := float64(time.Now().Add(-time.Minute).UnixMilli())
	require.NoError(t, store.Set(ctx, "s1", session.Record{"cookie": map[string]any{"expires": past}}))

	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrSessionExpired)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// pausingIndex holds the next Get of id after it has read the value.
type pausingIndex struct {
	*session.MemoryIndex
	id      string
	armed   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func (p *pausingIndex) Get(ctx context.Context, id string) ([]byte, bool, error) {
	data, ok, err := p.MemoryIndex.Get(ctx, id)
	if id == p.id && p.armed.CompareAndSwap(true, false) {
		close(p.read)
		<-p.release
	}
	return data, ok, err
}

func TestFolderStore_GetKeepsRenewedSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := &pausingIndex{
		MemoryIndex: session.NewMemoryIndex(),
		id:          "s1",
		read:        make(chan struct{}),
		release:     make(chan struct{}),
	}
	store, _ := newStore(t, session.WithIndex(idx))

	past := float64(time.Now().Add(-time.Minute).UnixMilli())
	require.NoError(t, store.Set(ctx, "s1", session.Record{"cookie": map[string]any{"expires": past}}))

	idx.armed.Store(true)
	type result struct {
		rec session.Record
		err error
	}
	got := make(chan result, 1)
	go func() {
		rec, err := store.Get(ctx, "s1")
		got <- result{rec, err}
	}()

	<-idx.read
	future := float64(time.Now().Add(time.Hour).UnixMilli())
	require.NoError(t, store.Set(ctx, "s1", session.Record{
		"cookie":  map[string]any{"expires": future},
		"renewed": true,
	}))
	close(idx.release)

	res := <-got
	require.NoError(t, res.err)
	assert.Equal(t, true, res.rec["renewed"])

	rec, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, true, rec["renewed"])
}

func TestFolderStore_GetMissing(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestFolderStore_GetUndecodable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := session.NewMemoryIndex()
	require.NoError(t, idx.Set(ctx, "s1", []byte("{not json")))
	store := openStore(t, newLocalStorage(t), session.WithIndex(idx))

	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.ErrorIs(t, err, session.ErrDecodeRecord)
}

func TestFolderStore_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newStore(t)

	tests := []struct {
		name string
		rec  session.Record
	}{
		{"empty", session.Record{}},
		{"no cookie", session.Record{"name": "dc", "count": float64(3)}},
		{"null expiry", session.Record{"cookie": map[string]any{"expires": nil, "path": "/"}}},
		{"future expiry", session.Record{"cookie": map[string]any{"expires": "2999-01-01T00:00:00Z"}}},
		{"nested", session.Record{"flash": []any{"a", "b"}, "prefs": map[string]any{"dark": true}}},
	}

	for _, tt := range tests {
		require.NoError(t, store.Set(ctx, tt.name, tt.rec))
		got, err := store.Get(ctx, tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.rec, got, tt.name)
	}
}

func TestFolderStore_SetInvalid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newStore(t)

	assert.ErrorIs(t, store.Set(ctx, "", session.Record{}), session.ErrInvalidSession)
	assert.ErrorIs(t, store.Set(ctx, "s1", session.Record{"cookie": map[string]any{"expires": "tomorrow"}}), session.ErrInvalidSession)
	assert.ErrorIs(t, store.Set(ctx, "s1", session.Record{"cookie": "yes"}), session.ErrInvalidSession)
}

func TestFolderStore_SetDoesNotTouchDisk(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cs := &countingStorage{Storage: newLocalStorage(t)}
	store := openStore(t, cs)

	require.NoError(t, store.Set(ctx, "s1", session.Record{"name": "dc"}))
	assert.Equal(t, int32(0), cs.writes.Load())
}

func TestFolderStore_PersistOnSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, ls := newStore(t, session.WithPersistOnSet(true))

	t.Run("without provisioned folder", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "s1", session.Record{"name": "dc"}))
		rec := readRecordFile(t, ls, storagekey.Resolve("s1"))
		assert.Equal(t, "s1", rec["sid"])
		assert.Equal(t, "dc", rec["name"])

		require.NoError(t, store.Destroy(ctx, "s1"))
		assert.False(t, dirExists(ls, storagekey.Resolve("s1")))
	})

	t.Run("into provisioned folder", func(t *testing.T) {
		key, err := store.CheckExists(ctx, session.ProvisionParams{SessionID: "s2", Owner: "alice"})
		require.NoError(t, err)

		require.NoError(t, store.Set(ctx, "s2", session.Record{"name": "updated"}))
		rec := readRecordFile(t, ls, key)
		assert.Equal(t, "s2", rec["sid"])
		assert.Equal(t, "updated", rec["name"])
	})
}

func TestFolderStore_SharedFolder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, ls := newStore(t)

	require.NoError(t, store.Set(ctx, "s1", session.Record{"device": "laptop"}))
	require.NoError(t, store.Set(ctx, "s2", session.Record{"device": "phone"}))

	k1, err := store.CheckExists(ctx, session.ProvisionParams{SessionID: "s1", Owner: "alice"})
	require.NoError(t, err)
	k2, err := store.CheckExists(ctx, session.ProvisionParams{SessionID: "s2", Owner: "alice"})
	require.NoError(t, err)
	require.Equal(t, k1, k2)

	require.NoError(t, store.Destroy(ctx, "s1"))
	assert.True(t, dirExists(ls, k1))

	got, err := store.Get(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, "phone", got["device"])

	require.NoError(t, store.Destroy(ctx, "s2"))
	assert.False(t, dirExists(ls, k1))
}

func TestFolderStore_OwnerChange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, ls := newStore(t)

	alice, err := store.CheckExists(ctx, session.ProvisionParams{SessionID: "s1", Owner: "alice"})
	require.NoError(t, err)
	bob, err := store.CheckExists(ctx, session.ProvisionParams{SessionID: "s1", Owner: "bob"})
	require.NoError(t, err)

	assert.NotEqual(t, alice, bob)
	assert.False(t, dirExists(ls, alice))
	assert.True(t, dirExists(ls, bob))
}

func TestFolderStore_DestroyIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newStore(t)

	assert.NoError(t, store.Destroy(ctx, "missing"))
	require.NoError(t, store.Set(ctx, "s1", session.Record{}))
	assert.NoError(t, store.Destroy(ctx, "s1"))
	assert.NoError(t, store.Destroy(ctx, "s1"))
}

func TestFolderStore_DestroyOwned(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, ls := newStore(t)

	key, err := store.CheckExists(ctx, session.ProvisionParams{SessionID: "s1", Owner: "alice"})
	require.NoError(t, err)

	// Clear forgets references, like a restart would
	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Destroy(ctx, "s1"))
	assert.True(t, dirExists(ls, key))

	require.NoError(t, store.DestroyOwned(ctx, "s1", "alice"))
	assert.False(t, dirExists(ls, key))
}

func TestFolderStore_DestroyAsync(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ls := newLocalStorage(t)
	store, err := session.NewFolderStore(ls, session.WithReapInterval(-1), session.WithAsync(true))
	require.NoError(t, err)
	require.NoError(t, store.Open(ctx))

	key, err := store.CheckExists(ctx, session.ProvisionParams{SessionID: "s1", Owner: "alice"})
	require.NoError(t, err)
	require.NoError(t, store.Destroy(ctx, "s1"))

	// Close waits for background removals
	require.NoError(t, store.Close(ctx))
	assert.False(t, dirExists(ls, key))
}

func TestFolderStore_AllLenClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newFakeClock()
	store, _ := newStore(t, session.WithClock(clock.Now))

	soon := clock.Now().Add(time.Minute).Format(time.RFC3339)
	require.NoError(t, store.Set(ctx, "b", session.Record{"n": float64(2)}))
	require.NoError(t, store.Set(ctx, "a", session.Record{"n": float64(1)}))
	require.NoError(t, store.Set(ctx, "c", session.Record{"n": float64(3), "cookie": map[string]any{"expires": soon}}))

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	clock.Advance(time.Hour)

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []session.Record{{"n": float64(1)}, {"n": float64(2)}}, all)

	n, err = store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, store.Clear(ctx))
	n, err = store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFolderStore_Files(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, ls := newStore(t)

	_, err := store.Files(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	key, err := store.CheckExists(ctx, session.ProvisionParams{SessionID: "s1", Owner: "alice"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(ls.Dir(key), "avatar.png"), []byte("png"), 0o644))

	entries, err := store.Files(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "avatar.png", entries[0].Name)
	assert.Equal(t, int64(3), entries[0].Size)
}

func TestFolderStore_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := session.NewFolderStore(newLocalStorage(t), session.WithReapInterval(-1))
	require.NoError(t, err)

	events := store.Subscribe(ctx)
	assert.ErrorIs(t, store.Healthcheck(ctx), session.ErrStoreNotReady)

	require.NoError(t, store.Open(ctx))
	ev := recvEvent(t, events)
	assert.Equal(t, session.EventConnect, ev.Type)
	assert.NoError(t, ev.Err)

	select {
	case <-store.Ready():
	default:
		t.Fatal("store should be ready after Open")
	}
	assert.NoError(t, store.Healthcheck(ctx))

	// late subscribers learn the current state
	late := store.Subscribe(ctx)
	assert.Equal(t, session.EventConnect, recvEvent(t, late).Type)

	require.NoError(t, store.Close(ctx))
	assert.Equal(t, session.EventDisconnect, recvEvent(t, events).Type)
	_, ok := <-events
	assert.False(t, ok)

	assert.NoError(t, store.Close(ctx))
	assert.ErrorIs(t, store.Healthcheck(ctx), session.ErrStoreClosed)
	assert.ErrorIs(t, store.Open(ctx), session.ErrStoreClosed)
	assert.ErrorIs(t, store.Set(ctx, "s1", session.Record{}), session.ErrStoreClosed)
	_, err = store.CheckExists(ctx, session.ProvisionParams{SessionID: "s1", Owner: "alice"})
	assert.ErrorIs(t, err, session.ErrStoreClosed)
}

func TestFolderStore_OpenFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	root := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(root, []byte("x"), 0o644))
	ls, err := file.NewLocalStorage(root)
	require.NoError(t, err)

	store, err := session.NewFolderStore(ls)
	require.NoError(t, err)
	defer store.Close(ctx)

	err = store.Open(ctx)
	assert.ErrorIs(t, err, file.ErrInit)
	assert.ErrorIs(t, store.Open(ctx), file.ErrInit)

	ev := recvEvent(t, store.Subscribe(ctx))
	assert.Equal(t, session.EventDisconnect, ev.Type)
	assert.ErrorIs(t, ev.Err, file.ErrInit)

	assert.False(t, store.Reaper().Running())
	assert.ErrorIs(t, store.Healthcheck(ctx), session.ErrStoreNotReady)
}

func TestFolderStore_SubscribeUnsubscribesOnCancel(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	events := store.Subscribe(ctx)
	recvEvent(t, events)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func recvEvent(t *testing.T, events <-chan session.Event) session.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return session.Event{}
	}
}
