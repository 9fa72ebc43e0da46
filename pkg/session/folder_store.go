package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/sessionfolder/file"
	"github.com/dmitrymomot/sessionfolder/pkg/async"
	"github.com/dmitrymomot/sessionfolder/pkg/logger"
	"github.com/dmitrymomot/sessionfolder/pkg/storagekey"
)

// ProvisionParams identifies the session and the owner whose directory
// CheckExists should ensure. Extra fields are written into the initial
// record file next to "sid" and "user".
type ProvisionParams struct {
	SessionID string
	Owner     string
	Extra     map[string]any
}

// FolderStore keeps sessions in an Index and gives each owner (or each
// session, with FolderPerSession) a durable directory holding a record file.
// Several sessions of the same owner share one directory; it is removed when
// the last of them is destroyed.
type FolderStore struct {
	storage  file.Storage
	index    Index
	resolver *storagekey.Resolver
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	provision async.Deduper[string]
	refs      *refTable
	locks     keyLocks
	sidLocks  keyLocks
	reaper    *Reaper
	events    *eventHub

	ready     chan struct{}
	openOnce  sync.Once
	openErr   error
	closed    atomic.Bool
	closeOnce sync.Once
	bg        sync.WaitGroup
}

// NewFolderStore creates a store on top of storage. Call Open before serving traffic.
func NewFolderStore(storage file.Storage, opts ...Option) (*FolderStore, error) {
	if storage == nil {
		return nil, ErrNoStorage
	}

	s := &FolderStore{
		storage: storage,
		cfg:     DefaultConfig(),
		logger:  logger.Discard(),
		now:     time.Now,
		refs:    newRefTable(),
		events:  newEventHub(),
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	if s.index == nil {
		s.index = NewMemoryIndex()
	}
	if s.resolver == nil {
		s.resolver = storagekey.New(s.cfg.KeySecret)
	}
	base := s.logger
	s.logger = base.With(logger.Component("session.folder_store"))
	s.reaper = newReaper(s, base)

	return s, nil
}

// NewFromConfig creates a store on the local filesystem described by cfg.
func NewFromConfig(cfg Config, opts ...Option) (*FolderStore, error) {
	mode, err := cfg.DirMode()
	if err != nil {
		return nil, err
	}

	storage, err := file.NewLocalStorage(cfg.Root(),
		file.WithFileName(cfg.FileName),
		file.WithDirMode(mode),
	)
	if err != nil {
		return nil, err
	}

	return NewFolderStore(storage, append([]Option{WithConfig(cfg)}, opts...)...)
}

// Open initializes storage, starts the reaper and emits EventConnect.
// On failure it emits EventDisconnect and returns an error wrapping
// file.ErrInit; the store must not be used afterwards.
// Calling Open again returns the first result.
func (s *FolderStore) Open(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	s.openOnce.Do(func() {
		if err := s.storage.Init(ctx); err != nil {
			s.openErr = err
			s.logger.ErrorContext(ctx, "session storage init failed", logger.Error(err))
			s.events.publish(Event{Type: EventDisconnect, Err: err, At: s.now()})
			return
		}

		if err := s.reaper.Start(); err != nil {
			s.openErr = err
			s.events.publish(Event{Type: EventDisconnect, Err: err, At: s.now()})
			return
		}

		close(s.ready)
		s.logger.InfoContext(ctx, "session store ready", logger.Path(s.storagePath()))
		s.events.publish(Event{Type: EventConnect, At: s.now()})
	})

	return s.openErr
}

// Ready is closed once Open has succeeded.
func (s *FolderStore) Ready() <-chan struct{} {
	return s.ready
}

// Subscribe returns a channel of lifecycle events. The most recent event is
// delivered immediately if there is one. The channel is closed when ctx is
// done or the store is closed.
func (s *FolderStore) Subscribe(ctx context.Context) <-chan Event {
	return s.events.subscribe(ctx)
}

// Reaper returns the store's sweep scheduler.
func (s *FolderStore) Reaper() *Reaper {
	return s.reaper
}

// Close stops the reaper, waits for background removals, emits
// EventDisconnect and closes all subscriptions.
func (s *FolderStore) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		if stopErr := s.reaper.Stop(ctx); stopErr != nil && !errors.Is(stopErr, ErrReaperStopped) {
			err = stopErr
		}

		done := make(chan struct{})
		go func() {
			s.bg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = errors.Join(err, ctx.Err())
		}

		s.events.publish(Event{Type: EventDisconnect, At: s.now()})
		s.events.close()
	})
	return err
}

// Healthcheck reports whether the store is open and the last sweep could list storage.
func (s *FolderStore) Healthcheck(_ context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	select {
	case <-s.ready:
	default:
		return ErrStoreNotReady
	}
	if err := s.reaper.LastError(); err != nil {
		return fmt.Errorf("%w: %v", ErrReaperDegraded, err)
	}
	return nil
}

// Get returns the record stored under id. A missing or undecodable entry is
// reported as ErrSessionNotFound. An expired entry is destroyed first and
// reported as ErrSessionNotFound joined with ErrSessionExpired.
func (s *FolderStore) Get(ctx context.Context, id string) (Record, error) {
	data, ok, err := s.index.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionNotFound, err)
	}
	if !ok {
		s.debug(ctx, "get: not found", logger.SessionID(id))
		return nil, ErrSessionNotFound
	}

	rec, err := decodeRecord(data)
	if err != nil {
		s.debug(ctx, "get: undecodable record", logger.SessionID(id), logger.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrSessionNotFound, err)
	}

	expired, err := rec.ExpiredAt(s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionNotFound, err)
	}
	if !expired {
		return rec, nil
	}

	s.debug(ctx, "get: expired", logger.SessionID(id))
	renewed, _, err := s.expire(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to destroy expired session", logger.SessionID(id), logger.Error(err))
	}
	if renewed != nil {
		return renewed, nil
	}
	return nil, errors.Join(ErrSessionNotFound, ErrSessionExpired)
}

// expire destroys id if its current index value is still expired. Set holds
// the same per-session lock, so a renewal that lands between a caller's read
// and this call is kept and returned as renewed.
func (s *FolderStore) expire(ctx context.Context, id string) (renewed Record, removed bool, err error) {
	unlock := s.sidLocks.lock(id)
	defer unlock()

	data, ok, err := s.index.Get(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, false, nil
	}
	expired, err := rec.ExpiredAt(s.now())
	if err != nil {
		return nil, false, nil
	}
	if !expired {
		return rec, false, nil
	}

	removed, err = s.destroy(ctx, id, "")
	return nil, removed, err
}

// Set stores record under id in the index. With PersistOnSet the record,
// carrying "sid", is also written to the session's directory.
func (s *FolderStore) Set(ctx context.Context, id string, record Record) error {
	if id == "" {
		return fmt.Errorf("%w: empty session id", ErrInvalidSession)
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}

	data, err := encodeRecord(record)
	if err != nil {
		return err
	}

	unlockSID := s.sidLocks.lock(id)
	defer unlockSID()

	if err := s.index.Set(ctx, id, data); err != nil {
		return err
	}
	s.debug(ctx, "set", logger.SessionID(id))

	if !s.cfg.PersistOnSet {
		return nil
	}

	key, ok := s.refs.keyOf(id)
	if !ok {
		key = s.resolver.Resolve(id)
		if prev, _ := s.refs.add(id, key); prev != "" {
			s.releaseKey(ctx, prev)
		}
	}

	durable := record.Clone()
	if durable == nil {
		durable = Record{}
	}
	durable[FieldSessionID] = id
	payload, err := encodeRecord(durable)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(key)
	defer unlock()
	if err := s.storage.Write(ctx, key, payload); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist session", logger.SessionID(id), logger.StorageKey(key), logger.Error(err))
		return err
	}
	return nil
}

// Destroy removes id from the index and releases its directory.
func (s *FolderStore) Destroy(ctx context.Context, id string) error {
	_, err := s.destroy(ctx, id, "")
	return err
}

// DestroyOwned is Destroy for a session whose directory is known only by
// owner, for example after a restart when the reference table is empty.
func (s *FolderStore) DestroyOwned(ctx context.Context, id, owner string) error {
	key := ""
	if owner != "" {
		key = s.resolver.Resolve(owner)
	}
	_, err := s.destroy(ctx, id, key)
	return err
}

// All returns every live record ordered by session id. Expired entries are
// destroyed and undecodable ones skipped.
func (s *FolderStore) All(ctx context.Context) ([]Record, error) {
	entries, err := s.index.All(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]Record, 0, len(entries))
	for _, id := range slices.Sorted(maps.Keys(entries)) {
		rec, err := decodeRecord(entries[id])
		if err != nil {
			s.debug(ctx, "all: undecodable record", logger.SessionID(id), logger.Error(err))
			continue
		}
		expired, err := rec.ExpiredAt(now)
		if err != nil {
			continue
		}
		if expired {
			renewed, _, err := s.expire(ctx, id)
			if err != nil {
				s.logger.WarnContext(ctx, "failed to destroy expired session", logger.SessionID(id), logger.Error(err))
			}
			if renewed == nil {
				continue
			}
			rec = renewed
		}
		out = append(out, rec)
	}
	return out, nil
}

// Clear empties the index and forgets every directory reference. The
// directories themselves are reclaimed by the next sweep.
func (s *FolderStore) Clear(ctx context.Context) error {
	if err := s.index.Clear(ctx); err != nil {
		return err
	}
	for _, key := range s.refs.reset() {
		s.provision.Forget(key)
	}
	s.debug(ctx, "clear")
	return nil
}

// Len returns the number of entries in the index.
func (s *FolderStore) Len(ctx context.Context) (int, error) {
	return s.index.Len(ctx)
}

// CheckExists ensures the directory for p exists and holds a record file,
// and returns its storage key. Concurrent calls for the same key share one
// creation. The record is written only when none exists yet and contains
// "sid", "user", the index record's cookie if any, and p.Extra.
func (s *FolderStore) CheckExists(ctx context.Context, p ProvisionParams) (string, error) {
	return s.CheckExistsAsync(ctx, p).AwaitContext(ctx)
}

// CheckExistsAsync is CheckExists returning a future. Identity errors are
// reported through an already completed future, before any I/O.
func (s *FolderStore) CheckExistsAsync(ctx context.Context, p ProvisionParams) *async.Future[string] {
	if p.SessionID == "" {
		return async.Resolved("", fmt.Errorf("%w: session id is required", ErrMissingIdentity))
	}
	if p.Owner == "" && !s.cfg.FolderPerSession {
		return async.Resolved("", fmt.Errorf("%w: owner is required", ErrMissingIdentity))
	}
	if s.closed.Load() {
		return async.Resolved("", ErrStoreClosed)
	}

	identity := p.Owner
	if s.cfg.FolderPerSession {
		identity = p.SessionID
	}
	key := s.resolver.Resolve(identity)

	initial := s.initialRecord(ctx, p)

	// register before I/O so a concurrent destroy of a sibling keeps the directory
	prev, added := s.refs.add(p.SessionID, key)
	if prev != "" {
		s.releaseKey(ctx, prev)
	}
	work := s.provision.Do(ctx, key, func(ctx context.Context) (string, error) {
		return key, s.ensureFolder(ctx, key, initial)
	})

	return async.Async(context.WithoutCancel(ctx), p.SessionID, func(ctx context.Context, sid string) (string, error) {
		res, err := work.Await()
		if err != nil {
			if added {
				s.refs.remove(sid)
			}
			s.logger.ErrorContext(ctx, "failed to provision session folder",
				logger.SessionID(sid), logger.StorageKey(key), logger.Error(err))
			return "", err
		}
		s.debug(ctx, "check exists", logger.SessionID(sid), logger.StorageKey(key))
		return res, nil
	})
}

// Files lists the caller-managed files in the directory of session id.
func (s *FolderStore) Files(ctx context.Context, id string) ([]file.Entry, error) {
	key, ok := s.refs.keyOf(id)
	if !ok {
		if !s.cfg.FolderPerSession {
			return nil, ErrSessionNotFound
		}
		key = s.resolver.Resolve(id)
	}
	return s.storage.Files(ctx, key)
}

// KeyFor returns the storage key CheckExists would use for p.
func (s *FolderStore) KeyFor(p ProvisionParams) string {
	if s.cfg.FolderPerSession {
		return s.resolver.Resolve(p.SessionID)
	}
	return s.resolver.Resolve(p.Owner)
}

// ensureFolder writes the initial record unless the directory already has one.
func (s *FolderStore) ensureFolder(ctx context.Context, key string, rec Record) error {
	unlock := s.locks.lock(key)
	defer unlock()

	if s.storage.Exists(ctx, key) {
		return nil
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := s.storage.Write(ctx, key, data); err != nil {
		return err
	}
	s.debug(ctx, "session folder created", logger.StorageKey(key))
	return nil
}

func (s *FolderStore) initialRecord(ctx context.Context, p ProvisionParams) Record {
	rec := Record{FieldSessionID: p.SessionID}
	if p.Owner != "" {
		rec[FieldOwner] = p.Owner
	}
	if data, ok, err := s.index.Get(ctx, p.SessionID); err == nil && ok {
		if existing, err := decodeRecord(data); err == nil {
			if cookie, ok := existing[FieldCookie]; ok {
				rec[FieldCookie] = cookie
			}
		}
	}
	for k, v := range p.Extra {
		if k == FieldSessionID || k == FieldOwner {
			continue
		}
		rec[k] = v
	}
	return rec
}

// destroy removes id from the index and drops its directory reference.
// knownKey is used when the reference table has no entry for id. The
// directory is removed only if nothing references it any more. removed
// reports whether a removal was performed or dispatched.
func (s *FolderStore) destroy(ctx context.Context, id, knownKey string) (removed bool, err error) {
	if err := s.index.Delete(ctx, id); err != nil {
		return false, err
	}

	key, remaining, ok := s.refs.remove(id)
	if !ok {
		key = knownKey
		if key == "" && s.cfg.FolderPerSession {
			key = s.resolver.Resolve(id)
		}
		if key == "" {
			s.debug(ctx, "destroy: no folder", logger.SessionID(id))
			return false, nil
		}
		remaining = s.refs.count(key)
	}

	if remaining > 0 {
		s.debug(ctx, "destroy: folder still referenced", logger.SessionID(id), logger.StorageKey(key), logger.Count("refs", remaining))
		return false, nil
	}

	s.provision.Forget(key)
	s.debug(ctx, "destroy", logger.SessionID(id), logger.StorageKey(key))
	return true, s.removeFolder(ctx, key)
}

// releaseKey removes the directory of key if nothing references it.
func (s *FolderStore) releaseKey(ctx context.Context, key string) {
	if s.refs.count(key) > 0 {
		return
	}
	s.provision.Forget(key)
	if err := s.removeFolder(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "failed to release session folder", logger.StorageKey(key), logger.Error(err))
	}
}

// removeFolder deletes the directory of key under its lock, re-checking
// references so a provisioning that registered meanwhile wins. With Async
// the removal runs in the background and errors are only logged.
func (s *FolderStore) removeFolder(ctx context.Context, key string) error {
	remove := func(ctx context.Context) error {
		unlock := s.locks.lock(key)
		defer unlock()

		if s.refs.count(key) > 0 {
			return nil
		}
		return s.storage.Remove(ctx, key)
	}

	if !s.cfg.Async {
		return remove(ctx)
	}

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		bgCtx := context.WithoutCancel(ctx)
		if err := remove(bgCtx); err != nil {
			s.logger.ErrorContext(bgCtx, "background folder removal failed", logger.StorageKey(key), logger.Error(err))
		}
	}()
	return nil
}

func (s *FolderStore) debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	if !s.cfg.Debug {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, msg, attrs...)
}

func (s *FolderStore) storagePath() string {
	if ls, ok := s.storage.(*file.LocalStorage); ok {
		return ls.Root()
	}
	return fmt.Sprintf("%T", s.storage)
}
