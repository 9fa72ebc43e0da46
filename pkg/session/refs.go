package session

import (
	"maps"
	"slices"
	"sync"
)

// refTable tracks which session ids reference which storage key.
// A directory may be removed only when its key has no references left.
type refTable struct {
	mu    sync.Mutex
	byKey map[string]map[string]struct{}
	bySID map[string]string
}

func newRefTable() *refTable {
	return &refTable{
		byKey: make(map[string]map[string]struct{}),
		bySID: make(map[string]string),
	}
}

// add links sid to key. If sid was linked to another key, that key is
// returned as prev. added is false when the link already existed.
func (t *refTable) add(sid, key string) (prev string, added bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.bySID[sid]; ok {
		if old == key {
			return "", false
		}
		t.unlinkLocked(sid, old)
		prev = old
	}

	sids, ok := t.byKey[key]
	if !ok {
		sids = make(map[string]struct{})
		t.byKey[key] = sids
	}
	sids[sid] = struct{}{}
	t.bySID[sid] = key
	return prev, true
}

// remove unlinks sid and returns its key and how many references the key still has.
func (t *refTable) remove(sid string) (key string, remaining int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key, ok = t.bySID[sid]
	if !ok {
		return "", 0, false
	}
	t.unlinkLocked(sid, key)
	return key, len(t.byKey[key]), true
}

func (t *refTable) keyOf(sid string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key, ok := t.bySID[sid]
	return key, ok
}

// sessions returns the ids referencing key, sorted.
func (t *refTable) sessions(key string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Sorted(maps.Keys(t.byKey[key]))
}

func (t *refTable) count(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byKey[key])
}

// reset drops every reference and returns the keys that were referenced.
func (t *refTable) reset() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, 0, len(t.byKey))
	for key := range t.byKey {
		keys = append(keys, key)
	}
	t.byKey = make(map[string]map[string]struct{})
	t.bySID = make(map[string]string)
	return keys
}

func (t *refTable) unlinkLocked(sid, key string) {
	delete(t.bySID, sid)
	if sids, ok := t.byKey[key]; ok {
		delete(sids, sid)
		if len(sids) == 0 {
			delete(t.byKey, key)
		}
	}
}

// keyLocks serializes directory create and remove per storage key.
// Entries are dropped once nobody holds or waits for them.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu      sync.Mutex
	waiters int
}

func (l *keyLocks) lock(key string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*keyLock)
	}
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.waiters++
	l.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.waiters--
		if kl.waiters == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
