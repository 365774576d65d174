package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemStore is the in-memory Store. A single mutex serializes every commit,
// which makes RunAtomic linearizable for free: a closure never observes a
// half-applied concurrent transaction, so it runs exactly once.
type MemStore struct {
	mu     sync.Mutex
	docs   map[string]json.RawMessage
	notify *notifier
}

func NewMemStore() *MemStore {
	return &MemStore{
		docs:   make(map[string]json.RawMessage),
		notify: newNotifier(),
	}
}

func (m *MemStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[path]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, ErrNotFound)
	}
	return doc, nil
}

func (m *MemStore) Set(ctx context.Context, path string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commit(path, data, true)
	return nil
}

func (m *MemStore) Update(ctx context.Context, path string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.docs[path]
	if !ok {
		return fmt.Errorf("update %s: %w", path, ErrNotFound)
	}
	merged, err := MergeFields(existing, fields)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	m.commit(path, merged, true)
	return nil
}

func (m *MemStore) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[path]; !ok {
		return fmt.Errorf("delete %s: %w", path, ErrNotFound)
	}
	m.commit(path, nil, false)
	return nil
}

func (m *MemStore) SubscribeDoc(path string, fn func(Snapshot)) Unsubscribe {
	sub, unsub := m.notify.subscribe(path, false, func(ev any) { fn(ev.(Snapshot)) })
	// Initial delivery, queued so it lands before any later commit.
	m.mu.Lock()
	sub.push(m.snapshotLocked(path))
	m.mu.Unlock()
	return unsub
}

func (m *MemStore) SubscribeCollection(path string, fn func(CollectionSnapshot)) Unsubscribe {
	sub, unsub := m.notify.subscribe(path, true, func(ev any) { fn(ev.(CollectionSnapshot)) })
	m.mu.Lock()
	sub.push(m.collectionLocked(path))
	m.mu.Unlock()
	return unsub
}

// RunAtomic holds the store lock for the whole closure, staging writes and
// applying them only if fn succeeds. The closure must use the Tx handle for
// all access; calling back into the store would self-deadlock.
func (m *MemStore) RunAtomic(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{store: m, staged: make(map[string]json.RawMessage)}
	if err := fn(tx); err != nil {
		return err
	}
	for _, path := range tx.order {
		m.commit(path, tx.staged[path], tx.staged[path] != nil)
	}
	return nil
}

// commit stores (or removes) the document and fans out notifications while
// the lock is held, so queue order matches commit order.
func (m *MemStore) commit(path string, data json.RawMessage, exists bool) {
	if exists {
		m.docs[path] = data
	} else {
		delete(m.docs, path)
	}
	m.notify.publishDoc(Snapshot{Path: path, Data: data, Exists: exists})
	m.notify.publishCollection(path, m.collectionLocked)
}

func (m *MemStore) snapshotLocked(path string) Snapshot {
	doc, ok := m.docs[path]
	return Snapshot{Path: path, Data: doc, Exists: ok}
}

func (m *MemStore) collectionLocked(collection string) CollectionSnapshot {
	cs := CollectionSnapshot{Path: collection}
	for path, doc := range m.docs {
		if isDirectChild(collection, path) {
			cs.Docs = append(cs.Docs, Snapshot{Path: path, Data: doc, Exists: true})
		}
	}
	sort.Slice(cs.Docs, func(i, j int) bool { return cs.Docs[i].Path < cs.Docs[j].Path })
	return cs
}

// Close tears down all subscriptions.
func (m *MemStore) Close() {
	m.notify.close()
}

type memTx struct {
	store  *MemStore
	staged map[string]json.RawMessage // nil value marks a staged delete
	order  []string
}

func (t *memTx) Get(path string) (json.RawMessage, error) {
	if data, ok := t.staged[path]; ok {
		if data == nil {
			return nil, fmt.Errorf("get %s: %w", path, ErrNotFound)
		}
		return data, nil
	}
	doc, ok := t.store.docs[path]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, ErrNotFound)
	}
	return doc, nil
}

func (t *memTx) Set(path string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	t.stage(path, data)
	return nil
}

func (t *memTx) Update(path string, fields map[string]any) error {
	existing, err := t.Get(path)
	if err != nil {
		return err
	}
	merged, err := MergeFields(existing, fields)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	t.stage(path, merged)
	return nil
}

func (t *memTx) stage(path string, data json.RawMessage) {
	if _, ok := t.staged[path]; !ok {
		t.order = append(t.order, path)
	}
	t.staged[path] = data
}

var _ Store = (*MemStore)(nil)

// pathJoin builds a document path from segments. Shared by callers so the
// two implementations agree on the layout.
func PathJoin(segments ...string) string {
	return strings.Join(segments, "/")
}
