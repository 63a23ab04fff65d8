package storage

import (
	"chatroom/backend/internal/models"
	"context"
	"slices"
	"sync"
	"time"
)

// Write is one recorded SetData or DeleteDocument call on a MemoryStore.
type Write struct {
	Path    string
	Fields  models.Document
	Merge   bool
	Deleted bool
}

// MemoryStore is an in-process DocumentStore. Notifications are delivered
// synchronously on the writing goroutine, in write order; a write issued from
// inside a callback is queued and delivered after the current one.
type MemoryStore struct {
	mu        sync.Mutex
	docs      map[string]models.Document
	docSubs   map[uint64]*memDocSub
	querySubs map[uint64]*memQuerySub
	nextID    uint64
	clock     func() time.Time
	writes    []Write
	failWrite error
	failRead  error

	pending    []func()
	delivering bool
}

type memDocSub struct {
	path string
	fn   SnapshotFunc
}

type memQuerySub struct {
	q  Query
	fn QueryFunc
}

// NewMemoryStore creates an empty store. A nil clock means time.Now.
func NewMemoryStore(clock func() time.Time) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		docs:      make(map[string]models.Document),
		docSubs:   make(map[uint64]*memDocSub),
		querySubs: make(map[uint64]*memQuerySub),
		clock:     clock,
	}
}

// FailWrites makes every following SetData return err. Nil restores normal behavior.
func (m *MemoryStore) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite = err
}

// FailReads makes every following GetDocument and Query return err.
func (m *MemoryStore) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRead = err
}

// BreakListeners makes every open listener receive err once, as a dropped
// stream would. The listeners stay registered.
func (m *MemoryStore) BreakListeners(err error) {
	m.mu.Lock()
	for _, id := range sortedKeys(m.docSubs) {
		m.pending = append(m.pending, func() {
			m.mu.Lock()
			sub, ok := m.docSubs[id]
			m.mu.Unlock()
			if ok {
				sub.fn(models.DocumentSnapshot{}, err)
			}
		})
	}
	for _, id := range sortedKeys(m.querySubs) {
		m.pending = append(m.pending, func() {
			m.mu.Lock()
			sub, ok := m.querySubs[id]
			m.mu.Unlock()
			if ok {
				sub.fn(nil, err)
			}
		})
	}
	m.mu.Unlock()
	m.drain()
}

// Writes returns the successful SetData calls recorded so far.
func (m *MemoryStore) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.writes)
}

// WritesTo returns the recorded writes for one path.
func (m *MemoryStore) WritesTo(path string) []Write {
	var out []Write
	for _, w := range m.Writes() {
		if w.Path == path {
			out = append(out, w)
		}
	}
	return out
}

// ActiveListeners returns the number of subscriptions not yet stopped.
func (m *MemoryStore) ActiveListeners() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docSubs) + len(m.querySubs)
}

// Put replaces a document without recording a write; used to seed fixtures.
func (m *MemoryStore) Put(path string, doc models.Document) {
	m.mu.Lock()
	m.docs[path] = doc.Clone()
	m.enqueueLocked(path)
	m.mu.Unlock()
	m.drain()
}

func (m *MemoryStore) GetDocument(_ context.Context, path string) (models.DocumentSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead != nil {
		return models.DocumentSnapshot{}, m.failRead
	}
	return m.snapshotLocked(path), nil
}

func (m *MemoryStore) SetData(_ context.Context, path string, fields models.Document, merge bool) error {
	m.mu.Lock()
	if m.failWrite != nil {
		err := m.failWrite
		m.mu.Unlock()
		return err
	}
	m.docs[path] = applyWrite(m.docs[path], fields, merge, m.clock().UTC())
	m.writes = append(m.writes, Write{Path: path, Fields: fields.Clone(), Merge: merge})
	m.enqueueLocked(path)
	m.mu.Unlock()

	m.drain()
	return nil
}

func (m *MemoryStore) DeleteDocument(_ context.Context, path string) error {
	m.mu.Lock()
	if m.failWrite != nil {
		err := m.failWrite
		m.mu.Unlock()
		return err
	}
	delete(m.docs, path)
	m.writes = append(m.writes, Write{Path: path, Deleted: true})
	m.enqueueLocked(path)
	m.mu.Unlock()

	m.drain()
	return nil
}

func (m *MemoryStore) Query(_ context.Context, q Query) ([]models.DocumentSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead != nil {
		return nil, m.failRead
	}
	return m.queryLocked(q), nil
}

func (m *MemoryStore) SubscribeDocument(_ context.Context, path string, fn SnapshotFunc) (Listener, error) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.docSubs[id] = &memDocSub{path: path, fn: fn}
	m.pending = append(m.pending, m.docDeliveryLocked(id, path))
	m.mu.Unlock()

	m.drain()
	return &memListener{store: m, id: id}, nil
}

func (m *MemoryStore) SubscribeQuery(_ context.Context, q Query, fn QueryFunc) (Listener, error) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.querySubs[id] = &memQuerySub{q: q, fn: fn}
	m.pending = append(m.pending, m.queryDeliveryLocked(id, q))
	m.mu.Unlock()

	m.drain()
	return &memListener{store: m, id: id}, nil
}

func (m *MemoryStore) ServerTime(_ context.Context) (time.Time, error) {
	return m.clock().UTC(), nil
}

func (m *MemoryStore) snapshotLocked(path string) models.DocumentSnapshot {
	_, id := SplitPath(path)
	doc, ok := m.docs[path]
	if !ok {
		return models.DocumentSnapshot{Path: path, ID: id}
	}
	return models.DocumentSnapshot{Path: path, ID: id, Exists: true, Data: doc.Clone()}
}

func (m *MemoryStore) queryLocked(q Query) []models.DocumentSnapshot {
	var out []models.DocumentSnapshot
	for path, doc := range m.docs {
		collection, _ := SplitPath(path)
		if collection != q.Collection || !matches(doc, q.Where) {
			continue
		}
		out = append(out, m.snapshotLocked(path))
	}
	slices.SortFunc(out, func(a, b models.DocumentSnapshot) int {
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		}
		return 0
	})
	return out
}

// enqueueLocked schedules notifications for every listener affected by a change at path.
func (m *MemoryStore) enqueueLocked(path string) {
	collection, _ := SplitPath(path)
	for _, id := range sortedKeys(m.docSubs) {
		if m.docSubs[id].path == path {
			m.pending = append(m.pending, m.docDeliveryLocked(id, path))
		}
	}
	for _, id := range sortedKeys(m.querySubs) {
		if sub := m.querySubs[id]; sub.q.Collection == collection {
			m.pending = append(m.pending, m.queryDeliveryLocked(id, sub.q))
		}
	}
}

func (m *MemoryStore) docDeliveryLocked(id uint64, path string) func() {
	snap := m.snapshotLocked(path)
	return func() {
		m.mu.Lock()
		sub, ok := m.docSubs[id]
		m.mu.Unlock()
		if ok {
			sub.fn(snap, nil)
		}
	}
}

func (m *MemoryStore) queryDeliveryLocked(id uint64, q Query) func() {
	docs := m.queryLocked(q)
	return func() {
		m.mu.Lock()
		sub, ok := m.querySubs[id]
		m.mu.Unlock()
		if ok {
			sub.fn(docs, nil)
		}
	}
}

// drain runs queued deliveries unless another frame on the stack already is.
func (m *MemoryStore) drain() {
	m.mu.Lock()
	if m.delivering {
		m.mu.Unlock()
		return
	}
	m.delivering = true
	for len(m.pending) > 0 {
		next := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()
		next()
		m.mu.Lock()
	}
	m.delivering = false
	m.mu.Unlock()
}

type memListener struct {
	store *MemoryStore
	id    uint64
}

func (l *memListener) Stop() error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	delete(l.store.docSubs, l.id)
	delete(l.store.querySubs, l.id)
	return nil
}

func sortedKeys[V any](m map[uint64]V) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
