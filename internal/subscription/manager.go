// Package subscription owns remote listener lifecycles: at most one live
// listener per (room, stream kind), released deterministically.
package subscription

import (
	"chatroom/backend/internal/apperr"
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/metrics"
	"chatroom/backend/internal/models"
	"chatroom/backend/internal/presence"
	"chatroom/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// Kind is a stream kind.
type Kind int

const (
	Messages Kind = iota
	Presence
	Typing
	Directory
)

func (k Kind) String() string {
	switch k {
	case Messages:
		return "messages"
	case Presence:
		return "presence"
	case Typing:
		return "typing"
	case Directory:
		return "directory"
	}
	return "unknown"
}

// Key identifies one stream. RoomID is empty for Directory.
type Key struct {
	RoomID string
	Kind   Kind
}

func (k Key) String() string {
	if k.RoomID == "" {
		return k.Kind.String()
	}
	return fmt.Sprintf("%s:%s", k.RoomID, k.Kind)
}

// Event is one delivery. Document is set for Messages and Typing, Results for
// Presence and Directory.
type Event struct {
	Key      Key
	Document models.DocumentSnapshot
	Results  []models.DocumentSnapshot
	Err      error
}

// Handler receives events on the dispatcher's context.
type Handler func(Event)

// Dispatcher moves a callback onto the owner's execution context.
type Dispatcher func(func())

// Handle is a live subscription.
type Handle struct {
	key     Key
	handler Handler
	alive   atomic.Bool

	mu       sync.Mutex
	listener storage.Listener

	// registered is set once the listener is counted; only then does
	// Unsubscribe stop it.
	registered bool
}

func (h *Handle) Key() Key { return h.key }

// Alive reports whether the handle has not been released.
func (h *Handle) Alive() bool { return h.alive.Load() }

// Manager multiplexes store listeners into handlers.
type Manager struct {
	store    storage.DocumentStore
	dispatch Dispatcher

	mu      sync.Mutex
	handles map[Key]*Handle
}

// NewManager creates a Manager. A nil dispatcher runs callbacks inline.
func NewManager(store storage.DocumentStore, dispatch Dispatcher) *Manager {
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}
	return &Manager{
		store:    store,
		dispatch: dispatch,
		handles:  make(map[Key]*Handle),
	}
}

// Subscribe opens the stream for key, or returns the handle already open for
// it. In the latter case h is ignored: the first subscriber's handler keeps
// receiving events.
func (m *Manager) Subscribe(ctx context.Context, key Key, h Handler) (*Handle, error) {
	handle, _, err := m.acquire(ctx, key, h)
	return handle, err
}

// acquire is Subscribe that also reports whether this call opened the stream.
func (m *Manager) acquire(ctx context.Context, key Key, h Handler) (*Handle, bool, error) {
	handle, created := m.reserve(key, h)
	if !created {
		return handle, false, nil
	}

	listener, err := m.open(ctx, handle)
	if err != nil {
		m.release(handle)
		log.Printf("ERROR: Failed to subscribe to %s: %v", key, err)
		return nil, false, apperr.Subscribe(key.String(), err)
	}

	handle.mu.Lock()
	handle.listener = listener
	live := handle.Alive()
	if live {
		handle.registered = true
		metrics.ActiveSubscriptions.WithLabelValues(key.Kind.String()).Inc()
	}
	handle.mu.Unlock()

	// Unsubscribed while the store was still opening the listener.
	if !live {
		if err := listener.Stop(); err != nil {
			log.Printf("WARNING: Failed to stop listener %s: %v", key, err)
		}
		return handle, true, nil
	}

	log.Printf("INFO: Subscribed %s", key)
	return handle, true, nil
}

func (m *Manager) reserve(key Key, h Handler) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.handles[key]; ok {
		return existing, false
	}
	handle := &Handle{key: key, handler: h}
	handle.alive.Store(true)
	m.handles[key] = handle
	return handle, true
}

// release drops handle from the map if it is still the registered one.
func (m *Manager) release(handle *Handle) bool {
	if !handle.alive.CompareAndSwap(true, false) {
		return false
	}
	m.mu.Lock()
	if m.handles[handle.key] == handle {
		delete(m.handles, handle.key)
	}
	m.mu.Unlock()
	return true
}

func (m *Manager) open(ctx context.Context, handle *Handle) (storage.Listener, error) {
	key := handle.key
	switch key.Kind {
	case Messages, Typing:
		return m.store.SubscribeDocument(ctx, config.RoomPath(key.RoomID), func(snap models.DocumentSnapshot, err error) {
			m.deliver(handle, Event{Key: key, Document: snap, Err: err})
		})
	case Presence:
		return m.store.SubscribeQuery(ctx, presence.OnlineQuery(key.RoomID), func(docs []models.DocumentSnapshot, err error) {
			m.deliver(handle, Event{Key: key, Results: docs, Err: err})
		})
	case Directory:
		return m.store.SubscribeQuery(ctx, storage.Query{Collection: config.RoomsCollection}, func(docs []models.DocumentSnapshot, err error) {
			m.deliver(handle, Event{Key: key, Results: docs, Err: err})
		})
	}
	return nil, fmt.Errorf("unknown stream kind %d", key.Kind)
}

// deliver checks liveness twice: before queueing, and again when the queued
// callback runs, so nothing reaches a handler after Unsubscribe returned.
func (m *Manager) deliver(handle *Handle, ev Event) {
	if !handle.Alive() {
		return
	}
	m.dispatch(func() {
		if !handle.Alive() {
			return
		}
		metrics.SnapshotsReceived.WithLabelValues(handle.key.Kind.String()).Inc()
		if ev.Err != nil {
			ev.Err = apperr.Subscribe(handle.key.String(), ev.Err)
		}
		handle.handler(ev)
	})
}

// Unsubscribe releases handle. When it returns no further event for handle is
// delivered. Releasing an already released handle is a no-op.
func (m *Manager) Unsubscribe(handle *Handle) error {
	if handle == nil || !m.release(handle) {
		return nil
	}

	handle.mu.Lock()
	listener, registered := handle.listener, handle.registered
	if registered {
		handle.registered = false
		metrics.ActiveSubscriptions.WithLabelValues(handle.key.Kind.String()).Dec()
	}
	handle.mu.Unlock()
	if !registered {
		// Subscribe is still opening it and will stop it on return.
		return nil
	}

	if err := listener.Stop(); err != nil {
		log.Printf("WARNING: Failed to stop listener %s: %v", handle.key, err)
		return err
	}
	log.Printf("INFO: Unsubscribed %s", handle.key)
	return nil
}

// Lookup returns the live handle for key.
func (m *Manager) Lookup(key Key) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[key]
	return h, ok
}

// Active returns the number of live handles.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

// CloseAll releases every handle.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	all := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		all = append(all, h)
	}
	m.mu.Unlock()

	var errs []error
	for _, h := range all {
		errs = append(errs, m.Unsubscribe(h))
	}
	return errors.Join(errs...)
}
