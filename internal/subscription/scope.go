package subscription

import (
	"context"
	"errors"
	"sync"
)

// Scope is a scoped acquisition of subscriptions: Close releases exactly the
// handles this scope opened. Handles it merely joined, because another scope
// opened them first, stay open.
type Scope struct {
	m      *Manager
	mu     sync.Mutex
	owned  []*Handle
	closed bool
}

func (m *Manager) NewScope() *Scope {
	return &Scope{m: m}
}

// ErrScopeClosed is returned by Subscribe after Close.
var ErrScopeClosed = errors.New("subscription: scope closed")

func (s *Scope) Subscribe(ctx context.Context, key Key, h Handler) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrScopeClosed
	}

	handle, created, err := s.m.acquire(ctx, key, h)
	if err != nil {
		return nil, err
	}
	if created {
		s.owned = append(s.owned, handle)
	}
	return handle, nil
}

// Owned returns how many handles the scope will release.
func (s *Scope) Owned() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.owned)
}

// Close releases every owned handle and joins their errors.
func (s *Scope) Close() error {
	s.mu.Lock()
	owned := s.owned
	s.owned = nil
	s.closed = true
	s.mu.Unlock()

	var errs []error
	for _, h := range owned {
		errs = append(errs, s.m.Unsubscribe(h))
	}
	return errors.Join(errs...)
}
