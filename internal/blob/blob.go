// Package blob stores binary objects such as profile images and hands back
// a URL that Get can resolve again.
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get for an unknown object.
var ErrNotFound = errors.New("blob: object not found")

// Store is the blob store contract.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, rawURL string) ([]byte, error)
	// Delete removes key. A missing object is not an error.
	Delete(ctx context.Context, key string) error
}

// ObjectURL builds the path-style URL of key in bucket.
func ObjectURL(base *url.URL, bucket, key string) string {
	u := *base
	u.Path = "/" + bucket + "/" + strings.TrimPrefix(key, "/")
	return u.String()
}

// KeyFromURL extracts the object key from a path-style URL of bucket.
func KeyFromURL(rawURL, bucket string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("blob: parse url: %w", err)
	}
	prefix := "/" + bucket + "/"
	if !strings.HasPrefix(u.Path, prefix) || len(u.Path) == len(prefix) {
		return "", fmt.Errorf("blob: url %q is not an object of bucket %q", rawURL, bucket)
	}
	return strings.TrimPrefix(u.Path, prefix), nil
}

// MemoryStore keeps objects in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	base    *url.URL
	bucket  string
	objects map[string][]byte
}

func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{
		base:    &url.URL{Scheme: "mem", Host: "blob"},
		bucket:  bucket,
		objects: make(map[string][]byte),
	}
}

func (m *MemoryStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return ObjectURL(m.base, m.bucket, key), nil
}

func (m *MemoryStore) Get(_ context.Context, rawURL string) ([]byte, error) {
	key, err := KeyFromURL(rawURL, m.bucket)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}
