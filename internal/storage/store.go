package storage

import (
	"chatroom/backend/internal/models"
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNoChangeFeed is returned by Subscribe* when the store has no change feed configured.
var ErrNoChangeFeed = errors.New("storage: change feed unavailable")

// Query selects the documents of one collection whose fields equal the given values.
type Query struct {
	Collection string
	Where      map[string]any
}

// SnapshotFunc receives the full current value of a watched document.
type SnapshotFunc func(models.DocumentSnapshot, error)

// QueryFunc receives the full current result set of a watched query.
type QueryFunc func([]models.DocumentSnapshot, error)

// Listener is a live subscription. Stop returns once no further callback can start.
type Listener interface {
	Stop() error
}

// DocumentStore is the remote multi-writer document store.
// Every subscription delivers an initial snapshot, then a new full snapshot
// after each change, in write order.
type DocumentStore interface {
	GetDocument(ctx context.Context, path string) (models.DocumentSnapshot, error)
	// SetData writes fields to path. With merge, only the given fields are patched
	// (nested maps merge recursively); otherwise the document is replaced.
	SetData(ctx context.Context, path string, fields models.Document, merge bool) error
	// DeleteDocument removes path. Deleting a missing document is not an error.
	DeleteDocument(ctx context.Context, path string) error
	Query(ctx context.Context, q Query) ([]models.DocumentSnapshot, error)
	SubscribeDocument(ctx context.Context, path string, fn SnapshotFunc) (Listener, error)
	SubscribeQuery(ctx context.Context, q Query, fn QueryFunc) (Listener, error)
	// ServerTime returns the store's monotonic clock.
	ServerTime(ctx context.Context) (time.Time, error)
}

type serverTimestamp struct{}

// ServerTimestamp is a field value replaced by the store's clock at write time.
var ServerTimestamp any = serverTimestamp{}

// SplitPath returns the parent collection and document id of a document path.
func SplitPath(path string) (collection, id string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
