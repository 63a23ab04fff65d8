// Package presence tracks which users are online in a room and writes the
// local user's own presence record.
package presence

import (
	"chatroom/backend/internal/apperr"
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/decoder"
	"chatroom/backend/internal/models"
	"chatroom/backend/internal/storage"
	"context"
	"log"
	"slices"
	"time"
)

// Online is the published presence state of a room.
type Online struct {
	RoomID  string   `json:"room_id"`
	Count   int      `json:"count"`
	UserIDs []string `json:"user_ids"`
}

// Tracker holds the online set of one room, recomputed from each query result.
type Tracker struct {
	roomID string
	dec    *decoder.Decoder
	online []string
	loaded bool
}

func NewTracker(roomID string, dec *decoder.Decoder) *Tracker {
	return &Tracker{roomID: roomID, dec: dec}
}

// Ingest replaces the online set with the entries of docs that are online.
// The query already filters on isOnline; entries are checked again so a
// broader query cannot inflate the count.
func (t *Tracker) Ingest(docs []models.DocumentSnapshot) []error {
	var errs []error
	online := make([]string, 0, len(docs))
	for _, snap := range docs {
		entry, err := t.dec.Presence(snap)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if entry.IsOnline && !slices.Contains(online, entry.UserID) {
			online = append(online, entry.UserID)
		}
	}
	slices.Sort(online)
	t.online = online
	t.loaded = true
	return errs
}

// Loaded reports whether at least one query result was ingested.
func (t *Tracker) Loaded() bool { return t.loaded }

func (t *Tracker) Count() int { return len(t.online) }

// State returns the current online set, user ids sorted.
func (t *Tracker) State() Online {
	return Online{RoomID: t.roomID, Count: len(t.online), UserIDs: slices.Clone(t.online)}
}

// IsOnline reports whether uid is in the online set.
func (t *Tracker) IsOnline(uid string) bool {
	_, found := slices.BinarySearch(t.online, uid)
	return found
}

// OnlineQuery is the filtered presence query of a room.
func OnlineQuery(roomID string) storage.Query {
	return storage.Query{
		Collection: config.PresenceCollectionPath(roomID),
		Where:      map[string]any{"isOnline": true},
	}
}

// Writer writes presence documents.
type Writer struct {
	store storage.DocumentStore
	now   func() time.Time
}

// NewWriter creates a Writer. A nil clock means time.Now.
func NewWriter(store storage.DocumentStore, now func() time.Time) *Writer {
	if now == nil {
		now = time.Now
	}
	return &Writer{store: store, now: now}
}

// SetOnline merge-writes the user's presence in roomID. Going online stamps
// lastSeenAt with server time; going offline stamps the local clock, since the
// offline write may run while the connection is already failing.
func (w *Writer) SetOnline(ctx context.Context, roomID, userID string, online bool) error {
	var lastSeen any = storage.ServerTimestamp
	if !online {
		lastSeen = w.now().UTC()
	}
	err := w.store.SetData(ctx, config.PresencePath(roomID, userID), models.Document{
		"userId":     userID,
		"isOnline":   online,
		"lastSeenAt": lastSeen,
	}, true)
	if err != nil {
		log.Printf("ERROR: Failed to set presence of %s in room %s to %t: %v", userID, roomID, online, err)
		return apperr.Write("set presence", err)
	}
	return nil
}
