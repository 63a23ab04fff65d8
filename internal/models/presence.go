package models

import "time"

// PresenceEntry is one user's presence record inside a room.
// Absence from the filtered online query means "not online", not deletion.
type PresenceEntry struct {
	UserID     string    `json:"user_id"`
	IsOnline   bool      `json:"is_online"`
	LastSeenAt time.Time `json:"last_seen_at"`
}
