package models

import "time"

// Message is a single chat message in a room.
// Identity is ID, unique within a room. Messages are immutable once created.
type Message struct {
	// ID is the message field key in the room document, e.g. "message_1723800000_000123_alice".
	ID string `json:"id"`
	// RoomID is the room the message belongs to.
	RoomID string `json:"room_id"`
	// Author is the display name of the sender at send time.
	Author string `json:"author"`
	// AuthorID is the uid of the sender. Empty for messages written by older clients.
	AuthorID string `json:"author_id,omitempty"`
	// Text is the message body.
	Text string `json:"text"`
	// SentAt is the server-assigned timestamp and the primary ordering key.
	SentAt time.Time `json:"sent_at"`
	// AuthorAvatarURL is the sender's profile image, when known.
	AuthorAvatarURL *string `json:"author_avatar_url,omitempty"`
}

// Before reports whether m orders before o: by SentAt, then by ID.
func (m Message) Before(o Message) bool {
	if !m.SentAt.Equal(o.SentAt) {
		return m.SentAt.Before(o.SentAt)
	}
	return m.ID < o.ID
}

// CompareMessages is a three-way comparison usable with slices.SortFunc.
func CompareMessages(a, b Message) int {
	if c := a.SentAt.Compare(b.SentAt); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}
