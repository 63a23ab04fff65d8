// Package messagelog keeps the ordered, de-duplicated message history of one room
// and performs the send write.
package messagelog

import (
	"chatroom/backend/internal/decoder"
	"chatroom/backend/internal/models"
	"slices"
)

// Log is the visible message sequence of one room. Every ingested snapshot
// replaces the sequence with a full recomputation from the room document.
// Log is not safe for concurrent use; callers serialize access.
type Log struct {
	roomID string
	dec    *decoder.Decoder

	messages []models.Message
	primed   bool
	// fallbacks pins the timestamp chosen for a malformed entry on first sight,
	// so re-delivering the same document never moves it.
	fallbacks decoder.Pins
}

// New creates an empty log for roomID.
func New(roomID string, dec *decoder.Decoder) *Log {
	return &Log{
		roomID:    roomID,
		dec:       dec,
		fallbacks: make(decoder.Pins),
	}
}

// RoomID returns the room this log belongs to.
func (l *Log) RoomID() string { return l.roomID }

// Ingest replaces the sequence with the messages found in doc.
// The first snapshot is treated as historical backfill; later ones as live writes.
// Entries that fail to decode are skipped and returned.
func (l *Log) Ingest(doc models.Document) []error {
	ctx := decoder.Live
	if !l.primed {
		ctx = decoder.Backfill
	}
	records, errs := l.dec.RoomMessages(l.roomID, doc, ctx)
	l.primed = true
	l.fallbacks.Apply(records)

	messages := make([]models.Message, 0, len(records))
	for _, rec := range records {
		messages = append(messages, rec.Message)
	}

	l.messages = messages
	return errs
}

// Messages returns a copy of the visible sequence, ascending by (SentAt, ID).
func (l *Log) Messages() []models.Message {
	return slices.Clone(l.messages)
}

// Len returns the number of visible messages.
func (l *Log) Len() int { return len(l.messages) }

// Last returns the latest message.
func (l *Log) Last() (models.Message, bool) {
	if len(l.messages) == 0 {
		return models.Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}
