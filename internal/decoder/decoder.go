// Package decoder converts raw remote documents into typed domain records.
// It never fails a whole snapshot: missing fields take documented defaults
// (empty string, epoch timestamp) and only a missing identity or a non-map
// entry rejects a single record.
package decoder

import (
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/models"
	"slices"
	"strings"
	"time"
)

// Decoder holds the clock used for the Live timestamp fallback.
type Decoder struct {
	now func() time.Time
}

// New creates a Decoder. A nil clock means time.Now.
func New(now func() time.Time) *Decoder {
	if now == nil {
		now = time.Now
	}
	return &Decoder{now: now}
}

// Timestamp decodes raw as a timestamp in the given context.
func (d *Decoder) Timestamp(raw any, ctx Context) (time.Time, Fallback) {
	if raw == nil {
		return Epoch, FallbackMissing
	}
	if t, ok := parseTime(raw); ok {
		return t.UTC(), NoFallback
	}
	if ctx == Backfill {
		return Oldest, FallbackMalformed
	}
	return d.now().UTC(), FallbackMalformed
}

// MessageRecord is a decoded message plus how its timestamp was obtained.
type MessageRecord struct {
	models.Message
	SentAtFallback Fallback
}

// Message decodes one message entry stored under field id of a room document.
func (d *Decoder) Message(roomID, id string, raw any, ctx Context) (MessageRecord, error) {
	if id == "" {
		return MessageRecord{}, &DecodeError{Kind: MissingIdentity, Field: "id"}
	}
	fields, ok := asMap(raw)
	if !ok {
		return MessageRecord{}, &DecodeError{Kind: MalformedEntry, Field: id}
	}

	text, ok := fields["message"].(string)
	if !ok {
		text = asString(fields["text"])
	}
	sentAt, fb := d.Timestamp(fields["timestamp"], ctx)

	rec := MessageRecord{
		Message: models.Message{
			ID:       id,
			RoomID:   roomID,
			Author:   asString(fields["username"]),
			AuthorID: asString(fields["userId"]),
			Text:     text,
			SentAt:   sentAt,
		},
		SentAtFallback: fb,
	}
	if url := asString(fields["profileImageURL"]); url != "" {
		rec.AuthorAvatarURL = &url
	}
	return rec, nil
}

// RoomMessages extracts every message entry of a room document: top-level
// fields carrying the message prefix and entries of the nested "messages" map.
// A top-level field wins over a nested entry with the same id. Entries that
// cannot be decoded are reported in errs and skipped; the rest are returned
// sorted by (SentAt, ID).
func (d *Decoder) RoomMessages(roomID string, doc models.Document, ctx Context) (records []MessageRecord, errs []error) {
	seen := make(map[string]struct{})

	for key, raw := range doc {
		if !strings.HasPrefix(key, config.MessageFieldPrefix) {
			continue
		}
		rec, err := d.Message(roomID, key, raw, ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		seen[key] = struct{}{}
		records = append(records, rec)
	}

	if nested, ok := asMap(doc[config.NestedMessagesKey]); ok {
		for key, raw := range nested {
			if _, dup := seen[key]; dup {
				continue
			}
			rec, err := d.Message(roomID, key, raw, ctx)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			records = append(records, rec)
		}
	}

	slices.SortFunc(records, func(a, b MessageRecord) int {
		return models.CompareMessages(a.Message, b.Message)
	})
	return records, errs
}

// Summary recomputes the list-view summary of a room from its full document.
// Malformed message timestamps follow ctx and are pinned in pins, exactly as
// the room's message log does, so the preview agrees with the log on which
// message is latest. pins may be nil.
func (d *Decoder) Summary(snap models.DocumentSnapshot, ctx Context, pins Pins) (models.RoomSummary, []error) {
	if snap.ID == "" {
		return models.RoomSummary{}, []error{&DecodeError{Kind: MissingIdentity, Field: "roomId"}}
	}

	summary := models.RoomSummary{
		RoomID:        snap.ID,
		DisplayName:   asString(snap.Data["name"]),
		LastMessageAt: Epoch,
	}
	if summary.DisplayName == "" {
		summary.DisplayName = snap.ID
	}

	records, errs := d.RoomMessages(snap.ID, snap.Data, ctx)
	pins.Apply(records)
	if n := len(records); n > 0 {
		latest := records[n-1]
		summary.LastMessage = latest.Text
		summary.LastMessageAt = latest.SentAt
		summary.HasMessages = true
	}
	return summary, errs
}

// Presence decodes one presence document. The user id comes from the document id,
// or from the "userId" field when the id is absent.
func (d *Decoder) Presence(snap models.DocumentSnapshot) (models.PresenceEntry, error) {
	uid := snap.ID
	if uid == "" {
		uid = asString(snap.Data["userId"])
	}
	if uid == "" {
		return models.PresenceEntry{}, &DecodeError{Kind: MissingIdentity, Field: "userId"}
	}
	lastSeen, _ := d.Timestamp(snap.Data["lastSeenAt"], Backfill)
	return models.PresenceEntry{
		UserID:     uid,
		IsOnline:   asBool(snap.Data["isOnline"]),
		LastSeenAt: lastSeen,
	}, nil
}

// TypingRecord is the typing flag as last written to a room document.
type TypingRecord struct {
	IsTyping  bool
	UserID    string
	Text      string
	UpdatedAt time.Time
}

// Typing decodes the typing fields of a room document. Missing fields mean "not typing".
// UpdatedAt is decoded in Backfill context so the same document always yields the same record.
func (d *Decoder) Typing(doc models.Document) TypingRecord {
	updated, _ := d.Timestamp(doc["typingUpdatedAt"], Backfill)
	return TypingRecord{
		IsTyping:  asBool(doc["isTyping"]),
		UserID:    asString(doc["typingUserId"]),
		Text:      asString(doc["typingText"]),
		UpdatedAt: updated,
	}
}

// Profile decodes a users/{uid} document.
func (d *Decoder) Profile(snap models.DocumentSnapshot) (models.UserProfile, error) {
	if snap.ID == "" {
		return models.UserProfile{}, &DecodeError{Kind: MissingIdentity, Field: "uid"}
	}
	return models.UserProfile{
		UserID:          snap.ID,
		Username:        asString(snap.Data["username"]),
		Email:           asString(snap.Data["email"]),
		Bio:             asString(snap.Data["bio"]),
		ProfileImageURL: asString(snap.Data["profileImageURL"]),
		IsVerified:      asBool(snap.Data["isVerified"]),
	}, nil
}
