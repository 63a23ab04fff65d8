package messagelog

import (
	"chatroom/backend/internal/apperr"
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/models"
	"chatroom/backend/internal/storage"
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// Author is the sender identity stamped on a message at send time.
type Author struct {
	Name      string
	AvatarURL string
}

// AuthorResolver looks up the display identity of a user.
type AuthorResolver interface {
	ResolveAuthor(ctx context.Context, uid string) (Author, error)
}

// Sender writes new messages into room documents. It is safe for concurrent use.
type Sender struct {
	store   storage.DocumentStore
	authors AuthorResolver

	mu   sync.Mutex
	last time.Time
}

func NewSender(store storage.DocumentStore, authors AuthorResolver) *Sender {
	return &Sender{store: store, authors: authors}
}

// MessageID derives the field key of a message sent by authorID at t.
// Microseconds and the author id keep same-second sends from different users apart.
func MessageID(t time.Time, authorID string) string {
	t = t.UTC()
	return fmt.Sprintf("%s%d_%06d_%s", config.MessageFieldPrefix, t.Unix(), t.Nanosecond()/1000, authorID)
}

// stamp truncates now to the id resolution and keeps the stamps issued by this
// sender strictly increasing, so overlapping sends never share an id.
func (s *Sender) stamp(now time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now = now.UTC().Truncate(time.Microsecond)
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

// Send validates text and merge-writes exactly one new message field into the
// room document. The stored timestamp is the server time read before the
// write, the same instant the returned message carries.
func (s *Sender) Send(ctx context.Context, roomID, authorID, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, apperr.ErrEmptyText
	}

	author := Author{Name: config.UnknownUsername}
	if s.authors != nil {
		a, err := s.authors.ResolveAuthor(ctx, authorID)
		if err != nil {
			log.Printf("WARNING: Failed to resolve author %s, sending as %q: %v", authorID, config.UnknownUsername, err)
		} else if a.Name != "" {
			author = a
		}
	}

	serverNow, err := s.store.ServerTime(ctx)
	if err != nil {
		return models.Message{}, apperr.Read("server time", err)
	}
	now := s.stamp(serverNow)

	msg := models.Message{
		ID:       MessageID(now, authorID),
		RoomID:   roomID,
		Author:   author.Name,
		AuthorID: authorID,
		Text:     text,
		SentAt:   now,
	}
	entry := models.Document{
		"message":   msg.Text,
		"username":  msg.Author,
		"userId":    authorID,
		"timestamp": now,
	}
	if author.AvatarURL != "" {
		url := author.AvatarURL
		msg.AuthorAvatarURL = &url
		entry["profileImageURL"] = url
	}

	if err := s.store.SetData(ctx, config.RoomPath(roomID), models.Document{msg.ID: entry}, true); err != nil {
		log.Printf("ERROR: Failed to send message to room %s: %v", roomID, err)
		return models.Message{}, apperr.Write("send message", err)
	}
	return msg, nil
}
