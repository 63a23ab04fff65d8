package models

import "time"

// TypingState is the single typing flag recorded on a room document.
// At most one typer is recorded per room; the store keeps the last write.
type TypingState struct {
	RoomID string `json:"room_id"`
	// TypingUserID is empty when nobody is typing.
	TypingUserID string `json:"typing_user_id,omitempty"`
	// Text is the human readable "X is typing…" line written with the flag.
	Text string `json:"text,omitempty"`
	// Remote is true when the typer is another user; only then is the line shown.
	Remote bool `json:"remote"`
	// ExpiresAt is the local debounce deadline while the local user is typing.
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Active reports whether someone is recorded as typing.
func (t TypingState) Active() bool {
	return t.Remote || t.TypingUserID != ""
}
