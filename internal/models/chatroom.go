package models

import "time"

// RoomSummary is the list-view projection of one room.
// It is recomputed in full from every snapshot of the room document, never patched.
type RoomSummary struct {
	// RoomID is the room document id.
	RoomID string `json:"room_id"`
	// DisplayName is the room's "name" field, or RoomID when the field is absent.
	DisplayName string `json:"display_name"`
	// LastMessage is the text of the latest message, or a placeholder for empty rooms.
	LastMessage string `json:"last_message"`
	// LastMessageAt is the maximum SentAt among the room's messages.
	LastMessageAt time.Time `json:"last_message_at"`
	// HasMessages is false when the room document carried no decodable message.
	HasMessages bool `json:"has_messages"`
}
