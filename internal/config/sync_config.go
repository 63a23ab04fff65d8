package config

import "time"

const (
	// Typing
	TypingDebounceInterval = 2500 * time.Millisecond

	// Teardown writes (typing=false, offline) run detached from the caller's context.
	TeardownWriteTimeout = 5 * time.Second

	// Document model
	RoomsCollection    = "chatrooms"
	UsersCollection    = "users"
	PresenceCollection = "presence"
	MessageFieldPrefix = "message_"
	NestedMessagesKey  = "messages"

	// Profile images
	ProfileImagesPrefix = "profile_images/"

	// Auth
	AccessTokenTTL   = 72 * time.Hour
	ResetTokenTTL    = time.Hour
	MinPasswordLen   = 6
	TokenIssuer      = "chatroom-service"
	UnknownUsername  = "Unknown"
	DefaultLanguage  = "en"
	SendFrameBacklog = 256
)

// RoomPath returns the document path of a room.
func RoomPath(roomID string) string {
	return RoomsCollection + "/" + roomID
}

// PresenceCollectionPath returns the presence sub-collection of a room.
func PresenceCollectionPath(roomID string) string {
	return RoomPath(roomID) + "/" + PresenceCollection
}

// PresencePath returns one user's presence document inside a room.
func PresencePath(roomID, userID string) string {
	return PresenceCollectionPath(roomID) + "/" + userID
}

// UserPath returns the profile document of a user.
func UserPath(uid string) string {
	return UsersCollection + "/" + uid
}
