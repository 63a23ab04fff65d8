package chathub

import "chatroom/backend/internal/models"

// Client is one realtime UI connection.
type Client interface {
	// GetClientID is unique per connection.
	GetClientID() string
	GetUserID() string
	GetDisplayName() string
	// GetRoomID is the room the connection was opened for.
	GetRoomID() string
	// GetLang selects the localization of notices.
	GetLang() string

	// GetSendChannel returns the channel the hub writes events to.
	GetSendChannel() chan<- models.ServerEvent

	// Run starts the read and write pumps.
	Run()
	// Close closes the send channel; the write pump then closes the connection.
	Close()
}

// Inbound is a command read from a client.
type Inbound struct {
	ClientID string
	Command  models.ClientCommand
}
