package models

import "encoding/json"

// Command types sent by a UI client over the realtime connection.
const (
	CommandDraft     = "draft"     // replace the local draft text
	CommandKeystroke = "keystroke" // a key was pressed in the composer
	CommandSend      = "send"      // submit the current draft
)

// Event types pushed to a UI client.
const (
	EventMessages  = "messages"
	EventPresence  = "presence"
	EventTyping    = "typing"
	EventDirectory = "directory"
	EventDraft     = "draft"
	EventNotice    = "notice"
)

// ClientCommand is one frame read from a UI client.
type ClientCommand struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ServerEvent is one frame written to a UI client.
type ServerEvent struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"room_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewServerEvent marshals payload into a ServerEvent.
func NewServerEvent(eventType, roomID string, payload any) (ServerEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return ServerEvent{}, err
	}
	return ServerEvent{Type: eventType, RoomID: roomID, Payload: raw}, nil
}
