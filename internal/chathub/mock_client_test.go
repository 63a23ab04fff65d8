package chathub_test

import (
	"chatroom/backend/internal/models"
	"sync/atomic"
	"testing"
	"time"
)

type MockClient struct {
	clientID string
	userID   string
	roomID   string
	closed   atomic.Bool

	RecvChannel chan models.ServerEvent
}

func newMockClient(clientID, userID, roomID string) *MockClient {
	return &MockClient{
		clientID:    clientID,
		userID:      userID,
		roomID:      roomID,
		RecvChannel: make(chan models.ServerEvent, 64),
	}
}

func (c *MockClient) GetClientID() string                       { return c.clientID }
func (c *MockClient) GetUserID() string                         { return c.userID }
func (c *MockClient) GetDisplayName() string                    { return c.userID }
func (c *MockClient) GetRoomID() string                         { return c.roomID }
func (c *MockClient) GetLang() string                           { return "en" }
func (c *MockClient) GetSendChannel() chan<- models.ServerEvent { return c.RecvChannel }

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.closed.Store(true)
}

// await returns the first event of eventType, skipping others.
func (c *MockClient) await(t *testing.T, eventType string) models.ServerEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-c.RecvChannel:
			if ev.Type == eventType {
				return ev
			}
		case <-timeout:
			t.Fatalf("client %s did not receive a %s event", c.clientID, eventType)
			return models.ServerEvent{}
		}
	}
}
