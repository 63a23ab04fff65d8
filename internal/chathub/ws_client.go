package chathub

import (
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/models"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// WebSocketClient реалізує інтерфейс chathub.Client
type WebSocketClient struct {
	ClientID    string
	UserID      string
	DisplayName string
	RoomID      string
	Lang        string
	Conn        *websocket.Conn
	Hub         *Hub
	Send        chan models.ServerEvent
}

// NewWebSocketClient creates a client for conn. An empty roomID subscribes to the directory only.
func NewWebSocketClient(hub *Hub, conn *websocket.Conn, clientID, userID, displayName, roomID, lang string) *WebSocketClient {
	return &WebSocketClient{
		ClientID:    clientID,
		UserID:      userID,
		DisplayName: displayName,
		RoomID:      roomID,
		Lang:        lang,
		Conn:        conn,
		Hub:         hub,
		Send:        make(chan models.ServerEvent, config.SendFrameBacklog),
	}
}

func (c *WebSocketClient) GetClientID() string                       { return c.ClientID }
func (c *WebSocketClient) GetUserID() string                         { return c.UserID }
func (c *WebSocketClient) GetDisplayName() string                    { return c.DisplayName }
func (c *WebSocketClient) GetRoomID() string                         { return c.RoomID }
func (c *WebSocketClient) GetLang() string                           { return c.Lang }
func (c *WebSocketClient) GetSendChannel() chan<- models.ServerEvent { return c.Send }

// Run запускає 'pumps' для WebSocket
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close закриває Send канал (що зупинить writePump). Only the hub calls it.
func (c *WebSocketClient) Close() {
	close(c.Send)
}

func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.Hub.UnregisterCh <- c:
		case <-c.Hub.Done():
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			break
		}

		var cmd models.ClientCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			log.Printf("Error decoding JSON from client %s: %v", c.ClientID, err)
			continue // Пропускаємо невірне повідомлення
		}

		select {
		case c.Hub.IncomingCh <- Inbound{ClientID: c.ClientID, Command: cmd}:
		case <-c.Hub.Done():
			return
		}
	}
}

// writePump читає події з каналу Send і записує їх у WebSocket, one frame per event.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Канал закрито хабом, закриваємо з'єднання WS
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(ev); err != nil {
				log.Printf("Error writing to client %s: %v", c.ClientID, err)
				return
			}

		case <-ticker.C:
			// Надсилаємо Ping для підтримки з'єднання активним
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
