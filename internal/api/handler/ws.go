package handler

import (
	"chatroom/backend/internal/chathub"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Дозволяє з'єднання з будь-якого домену. У продакшені налаштувати!
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket оновлює HTTP-з'єднання до WebSocket. ?room= selects the
// room; without it the connection only receives the room directory.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	user := currentUser(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, uuid.New().String(), user.UID, user.DisplayName, c.Query("room"), lang(c))

	// Реєстрація клієнта в Chat Hub
	select {
	case h.Hub.RegisterCh <- client:
	case <-h.Hub.Done():
		conn.Close()
		return
	}

	client.Run()
}
