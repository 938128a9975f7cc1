package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pulse-chat/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The agent binds to loopback; the UI dev server connects cross-origin.
		return true
	},
}

// WebSocketHandler upgrades UI connections and attaches them to the hub.
type WebSocketHandler struct {
	hub *Hub
	log *logger.Logger
}

func NewWebSocketHandler(hub *Hub, log *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, log: log}
}

func (h *WebSocketHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorf("server: websocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn)
	h.hub.Register(client)

	// The request context dies when the handler returns; the socket outlives it.
	go client.WriteLoop(context.WithoutCancel(c.Request.Context()))
	go func() {
		client.ReadLoop()
		h.hub.Unregister(client)
	}()
}
