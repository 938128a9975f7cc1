package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client is one UI socket connected to the agent.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	mu sync.Mutex // protects conn writes
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.New().String(),
		Conn: conn,
		Send: make(chan []byte, 256),
	}
}

// WriteLoop drains Send onto the socket and keeps the connection alive with
// pings. Returns when ctx is cancelled or the hub closes Send.
func (c *Client) WriteLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.close()
			return
		case msg, ok := <-c.Send:
			if !ok {
				c.close()
				return
			}
			c.write(websocket.TextMessage, msg)
		case <-ticker.C:
			c.write(websocket.PingMessage, nil)
		}
	}
}

// ReadLoop consumes inbound frames so close and pong handling work. The UI
// drives the agent over HTTP; socket traffic is push-only.
func (c *Client) ReadLoop() {
	c.Conn.SetReadLimit(4096)
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) write(messageType int, msg []byte) {
	c.mu.Lock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_ = c.Conn.WriteMessage(messageType, msg)
	c.mu.Unlock()
}

func (c *Client) close() {
	c.mu.Lock()
	_ = c.Conn.Close()
	c.mu.Unlock()
}

// SendMessage queues a frame without blocking; full buffers drop the frame.
func (c *Client) SendMessage(msg []byte) {
	select {
	case c.Send <- msg:
	default:
	}
}
