package server

import (
	"context"
	"encoding/json"
	"sync"

	"pulse-chat/pkg/logger"
)

// Hub fans events out to every connected UI socket. The agent serves one
// local user, so there is no per-channel routing: every client sees the full
// event stream and filters client-side.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client

	log *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		log:        log,
	}
}

// Run drives client registration until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) Register(client *Client)   { h.register <- client }
func (h *Hub) Unregister(client *Client) { h.unregister <- client }

// Envelope is the frame pushed to UI sockets.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Broadcast pushes one envelope to every connected client. Slow clients drop
// frames rather than stalling the feed; the UI recovers by refetching.
func (h *Hub) Broadcast(typ string, payload any) {
	data, err := json.Marshal(Envelope{Type: typ, Payload: payload})
	if err != nil {
		h.log.Errorf("server: encoding %s frame: %v", typ, err)
		return
	}
	h.mu.RLock()
	for _, c := range h.clients {
		c.SendMessage(data)
	}
	h.mu.RUnlock()
}

// ClientCount reports how many UI sockets are connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}
