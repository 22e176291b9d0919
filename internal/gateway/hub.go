// Package gateway pushes freshly fetched price snapshots to WebSocket
// clients so dashboards update without polling.
package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Hub manages WebSocket clients and fans out price updates.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  json.RawMessage // last envelope, replayed to new clients
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

// HandleWS upgrades the request and registers the client. The latest known
// snapshot (if any) is sent immediately so clients render without waiting
// for the next refresh.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}

	client := newClient(h, conn)

	// The replay send stays under the lock: unregister closes the send
	// channel while holding it, so a send can never hit a closed channel.
	h.mu.Lock()
	h.clients[client] = true
	if h.latest != nil {
		client.trySend(h.latest)
	}
	h.mu.Unlock()

	go client.writePump()
	go client.readPump()
}

// Broadcast sends a typed envelope with the payload to every connected
// client. Slow clients drop the update instead of blocking the refresh path.
func (h *Hub) Broadcast(event string, payload any) {
	envelope, err := json.Marshal(map[string]any{
		"type": event,
		"data": payload,
		"ts":   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("[gateway] broadcast marshal error: %v", err)
		return
	}

	// Fan out while holding the lock. trySend never blocks, and unregister
	// closes send channels under the same lock.
	h.mu.Lock()
	h.latest = envelope
	for c := range h.clients {
		c.trySend(envelope)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}
