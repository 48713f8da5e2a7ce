// Package ws broadcasts repository events to dashboard websocket clients.
package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"smart-lighting-backend/internal/store"
)

// writeWait bounds each client write. Broadcast runs synchronously on
// repository writes, so a client that stops reading must never stall it.
const writeWait = 5 * time.Second

// Hub manages websocket connections and fans repository events out to them.
type Hub struct {
	mu        sync.Mutex
	conns     map[*websocket.Conn]bool
	writeWait time.Duration
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns:     make(map[*websocket.Conn]bool),
		writeWait: writeWait,
	}
}

// Attach wires the hub to the repository's subscription mechanism and
// returns the unsubscribe function.
func (h *Hub) Attach(s store.Store) func() {
	return s.Subscribe(h.Broadcast)
}

// Register adds a client connection and starts its read loop, which exists
// only to detect disconnects.
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = true
	n := len(h.conns)
	h.mu.Unlock()
	log.Printf("Websocket client connected (%d active)", n)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.Unregister(conn)
				return
			}
		}
	}()
}

// Unregister removes and closes a client connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

// Broadcast sends an event to every connected client. Serialized once;
// a failed write drops that client.
func (h *Hub) Broadcast(ev store.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Failed to marshal websocket event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			delete(h.conns, conn)
			conn.Close()
		}
	}
}

// ConnectionCount returns the number of active clients.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close drops all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}
