// Package hub fans events out to the WebSocket connections attached to
// a lobby room.
package hub

import (
	"encoding/json"
	"log"
	"sync"
)

// Event is the wire envelope for every outbound message.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub groups connections into rooms keyed by lobby id. Each connection
// registers a buffered send channel; the hub never blocks on a slow
// client.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]chan []byte
	rooms map[string]map[string]bool // lobby id → connection id set
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{
		conns: make(map[string]chan []byte),
		rooms: make(map[string]map[string]bool),
	}
}

// Register associates a connection id with its outbound channel. The
// caller owns the channel; Unregister does not close it.
func (h *Hub) Register(connID string, send chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[connID] = send
}

// Unregister removes a connection and any room membership it held.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, connID)
	for lobbyID, room := range h.rooms {
		if room[connID] {
			delete(room, connID)
			if len(room) == 0 {
				delete(h.rooms, lobbyID)
			}
		}
	}
}

// JoinRoom adds a connection to a lobby's room.
func (h *Hub) JoinRoom(connID, lobbyID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[lobbyID]
	if !ok {
		room = make(map[string]bool)
		h.rooms[lobbyID] = room
	}
	room[connID] = true
}

// LeaveRoom removes a connection from a lobby's room.
func (h *Hub) LeaveRoom(connID, lobbyID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[lobbyID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(h.rooms, lobbyID)
		}
	}
}

// ClearRoom removes every connection from a lobby's room. Used when the
// lobby closes while connections are still attached.
func (h *Hub) ClearRoom(lobbyID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, lobbyID)
}

// RoomSize returns the number of connections attached to a room.
func (h *Hub) RoomSize(lobbyID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[lobbyID])
}

// Broadcast delivers an event to every connection in a lobby's room,
// including the one that triggered it. The write lock is held for the
// whole fanout, so each broadcast lands atomically: every connection in
// the room sees the same event order even when broadcasts race.
func (h *Hub) Broadcast(lobbyID, event string, data interface{}) {
	payload, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		log.Printf("hub: failed to marshal %s event: %v", event, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for connID := range h.rooms[lobbyID] {
		h.deliver(connID, payload)
	}
}

// Send delivers an event to a single connection.
func (h *Hub) Send(connID, event string, data interface{}) {
	payload, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		log.Printf("hub: failed to marshal %s event: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliver(connID, payload)
}

// deliver must be called with h.mu held.
func (h *Hub) deliver(connID string, payload []byte) {
	send, ok := h.conns[connID]
	if !ok {
		return
	}
	// Non-blocking send so a slow client cannot stall the hub. The
	// connection's write pump cleans up when the client goes away.
	select {
	case send <- payload:
	default:
		log.Printf("hub: dropping event for %s, send buffer full", connID)
	}
}
