// Package ws exposes the lobby coordinator over WebSocket connections.
// Each connection gets a read pump dispatching inbound events to the
// coordinator and a write pump draining the hub's send channel.
package ws

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"studybuddy/backend/internal/hub"
	"studybuddy/backend/internal/presence"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256

	// messagesPerSecond bounds inbound events per connection.
	messagesPerSecond = 5
	messageBurst      = 10
)

// Inbound event names.
const (
	eventJoinLobby   = "joinLobby"
	eventSendMessage = "sendMessage"
	eventLeaveLobby  = "leaveLobby"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinPayload struct {
	LobbyID   string `json:"lobbyId"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	ClassName string `json:"className"`
	School    string `json:"school"`
	MaxUsers  int    `json:"maxUsers"`
}

type messagePayload struct {
	LobbyID  string `json:"lobbyId"`
	Message  string `json:"message"`
	Username string `json:"username"`
}

type errorPayload struct {
	Reason string `json:"reason"`
}

// Client is one WebSocket connection.
type Client struct {
	conn        *websocket.Conn
	hub         *hub.Hub
	coordinator *presence.Coordinator
	connID      string
	send        chan []byte
	limiter     *rate.Limiter
}

func newConnID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b)
}

// NewClient wraps an upgraded connection. The caller must register the
// client's send channel with the hub and start both pumps.
func NewClient(conn *websocket.Conn, h *hub.Hub, coordinator *presence.Coordinator) *Client {
	return &Client{
		conn:        conn,
		hub:         h,
		coordinator: coordinator,
		connID:      newConnID(),
		send:        make(chan []byte, sendBufferSize),
		limiter:     rate.NewLimiter(rate.Limit(messagesPerSecond), messageBurst),
	}
}

// ConnID returns the connection's id.
func (c *Client) ConnID() string { return c.connID }

// SendChan returns the channel the hub delivers outbound events on.
func (c *Client) SendChan() chan []byte { return c.send }

// ReadPump reads inbound events until the connection drops, then
// detaches the connection from the hub and the coordinator. Disconnect
// handling is idempotent: an explicit leaveLobby followed by the socket
// closing results in a single leave.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c.connID)
		close(c.send)
		if err := c.coordinator.Leave(context.Background(), c.connID); err != nil {
			log.Printf("ws: disconnect cleanup for %s: %v", c.connID, err)
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read error conn=%s: %v", c.connID, err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.hub.Send(c.connID, presence.EventError, errorPayload{Reason: "rate limit exceeded"})
			continue
		}

		c.dispatch(raw)
	}
}

func (c *Client) dispatch(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.hub.Send(c.connID, presence.EventError, errorPayload{Reason: "malformed event"})
		return
	}

	ctx := context.Background()
	var err error

	switch env.Event {
	case eventJoinLobby:
		var p joinPayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			err = c.coordinator.Join(ctx, c.connID, presence.JoinRequest{
				LobbyID:   p.LobbyID,
				Username:  p.Username,
				Name:      p.Name,
				ClassName: p.ClassName,
				School:    p.School,
				MaxUsers:  p.MaxUsers,
			})
		}
	case eventSendMessage:
		var p messagePayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			err = c.coordinator.Message(ctx, p.LobbyID, p.Username, p.Message)
		}
	case eventLeaveLobby:
		err = c.coordinator.Leave(ctx, c.connID)
	default:
		c.hub.Send(c.connID, presence.EventError, errorPayload{Reason: "unknown event: " + env.Event})
		return
	}

	if err != nil {
		c.hub.Send(c.connID, presence.EventError, errorPayload{Reason: presence.ErrorReason(err)})
	}
}

// WritePump forwards hub events to the socket and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
