// Package presence reconciles live WebSocket connections with the durable
// lobby records. It owns the lobby lifecycle: lobbies are created lazily on
// first join, updated on every join, leave, and message, and torn down when
// the host departs or the last member leaves.
package presence

import (
	"context"
	"errors"
	"strings"
	"sync"

	"studybuddy/backend/internal/models"
	"studybuddy/backend/internal/session"
	"studybuddy/backend/internal/store"
)

// Outbound event names.
const (
	EventUserList       = "userList"
	EventReceiveMessage = "receiveMessage"
	EventLobbyClosed    = "lobbyClosed"
	EventError          = "error"
)

var (
	// ErrMissingFields indicates a join for a nonexistent lobby without
	// the fields needed to create it.
	ErrMissingFields = errors.New("missing lobby fields")
	// ErrInvalidMessage indicates an empty message or missing sender.
	ErrInvalidMessage = errors.New("invalid message")
)

// Transport is the connection-facing side of the coordinator: per-room
// grouping plus event delivery. Satisfied by hub.Hub.
type Transport interface {
	Send(connID, event string, data interface{})
	Broadcast(lobbyID, event string, data interface{})
	JoinRoom(connID, lobbyID string)
	LeaveRoom(connID, lobbyID string)
	ClearRoom(lobbyID string)
}

// JoinRequest is a connection's request to enter a lobby. The creation
// fields (Name, ClassName, School, MaxUsers) are only required when the
// lobby does not exist yet.
type JoinRequest struct {
	LobbyID   string
	Username  string
	Name      string
	ClassName string
	School    string
	MaxUsers  int
}

// UserList is the membership snapshot broadcast after every join and
// non-closing leave. It reflects the durable record, not just live
// connections, so new joiners see members who joined over REST too.
type UserList struct {
	Users []string `json:"users"`
}

// Coordinator drives the per-lobby lifecycle. A per-lobby mutex spans
// each store round-trip plus the matching registry update, so
// check-then-act sequences (capacity checks, teardown decisions) cannot
// interleave for the same lobby. The registry's own lock is never held
// across a store call.
type Coordinator struct {
	registry  *session.Registry
	store     store.LobbyStore
	transport Transport

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCoordinator wires the registry, store, and transport together.
func NewCoordinator(registry *session.Registry, st store.LobbyStore, transport Transport) *Coordinator {
	return &Coordinator{
		registry:  registry,
		store:     st,
		transport: transport,
		locks:     make(map[string]*sync.Mutex),
	}
}

// lobbyLock returns the mutex serializing operations on one lobby.
// Locks are retained for the process lifetime so two racers can never
// hold different mutexes for the same id.
func (c *Coordinator) lobbyLock(lobbyID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[lobbyID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[lobbyID] = lock
	}
	return lock
}

// Join attaches a connection to a lobby, creating the durable record if
// it does not exist yet. On success the connection is registered, joined
// to the room, and the room receives a fresh membership snapshot. On any
// error nothing is registered and nothing is broadcast.
func (c *Coordinator) Join(ctx context.Context, connID string, req JoinRequest) error {
	if req.LobbyID == "" || req.Username == "" {
		return ErrMissingFields
	}

	// A connection can only be in one lobby. Joining a second lobby
	// runs the full leave flow for the first one, so host departure
	// and last-member closure still fire. Must happen before taking
	// the new lobby's lock.
	if member, ok := c.registry.Lookup(connID); ok && member.LobbyID != req.LobbyID {
		if err := c.Leave(ctx, connID); err != nil {
			return err
		}
	}

	lock := c.lobbyLock(req.LobbyID)
	lock.Lock()
	defer lock.Unlock()

	lobby, err := c.store.FindOrNone(ctx, req.LobbyID)
	if err != nil {
		return err
	}

	if lobby == nil {
		if !req.hasCreationFields() {
			return ErrMissingFields
		}
		lobby, err = c.store.Create(ctx, store.LobbyInit{
			LobbyID:   req.LobbyID,
			Name:      req.Name,
			ClassName: req.ClassName,
			School:    req.School,
			Host:      req.Username,
			MaxUsers:  req.MaxUsers,
		})
		if errors.Is(err, store.ErrDuplicateID) {
			// Lost a create race against the REST path; join the
			// lobby that won instead.
			lobby, err = c.store.AddUser(ctx, req.LobbyID, req.Username)
		}
		if err != nil {
			return err
		}
	} else {
		lobby, err = c.store.AddUser(ctx, req.LobbyID, req.Username)
		if err != nil {
			return err
		}
	}

	c.registry.Join(req.LobbyID, connID, req.Username)
	c.transport.JoinRoom(connID, req.LobbyID)
	c.transport.Broadcast(req.LobbyID, EventUserList, UserList{Users: lobby.Usernames()})
	return nil
}

func (r JoinRequest) hasCreationFields() bool {
	return r.Name != "" && r.ClassName != "" && r.School != "" &&
		r.MaxUsers >= models.MinLobbyUsers && r.MaxUsers <= models.MaxLobbyUsers
}

// Message validates, stores, and relays a chat message. The broadcast
// carries the stored message with its server-assigned timestamp.
func (c *Coordinator) Message(ctx context.Context, lobbyID, username, text string) error {
	if lobbyID == "" || username == "" || strings.TrimSpace(text) == "" {
		return ErrInvalidMessage
	}

	lock := c.lobbyLock(lobbyID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := c.store.AppendMessage(ctx, lobbyID, username, text)
	if err != nil {
		return err
	}
	c.transport.Broadcast(lobbyID, EventReceiveMessage, msg)
	return nil
}

// Leave detaches a connection from its lobby, explicitly or on
// disconnect. The departure of the host closes the lobby no matter how
// many other members remain; so does the departure of the last member.
// Leaving twice, or leaving without ever joining, is a no-op.
func (c *Coordinator) Leave(ctx context.Context, connID string) error {
	member, ok := c.registry.Leave(connID)
	if !ok {
		return nil
	}

	lock := c.lobbyLock(member.LobbyID)
	lock.Lock()
	defer lock.Unlock()

	lobby, err := c.store.FindOrNone(ctx, member.LobbyID)
	if err != nil {
		return err
	}
	if lobby == nil {
		// A racing leave already tore the lobby down.
		c.transport.LeaveRoom(connID, member.LobbyID)
		return nil
	}

	if lobby.Host == member.Username {
		return c.teardown(ctx, member.LobbyID)
	}

	remaining, err := c.store.RemoveUser(ctx, member.LobbyID, member.Username)
	if errors.Is(err, store.ErrNotFound) {
		c.transport.LeaveRoom(connID, member.LobbyID)
		return nil
	}
	if err != nil {
		return err
	}
	if remaining == nil {
		// Store deleted the record with the last member.
		return c.teardown(ctx, member.LobbyID)
	}

	c.transport.LeaveRoom(connID, member.LobbyID)
	c.transport.Broadcast(member.LobbyID, EventUserList, UserList{Users: remaining.Usernames()})
	return nil
}

// teardown closes a lobby: the durable record is deleted, every attached
// connection receives one lobbyClosed event, and all registry and room
// state for the lobby is dropped. Must be called with the lobby lock
// held; a concurrent teardown's ErrNotFound is absorbed so closure is
// never double-delivered.
func (c *Coordinator) teardown(ctx context.Context, lobbyID string) error {
	if err := c.store.Delete(ctx, lobbyID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	c.transport.Broadcast(lobbyID, EventLobbyClosed, nil)
	c.registry.ClearLobby(lobbyID)
	c.transport.ClearRoom(lobbyID)
	return nil
}

// ErrorReason maps coordinator and store errors to the reason string
// reported to the triggering connection.
func ErrorReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingFields):
		return "lobby does not exist and required fields are missing"
	case errors.Is(err, ErrInvalidMessage):
		return "message text and username are required"
	case errors.Is(err, store.ErrLobbyFull):
		return "lobby is full"
	case errors.Is(err, store.ErrNotFound):
		return "lobby not found"
	case errors.Is(err, store.ErrDuplicateID):
		return "lobby already exists"
	case errors.Is(err, store.ErrUnavailable):
		return "storage is temporarily unavailable, please retry"
	default:
		return "internal error"
	}
}
