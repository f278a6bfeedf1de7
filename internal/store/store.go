// Package store provides durable CRUD for lobby records. The presence
// coordinator and the REST handlers share a single LobbyStore, so lobbies
// created over HTTP are visible to socket joins and vice versa.
package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"studybuddy/backend/internal/models"
)

var (
	// ErrNotFound indicates the lobby does not exist.
	ErrNotFound = errors.New("lobby not found")
	// ErrDuplicateID indicates a create for a lobby id that already exists.
	ErrDuplicateID = errors.New("lobby id already exists")
	// ErrLobbyFull indicates the lobby is at capacity.
	ErrLobbyFull = errors.New("lobby is full")
	// ErrUnavailable indicates a transient storage failure. Callers may
	// report it to the user but must not retry automatically.
	ErrUnavailable = errors.New("store unavailable")
)

// LobbyInit carries the fields required to create a lobby. The host is
// the first member, so CurrentUsers starts at 1.
type LobbyInit struct {
	LobbyID   string
	Name      string
	ClassName string
	School    string
	Host      string
	MaxUsers  int
}

// LobbyStore is the durable record of lobbies and their chat history.
//
// AddUser and RemoveUser serialize their check-then-mutate sequence so
// that concurrent joins cannot push membership past MaxUsers.
type LobbyStore interface {
	// FindOrNone returns the lobby, or (nil, nil) when it does not exist.
	FindOrNone(ctx context.Context, lobbyID string) (*models.Lobby, error)

	// Create stores a new lobby with the host as its only member.
	// Returns ErrDuplicateID if the id is already taken.
	Create(ctx context.Context, init LobbyInit) (*models.Lobby, error)

	// AddUser adds username to the lobby and returns the updated record.
	// Adding a user who is already a member is a no-op, not an error.
	// Returns ErrLobbyFull when the lobby is at capacity and the user is
	// new, or ErrNotFound when the lobby does not exist.
	AddUser(ctx context.Context, lobbyID, username string) (*models.Lobby, error)

	// RemoveUser removes username from the lobby. When the last member
	// is removed the lobby is deleted and (nil, nil) is returned;
	// otherwise the updated record is returned.
	RemoveUser(ctx context.Context, lobbyID, username string) (*models.Lobby, error)

	// AppendMessage stores a chat message and returns it with the
	// server-assigned timestamp. Returns ErrNotFound when the lobby
	// does not exist.
	AppendMessage(ctx context.Context, lobbyID, username, text string) (*models.Message, error)

	// List returns lobbies for a class at a school. Empty filters match
	// everything.
	List(ctx context.Context, className, school string) ([]models.Lobby, error)

	// Delete removes the lobby and its messages. Deleting a lobby that
	// does not exist returns ErrNotFound.
	Delete(ctx context.Context, lobbyID string) error
}

// NewLobbyID generates a random lobby identifier.
func NewLobbyID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
