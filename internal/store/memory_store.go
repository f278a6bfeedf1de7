package store

import (
	"context"
	"sync"
	"time"

	"studybuddy/backend/internal/models"
)

// MemoryStore is an in-memory LobbyStore. It backs tests and local runs
// without Postgres; the mutex gives it the same serialized
// check-then-mutate semantics as the row-locked GormStore.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  uint
	lobbies map[string]*models.Lobby
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lobbies: make(map[string]*models.Lobby)}
}

func (s *MemoryStore) FindOrNone(ctx context.Context, lobbyID string) (*models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lobby, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, nil
	}
	return copyLobby(lobby), nil
}

func (s *MemoryStore) Create(ctx context.Context, init LobbyInit) (*models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lobbies[init.LobbyID]; ok {
		return nil, ErrDuplicateID
	}

	s.nextID++
	lobby := &models.Lobby{
		LobbyID:      init.LobbyID,
		Name:         init.Name,
		ClassName:    init.ClassName,
		School:       init.School,
		Host:         init.Host,
		MaxUsers:     init.MaxUsers,
		CurrentUsers: 1,
		Users:        []models.LobbyUser{{Username: init.Host}},
	}
	lobby.ID = s.nextID
	s.lobbies[init.LobbyID] = lobby
	return copyLobby(lobby), nil
}

func (s *MemoryStore) AddUser(ctx context.Context, lobbyID, username string) (*models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lobby, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, ErrNotFound
	}
	if lobby.HasUser(username) {
		return copyLobby(lobby), nil
	}
	if lobby.CurrentUsers >= lobby.MaxUsers {
		return nil, ErrLobbyFull
	}

	lobby.Users = append(lobby.Users, models.LobbyUser{Username: username})
	lobby.CurrentUsers++
	return copyLobby(lobby), nil
}

func (s *MemoryStore) RemoveUser(ctx context.Context, lobbyID, username string) (*models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lobby, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, ErrNotFound
	}

	for i, u := range lobby.Users {
		if u.Username == username {
			lobby.Users = append(lobby.Users[:i], lobby.Users[i+1:]...)
			lobby.CurrentUsers--
			break
		}
	}
	if lobby.CurrentUsers <= 0 {
		delete(s.lobbies, lobbyID)
		return nil, nil
	}
	return copyLobby(lobby), nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, lobbyID, username, text string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lobby, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, ErrNotFound
	}

	msg := models.Message{
		LobbyRef:  lobby.ID,
		Username:  username,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	lobby.Messages = append(lobby.Messages, msg)
	return &msg, nil
}

func (s *MemoryStore) List(ctx context.Context, className, school string) ([]models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Lobby, 0, len(s.lobbies))
	for _, lobby := range s.lobbies {
		if className != "" && lobby.ClassName != className {
			continue
		}
		if school != "" && lobby.School != school {
			continue
		}
		out = append(out, *copyLobby(lobby))
	}
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, lobbyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lobbies[lobbyID]; !ok {
		return ErrNotFound
	}
	delete(s.lobbies, lobbyID)
	return nil
}

// copyLobby returns a detached copy so callers cannot mutate stored state.
func copyLobby(lobby *models.Lobby) *models.Lobby {
	out := *lobby
	out.Users = append([]models.LobbyUser(nil), lobby.Users...)
	out.Messages = append([]models.Message(nil), lobby.Messages...)
	return &out
}
