// Package session tracks which connections are live in which lobby.
// The registry is pure in-memory bookkeeping: it is the fast answer to
// "who is connected right now", while the durable membership lives in
// the lobby store. It is never persisted and starts empty on restart.
package session

import (
	"sort"
	"sync"
)

// Member identifies what a departing connection belonged to.
type Member struct {
	LobbyID  string
	Username string
}

// Registry maps lobby ids to their live connections. All methods are
// safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]Member            // connection id → member
	lobbies map[string]map[string]string // lobby id → connection id → username
	hosts   map[string]string            // lobby id → host username
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:   make(map[string]Member),
		lobbies: make(map[string]map[string]string),
		hosts:   make(map[string]string),
	}
}

// Join records a connection in a lobby. The first connection to join an
// empty lobby sets the cached host.
func (r *Registry) Join(lobbyID, connID, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.lobbies[lobbyID]
	if !ok {
		conns = make(map[string]string)
		r.lobbies[lobbyID] = conns
		r.hosts[lobbyID] = username
	}
	conns[connID] = username
	r.conns[connID] = Member{LobbyID: lobbyID, Username: username}
}

// Lookup returns the membership a connection currently holds, if any.
func (r *Registry) Lookup(connID string) (Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	member, ok := r.conns[connID]
	return member, ok
}

// Leave removes a connection from whichever lobby it belonged to and
// returns what was removed. Safe to call for connections that never
// joined, or that were already removed.
func (r *Registry) Leave(connID string) (Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	member, ok := r.conns[connID]
	if !ok {
		return Member{}, false
	}
	delete(r.conns, connID)

	if conns, ok := r.lobbies[member.LobbyID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.lobbies, member.LobbyID)
			delete(r.hosts, member.LobbyID)
		}
	}
	return member, true
}

// MembersOf returns the distinct usernames currently connected to a
// lobby, sorted for stable output.
func (r *Registry) MembersOf(lobbyID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, username := range r.lobbies[lobbyID] {
		seen[username] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for username := range seen {
		names = append(names, username)
	}
	sort.Strings(names)
	return names
}

// IsEmpty reports whether a lobby has no live connections.
func (r *Registry) IsEmpty(lobbyID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lobbies[lobbyID]) == 0
}

// Host returns the cached host username for a lobby, or "" if the lobby
// has no live connections.
func (r *Registry) Host(lobbyID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hosts[lobbyID]
}

// ClearLobby drops every connection entry for a lobby and returns the
// cleared connection ids. Used on teardown so stale entries cannot
// outlive the lobby.
func (r *Registry) ClearLobby(lobbyID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.lobbies[lobbyID]
	ids := make([]string, 0, len(conns))
	for connID := range conns {
		delete(r.conns, connID)
		ids = append(ids, connID)
	}
	delete(r.lobbies, lobbyID)
	delete(r.hosts, lobbyID)
	return ids
}
