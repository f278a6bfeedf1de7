package presence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"studybuddy/backend/internal/session"
	"studybuddy/backend/internal/store"
)

// recordedEvent captures one transport delivery for assertions.
type recordedEvent struct {
	Target string // lobby id for broadcasts, connection id for sends
	Event  string
	Data   interface{}
}

// fakeTransport records room membership and event delivery in memory.
type fakeTransport struct {
	mu         sync.Mutex
	rooms      map[string]map[string]bool
	broadcasts []recordedEvent
	sends      []recordedEvent
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{rooms: make(map[string]map[string]bool)}
}

func (f *fakeTransport) Send(connID, event string, data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, recordedEvent{Target: connID, Event: event, Data: data})
}

func (f *fakeTransport) Broadcast(lobbyID, event string, data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, recordedEvent{Target: lobbyID, Event: event, Data: data})
}

func (f *fakeTransport) JoinRoom(connID, lobbyID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rooms[lobbyID] == nil {
		f.rooms[lobbyID] = make(map[string]bool)
	}
	f.rooms[lobbyID][connID] = true
}

func (f *fakeTransport) LeaveRoom(connID, lobbyID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms[lobbyID], connID)
}

func (f *fakeTransport) ClearRoom(lobbyID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, lobbyID)
}

func (f *fakeTransport) roomSize(lobbyID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rooms[lobbyID])
}

func (f *fakeTransport) eventsNamed(name string) []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedEvent
	for _, ev := range f.broadcasts {
		if ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fakeTransport) lastBroadcast(t *testing.T) recordedEvent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.broadcasts) == 0 {
		t.Fatal("expected at least one broadcast")
	}
	return f.broadcasts[len(f.broadcasts)-1]
}

func newTestCoordinator() (*Coordinator, *store.MemoryStore, *fakeTransport, *session.Registry) {
	st := store.NewMemoryStore()
	registry := session.NewRegistry()
	transport := newFakeTransport()
	return NewCoordinator(registry, st, transport), st, transport, registry
}

func joinReq(lobbyID, username string) JoinRequest {
	return JoinRequest{
		LobbyID:   lobbyID,
		Username:  username,
		Name:      "Algorithms study group",
		ClassName: "CS101",
		School:    "State University",
		MaxUsers:  2,
	}
}

func mustJoin(t *testing.T, c *Coordinator, connID string, req JoinRequest) {
	t.Helper()
	if err := c.Join(context.Background(), connID, req); err != nil {
		t.Fatalf("Join(%s as %s) returned error: %v", req.LobbyID, req.Username, err)
	}
}

func TestJoin_CreatesLobbyOnFirstJoin(t *testing.T) {
	c, st, transport, registry := newTestCoordinator()

	mustJoin(t, c, "conn-1", joinReq("L1", "alice"))

	lobby, err := st.FindOrNone(context.Background(), "L1")
	if err != nil || lobby == nil {
		t.Fatalf("expected lobby in store, got %v, %v", lobby, err)
	}
	if lobby.Host != "alice" || lobby.CurrentUsers != 1 {
		t.Errorf("expected alice as host and sole member, got %+v", lobby)
	}
	if host := registry.Host("L1"); host != "alice" {
		t.Errorf("expected cached host alice, got %q", host)
	}

	ev := transport.lastBroadcast(t)
	if ev.Event != EventUserList {
		t.Fatalf("expected userList broadcast, got %q", ev.Event)
	}
	users := ev.Data.(UserList).Users
	if len(users) != 1 || users[0] != "alice" {
		t.Errorf("expected userList [alice], got %v", users)
	}
}

func TestJoin_MissingFieldsMutatesNothing(t *testing.T) {
	c, st, transport, registry := newTestCoordinator()

	err := c.Join(context.Background(), "conn-1", JoinRequest{LobbyID: "L1", Username: "alice"})
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}

	if lobby, _ := st.FindOrNone(context.Background(), "L1"); lobby != nil {
		t.Error("store must not be mutated on a rejected join")
	}
	if !registry.IsEmpty("L1") {
		t.Error("registry must not be mutated on a rejected join")
	}
	if len(transport.broadcasts) != 0 {
		t.Errorf("expected no broadcasts, got %v", transport.broadcasts)
	}
}

func TestJoin_InvalidMaxUsersRejected(t *testing.T) {
	c, _, _, _ := newTestCoordinator()

	req := joinReq("L1", "alice")
	req.MaxUsers = 9

	if err := c.Join(context.Background(), "conn-1", req); !errors.Is(err, ErrMissingFields) {
		t.Errorf("expected ErrMissingFields for out-of-range maxUsers, got %v", err)
	}
}

func TestJoin_FullLobbyLeavesRegistryUntouched(t *testing.T) {
	c, _, _, registry := newTestCoordinator()

	mustJoin(t, c, "conn-1", joinReq("L1", "alice"))
	mustJoin(t, c, "conn-2", joinReq("L1", "bob"))

	err := c.Join(context.Background(), "conn-3", joinReq("L1", "carol"))
	if !errors.Is(err, store.ErrLobbyFull) {
		t.Fatalf("expected ErrLobbyFull, got %v", err)
	}

	members := registry.MembersOf("L1")
	if len(members) != 2 {
		t.Errorf("rejected join must not appear in registry, got %v", members)
	}
}

func TestJoin_NeverExceedsMaxUsers(t *testing.T) {
	c, st, _, _ := newTestCoordinator()

	mustJoin(t, c, "conn-1", joinReq("L1", "alice"))

	// Two near-simultaneous joins for the single remaining slot.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, name := range []string{"bob", "carol"} {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			errs[i] = c.Join(context.Background(), "conn-"+name, joinReq("L1", name))
		}(i, name)
	}
	wg.Wait()

	full := 0
	for _, err := range errs {
		if errors.Is(err, store.ErrLobbyFull) {
			full++
		} else if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if full != 1 {
		t.Errorf("expected exactly one ErrLobbyFull, got %d", full)
	}

	lobby, _ := st.FindOrNone(context.Background(), "L1")
	if lobby.CurrentUsers > lobby.MaxUsers {
		t.Errorf("membership exceeded capacity: %d/%d", lobby.CurrentUsers, lobby.MaxUsers)
	}
}

func TestJoin_ReattachesToOrphanedLobby(t *testing.T) {
	c, st, transport, _ := newTestCoordinator()

	// Lobby created over the REST path; no live connections yet.
	if _, err := st.Create(context.Background(), store.LobbyInit{
		LobbyID: "L1", Name: "Algorithms study group", ClassName: "CS101",
		School: "State University", Host: "alice", MaxUsers: 3,
	}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	// Joining without creation fields succeeds against the orphan.
	err := c.Join(context.Background(), "conn-1", JoinRequest{LobbyID: "L1", Username: "bob"})
	if err != nil {
		t.Fatalf("expected orphan re-attach to succeed, got %v", err)
	}

	users := transport.lastBroadcast(t).Data.(UserList).Users
	if len(users) != 2 {
		t.Errorf("snapshot must include durable members, got %v", users)
	}
}

func TestJoin_SecondLobbyRunsLeaveForFirst(t *testing.T) {
	c, st, transport, registry := newTestCoordinator()

	// alice hosts L1 from conn-1, then the same connection joins L2
	// without sending leaveLobby first.
	mustJoin(t, c, "conn-1", joinReq("L1", "alice"))
	mustJoin(t, c, "conn-1", joinReq("L2", "alice"))

	// The host departed L1, so it closed like any other host leave.
	if lobby, _ := st.FindOrNone(context.Background(), "L1"); lobby != nil {
		t.Error("first lobby must close when its host moves to another lobby")
	}
	if !registry.IsEmpty("L1") {
		t.Errorf("abandoned lobby must not report live members, got %v", registry.MembersOf("L1"))
	}
	if closed := transport.eventsNamed(EventLobbyClosed); len(closed) != 1 || closed[0].Target != "L1" {
		t.Errorf("expected exactly one lobbyClosed for L1, got %v", closed)
	}
	if size := transport.roomSize("L1"); size != 0 {
		t.Errorf("moved connection must not keep receiving the old room's events, got room size %d", size)
	}

	if members := registry.MembersOf("L2"); len(members) != 1 || members[0] != "alice" {
		t.Errorf("expected L2 members [alice], got %v", members)
	}

	// Disconnecting now resolves against L2 and leaves nothing behind.
	if err := c.Leave(context.Background(), "conn-1"); err != nil {
		t.Fatalf("Leave returned error: %v", err)
	}
	if lobby, _ := st.FindOrNone(context.Background(), "L2"); lobby != nil {
		t.Error("second lobby must close when its host disconnects")
	}
	if !registry.IsEmpty("L2") {
		t.Errorf("expected empty registry after disconnect, got %v", registry.MembersOf("L2"))
	}
}

func TestJoin_NonHostSwitchingLobbies(t *testing.T) {
	c, st, _, registry := newTestCoordinator()

	req := joinReq("L1", "alice")
	req.MaxUsers = 3
	mustJoin(t, c, "conn-1", req)
	mustJoin(t, c, "conn-2", joinReq("L1", "bob"))

	mustJoin(t, c, "conn-2", joinReq("L2", "bob"))

	lobby, _ := st.FindOrNone(context.Background(), "L1")
	if lobby == nil {
		t.Fatal("first lobby must survive a non-host switching away")
	}
	if lobby.HasUser("bob") {
		t.Errorf("durable membership must drop the switched member, got %v", lobby.Usernames())
	}
	if members := registry.MembersOf("L1"); len(members) != 1 || members[0] != "alice" {
		t.Errorf("expected L1 members [alice], got %v", members)
	}
}

func TestJoin_SameLobbyAgainIsNotALeave(t *testing.T) {
	c, st, transport, _ := newTestCoordinator()

	mustJoin(t, c, "conn-1", joinReq("L1", "alice"))
	mustJoin(t, c, "conn-1", joinReq("L1", "alice"))

	if lobby, _ := st.FindOrNone(context.Background(), "L1"); lobby == nil {
		t.Fatal("re-joining the same lobby must not close it")
	}
	if len(transport.eventsNamed(EventLobbyClosed)) != 0 {
		t.Error("no closure may be emitted for a same-lobby re-join")
	}
}

func TestMessage_AppendsAndBroadcasts(t *testing.T) {
	c, st, transport, _ := newTestCoordinator()

	mustJoin(t, c, "conn-1", joinReq("L1", "alice"))

	if err := c.Message(context.Background(), "L1", "alice", "anyone free tonight?"); err != nil {
		t.Fatalf("Message returned error: %v", err)
	}

	ev := transport.lastBroadcast(t)
	if ev.Event != EventReceiveMessage {
		t.Fatalf("expected receiveMessage broadcast, got %q", ev.Event)
	}

	lobby, _ := st.FindOrNone(context.Background(), "L1")
	if len(lobby.Messages) != 1 || lobby.Messages[0].Text != "anyone free tonight?" {
		t.Errorf("expected one stored message, got %+v", lobby.Messages)
	}
	if lobby.Messages[0].CreatedAt.IsZero() {
		t.Error("stored message must carry a server-assigned timestamp")
	}
}

func TestMessage_RejectsEmptyText(t *testing.T) {
	c, st, transport, _ := newTestCoordinator()

	mustJoin(t, c, "conn-1", joinReq("L1", "alice"))
	before := len(transport.broadcasts)

	for _, text := range []string{"", "   ", "\n\t"} {
		if err := c.Message(context.Background(), "L1", "alice", text); !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("text %q: expected ErrInvalidMessage, got %v", text, err)
		}
	}
	if err := c.Message(context.Background(), "L1", "", "hello"); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("missing username: expected ErrInvalidMessage, got %v", err)
	}

	if len(transport.broadcasts) != before {
		t.Error("rejected messages must not be broadcast")
	}
	lobby, _ := st.FindOrNone(context.Background(), "L1")
	if len(lobby.Messages) != 0 {
		t.Errorf("rejected messages must not be stored, got %+v", lobby.Messages)
	}
}

func TestMessage_UnknownLobby(t *testing.T) {
	c, _, _, _ := newTestCoordinator()

	err := c.Message(context.Background(), "missing", "alice", "hi")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLeave_HostClosesLobbyWithMembersPresent(t *testing.T) {
	c, st, transport, registry := newTestCoordinator()

	req := joinReq("L1", "alice")
	req.MaxUsers = 3
	mustJoin(t, c, "conn-1", req)
	mustJoin(t, c, "conn-2", joinReq("L1", "bob"))
	mustJoin(t, c, "conn-3", joinReq("L1", "carol"))

	if err := c.Leave(context.Background(), "conn-1"); err != nil {
		t.Fatalf("host Leave returned error: %v", err)
	}

	if closed := transport.eventsNamed(EventLobbyClosed); len(closed) != 1 {
		t.Fatalf("expected exactly one lobbyClosed broadcast, got %d", len(closed))
	}
	if lobby, _ := st.FindOrNone(context.Background(), "L1"); lobby != nil {
		t.Error("store record must be deleted on host departure")
	}
	if !registry.IsEmpty("L1") {
		t.Error("registry must be cleared on teardown")
	}
	if size := transport.roomSize("L1"); size != 0 {
		t.Errorf("remaining members must lose their room association, got %d", size)
	}
}

func TestLeave_NonHostBroadcastsRefreshedList(t *testing.T) {
	c, st, transport, _ := newTestCoordinator()

	mustJoin(t, c, "conn-1", joinReq("L1", "alice"))
	mustJoin(t, c, "conn-2", joinReq("L1", "bob"))

	if err := c.Leave(context.Background(), "conn-2"); err != nil {
		t.Fatalf("Leave returned error: %v", err)
	}

	ev := transport.lastBroadcast(t)
	if ev.Event != EventUserList {
		t.Fatalf("expected userList broadcast, got %q", ev.Event)
	}
	users := ev.Data.(UserList).Users
	if len(users) != 1 || users[0] != "alice" {
		t.Errorf("expected userList [alice], got %v", users)
	}

	if lobby, _ := st.FindOrNone(context.Background(), "L1"); lobby == nil {
		t.Error("lobby must remain active while the host is present")
	}
	if len(transport.eventsNamed(EventLobbyClosed)) != 0 {
		t.Error("no closure may be emitted for a non-final leave")
	}
}

func TestLeave_LastMemberClosesLobby(t *testing.T) {
	c, st, transport, _ := newTestCoordinator()

	// Durable membership reduced to a single non-host member, as after
	// the host record was removed through the external REST path.
	if _, err := st.Create(context.Background(), store.LobbyInit{
		LobbyID: "L1", Name: "Algorithms study group", ClassName: "CS101",
		School: "State University", Host: "alice", MaxUsers: 2,
	}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := st.AddUser(context.Background(), "L1", "bob"); err != nil {
		t.Fatalf("AddUser returned error: %v", err)
	}
	if _, err := st.RemoveUser(context.Background(), "L1", "alice"); err != nil {
		t.Fatalf("RemoveUser returned error: %v", err)
	}

	if err := c.Join(context.Background(), "conn-1", JoinRequest{LobbyID: "L1", Username: "bob"}); err != nil {
		t.Fatalf("Join returned error: %v", err)
	}

	if err := c.Leave(context.Background(), "conn-1"); err != nil {
		t.Fatalf("Leave returned error: %v", err)
	}

	if closed := transport.eventsNamed(EventLobbyClosed); len(closed) != 1 {
		t.Fatalf("expected exactly one lobbyClosed broadcast, got %d", len(closed))
	}
	if lobby, _ := st.FindOrNone(context.Background(), "L1"); lobby != nil {
		t.Error("store record must be deleted when the last member leaves")
	}
}

func TestLeave_DisconnectWithoutJoinIsNoop(t *testing.T) {
	c, _, transport, _ := newTestCoordinator()

	if err := c.Leave(context.Background(), "never-joined"); err != nil {
		t.Fatalf("Leave for unknown connection returned error: %v", err)
	}
	if len(transport.broadcasts) != 0 {
		t.Errorf("expected no broadcasts, got %v", transport.broadcasts)
	}
}

func TestLeave_SecondLeaveAbsorbed(t *testing.T) {
	c, _, transport, _ := newTestCoordinator()

	mustJoin(t, c, "conn-1", joinReq("L1", "alice"))

	if err := c.Leave(context.Background(), "conn-1"); err != nil {
		t.Fatalf("first Leave returned error: %v", err)
	}
	// Disconnect fires after the explicit leave was already processed.
	if err := c.Leave(context.Background(), "conn-1"); err != nil {
		t.Fatalf("second Leave returned error: %v", err)
	}

	if closed := transport.eventsNamed(EventLobbyClosed); len(closed) != 1 {
		t.Errorf("closure must never be double-delivered, got %d", len(closed))
	}
}

// End-to-end lifecycle: create, join, chat, host disconnect.
func TestLobbyLifecycleScenario(t *testing.T) {
	c, st, transport, _ := newTestCoordinator()

	mustJoin(t, c, "conn-alice", joinReq("L1", "alice"))
	mustJoin(t, c, "conn-bob", joinReq("L1", "bob"))

	lists := transport.eventsNamed(EventUserList)
	if len(lists) != 2 {
		t.Fatalf("expected 2 userList broadcasts, got %d", len(lists))
	}
	second := lists[1].Data.(UserList).Users
	if len(second) != 2 || second[0] != "alice" || second[1] != "bob" {
		t.Errorf("expected userList [alice bob], got %v", second)
	}

	if err := c.Message(context.Background(), "L1", "bob", "hi"); err != nil {
		t.Fatalf("Message returned error: %v", err)
	}
	msgs := transport.eventsNamed(EventReceiveMessage)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 receiveMessage broadcast, got %d", len(msgs))
	}

	if err := c.Leave(context.Background(), "conn-alice"); err != nil {
		t.Fatalf("host disconnect returned error: %v", err)
	}
	if closed := transport.eventsNamed(EventLobbyClosed); len(closed) != 1 {
		t.Fatalf("expected one lobbyClosed broadcast, got %d", len(closed))
	}
	if lobby, _ := st.FindOrNone(context.Background(), "L1"); lobby != nil {
		t.Error("store must no longer contain the lobby")
	}
}
