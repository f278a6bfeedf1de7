package ws

import (
	"context"
	"encoding/json"
	"testing"

	"studybuddy/backend/internal/hub"
	"studybuddy/backend/internal/presence"
	"studybuddy/backend/internal/session"
	"studybuddy/backend/internal/store"
)

func newTestClient() (*Client, *hub.Hub, *store.MemoryStore) {
	st := store.NewMemoryStore()
	h := hub.New()
	coordinator := presence.NewCoordinator(session.NewRegistry(), st, h)
	client := NewClient(nil, h, coordinator)
	h.Register(client.ConnID(), client.SendChan())
	return client, h, st
}

func received(t *testing.T, c *Client) []hub.Event {
	t.Helper()
	var events []hub.Event
	for {
		select {
		case raw := <-c.SendChan():
			var ev hub.Event
			if err := json.Unmarshal(raw, &ev); err != nil {
				t.Fatalf("failed to decode event: %v", err)
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestDispatch_JoinLobbyRoundTrip(t *testing.T) {
	client, _, st := newTestClient()

	client.dispatch([]byte(`{"event":"joinLobby","data":{"lobbyId":"L1","username":"alice","name":"Algorithms","className":"CS101","school":"State University","maxUsers":2}}`))

	events := received(t, client)
	if len(events) != 1 || events[0].Event != presence.EventUserList {
		t.Fatalf("expected one userList event, got %v", events)
	}

	lobby, err := st.FindOrNone(context.Background(), "L1")
	if err != nil || lobby == nil {
		t.Fatalf("expected lobby created via dispatch, got %v, %v", lobby, err)
	}
}

func TestDispatch_SendMessageRoundTrip(t *testing.T) {
	client, _, _ := newTestClient()

	client.dispatch([]byte(`{"event":"joinLobby","data":{"lobbyId":"L1","username":"alice","name":"Algorithms","className":"CS101","school":"State University","maxUsers":2}}`))
	client.dispatch([]byte(`{"event":"sendMessage","data":{"lobbyId":"L1","username":"alice","message":"hi"}}`))

	events := received(t, client)
	if len(events) != 2 || events[1].Event != presence.EventReceiveMessage {
		t.Fatalf("expected userList then receiveMessage, got %v", events)
	}
}

func TestDispatch_ErrorsGoToTriggeringConnectionOnly(t *testing.T) {
	client, h, _ := newTestClient()

	other := NewClient(nil, h, client.coordinator)
	h.Register(other.ConnID(), other.SendChan())

	// Join for a nonexistent lobby without creation fields.
	client.dispatch([]byte(`{"event":"joinLobby","data":{"lobbyId":"L1","username":"alice"}}`))

	events := received(t, client)
	if len(events) != 1 || events[0].Event != presence.EventError {
		t.Fatalf("expected one error event, got %v", events)
	}
	if otherEvents := received(t, other); len(otherEvents) != 0 {
		t.Errorf("other connections must not see the error, got %v", otherEvents)
	}
}

func TestDispatch_MalformedAndUnknownEvents(t *testing.T) {
	client, _, _ := newTestClient()

	client.dispatch([]byte(`not json`))
	client.dispatch([]byte(`{"event":"selfDestruct","data":{}}`))

	events := received(t, client)
	if len(events) != 2 {
		t.Fatalf("expected 2 error events, got %v", events)
	}
	for _, ev := range events {
		if ev.Event != presence.EventError {
			t.Errorf("expected error event, got %q", ev.Event)
		}
	}
}

func TestDispatch_LeaveLobby(t *testing.T) {
	client, _, st := newTestClient()

	client.dispatch([]byte(`{"event":"joinLobby","data":{"lobbyId":"L1","username":"alice","name":"Algorithms","className":"CS101","school":"State University","maxUsers":2}}`))
	client.dispatch([]byte(`{"event":"leaveLobby","data":{"lobbyId":"L1"}}`))

	// Host left, so the lobby is gone.
	lobby, err := st.FindOrNone(context.Background(), "L1")
	if err != nil {
		t.Fatalf("FindOrNone returned error: %v", err)
	}
	if lobby != nil {
		t.Errorf("expected lobby closed after host leave, got %+v", lobby)
	}
}
