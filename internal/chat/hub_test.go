package chat

import (
	"testing"
	"time"

	"github.com/stylevault/backend/internal/stylist"
)

func newTestClient(hub *Hub, sessionID string) *Client {
	return &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan *Event, sendBufferSize),
	}
}

func waitForClients(t *testing.T, hub *Hub, sessionID string, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount(sessionID) == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected %d clients for session %s, got %d", want, sessionID, hub.ClientCount(sessionID))
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub, "session-1")
	hub.register <- client
	waitForClients(t, hub, "session-1", 1)

	hub.unregister <- client
	waitForClients(t, hub, "session-1", 0)

	// send channel is closed on unregister
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected send channel to be closed")
		}
	case <-time.After(time.Second):
		t.Error("send channel was not closed")
	}
}

func TestHub_BroadcastReachesOnlyItsSession(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	subscriber := newTestClient(hub, "session-1")
	bystander := newTestClient(hub, "session-2")
	hub.register <- subscriber
	hub.register <- bystander
	waitForClients(t, hub, "session-1", 1)
	waitForClients(t, hub, "session-2", 1)

	hub.Broadcast(&Event{
		Type:      "message",
		SessionID: "session-1",
		Role:      stylist.RoleAssistant,
		Content:   "try the linen shirt",
	})

	select {
	case event := <-subscriber.send:
		if event.Content != "try the linen shirt" {
			t.Errorf("unexpected event content %q", event.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the event")
	}

	select {
	case event := <-bystander.send:
		t.Errorf("bystander received event for another session: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_FullBufferDropsEvent(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{hub: hub, sessionID: "session-1", send: make(chan *Event)}
	hub.register <- client
	waitForClients(t, hub, "session-1", 1)

	// Nobody reads client.send; the broadcast must not block the hub.
	hub.Broadcast(&Event{Type: "message", SessionID: "session-1"})
	hub.Broadcast(&Event{Type: "message", SessionID: "session-1"})

	waitForClients(t, hub, "session-1", 1)
}
