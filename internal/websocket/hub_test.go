package websocket

import (
	"encoding/json"
	"log/slog"
	"testing"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, householdID int64) *Client {
	return &Client{
		hub:         hub,
		conn:        nil,
		householdID: householdID,
		send:        make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 2)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcastScopedToHousehold(t *testing.T) {
	hub := NewHub(slog.Default())

	same := mockClient(hub, 1)
	other := mockClient(hub, 2)
	hub.Register(same)
	hub.Register(other)

	hub.Broadcast(1, NewMessage("stock_account", "updated", 7, nil))

	select {
	case data := <-same.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != "stock_account_updated" {
			t.Errorf("Type = %q, want stock_account_updated", msg.Type)
		}
		if msg.ID != 7 {
			t.Errorf("ID = %d, want 7", msg.ID)
		}
	default:
		t.Fatal("expected message for same-household client")
	}

	select {
	case <-other.send:
		t.Fatal("message leaked to another household")
	default:
	}
}

func TestBroadcastZeroReachesAllHouseholds(t *testing.T) {
	hub := NewHub(slog.Default())

	a := mockClient(hub, 1)
	b := mockClient(hub, 2)
	hub.Register(a)
	hub.Register(b)

	hub.Broadcast(0, NewMessage("backup", "running", 0, nil))

	for _, c := range []*Client{a, b} {
		select {
		case <-c.send:
		default:
			t.Fatalf("client in household %d missed global broadcast", c.householdID)
		}
	}
}

func TestBroadcastFullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, 1)
	hub.Register(c)

	// Fill the buffer, then one more; Broadcast must not block.
	for i := 0; i < sendBufferSize+5; i++ {
		hub.Broadcast(1, NewMessage("misc_asset", "created", int64(i), nil))
	}

	if got := len(c.send); got != sendBufferSize {
		t.Fatalf("expected %d buffered messages, got %d", sendBufferSize, got)
	}
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("household_member", "removed", 3, map[string]any{"household_id": 1})
	if msg.Type != "household_member_removed" {
		t.Errorf("Type = %q, want household_member_removed", msg.Type)
	}
	if msg.Entity != "household_member" || msg.Action != "removed" {
		t.Errorf("Entity/Action = %q/%q", msg.Entity, msg.Action)
	}
}
