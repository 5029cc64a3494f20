package connection

import (
	"errors"
	"testing"
	"time"
)

type mockSender struct {
	sent   [][]byte
	closed bool
}

func (m *mockSender) Send(msg []byte) bool {
	m.sent = append(m.sent, msg)
	return true
}

func (m *mockSender) Close() { m.closed = true }

func TestManager_Register(t *testing.T) {
	m := NewManager(10)

	err := m.Register("conn1", "user-a", "127.0.0.1:5001", &mockSender{})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if m.Count() != 1 {
		t.Errorf("Expected 1 connection, got %d", m.Count())
	}

	client, exists := m.Get("conn1")
	if !exists {
		t.Fatal("Client not found")
	}

	if client.UserID != "user-a" {
		t.Errorf("Expected user-a, got %s", client.UserID)
	}

	if err := m.Register("conn1", "user-a", "127.0.0.1:5001", &mockSender{}); err == nil {
		t.Error("Expected duplicate connection ID to fail")
	}
}

func TestManager_RegisterMaxConnections(t *testing.T) {
	m := NewManager(2)

	m.Register("conn1", "user-a", "", &mockSender{})
	m.Register("conn2", "user-b", "", &mockSender{})

	err := m.Register("conn3", "user-c", "", &mockSender{})
	if !errors.Is(err, ErrMaxConnectionsReached) {
		t.Errorf("Expected ErrMaxConnectionsReached, got %v", err)
	}
}

func TestManager_Unregister(t *testing.T) {
	m := NewManager(10)

	m.Register("conn1", "user-a", "", &mockSender{})
	m.Register("conn2", "user-a", "", &mockSender{})

	client, err := m.Unregister("conn1")
	if err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}
	if client.ConnectionID != "conn1" {
		t.Errorf("Expected conn1, got %s", client.ConnectionID)
	}

	if m.Count() != 1 {
		t.Errorf("Expected 1 connection, got %d", m.Count())
	}

	if got := len(m.GetByUser("user-a")); got != 1 {
		t.Errorf("Expected 1 connection for user, got %d", got)
	}

	if _, err := m.Unregister("conn1"); !errors.Is(err, ErrConnectionNotFound) {
		t.Errorf("Expected ErrConnectionNotFound, got %v", err)
	}
}

func TestManager_GetByUser(t *testing.T) {
	m := NewManager(10)

	m.Register("conn1", "user-a", "", &mockSender{})
	m.Register("conn2", "user-a", "", &mockSender{})
	m.Register("conn3", "user-b", "", &mockSender{})

	if got := len(m.GetByUser("user-a")); got != 2 {
		t.Errorf("Expected 2 connections for user-a, got %d", got)
	}

	if got := len(m.GetByUser("user-b")); got != 1 {
		t.Errorf("Expected 1 connection for user-b, got %d", got)
	}

	if got := len(m.GetByUser("nobody")); got != 0 {
		t.Errorf("Expected no connections, got %d", got)
	}
}

func TestManager_UpdateActivity(t *testing.T) {
	m := NewManager(10)

	m.Register("conn1", "user-a", "", &mockSender{})

	client, _ := m.Get("conn1")
	firstHeard := client.GetLastHeardFrom()

	time.Sleep(10 * time.Millisecond)

	if err := m.UpdateActivity("conn1"); err != nil {
		t.Fatalf("UpdateActivity failed: %v", err)
	}

	if !client.GetLastHeardFrom().After(firstHeard) {
		t.Error("LastHeardFrom was not updated")
	}

	if err := m.UpdateActivity("missing"); !errors.Is(err, ErrConnectionNotFound) {
		t.Errorf("Expected ErrConnectionNotFound, got %v", err)
	}
}

func TestManager_GetInactiveConnections(t *testing.T) {
	m := NewManager(10)

	m.Register("conn1", "user-a", "", &mockSender{})
	m.Register("conn2", "user-b", "", &mockSender{})

	client1, _ := m.Get("conn1")
	client1.mu.Lock()
	client1.LastHeardFrom = time.Now().Add(-5 * time.Minute)
	client1.mu.Unlock()

	inactive := m.GetInactiveConnections(2 * time.Minute)
	if len(inactive) != 1 {
		t.Fatalf("Expected 1 inactive connection, got %d", len(inactive))
	}

	if inactive[0] != "conn1" {
		t.Errorf("Expected conn1 to be inactive, got %s", inactive[0])
	}
}

func TestManager_Stats(t *testing.T) {
	m := NewManager(100)

	m.Register("conn1", "user-a", "", &mockSender{})
	m.Register("conn2", "user-a", "", &mockSender{})
	m.Register("conn3", "user-b", "", &mockSender{})

	stats := m.Stats()
	if stats.TotalConnections != 3 {
		t.Errorf("Expected 3 connections, got %d", stats.TotalConnections)
	}
	if stats.UniqueUsers != 2 {
		t.Errorf("Expected 2 unique users, got %d", stats.UniqueUsers)
	}
	if stats.MaxConnections != 100 {
		t.Errorf("Expected max 100, got %d", stats.MaxConnections)
	}
}
