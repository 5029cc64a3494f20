package connection

import (
	"fmt"
	"sync"
	"time"
)

// Sender is the outbound side of a live dashboard connection.
// Send must not block; it returns false when the message could not be queued.
type Sender interface {
	Send(msg []byte) bool
	Close()
}

// ClientInfo holds information about a connected dashboard
type ClientInfo struct {
	ConnectionID  string
	UserID        string
	RemoteAddr    string
	ConnectedAt   time.Time
	LastHeardFrom time.Time
	Sender        Sender
	mu            sync.RWMutex
}

// UpdateLastHeardFrom updates the last activity timestamp
func (c *ClientInfo) UpdateLastHeardFrom() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastHeardFrom = time.Now()
}

// GetLastHeardFrom returns the last activity timestamp
func (c *ClientInfo) GetLastHeardFrom() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.LastHeardFrom
}

// Manager tracks live connections by connection id, indexed by user
type Manager struct {
	clients  map[string]*ClientInfo // key: connection_id
	byUser   map[string][]string    // key: user_id, value: []connection_id
	mu       sync.RWMutex
	maxConns int
}

// NewManager creates a new connection manager
func NewManager(maxConnections int) *Manager {
	return &Manager{
		clients:  make(map[string]*ClientInfo),
		byUser:   make(map[string][]string),
		maxConns: maxConnections,
	}
}

// Register adds a new connection for a user
func (m *Manager) Register(connectionID, userID, remoteAddr string, sender Sender) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.clients) >= m.maxConns {
		return ErrMaxConnectionsReached
	}

	if _, exists := m.clients[connectionID]; exists {
		return fmt.Errorf("connection ID %s already registered", connectionID)
	}

	now := time.Now()
	m.clients[connectionID] = &ClientInfo{
		ConnectionID:  connectionID,
		UserID:        userID,
		RemoteAddr:    remoteAddr,
		ConnectedAt:   now,
		LastHeardFrom: now,
		Sender:        sender,
	}
	m.byUser[userID] = append(m.byUser[userID], connectionID)

	return nil
}

// Unregister removes a connection and returns what was registered under it
func (m *Manager) Unregister(connectionID string) (*ClientInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, exists := m.clients[connectionID]
	if !exists {
		return nil, ErrConnectionNotFound
	}

	userID := client.UserID
	if connIDs, ok := m.byUser[userID]; ok {
		for i, id := range connIDs {
			if id == connectionID {
				m.byUser[userID] = append(connIDs[:i], connIDs[i+1:]...)
				break
			}
		}
		if len(m.byUser[userID]) == 0 {
			delete(m.byUser, userID)
		}
	}

	delete(m.clients, connectionID)

	return client, nil
}

// Get retrieves client information by connection ID
func (m *Manager) Get(connectionID string) (*ClientInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	client, exists := m.clients[connectionID]
	return client, exists
}

// GetByUser returns the connections currently open for a user
func (m *Manager) GetByUser(userID string) []*ClientInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	connIDs := m.byUser[userID]
	result := make([]*ClientInfo, 0, len(connIDs))
	for _, id := range connIDs {
		result = append(result, m.clients[id])
	}
	return result
}

// UpdateActivity updates the last heard from timestamp for a connection
func (m *Manager) UpdateActivity(connectionID string) error {
	m.mu.RLock()
	client, exists := m.clients[connectionID]
	m.mu.RUnlock()

	if !exists {
		return ErrConnectionNotFound
	}

	client.UpdateLastHeardFrom()
	return nil
}

// GetInactiveConnections returns connection IDs that haven't been heard from in the given duration
func (m *Manager) GetInactiveConnections(timeout time.Duration) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var inactive []string

	for connID, client := range m.clients {
		if now.Sub(client.GetLastHeardFrom()) > timeout {
			inactive = append(inactive, connID)
		}
	}

	return inactive
}

// Count returns the total number of active connections
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// GetAllConnections returns all connection IDs
func (m *Manager) GetAllConnections() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	connIDs := make([]string, 0, len(m.clients))
	for connID := range m.clients {
		connIDs = append(connIDs, connID)
	}
	return connIDs
}

// Stats returns statistics about the connection manager
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return ManagerStats{
		TotalConnections: len(m.clients),
		UniqueUsers:      len(m.byUser),
		MaxConnections:   m.maxConns,
	}
}

// ManagerStats contains statistics about the connection manager
type ManagerStats struct {
	TotalConnections int `json:"totalConnections"`
	UniqueUsers      int `json:"uniqueUsers"`
	MaxConnections   int `json:"maxConnections"`
}

var (
	ErrMaxConnectionsReached = &ConnectionError{"maximum connections reached"}
	ErrConnectionNotFound    = &ConnectionError{"connection not found"}
)

// ConnectionError represents a connection error
type ConnectionError struct {
	msg string
}

func (e *ConnectionError) Error() string {
	return e.msg
}
