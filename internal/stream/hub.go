package stream

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smukkama/sentinel-server/internal/connection"
	"github.com/smukkama/sentinel-server/internal/protocol"
)

// ErrHubStopped is returned when registering after the hub has shut down
var ErrHubStopped = errors.New("stream hub stopped")

type registration struct {
	connectionID string
	userID       string
	remoteAddr   string
	sender       connection.Sender
	result       chan error
}

type outbound struct {
	userID string
	data   []byte
}

// Hub fans dashboard frames out to the connections of the owning user.
// Register, unregister and delivery are serialized on the Run loop.
type Hub struct {
	manager    *connection.Manager
	logger     *zap.Logger
	register   chan registration
	unregister chan string
	broadcast  chan outbound
	done       chan struct{}

	idleTimeout time.Duration
	now         func() time.Time
}

// NewHub creates a hub backed by the given connection registry.
// Connections silent for longer than idleTimeout are evicted.
func NewHub(manager *connection.Manager, logger *zap.Logger, idleTimeout time.Duration) *Hub {
	if idleTimeout <= 0 {
		idleTimeout = IdleTimeout
	}
	return &Hub{
		manager:     manager,
		logger:      logger,
		register:    make(chan registration),
		unregister:  make(chan string, 64),
		broadcast:   make(chan outbound, 256),
		done:        make(chan struct{}),
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Run processes hub events until ctx is cancelled, then closes every
// remaining connection.
func (h *Hub) Run(ctx context.Context) {
	sweep := time.NewTicker(h.idleTimeout / 2)
	defer sweep.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, id := range h.manager.GetAllConnections() {
				h.drop(id, "shutdown")
			}
			return

		case reg := <-h.register:
			err := h.manager.Register(reg.connectionID, reg.userID, reg.remoteAddr, reg.sender)
			if err == nil {
				h.logger.Debug("Dashboard connected",
					zap.String("connection_id", reg.connectionID),
					zap.String("user_id", reg.userID))
			}
			reg.result <- err

		case id := <-h.unregister:
			h.drop(id, "closed")

		case msg := <-h.broadcast:
			for _, client := range h.manager.GetByUser(msg.userID) {
				if !client.Sender.Send(msg.data) {
					h.drop(client.ConnectionID, "slow consumer")
				}
			}

		case <-sweep.C:
			for _, id := range h.manager.GetInactiveConnections(h.idleTimeout) {
				h.drop(id, "idle")
			}
		}
	}
}

func (h *Hub) drop(connectionID, reason string) {
	client, err := h.manager.Unregister(connectionID)
	if err != nil {
		return
	}
	client.Sender.Close()
	h.logger.Debug("Dashboard disconnected",
		zap.String("connection_id", connectionID),
		zap.String("user_id", client.UserID),
		zap.String("reason", reason))
}

// Register adds a connection for userID. It fails with
// connection.ErrMaxConnectionsReached when the registry is full.
func (h *Hub) Register(connectionID, userID, remoteAddr string, sender connection.Sender) error {
	reg := registration{
		connectionID: connectionID,
		userID:       userID,
		remoteAddr:   remoteAddr,
		sender:       sender,
		result:       make(chan error, 1),
	}

	select {
	case h.register <- reg:
	case <-h.done:
		return ErrHubStopped
	}
	return <-reg.result
}

// Unregister removes a connection. Unknown ids are ignored.
func (h *Hub) Unregister(connectionID string) {
	select {
	case h.unregister <- connectionID:
	case <-h.done:
	}
}

// Touch records activity on a connection
func (h *Hub) Touch(connectionID string) {
	_ = h.manager.UpdateActivity(connectionID)
}

// Publish sends a frame to every connection of userID. It never blocks: when
// the hub is backed up the frame is dropped and logged.
func (h *Hub) Publish(userID uuid.UUID, kind protocol.FrameType, payload any) {
	data, err := protocol.EncodeFrame(&protocol.Frame{
		Type:      kind,
		Payload:   payload,
		Timestamp: h.now().UTC(),
	})
	if err != nil {
		h.logger.Error("Failed to encode frame", zap.String("type", string(kind)), zap.Error(err))
		return
	}

	select {
	case h.broadcast <- outbound{userID: userID.String(), data: data}:
	default:
		h.logger.Warn("Stream hub backlog full, dropping frame",
			zap.String("user_id", userID.String()),
			zap.String("type", string(kind)))
	}
}

// Stats reports registry counts
func (h *Hub) Stats() connection.ManagerStats {
	return h.manager.Stats()
}
