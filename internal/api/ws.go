package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smukkama/sentinel-server/internal/connection"
	"github.com/smukkama/sentinel-server/internal/stream"
)

// handleStream upgrades an authenticated request to a dashboard stream
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "Live stream unavailable", nil)
		return
	}

	userID := currentUserID(r)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		s.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	client := stream.NewClient(connID, s.hub, conn, s.logger)
	if err := s.hub.Register(connID, userID.String(), r.RemoteAddr, client); err != nil {
		if errors.Is(err, connection.ErrMaxConnectionsReached) {
			s.logger.Warn("Rejecting dashboard connection", zap.String("user_id", userID.String()), zap.Error(err))
		}
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
