package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smukkama/sentinel-server/internal/database"
	"github.com/smukkama/sentinel-server/internal/export"
)

// AlertStore is the persistence used by AlertService
type AlertStore interface {
	ListActiveAlerts(ctx context.Context, userID uuid.UUID) ([]*database.Alert, error)
	ListAlerts(ctx context.Context, userID uuid.UUID, limit int) ([]*database.Alert, error)
	ListAllAlerts(ctx context.Context, limit int) ([]*database.Alert, error)
	ResolveAlert(ctx context.Context, userID, alertID uuid.UUID, at time.Time) (*database.Alert, error)
}

// AlertService reads and resolves alerts
type AlertService struct {
	store  AlertStore
	logger *zap.Logger
	now    func() time.Time
}

func NewAlertService(store AlertStore, logger *zap.Logger) *AlertService {
	return &AlertService{store: store, logger: logger, now: time.Now}
}

// Active returns the user's unresolved alerts, newest first
func (s *AlertService) Active(ctx context.Context, userID uuid.UUID) ([]*database.Alert, error) {
	return s.store.ListActiveAlerts(ctx, userID)
}

// All returns the user's alerts regardless of state, newest first
func (s *AlertService) All(ctx context.Context, userID uuid.UUID, limit int) ([]*database.Alert, error) {
	return s.store.ListAlerts(ctx, userID, limit)
}

// Resolve marks an alert resolved. Resolving twice keeps the first
// resolution time. Alerts owned by someone else yield database.ErrNotFound.
func (s *AlertService) Resolve(ctx context.Context, userID, alertID uuid.UUID) (*database.Alert, error) {
	alert, err := s.store.ResolveAlert(ctx, userID, alertID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.logger.Info("Alert resolved",
		zap.String("alert_id", alertID.String()),
		zap.String("user_id", userID.String()))
	return alert, nil
}

// ExportCrew renders the newest alerts across the crew as an XLSX workbook
func (s *AlertService) ExportCrew(ctx context.Context, limit int) ([]byte, error) {
	alerts, err := s.store.ListAllAlerts(ctx, limit)
	if err != nil {
		return nil, err
	}

	data, err := export.AlertsWorkbook(alerts)
	if err != nil {
		return nil, fmt.Errorf("failed to export alerts: %w", err)
	}
	return data, nil
}
