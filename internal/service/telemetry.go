package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smukkama/sentinel-server/internal/anomaly"
	"github.com/smukkama/sentinel-server/internal/cache"
	"github.com/smukkama/sentinel-server/internal/database"
	"github.com/smukkama/sentinel-server/internal/protocol"
)

const publishTimeout = 5 * time.Second

// ReadingStore is the persistence used by TelemetryService
type ReadingStore interface {
	WithTx(ctx context.Context, fn func(database.ReadingWriter) error) error
	ListHealthReadings(ctx context.Context, userID uuid.UUID, limit int) ([]*database.HealthReading, error)
	LatestHealthReading(ctx context.Context, userID uuid.UUID) (*database.HealthReading, error)
	ListSystemReadings(ctx context.Context, userID uuid.UUID, limit int) ([]*database.SystemReading, error)
	LatestSystemReading(ctx context.Context, userID uuid.UUID) (*database.SystemReading, error)
	ListHealthHistory(ctx context.Context, userID uuid.UUID, since time.Time) ([]*database.HealthHourly, error)
}

// ReadingCache holds the latest reading per user. Setters never replace a
// cached reading with an older one.
type ReadingCache interface {
	SetLatestVitals(ctx context.Context, r *database.HealthReading) (cache.WriteResult, error)
	LatestVitals(ctx context.Context, userID uuid.UUID) (*database.HealthReading, error)
	SetLatestSystem(ctx context.Context, r *database.SystemReading) (cache.WriteResult, error)
	LatestSystem(ctx context.Context, userID uuid.UUID) (*database.SystemReading, error)
}

// Broadcaster pushes frames to a user's live dashboards
type Broadcaster interface {
	Publish(userID uuid.UUID, kind protocol.FrameType, payload any)
}

// AlertPublisher forwards alerts to the notification pipeline
type AlertPublisher interface {
	PublishAlerts(ctx context.Context, alerts []*protocol.AlertNotification) error
}

// HealthResult is the outcome of ingesting a health reading
type HealthResult struct {
	Reading   *database.HealthReading
	Anomalies []anomaly.Anomaly
	Alerts    []*database.Alert
}

// SystemResult is the outcome of ingesting a system reading
type SystemResult struct {
	Reading   *database.SystemReading
	Anomalies []anomaly.Anomaly
	Alerts    []*database.Alert
}

// TelemetryService persists readings, classifies them and fans out alerts.
// cache, hub and publisher are optional.
type TelemetryService struct {
	store     ReadingStore
	cache     ReadingCache
	hub       Broadcaster
	publisher AlertPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewTelemetryService(store ReadingStore, cache ReadingCache, hub Broadcaster, publisher AlertPublisher, logger *zap.Logger) *TelemetryService {
	return &TelemetryService{
		store:     store,
		cache:     cache,
		hub:       hub,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// IngestHealth stores a health reading and one alert per anomaly in a single
// transaction. A zero at means now.
func (s *TelemetryService) IngestHealth(ctx context.Context, userID uuid.UUID, in anomaly.HealthReading, at time.Time) (*HealthResult, error) {
	if at.IsZero() {
		at = s.now()
	}
	result := &HealthResult{
		Reading: &database.HealthReading{UserID: userID, HealthReading: in, Timestamp: at.UTC()},
	}

	err := s.store.WithTx(ctx, func(tx database.ReadingWriter) error {
		if err := tx.InsertHealthReading(ctx, result.Reading); err != nil {
			return err
		}

		result.Anomalies = anomaly.DetectHealth(in)
		alerts, err := insertAlerts(ctx, tx, userID, result.Reading.ID, database.ReadingKindHealth,
			anomaly.CategoryHealth, result.Anomalies, result.Reading.Timestamp)
		result.Alerts = alerts
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ingest health reading: %w", err)
	}

	s.cacheVitals(ctx, result.Reading)
	s.fanOut(ctx, userID, protocol.FrameHealthReading, result.Reading, result.Alerts)

	return result, nil
}

// IngestSystem stores a cabin snapshot and one alert per anomaly in a single
// transaction. A zero at means now.
func (s *TelemetryService) IngestSystem(ctx context.Context, userID uuid.UUID, in anomaly.SystemReading, at time.Time) (*SystemResult, error) {
	if at.IsZero() {
		at = s.now()
	}
	result := &SystemResult{
		Reading: &database.SystemReading{UserID: userID, SystemReading: in, Timestamp: at.UTC()},
	}

	err := s.store.WithTx(ctx, func(tx database.ReadingWriter) error {
		if err := tx.InsertSystemReading(ctx, result.Reading); err != nil {
			return err
		}

		result.Anomalies = anomaly.DetectSystem(in)
		alerts, err := insertAlerts(ctx, tx, userID, result.Reading.ID, database.ReadingKindSystem,
			anomaly.CategorySystem, result.Anomalies, result.Reading.Timestamp)
		result.Alerts = alerts
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ingest system reading: %w", err)
	}

	s.cacheSystem(ctx, result.Reading)
	s.fanOut(ctx, userID, protocol.FrameSystemReading, result.Reading, result.Alerts)

	return result, nil
}

// cacheVitals records an ingested reading as the latest one. When the key was
// cold the reading may be backdated, so the newest persisted row is cached too.
func (s *TelemetryService) cacheVitals(ctx context.Context, r *database.HealthReading) {
	if s.cache == nil {
		return
	}
	res, err := s.cache.SetLatestVitals(ctx, r)
	if err != nil {
		s.logger.Warn("Failed to cache vitals", zap.String("user_id", r.UserID.String()), zap.Error(err))
		return
	}
	if res != cache.Created {
		return
	}

	latest, err := s.store.LatestHealthReading(ctx, r.UserID)
	if err != nil {
		s.logger.Warn("Failed to load latest vitals", zap.String("user_id", r.UserID.String()), zap.Error(err))
		return
	}
	if latest.ID == r.ID {
		return
	}
	if _, err := s.cache.SetLatestVitals(ctx, latest); err != nil {
		s.logger.Warn("Failed to cache vitals", zap.String("user_id", r.UserID.String()), zap.Error(err))
	}
}

func (s *TelemetryService) cacheSystem(ctx context.Context, r *database.SystemReading) {
	if s.cache == nil {
		return
	}
	res, err := s.cache.SetLatestSystem(ctx, r)
	if err != nil {
		s.logger.Warn("Failed to cache system status", zap.String("user_id", r.UserID.String()), zap.Error(err))
		return
	}
	if res != cache.Created {
		return
	}

	latest, err := s.store.LatestSystemReading(ctx, r.UserID)
	if err != nil {
		s.logger.Warn("Failed to load latest system status", zap.String("user_id", r.UserID.String()), zap.Error(err))
		return
	}
	if latest.ID == r.ID {
		return
	}
	if _, err := s.cache.SetLatestSystem(ctx, latest); err != nil {
		s.logger.Warn("Failed to cache system status", zap.String("user_id", r.UserID.String()), zap.Error(err))
	}
}

func insertAlerts(ctx context.Context, tx database.ReadingWriter, userID, readingID uuid.UUID, kind string,
	defaultCategory anomaly.Category, anomalies []anomaly.Anomaly, at time.Time) ([]*database.Alert, error) {

	alerts := make([]*database.Alert, 0, len(anomalies))
	for _, a := range anomalies {
		category := a.Category
		if category == "" {
			category = defaultCategory
		}
		value := a.Value

		alert := &database.Alert{
			UserID:         userID,
			ReadingID:      readingID,
			ReadingKind:    kind,
			AnomalyType:    string(a.Type),
			Type:           string(a.Severity),
			Category:       string(category),
			Title:          a.Title,
			Message:        a.Message,
			Value:          &value,
			Recommendation: anomaly.Recommendation(a.Type),
			Timestamp:      at,
		}
		if err := tx.InsertAlert(ctx, alert); err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// fanOut runs after commit; failures are logged only
func (s *TelemetryService) fanOut(ctx context.Context, userID uuid.UUID, kind protocol.FrameType, reading any, alerts []*database.Alert) {
	if s.hub != nil {
		s.hub.Publish(userID, kind, reading)
		for _, alert := range alerts {
			s.hub.Publish(userID, protocol.FrameAlert, alert)
		}
	}

	if s.publisher == nil || len(alerts) == 0 {
		return
	}

	notifications := make([]*protocol.AlertNotification, 0, len(alerts))
	for _, alert := range alerts {
		notifications = append(notifications, toNotification(alert))
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishAlerts(pubCtx, notifications); err != nil {
		s.logger.Error("Failed to publish alerts",
			zap.String("user_id", userID.String()),
			zap.Int("count", len(notifications)),
			zap.Error(err))
	}
}

func toNotification(a *database.Alert) *protocol.AlertNotification {
	return &protocol.AlertNotification{
		AlertID:        a.ID.String(),
		UserID:         a.UserID.String(),
		ReadingID:      a.ReadingID.String(),
		ReadingKind:    a.ReadingKind,
		AnomalyType:    a.AnomalyType,
		Severity:       a.Type,
		Category:       a.Category,
		Title:          a.Title,
		Message:        a.Message,
		Value:          a.Value,
		Recommendation: a.Recommendation,
		Timestamp:      a.Timestamp,
	}
}

// HealthReadings lists recent vitals, newest first
func (s *TelemetryService) HealthReadings(ctx context.Context, userID uuid.UUID, limit int) ([]*database.HealthReading, error) {
	return s.store.ListHealthReadings(ctx, userID, limit)
}

// LatestVitals serves the cached reading when present and falls back to the
// database. Returns database.ErrNotFound when the user has no readings.
func (s *TelemetryService) LatestVitals(ctx context.Context, userID uuid.UUID) (*database.HealthReading, error) {
	if s.cache != nil {
		r, err := s.cache.LatestVitals(ctx, userID)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("Vitals cache read failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}

	r, err := s.store.LatestHealthReading(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if _, err := s.cache.SetLatestVitals(ctx, r); err != nil {
			s.logger.Warn("Failed to cache vitals", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
	return r, nil
}

// HealthHistory returns hourly averages covering the last hours
func (s *TelemetryService) HealthHistory(ctx context.Context, userID uuid.UUID, hours int) ([]*database.HealthHourly, error) {
	since := s.now().UTC().Add(-time.Duration(hours) * time.Hour).Truncate(time.Hour)
	return s.store.ListHealthHistory(ctx, userID, since)
}

// SystemReadings lists recent cabin snapshots, newest first
func (s *TelemetryService) SystemReadings(ctx context.Context, userID uuid.UUID, limit int) ([]*database.SystemReading, error) {
	return s.store.ListSystemReadings(ctx, userID, limit)
}

// SystemStatus returns the newest cabin snapshot, cache first
func (s *TelemetryService) SystemStatus(ctx context.Context, userID uuid.UUID) (*database.SystemReading, error) {
	if s.cache != nil {
		r, err := s.cache.LatestSystem(ctx, userID)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("System cache read failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}

	r, err := s.store.LatestSystemReading(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if _, err := s.cache.SetLatestSystem(ctx, r); err != nil {
			s.logger.Warn("Failed to cache system status", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
	return r, nil
}
