package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const alertColumns = `id, user_id, reading_id, reading_kind, anomaly_type, type, category,
	title, message, value, recommendation, resolved, resolved_at, timestamp`

func insertAlert(ctx context.Context, q querier, a *Alert) error {
	prepareReading(&a.ID, &a.Timestamp)

	query := `INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := q.ExecContext(ctx, query,
		a.ID, a.UserID, a.ReadingID, a.ReadingKind, a.AnomalyType, a.Type, a.Category,
		a.Title, a.Message, a.Value, a.Recommendation, a.Resolved, a.ResolvedAt, a.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// InsertAlert stores an alert outside a transaction
func (db *DB) InsertAlert(ctx context.Context, a *Alert) error {
	return insertAlert(ctx, db.DB, a)
}

// ListActiveAlerts returns a user's unresolved alerts, newest first
func (db *DB) ListActiveAlerts(ctx context.Context, userID uuid.UUID) ([]*Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts
		WHERE user_id = $1 AND resolved = false
		ORDER BY timestamp DESC`
	return db.queryAlerts(ctx, query, userID)
}

// ListAlerts returns a user's alerts regardless of state, newest first
func (db *DB) ListAlerts(ctx context.Context, userID uuid.UUID, limit int) ([]*Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts
		WHERE user_id = $1
		ORDER BY timestamp DESC LIMIT $2`
	return db.queryAlerts(ctx, query, userID, limit)
}

// ListAllAlerts returns alerts across the whole crew, newest first
func (db *DB) ListAllAlerts(ctx context.Context, limit int) ([]*Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts
		ORDER BY timestamp DESC LIMIT $1`
	return db.queryAlerts(ctx, query, limit)
}

// ResolveAlert marks a user's alert resolved. The first resolution time is
// kept when the alert is resolved again. Unknown or foreign alerts yield
// ErrNotFound.
func (db *DB) ResolveAlert(ctx context.Context, userID, alertID uuid.UUID, at time.Time) (*Alert, error) {
	query := `
		UPDATE alerts
		SET resolved = true, resolved_at = COALESCE(resolved_at, $3)
		WHERE id = $1 AND user_id = $2
		RETURNING ` + alertColumns

	a, err := scanAlert(db.QueryRowContext(ctx, query, alertID, userID, at))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve alert: %w", err)
	}
	return a, nil
}

func (db *DB) queryAlerts(ctx context.Context, query string, args ...any) ([]*Alert, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []*Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func scanAlert(row rowScanner) (*Alert, error) {
	var a Alert
	err := row.Scan(&a.ID, &a.UserID, &a.ReadingID, &a.ReadingKind, &a.AnomalyType, &a.Type,
		&a.Category, &a.Title, &a.Message, &a.Value, &a.Recommendation, &a.Resolved,
		&a.ResolvedAt, &a.Timestamp)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
