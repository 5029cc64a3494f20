package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const healthColumns = `id, user_id, heart_rate, spo2, systolic_bp, diastolic_bp, skin_temp, respiratory_rate, timestamp`

const systemColumns = `id, user_id, cabin_co2, cabin_o2, cabin_pressure, cabin_temp, cabin_humidity,
	power_consumption, water_reclamation_level, waste_management_level, timestamp`

func prepareReading(id *uuid.UUID, ts *time.Time) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	if ts.IsZero() {
		*ts = time.Now().UTC()
	}
}

func insertHealthReading(ctx context.Context, q querier, r *HealthReading) error {
	prepareReading(&r.ID, &r.Timestamp)

	query := `INSERT INTO health_readings (` + healthColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := q.ExecContext(ctx, query,
		r.ID, r.UserID, r.HeartRate, r.SpO2, r.SystolicBP, r.DiastolicBP,
		r.SkinTemp, r.RespiratoryRate, r.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert health reading: %w", err)
	}
	return nil
}

func insertSystemReading(ctx context.Context, q querier, r *SystemReading) error {
	prepareReading(&r.ID, &r.Timestamp)

	query := `INSERT INTO system_readings (` + systemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := q.ExecContext(ctx, query,
		r.ID, r.UserID, r.CabinCO2, r.CabinO2, r.CabinPressure, r.CabinTemp, r.CabinHumidity,
		r.PowerConsumption, r.WaterReclamationLevel, r.WasteManagementLevel, r.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert system reading: %w", err)
	}
	return nil
}

// InsertHealthReading stores a health reading outside a transaction
func (db *DB) InsertHealthReading(ctx context.Context, r *HealthReading) error {
	return insertHealthReading(ctx, db.DB, r)
}

// InsertSystemReading stores a system reading outside a transaction
func (db *DB) InsertSystemReading(ctx context.Context, r *SystemReading) error {
	return insertSystemReading(ctx, db.DB, r)
}

// ListHealthReadings returns a user's most recent readings, newest first
func (db *DB) ListHealthReadings(ctx context.Context, userID uuid.UUID, limit int) ([]*HealthReading, error) {
	query := `SELECT ` + healthColumns + ` FROM health_readings
		WHERE user_id = $1 ORDER BY timestamp DESC LIMIT $2`

	rows, err := db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query health readings: %w", err)
	}
	defer rows.Close()

	readings := []*HealthReading{}
	for rows.Next() {
		r, err := scanHealthReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// LatestHealthReading returns the newest reading or ErrNotFound
func (db *DB) LatestHealthReading(ctx context.Context, userID uuid.UUID) (*HealthReading, error) {
	query := `SELECT ` + healthColumns + ` FROM health_readings
		WHERE user_id = $1 ORDER BY timestamp DESC LIMIT 1`

	r, err := scanHealthReading(db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// ListSystemReadings returns a user's most recent cabin snapshots, newest first
func (db *DB) ListSystemReadings(ctx context.Context, userID uuid.UUID, limit int) ([]*SystemReading, error) {
	query := `SELECT ` + systemColumns + ` FROM system_readings
		WHERE user_id = $1 ORDER BY timestamp DESC LIMIT $2`

	rows, err := db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query system readings: %w", err)
	}
	defer rows.Close()

	readings := []*SystemReading{}
	for rows.Next() {
		r, err := scanSystemReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// LatestSystemReading returns the newest cabin snapshot or ErrNotFound
func (db *DB) LatestSystemReading(ctx context.Context, userID uuid.UUID) (*SystemReading, error) {
	query := `SELECT ` + systemColumns + ` FROM system_readings
		WHERE user_id = $1 ORDER BY timestamp DESC LIMIT 1`

	r, err := scanSystemReading(db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func scanHealthReading(row rowScanner) (*HealthReading, error) {
	var r HealthReading
	err := row.Scan(&r.ID, &r.UserID, &r.HeartRate, &r.SpO2, &r.SystolicBP, &r.DiastolicBP,
		&r.SkinTemp, &r.RespiratoryRate, &r.Timestamp)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanSystemReading(row rowScanner) (*SystemReading, error) {
	var r SystemReading
	err := row.Scan(&r.ID, &r.UserID, &r.CabinCO2, &r.CabinO2, &r.CabinPressure, &r.CabinTemp,
		&r.CabinHumidity, &r.PowerConsumption, &r.WaterReclamationLevel, &r.WasteManagementLevel,
		&r.Timestamp)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
