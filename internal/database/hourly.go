package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AggregateHealthHour averages every user's vitals over [hourStart, hourStart+1h)
// into health_hourly. Re-running an hour overwrites its row. Returns the
// number of users aggregated.
func (db *DB) AggregateHealthHour(ctx context.Context, hourStart time.Time) (int64, error) {
	hourStart = hourStart.UTC().Truncate(time.Hour)
	hourEnd := hourStart.Add(time.Hour)

	query := `
		INSERT INTO health_hourly (
			user_id, hour_timestamp, avg_heart_rate, avg_spo2, avg_systolic_bp,
			avg_diastolic_bp, avg_skin_temp, avg_respiratory_rate, sample_count
		)
		SELECT
			user_id,
			$1,
			AVG(heart_rate),
			AVG(spo2),
			AVG(systolic_bp),
			AVG(diastolic_bp),
			AVG(skin_temp),
			AVG(respiratory_rate),
			COUNT(*)
		FROM health_readings
		WHERE timestamp >= $1 AND timestamp < $2
		GROUP BY user_id
		ON CONFLICT (user_id, hour_timestamp) DO UPDATE
		SET avg_heart_rate = EXCLUDED.avg_heart_rate,
		    avg_spo2 = EXCLUDED.avg_spo2,
		    avg_systolic_bp = EXCLUDED.avg_systolic_bp,
		    avg_diastolic_bp = EXCLUDED.avg_diastolic_bp,
		    avg_skin_temp = EXCLUDED.avg_skin_temp,
		    avg_respiratory_rate = EXCLUDED.avg_respiratory_rate,
		    sample_count = EXCLUDED.sample_count
	`

	result, err := db.ExecContext(ctx, query, hourStart, hourEnd)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate hour %s: %w", hourStart.Format(time.RFC3339), err)
	}
	return result.RowsAffected()
}

// ListHealthHistory returns a user's hourly averages since the given time, oldest first
func (db *DB) ListHealthHistory(ctx context.Context, userID uuid.UUID, since time.Time) ([]*HealthHourly, error) {
	query := `
		SELECT user_id, hour_timestamp, avg_heart_rate, avg_spo2, avg_systolic_bp,
		       avg_diastolic_bp, avg_skin_temp, avg_respiratory_rate, sample_count
		FROM health_hourly
		WHERE user_id = $1 AND hour_timestamp >= $2
		ORDER BY hour_timestamp ASC
	`

	rows, err := db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query health history: %w", err)
	}
	defer rows.Close()

	history := []*HealthHourly{}
	for rows.Next() {
		var h HealthHourly
		if err := rows.Scan(
			&h.UserID,
			&h.HourTimestamp,
			&h.AvgHeartRate,
			&h.AvgSpO2,
			&h.AvgSystolicBP,
			&h.AvgDiastolicBP,
			&h.AvgSkinTemp,
			&h.AvgRespiratoryRate,
			&h.SampleCount,
		); err != nil {
			return nil, err
		}
		history = append(history, &h)
	}
	return history, rows.Err()
}
