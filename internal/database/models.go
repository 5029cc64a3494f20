package database

import (
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/sentinel-server/internal/anomaly"
)

// User roles
const (
	RoleUser           = "user"
	RoleAdmin          = "admin"
	RoleMissionControl = "mission_control"
)

// Reading kinds referenced by alerts
const (
	ReadingKindHealth = "health"
	ReadingKindSystem = "system"
)

// Audit actions
const (
	AuditUserSignup = "USER_SIGNUP"
	AuditUserLogin  = "USER_LOGIN"
	AuditUserLogout = "USER_LOGOUT"
)

// User is a crew member or operator account
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HealthReading is a persisted set of vitals
type HealthReading struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"userId"`
	anomaly.HealthReading
	Timestamp time.Time `json:"timestamp"`
}

// SystemReading is a persisted cabin snapshot
type SystemReading struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"userId"`
	anomaly.SystemReading
	Timestamp time.Time `json:"timestamp"`
}

// Alert is the resolvable record created from an anomaly.
// Type holds the severity.
type Alert struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"userId"`
	ReadingID      uuid.UUID  `json:"readingId"`
	ReadingKind    string     `json:"readingKind"`
	AnomalyType    string     `json:"anomalyType"`
	Type           string     `json:"type"`
	Category       string     `json:"category"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	Value          *float64   `json:"value,omitempty"`
	Recommendation string     `json:"recommendation"`
	Resolved       bool       `json:"resolved"`
	ResolvedAt     *time.Time `json:"resolvedAt"`
	Timestamp      time.Time  `json:"timestamp"`
}

// AuditLog records security relevant user actions
type AuditLog struct {
	ID        uuid.UUID
	UserID    *uuid.UUID
	Action    string
	Details   string // JSON
	IPAddress string
	CreatedAt time.Time
}

// HealthHourly is one user's vitals averaged over an hour
type HealthHourly struct {
	UserID             uuid.UUID `json:"userId"`
	HourTimestamp      time.Time `json:"hourTimestamp"`
	AvgHeartRate       *float64  `json:"avgHeartRate"`
	AvgSpO2            *float64  `json:"avgSpO2"`
	AvgSystolicBP      *float64  `json:"avgSystolicBP"`
	AvgDiastolicBP     *float64  `json:"avgDiastolicBP"`
	AvgSkinTemp        *float64  `json:"avgSkinTemp"`
	AvgRespiratoryRate *float64  `json:"avgRespiratoryRate"`
	SampleCount        int       `json:"sampleCount"`
}
