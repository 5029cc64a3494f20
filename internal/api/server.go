package api

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/smukkama/sentinel-server/internal/anomaly"
	"github.com/smukkama/sentinel-server/internal/auth"
	"github.com/smukkama/sentinel-server/internal/database"
	"github.com/smukkama/sentinel-server/internal/service"
	"github.com/smukkama/sentinel-server/internal/stream"
)

// AuthService is what the auth routes need from service.AuthService
type AuthService interface {
	Signup(ctx context.Context, in service.SignupInput, ip string) (*service.Session, error)
	Login(ctx context.Context, in service.LoginInput, ip string) (*service.Session, error)
	Logout(ctx context.Context, claims *auth.Claims, ip string) error
	CurrentUser(ctx context.Context, userID uuid.UUID) (*database.User, error)
}

// TelemetryService is what the reading routes need from service.TelemetryService
type TelemetryService interface {
	IngestHealth(ctx context.Context, userID uuid.UUID, in anomaly.HealthReading, at time.Time) (*service.HealthResult, error)
	IngestSystem(ctx context.Context, userID uuid.UUID, in anomaly.SystemReading, at time.Time) (*service.SystemResult, error)
	HealthReadings(ctx context.Context, userID uuid.UUID, limit int) ([]*database.HealthReading, error)
	LatestVitals(ctx context.Context, userID uuid.UUID) (*database.HealthReading, error)
	HealthHistory(ctx context.Context, userID uuid.UUID, hours int) ([]*database.HealthHourly, error)
	SystemReadings(ctx context.Context, userID uuid.UUID, limit int) ([]*database.SystemReading, error)
	SystemStatus(ctx context.Context, userID uuid.UUID) (*database.SystemReading, error)
}

// AlertService is what the alert routes need from service.AlertService
type AlertService interface {
	Active(ctx context.Context, userID uuid.UUID) ([]*database.Alert, error)
	All(ctx context.Context, userID uuid.UUID, limit int) ([]*database.Alert, error)
	Resolve(ctx context.Context, userID, alertID uuid.UUID) (*database.Alert, error)
	ExportCrew(ctx context.Context, limit int) ([]byte, error)
}

// TokenValidator verifies session tokens
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// RevocationChecker reports denylisted token ids
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Options configures cookies and CORS
type Options struct {
	AllowedOrigins []string
	CookieName     string
	CookieSecure   bool
	TokenTTL       time.Duration
}

// Deps wires the server. Revocations and Hub are optional.
type Deps struct {
	Auth        AuthService
	Telemetry   TelemetryService
	Alerts      AlertService
	Tokens      TokenValidator
	Revocations RevocationChecker
	Hub         *stream.Hub
	Options     Options
	Logger      *zap.Logger
}

// Server serves the REST API and the dashboard stream
type Server struct {
	auth        AuthService
	telemetry   TelemetryService
	alerts      AlertService
	tokens      TokenValidator
	revocations RevocationChecker
	hub         *stream.Hub
	opts        Options
	logger      *zap.Logger
	upgrader    websocket.Upgrader
	now         func() time.Time
}

func NewServer(d Deps) *Server {
	if d.Options.CookieName == "" {
		d.Options.CookieName = "token"
	}

	s := &Server{
		auth:        d.Auth,
		telemetry:   d.Telemetry,
		alerts:      d.Alerts,
		tokens:      d.Tokens,
		revocations: d.Revocations,
		hub:         d.Hub,
		opts:        d.Options,
		logger:      d.Logger,
		now:         time.Now,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}
