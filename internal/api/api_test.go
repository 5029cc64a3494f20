package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smukkama/sentinel-server/internal/anomaly"
	"github.com/smukkama/sentinel-server/internal/auth"
	"github.com/smukkama/sentinel-server/internal/database"
	"github.com/smukkama/sentinel-server/internal/service"
)

type fakeAuth struct {
	users     map[string]*database.User
	tokens    *auth.TokenService
	loggedOut []string
}

func (f *fakeAuth) Signup(_ context.Context, in service.SignupInput, _ string) (*service.Session, error) {
	if _, ok := f.users[in.Email]; ok {
		return nil, service.ErrUserExists
	}
	role := in.Role
	if role == "" {
		role = database.RoleUser
	}
	u := &database.User{ID: uuid.New(), Email: in.Email, Name: in.Name, Role: role}
	f.users[in.Email] = u
	return f.session(u)
}

func (f *fakeAuth) Login(_ context.Context, in service.LoginInput, _ string) (*service.Session, error) {
	u, ok := f.users[in.Email]
	if !ok || in.Password != "password123" {
		return nil, service.ErrInvalidCredentials
	}
	return f.session(u)
}

func (f *fakeAuth) Logout(_ context.Context, claims *auth.Claims, _ string) error {
	f.loggedOut = append(f.loggedOut, claims.ID)
	return nil
}

func (f *fakeAuth) CurrentUser(_ context.Context, id uuid.UUID) (*database.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeAuth) session(u *database.User) (*service.Session, error) {
	token, claims, err := f.tokens.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, err
	}
	return &service.Session{User: u, Token: token, Claims: claims}, nil
}

type fakeTelemetry struct {
	ingested int
	latest   *database.SystemReading
}

func (f *fakeTelemetry) IngestHealth(_ context.Context, userID uuid.UUID, in anomaly.HealthReading, at time.Time) (*service.HealthResult, error) {
	f.ingested++
	return &service.HealthResult{
		Reading:   &database.HealthReading{ID: uuid.New(), UserID: userID, HealthReading: in, Timestamp: time.Now().UTC()},
		Anomalies: anomaly.DetectHealth(in),
	}, nil
}

func (f *fakeTelemetry) IngestSystem(_ context.Context, userID uuid.UUID, in anomaly.SystemReading, at time.Time) (*service.SystemResult, error) {
	f.ingested++
	return &service.SystemResult{
		Reading:   &database.SystemReading{ID: uuid.New(), UserID: userID, SystemReading: in, Timestamp: time.Now().UTC()},
		Anomalies: anomaly.DetectSystem(in),
	}, nil
}

func (f *fakeTelemetry) HealthReadings(context.Context, uuid.UUID, int) ([]*database.HealthReading, error) {
	return []*database.HealthReading{}, nil
}

func (f *fakeTelemetry) LatestVitals(context.Context, uuid.UUID) (*database.HealthReading, error) {
	return nil, database.ErrNotFound
}

func (f *fakeTelemetry) HealthHistory(context.Context, uuid.UUID, int) ([]*database.HealthHourly, error) {
	return nil, nil
}

func (f *fakeTelemetry) SystemReadings(context.Context, uuid.UUID, int) ([]*database.SystemReading, error) {
	return []*database.SystemReading{}, nil
}

func (f *fakeTelemetry) SystemStatus(context.Context, uuid.UUID) (*database.SystemReading, error) {
	if f.latest == nil {
		return nil, database.ErrNotFound
	}
	return f.latest, nil
}

type fakeAlerts struct {
	owner    uuid.UUID
	alertID  uuid.UUID
	exported int
}

func (f *fakeAlerts) Active(context.Context, uuid.UUID) ([]*database.Alert, error) {
	return []*database.Alert{}, nil
}

func (f *fakeAlerts) All(context.Context, uuid.UUID, int) ([]*database.Alert, error) {
	return []*database.Alert{}, nil
}

func (f *fakeAlerts) Resolve(_ context.Context, userID, alertID uuid.UUID) (*database.Alert, error) {
	if userID != f.owner || alertID != f.alertID {
		return nil, database.ErrNotFound
	}
	now := time.Now().UTC()
	return &database.Alert{ID: alertID, UserID: userID, Resolved: true, ResolvedAt: &now}, nil
}

func (f *fakeAlerts) ExportCrew(_ context.Context, limit int) ([]byte, error) {
	f.exported = limit
	return []byte("xlsx"), nil
}

type denylist map[string]bool

func (d denylist) IsRevoked(_ context.Context, id string) (bool, error) {
	return d[id], nil
}

type testEnv struct {
	handler   http.Handler
	auth      *fakeAuth
	telemetry *fakeTelemetry
	alerts    *fakeAlerts
	tokens    *auth.TokenService
	revoked   denylist
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tokens := auth.NewTokenService("test-secret", time.Hour)
	env := &testEnv{
		auth:      &fakeAuth{users: make(map[string]*database.User), tokens: tokens},
		telemetry: &fakeTelemetry{},
		alerts:    &fakeAlerts{},
		tokens:    tokens,
		revoked:   denylist{},
	}
	srv := NewServer(Deps{
		Auth:        env.auth,
		Telemetry:   env.telemetry,
		Alerts:      env.alerts,
		Tokens:      tokens,
		Revocations: env.revoked,
		Options: Options{
			AllowedOrigins: []string{"http://localhost:5173"},
			CookieName:     "token",
			TokenTTL:       time.Hour,
		},
		Logger: zap.NewNop(),
	})
	env.handler = srv.Routes()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) signup(t *testing.T, email, role string) (string, *database.User) {
	t.Helper()
	body := `{"email":"` + email + `","password":"password123","name":"Crew Member"`
	if role != "" {
		body += `,"role":"` + role + `"`
	}
	body += `}`

	rec := e.do(t, http.MethodPost, "/api/auth/signup", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		User  database.User `json:"user"`
		Token string        `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token, &resp.User
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/ping", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Sentinel API is running", decodeBody(t, rec)["message"])
}

func TestSignupSetsCookie(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/auth/signup", "", `{"email":"ada@example.com","password":"password123","name":"Ada"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = env.do(t, http.MethodPost, "/api/auth/signup", "", `{"email":"ada@example.com","password":"password123","name":"Ada"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User already exists", decodeBody(t, rec)["error"])
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/auth/signup", "", `{"email":"not-an-email","password":"short","name":"A"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Invalid input", body["error"])
	details := body["details"].(map[string]any)
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")

	rec = env.do(t, http.MethodPost, "/api/auth/signup", "", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "ada@example.com", "")

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"ada@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["token"])

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"ada@example.com","password":"wrong-pass"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decodeBody(t, rec)["error"])
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)
	token, user := env.signup(t, "ada@example.com", "")

	rec := env.do(t, http.MethodGet, "/api/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication required", decodeBody(t, rec)["error"])

	rec = env.do(t, http.MethodGet, "/api/auth/me", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decodeBody(t, rec)["error"])

	rec = env.do(t, http.MethodGet, "/api/auth/me", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), user.ID.String())

	// cookie works as well as the bearer header
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	cookieRec := httptest.NewRecorder()
	env.handler.ServeHTTP(cookieRec, req)
	assert.Equal(t, http.StatusOK, cookieRec.Code)
}

func TestExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	expired := auth.NewTokenService("test-secret", -time.Minute)
	token, _, err := expired.Issue(uuid.New(), "ada@example.com", database.RoleUser)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/system/alerts", token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token expired", decodeBody(t, rec)["error"])
}

func TestLogoutRevokes(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup(t, "ada@example.com", "")

	rec := env.do(t, http.MethodPost, "/api/auth/logout", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.auth.loggedOut, 1)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)

	env.revoked[env.auth.loggedOut[0]] = true
	rec = env.do(t, http.MethodGet, "/api/auth/me", token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decodeBody(t, rec)["error"])

	// logout without a session still clears the cookie
	rec = env.do(t, http.MethodPost, "/api/auth/logout", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateHealthReading(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup(t, "ada@example.com", "")

	rec := env.do(t, http.MethodPost, "/api/health/readings", token,
		`{"heartRate":72,"spO2":98,"systolicBP":115,"diastolicBP":75,"skinTemp":36.8}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Nil(t, body["anomalies"])
	assert.NotNil(t, body["reading"])

	rec = env.do(t, http.MethodPost, "/api/health/readings", token,
		`{"heartRate":150,"spO2":98,"systolicBP":115,"diastolicBP":75,"skinTemp":36.8}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	anomalies := decodeBody(t, rec)["anomalies"].([]any)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "CRITICAL", anomalies[0].(map[string]any)["severity"])
}

func TestInvalidReadingNeverReachesService(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup(t, "ada@example.com", "")

	rec := env.do(t, http.MethodPost, "/api/health/readings", token,
		`{"heartRate":500,"spO2":98,"systolicBP":115,"diastolicBP":75,"skinTemp":36.8}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/system/readings", token, `{"cabinCO2":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, env.telemetry.ingested)
}

func TestCreateSystemReading(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup(t, "ada@example.com", "")

	rec := env.do(t, http.MethodPost, "/api/system/readings", token,
		`{"cabinCO2":12,"cabinO2":21,"cabinPressure":101,"cabinTemp":22,"cabinHumidity":45,"powerConsumption":3.5,"waterReclamationLevel":80,"wasteManagementLevel":30}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	anomalies := decodeBody(t, rec)["anomalies"].([]any)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "CABIN_CO2", anomalies[0].(map[string]any)["type"])
}

func TestNotFoundResponses(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup(t, "ada@example.com", "")

	rec := env.do(t, http.MethodGet, "/api/system/status", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No system readings found", decodeBody(t, rec)["error"])

	rec = env.do(t, http.MethodGet, "/api/health/vitals", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/health/history", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decodeBody(t, rec)["history"])
}

func TestResolveAlert(t *testing.T) {
	env := newTestEnv(t)
	token, user := env.signup(t, "ada@example.com", "")
	env.alerts.owner = user.ID
	env.alerts.alertID = uuid.New()

	rec := env.do(t, http.MethodPatch, "/api/system/alerts/"+env.alerts.alertID.String()+"/resolve", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	alert := decodeBody(t, rec)["alert"].(map[string]any)
	assert.Equal(t, true, alert["resolved"])

	rec = env.do(t, http.MethodPatch, "/api/system/alerts/"+uuid.NewString()+"/resolve", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/system/alerts/not-a-uuid/resolve", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportRequiresRole(t *testing.T) {
	env := newTestEnv(t)
	crewToken, _ := env.signup(t, "crew@example.com", "")
	controlToken, _ := env.signup(t, "control@example.com", database.RoleMissionControl)

	rec := env.do(t, http.MethodGet, "/api/admin/alerts/export", crewToken, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access denied", decodeBody(t, rec)["error"])

	rec = env.do(t, http.MethodGet, "/api/admin/alerts/export?limit=20", controlToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment;"))
	assert.Equal(t, 20, env.alerts.exported)
}

func TestStreamUnavailableWithoutHub(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup(t, "ada@example.com", "")

	rec := env.do(t, http.MethodGet, "/api/ws", token, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
