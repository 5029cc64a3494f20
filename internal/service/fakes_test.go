package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/sentinel-server/internal/cache"
	"github.com/smukkama/sentinel-server/internal/database"
	"github.com/smukkama/sentinel-server/internal/protocol"
)

// memStore is an in-memory stand-in for database.DB
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*database.User
	audit    []*database.AuditLog
	health   []*database.HealthReading
	system   []*database.SystemReading
	alerts   []*database.Alert
	history  []*database.HealthHourly
	failTx   error
	txCalls  int
	lastFrom time.Time
}

func newMemStore() *memStore {
	return &memStore{users: make(map[uuid.UUID]*database.User)}
}

func (m *memStore) CreateUser(_ context.Context, u *database.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return database.ErrDuplicate
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.users[u.ID] = u
	return nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *memStore) GetUserByID(_ context.Context, id uuid.UUID) (*database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, database.ErrNotFound
}

func (m *memStore) InsertAuditLog(_ context.Context, entry *database.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

// memTx buffers writes until the transaction commits
type memTx struct {
	store  *memStore
	health []*database.HealthReading
	system []*database.SystemReading
	alerts []*database.Alert
	fail   error
}

func (t *memTx) InsertHealthReading(_ context.Context, r *database.HealthReading) error {
	r.ID = uuid.New()
	t.health = append(t.health, r)
	return nil
}

func (t *memTx) InsertSystemReading(_ context.Context, r *database.SystemReading) error {
	r.ID = uuid.New()
	t.system = append(t.system, r)
	return nil
}

func (t *memTx) InsertAlert(_ context.Context, a *database.Alert) error {
	if t.fail != nil {
		return t.fail
	}
	a.ID = uuid.New()
	t.alerts = append(t.alerts, a)
	return nil
}

func (m *memStore) WithTx(_ context.Context, fn func(database.ReadingWriter) error) error {
	m.mu.Lock()
	m.txCalls++
	tx := &memTx{store: m, fail: m.failTx}
	m.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.health = append(m.health, tx.health...)
	m.system = append(m.system, tx.system...)
	m.alerts = append(m.alerts, tx.alerts...)
	return nil
}

func (m *memStore) ListHealthReadings(_ context.Context, userID uuid.UUID, limit int) ([]*database.HealthReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*database.HealthReading
	for i := len(m.health) - 1; i >= 0; i-- {
		if m.health[i].UserID == userID {
			out = append(out, m.health[i])
		}
	}
	// ORDER BY timestamp DESC; ties keep the later insert first
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) LatestHealthReading(ctx context.Context, userID uuid.UUID) (*database.HealthReading, error) {
	readings, _ := m.ListHealthReadings(ctx, userID, 1)
	if len(readings) == 0 {
		return nil, database.ErrNotFound
	}
	return readings[0], nil
}

func (m *memStore) ListSystemReadings(_ context.Context, userID uuid.UUID, limit int) ([]*database.SystemReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*database.SystemReading
	for i := len(m.system) - 1; i >= 0; i-- {
		if m.system[i].UserID == userID {
			out = append(out, m.system[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) LatestSystemReading(ctx context.Context, userID uuid.UUID) (*database.SystemReading, error) {
	readings, _ := m.ListSystemReadings(ctx, userID, 1)
	if len(readings) == 0 {
		return nil, database.ErrNotFound
	}
	return readings[0], nil
}

func (m *memStore) ListHealthHistory(_ context.Context, userID uuid.UUID, since time.Time) ([]*database.HealthHourly, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFrom = since
	var out []*database.HealthHourly
	for _, h := range m.history {
		if h.UserID == userID && !h.HourTimestamp.Before(since) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memStore) ListActiveAlerts(_ context.Context, userID uuid.UUID) ([]*database.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*database.Alert
	for _, a := range m.alerts {
		if a.UserID == userID && !a.Resolved {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *memStore) ListAlerts(_ context.Context, userID uuid.UUID, limit int) ([]*database.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*database.Alert
	for _, a := range m.alerts {
		if a.UserID == userID && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListAllAlerts(_ context.Context, limit int) ([]*database.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.alerts) < limit {
		limit = len(m.alerts)
	}
	return append([]*database.Alert(nil), m.alerts[:limit]...), nil
}

func (m *memStore) ResolveAlert(_ context.Context, userID, alertID uuid.UUID, at time.Time) (*database.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.ID == alertID && a.UserID == userID {
			a.Resolved = true
			if a.ResolvedAt == nil {
				a.ResolvedAt = &at
			}
			copied := *a
			return &copied, nil
		}
	}
	return nil, database.ErrNotFound
}

type memCache struct {
	mu      sync.Mutex
	vitals  map[uuid.UUID]*database.HealthReading
	system  map[uuid.UUID]*database.SystemReading
	revoked map[string]time.Duration
	err     error
}

func newMemCache() *memCache {
	return &memCache{
		vitals:  make(map[uuid.UUID]*database.HealthReading),
		system:  make(map[uuid.UUID]*database.SystemReading),
		revoked: make(map[string]time.Duration),
	}
}

func (c *memCache) SetLatestVitals(_ context.Context, r *database.HealthReading) (cache.WriteResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return cache.Kept, c.err
	}
	current, ok := c.vitals[r.UserID]
	if ok && current.Timestamp.After(r.Timestamp) {
		return cache.Kept, nil
	}
	c.vitals[r.UserID] = r
	if ok {
		return cache.Replaced, nil
	}
	return cache.Created, nil
}

func (c *memCache) LatestVitals(_ context.Context, userID uuid.UUID) (*database.HealthReading, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if r, ok := c.vitals[userID]; ok {
		return r, nil
	}
	return nil, cache.ErrMiss
}

func (c *memCache) SetLatestSystem(_ context.Context, r *database.SystemReading) (cache.WriteResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return cache.Kept, c.err
	}
	current, ok := c.system[r.UserID]
	if ok && current.Timestamp.After(r.Timestamp) {
		return cache.Kept, nil
	}
	c.system[r.UserID] = r
	if ok {
		return cache.Replaced, nil
	}
	return cache.Created, nil
}

func (c *memCache) LatestSystem(_ context.Context, userID uuid.UUID) (*database.SystemReading, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if r, ok := c.system[userID]; ok {
		return r, nil
	}
	return nil, cache.ErrMiss
}

func (c *memCache) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[tokenID] = ttl
	return nil
}

type publishedFrame struct {
	userID  uuid.UUID
	kind    protocol.FrameType
	payload any
}

type recordingHub struct {
	mu     sync.Mutex
	frames []publishedFrame
}

func (h *recordingHub) Publish(userID uuid.UUID, kind protocol.FrameType, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, publishedFrame{userID, kind, payload})
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]*protocol.AlertNotification
	err     error
}

func (p *recordingPublisher) PublishAlerts(_ context.Context, alerts []*protocol.AlertNotification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, alerts)
	return p.err
}

var errBoom = errors.New("boom")
