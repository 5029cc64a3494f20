package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/smukkama/sentinel-server/internal/database"
)

// ErrMiss is returned when a key is not cached
var ErrMiss = errors.New("cache miss")

const (
	vitalsKeyPrefix  = "vitals:latest:"
	systemKeyPrefix  = "system:latest:"
	revokedKeyPrefix = "token:revoked:"
)

// WriteResult reports what a conditional latest-reading write did
type WriteResult int

const (
	// Kept means the cached reading is newer and was left in place
	Kept WriteResult = iota
	Replaced
	// Created means the key was empty, so older persisted readings may exist
	Created
)

// setIfNewer stores the reading hash only when no cached reading is newer.
// KEYS[1] = key, ARGV = unix micros, json, ttl millis.
var setIfNewer = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'ts')
if current and tonumber(current) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'ts', ARGV[1], 'data', ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
if current then
	return 1
end
return 2
`)

// Store keeps the latest reading per user and the token denylist in Redis
type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStore creates a cache over an existing client. ttl bounds how long a
// latest reading is served before falling back to the database.
func NewStore(redisClient *redis.Client, ttl time.Duration) *Store {
	return &Store{redis: redisClient, ttl: ttl}
}

// Ping checks connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

// SetLatestVitals caches r unless a reading with a later timestamp is
// already cached
func (s *Store) SetLatestVitals(ctx context.Context, r *database.HealthReading) (WriteResult, error) {
	return s.setIfNewer(ctx, vitalsKeyPrefix+r.UserID.String(), r.Timestamp, r)
}

// LatestVitals returns the cached health reading or ErrMiss
func (s *Store) LatestVitals(ctx context.Context, userID uuid.UUID) (*database.HealthReading, error) {
	var r database.HealthReading
	if err := s.getJSON(ctx, vitalsKeyPrefix+userID.String(), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// SetLatestSystem caches r unless a later snapshot is already cached
func (s *Store) SetLatestSystem(ctx context.Context, r *database.SystemReading) (WriteResult, error) {
	return s.setIfNewer(ctx, systemKeyPrefix+r.UserID.String(), r.Timestamp, r)
}

// LatestSystem returns the cached cabin snapshot or ErrMiss
func (s *Store) LatestSystem(ctx context.Context, userID uuid.UUID) (*database.SystemReading, error) {
	var r database.SystemReading
	if err := s.getJSON(ctx, systemKeyPrefix+userID.String(), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Revoke denylists a token id until it would have expired anyway
func (s *Store) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, revokedKeyPrefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether a token id has been denylisted
func (s *Store) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.redis.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n > 0, nil
}

func (s *Store) setIfNewer(ctx context.Context, key string, at time.Time, v any) (WriteResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Kept, fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	res, err := setIfNewer.Run(ctx, s.redis, []string{key}, at.UnixMicro(), data, s.ttl.Milliseconds()).Int()
	if err != nil {
		return Kept, fmt.Errorf("failed to set %s in Redis: %w", key, err)
	}
	return WriteResult(res), nil
}

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.redis.HGet(ctx, key, "data").Bytes()
	if err == redis.Nil {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("failed to get %s from Redis: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}
