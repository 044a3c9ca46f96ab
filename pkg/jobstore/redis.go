package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisTTL is how long manifests are kept in Redis by default.
const DefaultRedisTTL = 7 * 24 * time.Hour

const redisKeyPrefix = "geobatch:manifest:"

// RedisStore keeps manifests in Redis so any worker sharing the instance can
// collect a run.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore creates a Redis-backed store. A non-positive ttl uses
// DefaultRedisTTL.
func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisStore{redis: redisClient, ttl: ttl}
}

func redisKey(id uuid.UUID) string {
	return redisKeyPrefix + id.String()
}

// Save stores m under geobatch:manifest:<id>.
func (s *RedisStore) Save(ctx context.Context, m *Manifest) error {
	if err := validate(m); err != nil {
		return err
	}

	out := *m
	out.Jobs = redactJobs(m.Jobs)

	data, err := json.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := s.redis.Set(ctx, redisKey(m.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Load fetches the manifest with the given id.
func (s *RedisStore) Load(ctx context.Context, id uuid.UUID) (*Manifest, error) {
	data, err := s.redis.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", id, err)
	}
	return &m, nil
}

// Delete removes a manifest, e.g. once its results were collected.
func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.redis.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
