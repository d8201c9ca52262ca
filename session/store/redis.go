package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/sweetpotato0/ai-tutor/errors"
	"github.com/sweetpotato0/ai-tutor/session"
)

// RedisStore persists session snapshots in Redis, one JSON value per
// session. Snapshots expire after the configured TTL of inactivity.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig holds connection settings for the session store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(config *RedisConfig) *RedisStore {
	if config == nil {
		config = &RedisConfig{}
	}
	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}
	if config.Prefix == "" {
		config.Prefix = "ai-tutor:session:"
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &RedisStore{
		client: client,
		prefix: config.Prefix,
		ttl:    config.TTL,
	}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Save stores a snapshot and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, sess *session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.ID, err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

// Load returns a snapshot or ErrSessionNotFound.
func (s *RedisStore) Load(ctx context.Context, id string) (*session.Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

// Delete removes a snapshot. Deleting an unknown id is not an error.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// List returns all stored session ids.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		for _, key := range keys {
			ids = append(ids, strings.TrimPrefix(key, s.prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return ids, nil
}

// Count returns the number of stored sessions.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	ids, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
