package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis-backed session store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces keys, e.g. "surveybot:session:".
	Prefix string
	TTL    time.Duration
}

// RedisManager stores sessions as JSON values with an idle expiry.
type RedisManager struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisManager connects to Redis and verifies the connection with PING.
func NewRedisManager(ctx context.Context, opts RedisOptions) (*RedisManager, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisManager{rdb: rdb, prefix: prefix, ttl: opts.TTL}, nil
}

func (m *RedisManager) key(userID int64) string {
	return m.prefix + strconv.FormatInt(userID, 10)
}

func (m *RedisManager) Get(ctx context.Context, userID int64) (Session, error) {
	raw, err := m.rdb.Get(ctx, m.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Idle(), nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("redis get session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

func (m *RedisManager) Put(ctx context.Context, userID int64, s Session) error {
	s.UpdatedAt = time.Now()
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := m.rdb.Set(ctx, m.key(userID), raw, m.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (m *RedisManager) Clear(ctx context.Context, userID int64) error {
	if err := m.rdb.Del(ctx, m.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (m *RedisManager) Close() error {
	return m.rdb.Close()
}
