package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions as JSON values whose TTL is the idle timeout.
// Every read and write pushes the TTL forward.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	idle   time.Duration
}

// NewRedisStore wraps client. idle <= 0 stores keys without expiry.
func NewRedisStore(client redis.UniversalClient, prefix string, idle time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, idle: idle}
}

func (r *RedisStore) key(userID int64) string {
	return r.prefix + strconv.FormatInt(userID, 10)
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, userID int64) (Session, bool, error) {
	val, err := r.client.GetEx(ctx, r.key(userID), r.idle).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("session: get: %w", err)
	}
	s, err := decode(val)
	if err != nil {
		return Session{}, false, err
	}
	return s, true, nil
}

// Set implements Store.
func (r *RedisStore) Set(ctx context.Context, userID int64, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	if err := r.client.Set(ctx, r.key(userID), data, r.idle).Err(); err != nil {
		return fmt.Errorf("session: set: %w", err)
	}
	return nil
}

// Clear implements Store.
func (r *RedisStore) Clear(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	return nil
}

// Ping checks the connection, used by the health endpoint.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func decode(data []byte) (Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("session: unmarshal: %w", err)
	}
	return s, nil
}
