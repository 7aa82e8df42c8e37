package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists sessions in Redis so they survive process restarts.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore connects to Redis. key scopes the session (one per device
// or profile); a zero ttl means the session never expires on its own.
func NewRedisStore(addr, password, key string, ttl time.Duration) *RedisStore {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisStore{client: c, key: key, ttl: ttl}
}

// NewRedisStoreWithClient wraps an existing client, mainly for tests.
func NewRedisStoreWithClient(c *redis.Client, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: c, key: key, ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context) (Session, error) {
	raw, err := r.client.Get(ctx, r.key).Result()
	if err == redis.Nil {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		// A corrupt blob is indistinguishable from cleared storage.
		return Session{}, ErrNoSession
	}
	if s.Token == "" {
		return Session{}, ErrNoSession
	}
	return s, nil
}

func (r *RedisStore) Save(ctx context.Context, s Session) error {
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now()
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, b, r.ttl).Err()
}

func (r *RedisStore) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
