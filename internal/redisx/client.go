package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Store is the small key/value surface the services depend on.
type Store struct{ RDB *redis.Client }

// Claim sets key only if absent. true means the caller is first.
func (s *Store) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.RDB.SetNX(ctx, key, "1", ttl).Result()
}

// Release undoes a Claim so the work can be retried.
func (s *Store) Release(ctx context.Context, key string) error {
	return s.RDB.Del(ctx, key).Err()
}

func (s *Store) GetString(ctx context.Context, key string) (string, bool, error) {
	v, err := s.RDB.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.RDB.Set(ctx, key, value, ttl).Err()
}

// SetStringNX stores value only when key is absent and returns the value that won.
func (s *Store) SetStringNX(ctx context.Context, key, value string, ttl time.Duration) (string, error) {
	ok, err := s.RDB.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return value, nil
	}
	return s.RDB.Get(ctx, key).Result()
}

func (s *Store) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	b, err := s.RDB.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.RDB.Set(ctx, key, b, ttl).Err()
}

// SetJSONNX fills key only when it is empty. false means another value was already there.
func (s *Store) SetJSONNX(ctx context.Context, key string, v any, ttl time.Duration) (bool, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	return s.RDB.SetNX(ctx, key, b, ttl).Result()
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.RDB.Del(ctx, keys...).Err()
}
