package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores tokens as plain string keys, optionally namespaced by prefix
// and expired after ttl.
//
//	Performance: 1 Redis command per operation.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis creates a [Redis] store. An empty prefix stores keys verbatim; a
// zero ttl keeps records until removed.
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	return &Redis{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *Redis) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.redis.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, true, nil
}

func (s *Redis) Set(ctx context.Context, key, value string) error {
	if err := s.redis.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Remove is idempotent: deleting a missing key is not an error.
func (s *Redis) Remove(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
