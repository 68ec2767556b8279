package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
}

// NewRedisStore connects the native Redis backend. The URL accepts the full
// go-redis form, including rediss:// for TLS and db/auth components.
func NewRedisStore(opts Options) (Store, error) {
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	return &redisStore{client: redis.NewClient(redisOpts)}, nil
}

var _ Store = (*redisStore)(nil)

func (s *redisStore) Scan(ctx context.Context, cursor, match string, count int64) (string, []string, error) {
	cur, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		return "", nil, fmt.Errorf("invalid scan cursor %q: %w", cursor, err)
	}

	keys, next, err := s.client.Scan(ctx, cur, match, count).Result()
	if err != nil {
		return "", nil, &TransientError{Op: "SCAN", Err: err}
	}
	return strconv.FormatUint(next, 10), keys, nil
}

func (s *redisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, &TransientError{Op: "HGETALL", Err: err}
	}
	return fields, nil
}

func (s *redisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return &TransientError{Op: "HSET", Err: err}
	}
	return nil
}

func (s *redisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return &TransientError{Op: "EXPIRE", Err: err}
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", &TransientError{Op: "GET", Err: err}
	}
	return value, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return &TransientError{Op: "SET", Err: err}
	}
	return nil
}

func (s *redisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, &TransientError{Op: "EXISTS", Err: err}
	}
	return n > 0, nil
}

func (s *redisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return &TransientError{Op: "DEL", Err: err}
	}
	return nil
}

func (s *redisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return &TransientError{Op: "PING", Err: err}
	}
	return nil
}
