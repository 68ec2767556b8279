// Package kvstore abstracts the Redis-shaped storage surface the deposit
// pipeline runs on. Two backends are provided: a native Redis client and an
// HTTPS REST backend (Upstash-compatible) for deployments that only get an
// HTTP egress. Both are selected by URL scheme.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// TransientError wraps network failures and server-side errors that are safe
// to retry on the next polling pass.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient kv failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Store is the storage surface used by the deposit pipeline. The scan cursor
// round-trips as a string: iteration starts at "0" and is complete when the
// returned cursor is "0" again.
type Store interface {
	Scan(ctx context.Context, cursor, match string, count int64) (next string, keys []string, err error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// Options configures the KV backend.
type Options struct {
	// URL selects the backend: redis:// and rediss:// use the native client,
	// http:// and https:// use the REST backend.
	URL string
	// Token is the bearer token for the REST backend. Ignored for redis URLs.
	Token string
}

func (o Options) Validate() error {
	if o.URL == "" {
		return fmt.Errorf("kv url cannot be empty")
	}
	u, err := url.Parse(o.URL)
	if err != nil {
		return fmt.Errorf("parsing kv url: %w", err)
	}

	switch u.Scheme {
	case "redis", "rediss":
		return nil
	case "http", "https":
		if o.Token == "" {
			return fmt.Errorf("kv token is required for REST backends")
		}
		return nil
	default:
		return fmt.Errorf("unsupported kv url scheme %q", u.Scheme)
	}
}

// GetStore instantiates the backend matching the configured URL scheme.
func GetStore(opts Options) (Store, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("validating kv options: %w", err)
	}

	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing kv url: %w", err)
	}

	switch u.Scheme {
	case "redis", "rediss":
		return NewRedisStore(opts)
	case "http", "https":
		return NewRESTStore(opts)
	default:
		return nil, fmt.Errorf("unsupported kv url scheme %q", u.Scheme)
	}
}
