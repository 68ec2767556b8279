package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"
)

// GetJSON loads and unmarshals the JSON value at key into dst. Malformed
// stored JSON is treated as absent rather than an error, so one poisoned
// record cannot wedge its readers.
func GetJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting key %s: %w", key, err)
	}

	if err = json.Unmarshal([]byte(raw), dst); err != nil {
		log.Ctx(ctx).Warnf("discarding malformed JSON at key %s: %v", key, err)
		return false, nil
	}
	return true, nil
}

// SetJSON marshals v and stores it at key with the given TTL.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling value for key %s: %w", key, err)
	}
	return s.Set(ctx, key, string(payload), ttl)
}
