// Package kvtest provides an in-memory kvstore.Store for package tests:
// deterministic scan paging, TTL bookkeeping against an injectable clock, and
// per-operation error injection.
package kvtest

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/zanopay/zano-deposit-watcher/internal/kvstore"
)

type Store struct {
	mu      sync.Mutex
	strings map[string]string
	hashes  map[string]map[string]string
	expiry  map[string]time.Time
	errs    map[string]error

	// Now is the clock used for TTL enforcement. Tests may swap it to move
	// time forward.
	Now func() time.Time
}

func NewStore() *Store {
	return &Store{
		strings: map[string]string{},
		hashes:  map[string]map[string]string{},
		expiry:  map[string]time.Time{},
		errs:    map[string]error{},
		Now:     time.Now,
	}
}

var _ kvstore.Store = (*Store)(nil)

// FailWith makes every subsequent call of the given operation (SCAN, GET,
// HSET, ...) return err. Pass nil to clear.
func (s *Store) FailWith(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, op)
		return
	}
	s.errs[op] = err
}

// TTL reports the remaining time-to-live recorded for key.
func (s *Store) TTL(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.expiry[key]
	if !ok {
		return 0, false
	}
	return deadline.Sub(s.Now()), true
}

// Keys returns every live key, sorted.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpiredLocked()

	keys := make([]string, 0, len(s.strings)+len(s.hashes))
	for k := range s.strings {
		keys = append(keys, k)
	}
	for k := range s.hashes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) purgeExpiredLocked() {
	now := s.Now()
	for key, deadline := range s.expiry {
		if deadline.After(now) {
			continue
		}
		delete(s.strings, key)
		delete(s.hashes, key)
		delete(s.expiry, key)
	}
}

func (s *Store) failure(op string) error {
	return s.errs[op]
}

func (s *Store) Scan(_ context.Context, cursor, match string, count int64) (string, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("SCAN"); err != nil {
		return "", nil, err
	}
	s.purgeExpiredLocked()

	var matched []string
	appendMatches := func(key string) {
		if ok, _ := path.Match(match, key); ok {
			matched = append(matched, key)
		}
	}
	for k := range s.strings {
		appendMatches(k)
	}
	for k := range s.hashes {
		appendMatches(k)
	}
	sort.Strings(matched)

	offset := 0
	if cursor != "" && cursor != "0" {
		if _, err := fmt.Sscanf(cursor, "%d", &offset); err != nil {
			return "", nil, fmt.Errorf("invalid scan cursor %q", cursor)
		}
	}
	if offset >= len(matched) {
		return "0", nil, nil
	}

	end := offset + int(count)
	if count <= 0 || end > len(matched) {
		end = len(matched)
	}

	next := "0"
	if end < len(matched) {
		next = fmt.Sprintf("%d", end)
	}
	return next, matched[offset:end], nil
}

func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("HGETALL"); err != nil {
		return nil, err
	}
	s.purgeExpiredLocked()

	if _, isString := s.strings[key]; isString {
		return nil, fmt.Errorf("WRONGTYPE operation against key %s", key)
	}

	fields := make(map[string]string, len(s.hashes[key]))
	for f, v := range s.hashes[key] {
		fields[f] = v
	}
	return fields, nil
}

func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("HSET"); err != nil {
		return err
	}
	s.purgeExpiredLocked()

	if _, isString := s.strings[key]; isString {
		return fmt.Errorf("WRONGTYPE operation against key %s", key)
	}

	hash, ok := s.hashes[key]
	if !ok {
		hash = map[string]string{}
		s.hashes[key] = hash
	}
	for f, v := range fields {
		hash[f] = v
	}
	return nil
}

func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("EXPIRE"); err != nil {
		return err
	}
	s.purgeExpiredLocked()

	_, isString := s.strings[key]
	_, isHash := s.hashes[key]
	if !isString && !isHash {
		return nil
	}
	s.expiry[key] = s.Now().Add(ttl)
	return nil
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("GET"); err != nil {
		return "", err
	}
	s.purgeExpiredLocked()

	if _, isHash := s.hashes[key]; isHash {
		return "", fmt.Errorf("WRONGTYPE operation against key %s", key)
	}

	value, ok := s.strings[key]
	if !ok {
		return "", kvstore.ErrNotFound
	}
	return value, nil
}

func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("SET"); err != nil {
		return err
	}
	s.purgeExpiredLocked()

	delete(s.hashes, key)
	s.strings[key] = value
	if ttl > 0 {
		s.expiry[key] = s.Now().Add(ttl)
	} else {
		delete(s.expiry, key)
	}
	return nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("EXISTS"); err != nil {
		return false, err
	}
	s.purgeExpiredLocked()

	_, isString := s.strings[key]
	_, isHash := s.hashes[key]
	return isString || isHash, nil
}

func (s *Store) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DEL"); err != nil {
		return err
	}

	for _, key := range keys {
		delete(s.strings, key)
		delete(s.hashes, key)
		delete(s.expiry, key)
	}
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure("PING")
}
