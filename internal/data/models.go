package data

import (
	"errors"
	"fmt"
	"time"

	"github.com/zanopay/zano-deposit-watcher/internal/kvstore"
)

var (
	ErrRecordNotFound      = errors.New("record not found")
	ErrRecordAlreadyExists = errors.New("record already exists")
	ErrMalformedRecord     = errors.New("malformed record")
)

const (
	DefaultKeyPrefix = "zano"
	DefaultJobTTL    = 24 * time.Hour
	DefaultStatusTTL = 7 * 24 * time.Hour
	DefaultSeenTTL   = 4 * time.Hour
)

// Config carries the key prefix and TTLs shared by all models.
type Config struct {
	KeyPrefix  string
	JobTTL     time.Duration
	StatusTTL  time.Duration
	SeenTTL    time.Duration
	LedgerMode LedgerMode
	LedgerDir  string
	LedgerTTL  time.Duration // 0 keeps ledger records until the operator prunes them
}

func (c Config) withDefaults() Config {
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.JobTTL <= 0 {
		c.JobTTL = DefaultJobTTL
	}
	if c.StatusTTL <= 0 {
		c.StatusTTL = DefaultStatusTTL
	}
	if c.SeenTTL <= 0 {
		c.SeenTTL = DefaultSeenTTL
	}
	if c.LedgerMode == "" {
		c.LedgerMode = LedgerModeOff
	}
	return c
}

type Models struct {
	Jobs     *JobModel
	Statuses *StatusModel
	Seen     *SeenModel
	Ledger   *LedgerModel
	Store    kvstore.Store
}

func NewModels(store kvstore.Store, cfg Config) (*Models, error) {
	if store == nil {
		return nil, errors.New("store is required for NewModels")
	}

	cfg = cfg.withDefaults()
	if err := cfg.LedgerMode.Validate(); err != nil {
		return nil, fmt.Errorf("validating ledger mode: %w", err)
	}
	if cfg.LedgerMode == LedgerModeDisk && cfg.LedgerDir == "" {
		return nil, errors.New("ledger dir is required when the ledger mode is disk")
	}

	return &Models{
		Jobs:     &JobModel{store: store, keyPrefix: cfg.KeyPrefix, jobTTL: cfg.JobTTL},
		Statuses: &StatusModel{store: store, keyPrefix: cfg.KeyPrefix, statusTTL: cfg.StatusTTL},
		Seen:     &SeenModel{store: store, keyPrefix: cfg.KeyPrefix, seenTTL: cfg.SeenTTL},
		Ledger:   &LedgerModel{store: store, keyPrefix: cfg.KeyPrefix, mode: cfg.LedgerMode, dir: cfg.LedgerDir, ledgerTTL: cfg.LedgerTTL},
		Store:    store,
	}, nil
}
