package data

import (
	"context"
	"fmt"
	"time"

	"github.com/zanopay/zano-deposit-watcher/internal/kvstore"
)

// SeenModel guards against double-crediting a transaction hash. An entry is
// written after the webhook for that hash was accepted (or the deposit was
// failed terminally) and carries a short TTL, long enough to cover restarts
// and retry windows.
type SeenModel struct {
	store     kvstore.Store
	keyPrefix string
	seenTTL   time.Duration
}

func (m *SeenModel) Key(txHash string) string {
	return SeenKey(m.keyPrefix, txHash)
}

func (m *SeenModel) Mark(ctx context.Context, txHash string) error {
	if txHash == "" {
		return fmt.Errorf("txHash is required")
	}
	if err := m.store.Set(ctx, m.Key(txHash), "1", m.seenTTL); err != nil {
		return fmt.Errorf("marking tx %s seen: %w", txHash, err)
	}
	return nil
}

func (m *SeenModel) IsSeen(ctx context.Context, txHash string) (bool, error) {
	if txHash == "" {
		return false, nil
	}
	seen, err := m.store.Exists(ctx, m.Key(txHash))
	if err != nil {
		return false, fmt.Errorf("checking seen guard for tx %s: %w", txHash, err)
	}
	return seen, nil
}
