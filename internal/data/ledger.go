package data

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zanopay/zano-deposit-watcher/internal/kvstore"
)

// LedgerMode selects where the per-deposit audit trail is kept.
type LedgerMode string

const (
	// LedgerModeOff disables the audit trail.
	LedgerModeOff LedgerMode = "off"
	// LedgerModeKV keeps one hash per (ticker, txHash) in the shared store.
	LedgerModeKV LedgerMode = "kv"
	// LedgerModeDisk appends JSON lines to a per-ticker file.
	LedgerModeDisk LedgerMode = "disk"
)

func (m LedgerMode) Validate() error {
	switch m {
	case LedgerModeOff, LedgerModeKV, LedgerModeDisk:
		return nil
	default:
		return fmt.Errorf("invalid ledger mode %q", m)
	}
}

func ParseLedgerMode(s string) (LedgerMode, error) {
	mode := LedgerMode(strings.ToLower(strings.TrimSpace(s)))
	if err := mode.Validate(); err != nil {
		return "", err
	}
	return mode, nil
}

// LedgerObservation is one matcher sighting of an on-chain transfer, the
// unit the audit trail is built from.
type LedgerObservation struct {
	Ticker        string
	TxHash        string
	PaymentID     string
	Address       string
	AmountAtomic  string
	Confirmations int64
}

// ledgerLine is the disk-mode record. One JSON line per event.
type ledgerLine struct {
	Event         string `json:"event"`
	Ticker        string `json:"ticker"`
	TxHash        string `json:"txHash"`
	PaymentID     string `json:"paymentId,omitempty"`
	Address       string `json:"address,omitempty"`
	AmountAtomic  string `json:"amountAtomic,omitempty"`
	Confirmations int64  `json:"confirmations,omitempty"`
	Reason        string `json:"reason,omitempty"`
	At            string `json:"at"`
}

// LedgerModel records deposit sightings and outcomes. All methods are no-ops
// in off mode so callers never need to branch on configuration.
type LedgerModel struct {
	store     kvstore.Store
	keyPrefix string
	mode      LedgerMode
	dir       string
	ledgerTTL time.Duration
	nowFn     func() time.Time

	mu sync.Mutex // serializes disk appends
}

func (m *LedgerModel) now() time.Time {
	if m.nowFn != nil {
		return m.nowFn()
	}
	return time.Now().UTC()
}

func (m *LedgerModel) Key(ticker, txHash string) string {
	return LedgerKey(m.keyPrefix, ticker, txHash)
}

// UpsertObservation records that a transfer was sighted: first-seen is set
// once, last-seen refreshed on every pass.
func (m *LedgerModel) UpsertObservation(ctx context.Context, obs LedgerObservation) error {
	switch m.mode {
	case LedgerModeOff:
		return nil
	case LedgerModeDisk:
		return m.appendLine(ledgerLine{
			Event:         "observed",
			Ticker:        obs.Ticker,
			TxHash:        obs.TxHash,
			PaymentID:     obs.PaymentID,
			Address:       obs.Address,
			AmountAtomic:  obs.AmountAtomic,
			Confirmations: obs.Confirmations,
		})
	}

	key := m.Key(obs.Ticker, obs.TxHash)
	existing, err := m.store.HGetAll(ctx, key)
	if err != nil {
		return fmt.Errorf("reading ledger %s: %w", key, err)
	}

	now := m.now().Format(time.RFC3339)
	fields := map[string]string{
		"ticker":        obs.Ticker,
		"txHash":        obs.TxHash,
		"paymentId":     obs.PaymentID,
		"address":       obs.Address,
		"amountAtomic":  obs.AmountAtomic,
		"confirmations": strconv.FormatInt(obs.Confirmations, 10),
		"lastSeenAt":    now,
	}
	if existing["firstSeenAt"] == "" {
		fields["firstSeenAt"] = now
	}
	if err = m.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("writing ledger %s: %w", key, err)
	}
	return m.refreshTTL(ctx, key)
}

// RecordWebhookDelivered stamps the settlement moment for a deposit.
func (m *LedgerModel) RecordWebhookDelivered(ctx context.Context, ticker, txHash, paymentID string) error {
	switch m.mode {
	case LedgerModeOff:
		return nil
	case LedgerModeDisk:
		return m.appendLine(ledgerLine{
			Event:     "webhook_delivered",
			Ticker:    ticker,
			TxHash:    txHash,
			PaymentID: paymentID,
		})
	}

	key := m.Key(ticker, txHash)
	fields := map[string]string{"webhookDeliveredAt": m.now().Format(time.RFC3339)}
	if err := m.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("writing ledger %s: %w", key, err)
	}
	return m.refreshTTL(ctx, key)
}

// RecordFailed stamps a terminal failure (retry window exhausted).
func (m *LedgerModel) RecordFailed(ctx context.Context, ticker, txHash, paymentID, reason string) error {
	switch m.mode {
	case LedgerModeOff:
		return nil
	case LedgerModeDisk:
		return m.appendLine(ledgerLine{
			Event:     "failed",
			Ticker:    ticker,
			TxHash:    txHash,
			PaymentID: paymentID,
			Reason:    reason,
		})
	}

	key := m.Key(ticker, txHash)
	fields := map[string]string{"failedAt": m.now().Format(time.RFC3339)}
	if reason != "" {
		fields["failureReason"] = reason
	}
	if err := m.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("writing ledger %s: %w", key, err)
	}
	return m.refreshTTL(ctx, key)
}

func (m *LedgerModel) refreshTTL(ctx context.Context, key string) error {
	if m.ledgerTTL <= 0 {
		return nil
	}
	if err := m.store.Expire(ctx, key, m.ledgerTTL); err != nil {
		return fmt.Errorf("setting ttl on ledger %s: %w", key, err)
	}
	return nil
}

func (m *LedgerModel) appendLine(line ledgerLine) error {
	line.At = m.now().Format(time.RFC3339)
	payload, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("marshalling ledger line: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err = os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("creating ledger dir %s: %w", m.dir, err)
	}
	path := filepath.Join(m.dir, fmt.Sprintf("%s.ledger.jsonl", line.Ticker))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening ledger file %s: %w", path, err)
	}
	defer f.Close()

	if _, err = f.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("appending to ledger file %s: %w", path, err)
	}
	return nil
}
