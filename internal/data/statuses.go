package data

import (
	"context"
	"fmt"
	"time"

	"github.com/zanopay/zano-deposit-watcher/internal/kvstore"
)

// Status is the client-visible record for a deposit, written at every state
// change and served by the status endpoint. It outlives the Job so merchants
// can poll terminal outcomes after cleanup.
type Status struct {
	Status                StatusState `json:"status"`
	Ticker                string      `json:"ticker"`
	Address               string      `json:"address,omitempty"`
	PaymentID             string      `json:"paymentId"`
	ClientReference       string      `json:"clientReference,omitempty"`
	Confirmations         int64       `json:"confirmations"`
	RequiredConfirmations int         `json:"requiredConfirmations"`
	Hash                  string      `json:"hash,omitempty"`
	PaidAmount            string      `json:"paidAmount,omitempty"`
	PaidAmountAtomic      string      `json:"paidAmountAtomic,omitempty"`
	EffectiveAmount       string      `json:"effectiveAmount,omitempty"`
	EffectiveAmountAtomic string      `json:"effectiveAmountAtomic,omitempty"`
	FeeAtomic             *string     `json:"feeAtomic"`
	CreatedAt             time.Time   `json:"createdAt"`
	UpdatedAt             time.Time   `json:"updatedAt"`
	WebhookError          string      `json:"webhookError,omitempty"`
}

type StatusModel struct {
	store     kvstore.Store
	keyPrefix string
	statusTTL time.Duration
	nowFn     func() time.Time
}

func (m *StatusModel) now() time.Time {
	if m.nowFn != nil {
		return m.nowFn()
	}
	return time.Now().UTC()
}

func (m *StatusModel) Key(ticker, paymentID string) string {
	return StatusKey(m.keyPrefix, ticker, paymentID)
}

func (m *StatusModel) Get(ctx context.Context, ticker, paymentID string) (*Status, error) {
	var status Status
	found, err := kvstore.GetJSON(ctx, m.store, m.Key(ticker, paymentID), &status)
	if err != nil {
		return nil, fmt.Errorf("reading status: %w", err)
	}
	if !found {
		return nil, ErrRecordNotFound
	}
	return &status, nil
}

// Upsert writes the status record, enforcing the lifecycle transitions. A
// pre-existing record pins createdAt and, for the same observed hash, keeps
// confirmations from going backwards when the node briefly reports a stale
// tip. The passed status is mutated with the effective values.
func (m *StatusModel) Upsert(ctx context.Context, status *Status) error {
	if status == nil {
		return fmt.Errorf("status is required")
	}
	if status.Ticker == "" || status.PaymentID == "" {
		return fmt.Errorf("ticker and paymentId are required")
	}
	if err := status.Status.Validate(); err != nil {
		return fmt.Errorf("validating status: %w", err)
	}

	key := m.Key(status.Ticker, status.PaymentID)

	// A malformed stored record reads back as absent, so one poisoned blob
	// cannot block the deposit from progressing.
	var existing Status
	found, err := kvstore.GetJSON(ctx, m.store, key, &existing)
	if err != nil {
		return fmt.Errorf("reading status %s: %w", key, err)
	}

	if found && existing.Status.Validate() == nil {
		if err = existing.Status.TransitionTo(status.Status); err != nil {
			return fmt.Errorf("upserting status %s: %w", key, err)
		}
		if !existing.CreatedAt.IsZero() {
			status.CreatedAt = existing.CreatedAt
		}
		if existing.Hash != "" && existing.Hash == status.Hash && status.Confirmations < existing.Confirmations {
			status.Confirmations = existing.Confirmations
		}
	}

	now := m.now()
	if status.CreatedAt.IsZero() {
		status.CreatedAt = now
	}
	status.UpdatedAt = now

	if err = kvstore.SetJSON(ctx, m.store, key, status, m.statusTTL); err != nil {
		return fmt.Errorf("writing status %s: %w", key, err)
	}
	return nil
}
