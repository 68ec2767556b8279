// Package webhook delivers deposit settlement notifications to the merchant
// backend: canonical payload, shared-secret POST, and the exponential
// backoff schedule the watcher persists between attempts.
package webhook

// EventDepositCompleted is the only event this service emits.
const EventDepositCompleted = "deposit.completed"

// Payload is the canonical webhook body. Field names are wire-stable:
// merchant receivers parse these exact spellings. Paid amounts are gross;
// effective amounts are net of the consolidation fee and equal the gross
// ones when no sweep ran. amount/amountAtomic mirror the gross pair for
// backward compatibility with early receivers.
type Payload struct {
	Event                 string  `json:"event"`
	Ticker                string  `json:"ticker"`
	PaymentID             string  `json:"paymentId"`
	Address               string  `json:"address"`
	Hash                  string  `json:"hash"`
	Amount                string  `json:"amount"`
	AmountAtomic          string  `json:"amountAtomic"`
	PaidAmount            string  `json:"paidAmount"`
	PaidAmountAtomic      string  `json:"paidAmountAtomic"`
	EffectiveAmount       string  `json:"effectiveAmount"`
	EffectiveAmountAtomic string  `json:"effectiveAmountAtomic"`
	FeeAtomic             *string `json:"feeAtomic"`
	Confirmations         int64   `json:"confirmations"`
	RequiredConfirmations int     `json:"requiredConfirmations"`
	ClientReference       string  `json:"clientReference,omitempty"`
	CreatedAt             string  `json:"createdAt,omitempty"`
	CompletedAt           string  `json:"completedAt"`
}
