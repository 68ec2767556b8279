package validators

import (
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionCallbackRequest is the body accepted by the manual settlement
// callback. It mirrors the fields the watcher would have observed on chain.
type TransactionCallbackRequest struct {
	PaymentID       string `json:"paymentId"`
	Address         string `json:"address"`
	Amount          string `json:"amount"`
	AmountAtomic    string `json:"amountAtomic"`
	ExpectedAmount  string `json:"expectedAmount"`
	Confirmations   *int64 `json:"confirmations"`
	Hash            string `json:"hash"`
	ClientReference string `json:"clientReference"`
	CreatedAt       string `json:"createdAt"`
}

type TransactionCallbackValidator struct {
	*Validator
}

// NewTransactionCallbackValidator creates a new TransactionCallbackValidator
func NewTransactionCallbackValidator() *TransactionCallbackValidator {
	return &TransactionCallbackValidator{
		Validator: NewValidator(),
	}
}

// ValidateCallbackRequest validates and normalizes the request in place.
func (v *TransactionCallbackValidator) ValidateCallbackRequest(req *TransactionCallbackRequest) {
	paymentID := strings.ToLower(strings.TrimSpace(req.PaymentID))
	hash := strings.TrimSpace(req.Hash)
	amountAtomic := strings.TrimSpace(req.AmountAtomic)
	amount := strings.TrimSpace(req.Amount)
	createdAt := strings.TrimSpace(req.CreatedAt)

	v.Check(paymentID != "", "paymentId", "paymentId is required")
	v.Check(hash != "", "hash", "hash is required")

	v.Check(amountAtomic != "", "amountAtomic", "amountAtomic is required")
	if amountAtomic != "" {
		parsed, ok := new(big.Int).SetString(amountAtomic, 10)
		if !ok {
			v.Check(false, "amountAtomic", "amountAtomic must be a base-10 integer")
		} else {
			v.Check(parsed.Sign() > 0, "amountAtomic", "amountAtomic must be positive")
		}
	}

	if amount != "" {
		_, err := decimal.NewFromString(amount)
		v.CheckError(err, "amount", "amount must be a decimal number")
	}

	v.Check(req.Confirmations != nil, "confirmations", "confirmations is required")
	if req.Confirmations != nil {
		v.Check(*req.Confirmations >= 0, "confirmations", "confirmations cannot be negative")
	}

	if createdAt != "" {
		_, err := time.Parse(time.RFC3339, createdAt)
		v.CheckError(err, "createdAt", "createdAt must be an RFC3339 timestamp")
	}

	req.PaymentID = paymentID
	req.Hash = hash
	req.AmountAtomic = amountAtomic
	req.Amount = amount
	req.Address = strings.TrimSpace(req.Address)
	req.ClientReference = strings.TrimSpace(req.ClientReference)
	req.CreatedAt = createdAt
}
