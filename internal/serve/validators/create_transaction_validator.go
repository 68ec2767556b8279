package validators

import (
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/shopspring/decimal"
)

// maxPaymentIDHexLen is the longest payment id the wallet accepts (32 bytes,
// hex encoded).
const maxPaymentIDHexLen = 64

// CreateTransactionRequest is the body accepted by the deposit registration
// endpoint. PaymentID and Address are optional; when absent the server
// synthesizes them through the wallet's integrated-address call.
type CreateTransactionRequest struct {
	Ticker          string `json:"ticker"`
	ClientReference string `json:"client_reference"`
	PaymentID       string `json:"payment_id"`
	Address         string `json:"address"`
	ExpectedAmount  string `json:"expectedAmount"`
	TTLSeconds      int64  `json:"ttlSeconds"`
}

type CreateTransactionValidator struct {
	*Validator
}

// NewCreateTransactionValidator creates a new CreateTransactionValidator
func NewCreateTransactionValidator() *CreateTransactionValidator {
	return &CreateTransactionValidator{
		Validator: NewValidator(),
	}
}

// ValidateCreateTransactionRequest validates and normalizes the request
// in place.
func (v *CreateTransactionValidator) ValidateCreateTransactionRequest(req *CreateTransactionRequest) {
	ticker := strings.ToLower(strings.TrimSpace(req.Ticker))
	clientReference := strings.TrimSpace(req.ClientReference)
	paymentID := strings.TrimSpace(req.PaymentID)
	address := strings.TrimSpace(req.Address)
	expectedAmount := strings.TrimSpace(req.ExpectedAmount)

	v.Check(ticker != "", "ticker", "ticker is required")
	v.Check(clientReference != "", "client_reference", "client_reference is required")

	if paymentID != "" {
		v.Check(govalidator.IsHexadecimal(paymentID), "payment_id", "payment_id must be a hex string")
		v.Check(len(paymentID) <= maxPaymentIDHexLen, "payment_id", "payment_id must be at most 64 hex characters")
	}

	if expectedAmount != "" {
		parsed, err := decimal.NewFromString(expectedAmount)
		if err != nil {
			v.Check(false, "expectedAmount", "expectedAmount must be a decimal number")
		} else {
			v.Check(parsed.IsPositive(), "expectedAmount", "expectedAmount must be positive")
		}
	}

	v.Check(req.TTLSeconds >= 0, "ttlSeconds", "ttlSeconds cannot be negative")

	req.Ticker = ticker
	req.ClientReference = clientReference
	req.PaymentID = strings.ToLower(paymentID)
	req.Address = address
	req.ExpectedAmount = expectedAmount
}
