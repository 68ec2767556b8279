package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/zanopay/zano-deposit-watcher/internal/amount"
	"github.com/zanopay/zano-deposit-watcher/internal/data"
	"github.com/zanopay/zano-deposit-watcher/internal/depositwatcher"
	"github.com/zanopay/zano-deposit-watcher/internal/serve/httperror"
	"github.com/zanopay/zano-deposit-watcher/internal/serve/validators"
)

// TransactionCallbackHandler settles a deposit out of band: an operator (or a
// trusted upstream) reports the observed transfer and the handler applies the
// same terminal writes the watcher would have made.
type TransactionCallbackHandler struct {
	Models        *data.Models
	WatcherConfig depositwatcher.Config
}

// TransactionCallbackResponse is the 202 body for an accepted settlement.
type TransactionCallbackResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

func (h TransactionCallbackHandler) SettleTransaction(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ticker := strings.ToLower(chi.URLParam(r, "ticker"))
	if ticker == "" {
		httperror.BadRequest("ticker is required", nil, nil).Render(rw)
		return
	}

	var req validators.TransactionCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperror.BadRequest("invalid request body", err, nil).Render(rw)
		return
	}

	validator := validators.NewTransactionCallbackValidator()
	validator.ValidateCallbackRequest(&req)
	if validator.HasErrors() {
		httperror.BadRequest("validation error", nil, validator.Errors).Render(rw)
		return
	}

	// The live job, when present, fills the fields the caller omitted.
	job, err := h.Models.Jobs.Get(ctx, ticker, req.PaymentID)
	if err != nil && !errors.Is(err, data.ErrRecordNotFound) {
		httperror.InternalError(ctx, "Cannot read the deposit job", err, nil).Render(rw)
		return
	}

	status := h.buildCompletedStatus(ticker, &req, job)
	if err = h.Models.Statuses.Upsert(ctx, status); err != nil {
		if errors.Is(err, data.ErrInvalidTransition) {
			httperror.Conflict("the deposit is already in a terminal state", err, nil).Render(rw)
			return
		}
		httperror.InternalError(ctx, "Cannot settle the deposit", err, nil).Render(rw)
		return
	}

	if err = h.Models.Seen.Mark(ctx, req.Hash); err != nil {
		httperror.InternalError(ctx, "Cannot mark the transfer as settled", err, nil).Render(rw)
		return
	}

	if job != nil {
		if err = h.Models.Jobs.Delete(ctx, ticker, req.PaymentID); err != nil {
			// The job will still be skipped by the Seen guard and reaped by
			// its TTL, so log instead of failing the settlement.
			log.Ctx(ctx).Errorf("Error deleting job after callback settlement of %s/%s: %s", ticker, req.PaymentID, err)
		}
	}

	log.Ctx(ctx).Infof("Deposit %s/%s settled via callback (hash=%s)", ticker, req.PaymentID, req.Hash)

	response := TransactionCallbackResponse{
		OK:     true,
		Status: string(data.CompletedStatus),
	}
	httpjson.RenderStatus(rw, http.StatusAccepted, response, httpjson.JSON)
}

// buildCompletedStatus assembles the terminal status record, preferring the
// caller's fields and falling back to the registered job.
func (h TransactionCallbackHandler) buildCompletedStatus(ticker string, req *validators.TransactionCallbackRequest, job *data.Job) *data.Status {
	decimalStr := req.Amount
	if decimalStr == "" {
		formatted, err := amount.FormatAtomicString(req.AmountAtomic, h.WatcherConfig.DecimalsFor(ticker))
		if err == nil {
			decimalStr = formatted
		}
	}

	status := &data.Status{
		Status:                data.CompletedStatus,
		Ticker:                ticker,
		Address:               req.Address,
		PaymentID:             req.PaymentID,
		ClientReference:       req.ClientReference,
		Confirmations:         *req.Confirmations,
		RequiredConfirmations: h.WatcherConfig.MinConfFor(ticker),
		Hash:                  req.Hash,
		PaidAmount:            decimalStr,
		PaidAmountAtomic:      req.AmountAtomic,
		EffectiveAmount:       decimalStr,
		EffectiveAmountAtomic: req.AmountAtomic,
	}

	if req.CreatedAt != "" {
		if createdAt, err := time.Parse(time.RFC3339, req.CreatedAt); err == nil {
			status.CreatedAt = createdAt.UTC()
		}
	}

	if job != nil {
		if status.Address == "" {
			status.Address = job.Address
		}
		if status.ClientReference == "" {
			status.ClientReference = job.ClientReference
		}
		if job.MinConf > 0 {
			status.RequiredConfirmations = job.MinConf
		}
		if status.CreatedAt.IsZero() {
			status.CreatedAt = job.CreatedAt
		}
	}

	return status
}
