package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/zanopay/zano-deposit-watcher/internal/amount"
	"github.com/zanopay/zano-deposit-watcher/internal/data"
	"github.com/zanopay/zano-deposit-watcher/internal/depositwatcher"
	"github.com/zanopay/zano-deposit-watcher/internal/monitor"
	"github.com/zanopay/zano-deposit-watcher/internal/serve/httperror"
	"github.com/zanopay/zano-deposit-watcher/internal/serve/validators"
	"github.com/zanopay/zano-deposit-watcher/internal/wallet"
)

// CreateTransactionHandler registers an expected deposit: it reserves the
// (ticker, paymentId) slot, seeds the PENDING status clients poll, and arms
// the watch job the watcher drives to settlement.
type CreateTransactionHandler struct {
	Models         *data.Models
	WalletClient   wallet.ClientInterface
	WatcherConfig  depositwatcher.Config
	MonitorService monitor.MonitorServiceInterface
	JobTTL         time.Duration
}

// CreateTransactionResponse is the 201 body for a registered deposit.
type CreateTransactionResponse struct {
	OK              bool   `json:"ok"`
	JobKey          string `json:"jobKey"`
	Status          string `json:"status"`
	Ticker          string `json:"ticker"`
	PaymentID       string `json:"paymentId"`
	Address         string `json:"address"`
	ClientReference string `json:"clientReference"`
	MinConf         int    `json:"minConf"`
	ExpiresAt       string `json:"expiresAt"`
	TTLSeconds      int64  `json:"ttlSeconds"`
}

func (h CreateTransactionHandler) CreateTransaction(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req validators.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperror.BadRequest("invalid request body", err, nil).Render(rw)
		return
	}

	validator := validators.NewCreateTransactionValidator()
	validator.ValidateCreateTransactionRequest(&req)
	if validator.HasErrors() {
		httperror.BadRequest("validation error", nil, validator.Errors).Render(rw)
		return
	}

	if !h.WatcherConfig.IsTickerEnabled(req.Ticker) {
		httperror.BadRequest(fmt.Sprintf("ticker %q is not enabled", req.Ticker), nil, nil).Render(rw)
		return
	}

	// An expected amount more precise than the asset's atomic unit can never
	// match an on-chain transfer.
	if req.ExpectedAmount != "" {
		if _, convErr := amount.ParseToAtomic(req.ExpectedAmount, h.WatcherConfig.DecimalsFor(req.Ticker)); convErr != nil {
			extras := map[string]interface{}{"expectedAmount": convErr.Error()}
			httperror.BadRequest("validation error", nil, extras).Render(rw)
			return
		}
	}

	paymentID, address := req.PaymentID, req.Address
	if paymentID == "" || address == "" {
		if h.WalletClient == nil {
			httperror.ServiceUnavailable("Wallet RPC is not configured.", nil, nil).Render(rw)
			return
		}
		integrated, err := h.WalletClient.MakeIntegratedAddress(ctx, paymentID)
		if err != nil {
			httperror.InternalError(ctx, "Cannot generate a deposit address", err, nil).Render(rw)
			return
		}
		if paymentID == "" {
			paymentID = strings.ToLower(integrated.PaymentID)
		}
		if address == "" {
			address = integrated.IntegratedAddress
		}
	}
	if paymentID == "" || address == "" {
		err := fmt.Errorf("wallet returned an empty integrated address or payment id")
		httperror.InternalError(ctx, "Cannot generate a deposit address", err, nil).Render(rw)
		return
	}

	exists, err := h.Models.Jobs.Exists(ctx, req.Ticker, paymentID)
	if err != nil {
		httperror.InternalError(ctx, "Cannot check for an existing deposit", err, nil).Render(rw)
		return
	}
	if exists {
		httperror.Conflict("a deposit with this payment id is already being watched", nil, nil).Render(rw)
		return
	}

	// A non-PENDING status means the payment id was used recently and its
	// record has not expired yet. Reusing it would corrupt the settled view.
	existingStatus, err := h.Models.Statuses.Get(ctx, req.Ticker, paymentID)
	if err != nil && !errors.Is(err, data.ErrRecordNotFound) {
		httperror.InternalError(ctx, "Cannot check for an existing deposit", err, nil).Render(rw)
		return
	}
	if existingStatus != nil && existingStatus.Status != data.PendingStatus {
		httperror.Conflict("this payment id was recently used by another deposit", nil, nil).Render(rw)
		return
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = h.JobTTL
	}
	if ttl <= 0 {
		ttl = data.DefaultJobTTL
	}

	minConf := h.WatcherConfig.MinConfFor(req.Ticker)
	now := time.Now().UTC()

	status := &data.Status{
		Status:                data.PendingStatus,
		Ticker:                req.Ticker,
		Address:               address,
		PaymentID:             paymentID,
		ClientReference:       req.ClientReference,
		RequiredConfirmations: minConf,
		CreatedAt:             now,
	}
	if err = h.Models.Statuses.Upsert(ctx, status); err != nil {
		httperror.InternalError(ctx, "Cannot register the deposit", err, nil).Render(rw)
		return
	}

	job := &data.Job{
		Ticker:          req.Ticker,
		Address:         address,
		PaymentID:       paymentID,
		ExpectedAmount:  req.ExpectedAmount,
		MinConf:         minConf,
		ClientReference: req.ClientReference,
		CreatedAt:       now,
	}
	if err = h.Models.Jobs.Create(ctx, job, ttl); err != nil {
		if errors.Is(err, data.ErrRecordAlreadyExists) {
			httperror.Conflict("a deposit with this payment id is already being watched", nil, nil).Render(rw)
			return
		}
		httperror.InternalError(ctx, "Cannot register the deposit", err, nil).Render(rw)
		return
	}

	if h.MonitorService != nil {
		if monitorErr := h.MonitorService.MonitorCounters(monitor.JobsCreatedCounterTag, map[string]string{"ticker": req.Ticker}); monitorErr != nil {
			log.Ctx(ctx).Errorf("Error monitoring created jobs counter: %s", monitorErr)
		}
	}

	log.Ctx(ctx).Infof("Registered deposit %s/%s (minConf=%d, ttl=%s)", req.Ticker, paymentID, minConf, ttl)

	response := CreateTransactionResponse{
		OK:              true,
		JobKey:          h.Models.Jobs.Key(req.Ticker, paymentID),
		Status:          string(data.PendingStatus),
		Ticker:          req.Ticker,
		PaymentID:       paymentID,
		Address:         address,
		ClientReference: req.ClientReference,
		MinConf:         minConf,
		ExpiresAt:       now.Add(ttl).Format(time.RFC3339),
		TTLSeconds:      int64(ttl / time.Second),
	}
	httpjson.RenderStatus(rw, http.StatusCreated, response, httpjson.JSON)
}
