package httphandler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/go-chi/chi/v5"
	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/zanopay/zano-deposit-watcher/internal/data"
	"github.com/zanopay/zano-deposit-watcher/internal/monitor"
	"github.com/zanopay/zano-deposit-watcher/internal/serve/httperror"
)

// TransactionStatusHandler serves the public deposit status endpoint. Reads
// go through a small in-process TTL cache so merchant pollers do not hammer
// the KV store between watcher passes.
type TransactionStatusHandler struct {
	Models         *data.Models
	MonitorService monitor.MonitorServiceInterface
	CacheTTL       time.Duration
	cache          *ristretto.Cache
}

// NewTransactionStatusHandler builds the handler with its status cache. A
// cache construction failure degrades to uncached reads.
func NewTransactionStatusHandler(models *data.Models, monitorService monitor.MonitorServiceInterface, cacheTTL time.Duration) *TransactionStatusHandler {
	handler := &TransactionStatusHandler{
		Models:         models,
		MonitorService: monitorService,
		CacheTTL:       cacheTTL,
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		log.Errorf("Failed to create status cache: %v", err)
		return handler
	}
	cache.Wait()

	handler.cache = cache
	return handler
}

func (h *TransactionStatusHandler) GetTransactionStatus(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ticker := strings.ToLower(chi.URLParam(r, "ticker"))
	paymentID := strings.ToLower(chi.URLParam(r, "paymentId"))
	if ticker == "" || paymentID == "" {
		httperror.BadRequest("ticker and paymentId are required", nil, nil).Render(rw)
		return
	}

	cacheKey := ticker + "/" + paymentID
	if h.cache != nil {
		if cached, found := h.cache.Get(cacheKey); found {
			if status, ok := cached.(*data.Status); ok {
				h.monitorCacheOutcome(ctx, "hit")
				httpjson.RenderStatus(rw, http.StatusOK, status, httpjson.JSON)
				return
			}
			h.cache.Del(cacheKey)
		}
	}
	h.monitorCacheOutcome(ctx, "miss")

	status, err := h.Models.Statuses.Get(ctx, ticker, paymentID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			httperror.NotFound("no status found for this deposit", nil, nil).Render(rw)
			return
		}
		httperror.InternalError(ctx, "Cannot retrieve the deposit status", err, nil).Render(rw)
		return
	}

	if h.cache != nil && h.CacheTTL > 0 {
		h.cache.SetWithTTL(cacheKey, status, 1, h.CacheTTL)
	}
	httpjson.RenderStatus(rw, http.StatusOK, status, httpjson.JSON)
}

func (h *TransactionStatusHandler) monitorCacheOutcome(ctx context.Context, outcome string) {
	if h.MonitorService == nil {
		return
	}
	err := h.MonitorService.MonitorCounters(monitor.StatusCacheCounterTag, map[string]string{"outcome": outcome})
	if err != nil {
		log.Ctx(ctx).Errorf("Error monitoring status cache counter: %s", err)
	}
}
