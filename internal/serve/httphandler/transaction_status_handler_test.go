package httphandler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zanopay/zano-deposit-watcher/internal/data"
	"github.com/zanopay/zano-deposit-watcher/internal/kvstore/kvtest"
	"github.com/zanopay/zano-deposit-watcher/internal/monitor"
)

func Test_TransactionStatusHandler_GetTransactionStatus(t *testing.T) {
	ctx := context.Background()

	newRouter := func(handler *TransactionStatusHandler) *chi.Mux {
		r := chi.NewRouter()
		r.Get("/api/transaction/status/{ticker}/{paymentId}", handler.GetTransactionStatus)
		return r
	}

	t.Run("returns 404 when there is no status", func(t *testing.T) {
		handler := NewTransactionStatusHandler(newTestModels(t, kvtest.NewStore()), nil, 5*time.Second)
		r := newRouter(handler)

		req := httptest.NewRequest(http.MethodGet, "/api/transaction/status/zano/unknown", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error": "no status found for this deposit"}`, w.Body.String())
	})

	t.Run("returns the stored status", func(t *testing.T) {
		models := newTestModels(t, kvtest.NewStore())
		handler := NewTransactionStatusHandler(models, nil, 5*time.Second)
		r := newRouter(handler)

		err := models.Statuses.Upsert(ctx, &data.Status{
			Status:                data.ConfirmingStatus,
			Ticker:                "zano",
			PaymentID:             "deadbeef",
			Address:               "ZxAddr",
			ClientReference:       "order-1",
			Confirmations:         2,
			RequiredConfirmations: 3,
			Hash:                  "txhash1",
			PaidAmount:            "1.25",
			PaidAmountAtomic:      "1250000000000",
			EffectiveAmount:       "1.25",
			EffectiveAmountAtomic: "1250000000000",
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/transaction/status/zano/DEADBEEF", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"CONFIRMING"`)
		assert.Contains(t, w.Body.String(), `"confirmations":2`)
		assert.Contains(t, w.Body.String(), `"paidAmountAtomic":"1250000000000"`)
	})

	t.Run("serves repeated reads from the cache", func(t *testing.T) {
		mMonitorService := &monitor.MockMonitorService{}
		mMonitorService.
			On("MonitorCounters", monitor.StatusCacheCounterTag, map[string]string{"outcome": "miss"}).
			Return(nil).
			Once()
		mMonitorService.
			On("MonitorCounters", monitor.StatusCacheCounterTag, map[string]string{"outcome": "hit"}).
			Return(nil).
			Once()

		store := kvtest.NewStore()
		models := newTestModels(t, store)
		handler := NewTransactionStatusHandler(models, mMonitorService, 5*time.Second)
		r := newRouter(handler)

		err := models.Statuses.Upsert(ctx, &data.Status{
			Status:    data.PendingStatus,
			Ticker:    "zano",
			PaymentID: "cachedpid",
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/transaction/status/zano/cachedpid", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		// wait for the async cache write, then kill the backing store to
		// prove the second read never reaches it
		handler.cache.Wait()
		store.FailWith("GET", errors.New("kv down"))

		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"paymentId":"cachedpid"`)

		mMonitorService.AssertExpectations(t)
	})

	t.Run("does not cache when the TTL is zero", func(t *testing.T) {
		store := kvtest.NewStore()
		models := newTestModels(t, store)
		handler := NewTransactionStatusHandler(models, nil, 0)
		r := newRouter(handler)

		err := models.Statuses.Upsert(ctx, &data.Status{
			Status:    data.PendingStatus,
			Ticker:    "zano",
			PaymentID: "uncachedpid",
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/transaction/status/zano/uncachedpid", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		handler.cache.Wait()
		store.FailWith("GET", errors.New("kv down"))

		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("returns 500 on a KV read failure", func(t *testing.T) {
		store := kvtest.NewStore()
		store.FailWith("GET", fmt.Errorf("kv timeout"))
		handler := NewTransactionStatusHandler(newTestModels(t, store), nil, time.Second)
		r := newRouter(handler)

		req := httptest.NewRequest(http.MethodGet, "/api/transaction/status/zano/pid", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
