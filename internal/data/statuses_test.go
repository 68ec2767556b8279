package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zanopay/zano-deposit-watcher/internal/kvstore/kvtest"
	"github.com/zanopay/zano-deposit-watcher/internal/utils"
)

func Test_StatusModel_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("absent status maps to ErrRecordNotFound", func(t *testing.T) {
		m := newTestModels(t, kvtest.NewStore(), Config{}).Statuses
		_, err := m.Get(ctx, "zano", "missing")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("malformed stored JSON reads as absent", func(t *testing.T) {
		store := kvtest.NewStore()
		m := newTestModels(t, store, Config{}).Statuses
		require.NoError(t, store.Set(ctx, m.Key("zano", "pid"), "{oops", 0))

		_, err := m.Get(ctx, "zano", "pid")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})
}

func Test_StatusModel_Upsert(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC)

	newModel := func(t *testing.T) (*kvtest.Store, *StatusModel, *time.Time) {
		t.Helper()
		store := kvtest.NewStore()
		m := newTestModels(t, store, Config{}).Statuses
		current := t0
		m.nowFn = func() time.Time { return current }
		store.Now = func() time.Time { return current }
		return store, m, &current
	}

	t.Run("first write stamps createdAt, updatedAt and the TTL", func(t *testing.T) {
		store, m, _ := newModel(t)

		status := &Status{
			Status:                PendingStatus,
			Ticker:                "zano",
			PaymentID:             "pid1",
			Address:               "A",
			ClientReference:       "r",
			RequiredConfirmations: 3,
		}
		require.NoError(t, m.Upsert(ctx, status))
		assert.True(t, status.CreatedAt.Equal(t0))
		assert.True(t, status.UpdatedAt.Equal(t0))

		got, err := m.Get(ctx, "zano", "pid1")
		require.NoError(t, err)
		assert.Equal(t, PendingStatus, got.Status)
		assert.Equal(t, "r", got.ClientReference)
		assert.Nil(t, got.FeeAtomic)

		ttl, ok := store.TTL(m.Key("zano", "pid1"))
		require.True(t, ok)
		assert.Equal(t, DefaultStatusTTL, ttl)
	})

	t.Run("refresh preserves createdAt and bumps updatedAt", func(t *testing.T) {
		_, m, current := newModel(t)

		require.NoError(t, m.Upsert(ctx, &Status{Status: PendingStatus, Ticker: "zano", PaymentID: "pid"}))

		*current = t0.Add(45 * time.Second)
		refreshed := &Status{Status: ConfirmingStatus, Ticker: "zano", PaymentID: "pid", Hash: "H", Confirmations: 1}
		require.NoError(t, m.Upsert(ctx, refreshed))

		got, err := m.Get(ctx, "zano", "pid")
		require.NoError(t, err)
		assert.True(t, got.CreatedAt.Equal(t0))
		assert.True(t, got.UpdatedAt.Equal(t0.Add(45*time.Second)))
		assert.Equal(t, ConfirmingStatus, got.Status)
	})

	t.Run("confirmations never go backwards for the same hash", func(t *testing.T) {
		_, m, _ := newModel(t)

		require.NoError(t, m.Upsert(ctx, &Status{Status: ConfirmingStatus, Ticker: "zano", PaymentID: "pid", Hash: "H", Confirmations: 3}))

		stale := &Status{Status: ConfirmingStatus, Ticker: "zano", PaymentID: "pid", Hash: "H", Confirmations: 2}
		require.NoError(t, m.Upsert(ctx, stale))
		assert.Equal(t, int64(3), stale.Confirmations) // mutated to the effective value

		got, err := m.Get(ctx, "zano", "pid")
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.Confirmations)
	})

	t.Run("a different hash may report fewer confirmations", func(t *testing.T) {
		_, m, _ := newModel(t)

		require.NoError(t, m.Upsert(ctx, &Status{Status: ConfirmingStatus, Ticker: "zano", PaymentID: "pid", Hash: "H1", Confirmations: 5}))
		require.NoError(t, m.Upsert(ctx, &Status{Status: ConfirmingStatus, Ticker: "zano", PaymentID: "pid", Hash: "H2", Confirmations: 1}))

		got, err := m.Get(ctx, "zano", "pid")
		require.NoError(t, err)
		assert.Equal(t, "H2", got.Hash)
		assert.Equal(t, int64(1), got.Confirmations)
	})

	t.Run("terminal states refuse regressions", func(t *testing.T) {
		_, m, _ := newModel(t)

		fee := utils.StringPtr("10000000000")
		require.NoError(t, m.Upsert(ctx, &Status{
			Status:           CompletedStatus,
			Ticker:           "zano",
			PaymentID:        "pid",
			Hash:             "H",
			Confirmations:    3,
			PaidAmountAtomic: "60000000000000",
			FeeAtomic:        fee,
		}))

		err := m.Upsert(ctx, &Status{Status: ConfirmingStatus, Ticker: "zano", PaymentID: "pid", Hash: "H", Confirmations: 9})
		assert.ErrorContains(t, err, "cannot transition deposit status from COMPLETED to CONFIRMING")

		got, err := m.Get(ctx, "zano", "pid")
		require.NoError(t, err)
		assert.Equal(t, CompletedStatus, got.Status)
		require.NotNil(t, got.FeeAtomic)
		assert.Equal(t, "10000000000", *got.FeeAtomic)
	})

	t.Run("pending may settle directly through the callback path", func(t *testing.T) {
		_, m, _ := newModel(t)

		require.NoError(t, m.Upsert(ctx, &Status{Status: PendingStatus, Ticker: "zano", PaymentID: "pid"}))
		assert.NoError(t, m.Upsert(ctx, &Status{Status: CompletedStatus, Ticker: "zano", PaymentID: "pid", Hash: "H"}))
	})

	t.Run("a poisoned stored record is replaced instead of wedging", func(t *testing.T) {
		store, m, _ := newModel(t)
		require.NoError(t, store.Set(ctx, m.Key("zano", "pid"), "not-json{", 0))

		require.NoError(t, m.Upsert(ctx, &Status{Status: ConfirmingStatus, Ticker: "zano", PaymentID: "pid", Hash: "H", Confirmations: 1}))

		got, err := m.Get(ctx, "zano", "pid")
		require.NoError(t, err)
		assert.Equal(t, ConfirmingStatus, got.Status)
	})

	t.Run("rejects an unknown state", func(t *testing.T) {
		_, m, _ := newModel(t)
		err := m.Upsert(ctx, &Status{Status: "SHIPPED", Ticker: "zano", PaymentID: "pid"})
		assert.ErrorContains(t, err, `invalid deposit status "SHIPPED"`)
	})
}
