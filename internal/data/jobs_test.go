package data

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zanopay/zano-deposit-watcher/internal/kvstore/kvtest"
)

func newTestModels(t *testing.T, store *kvtest.Store, cfg Config) *Models {
	t.Helper()
	models, err := NewModels(store, cfg)
	require.NoError(t, err)
	return models
}

func Test_JobModel_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC)

	t.Run("writes the hash and arms the default TTL", func(t *testing.T) {
		store := kvtest.NewStore()
		store.Now = func() time.Time { return now }
		m := newTestModels(t, store, Config{}).Jobs
		m.nowFn = store.Now

		job := &Job{
			Ticker:          "zano",
			Address:         "ZxD5aAddr",
			PaymentID:       "pid1",
			ExpectedAmount:  "12.5",
			MinConf:         3,
			ClientReference: "order-77",
		}
		require.NoError(t, m.Create(ctx, job, 0))

		fields, err := store.HGetAll(ctx, "zano:deposit:zano:pid1")
		require.NoError(t, err)
		assert.Equal(t, "zano", fields["ticker"])
		assert.Equal(t, "ZxD5aAddr", fields["address"])
		assert.Equal(t, "pid1", fields["paymentId"])
		assert.Equal(t, "12.5", fields["expectedAmount"])
		assert.Equal(t, "3", fields["minConf"])
		assert.Equal(t, "order-77", fields["clientReference"])
		assert.Equal(t, now.Format(time.RFC3339), fields["createdAt"])
		assert.Equal(t, "false", fields["dynamicMinConfApplied"])
		assert.Equal(t, "false", fields["webhookSent"])
		assert.Equal(t, "0", fields["webhookAttempts"])
		assert.Equal(t, "false", fields["consolidationAttempted"])
		assert.NotContains(t, fields, "webhookNextAttemptAt")
		assert.NotContains(t, fields, "webhookLastError")

		ttl, ok := store.TTL("zano:deposit:zano:pid1")
		require.True(t, ok)
		assert.Equal(t, DefaultJobTTL, ttl)
	})

	t.Run("honors a per-create TTL override", func(t *testing.T) {
		store := kvtest.NewStore()
		store.Now = func() time.Time { return now }
		m := newTestModels(t, store, Config{}).Jobs

		job := &Job{Ticker: "zano", Address: "A", PaymentID: "pid2"}
		require.NoError(t, m.Create(ctx, job, 2*time.Hour))

		ttl, ok := store.TTL("zano:deposit:zano:pid2")
		require.True(t, ok)
		assert.Equal(t, 2*time.Hour, ttl)
	})

	t.Run("refuses a second job for the same payment id", func(t *testing.T) {
		store := kvtest.NewStore()
		m := newTestModels(t, store, Config{}).Jobs

		job := &Job{Ticker: "zano", Address: "A", PaymentID: "pid3"}
		require.NoError(t, m.Create(ctx, job, 0))

		err := m.Create(ctx, &Job{Ticker: "zano", Address: "B", PaymentID: "pid3"}, 0)
		assert.ErrorIs(t, err, ErrRecordAlreadyExists)
	})

	t.Run("validates required fields", func(t *testing.T) {
		m := newTestModels(t, kvtest.NewStore(), Config{}).Jobs

		err := m.Create(ctx, &Job{Ticker: "zano", PaymentID: "pid"}, 0)
		assert.EqualError(t, err, "address is required")

		err = m.Create(ctx, &Job{Address: "A", PaymentID: "pid"}, 0)
		assert.EqualError(t, err, "ticker and paymentId are required")

		err = m.Create(ctx, nil, 0)
		assert.EqualError(t, err, "job is required")
	})
}

func Test_JobModel_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("absent job maps to ErrRecordNotFound", func(t *testing.T) {
		m := newTestModels(t, kvtest.NewStore(), Config{}).Jobs
		_, err := m.Get(ctx, "zano", "missing")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("round-trips a created job", func(t *testing.T) {
		store := kvtest.NewStore()
		m := newTestModels(t, store, Config{}).Jobs
		now := time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC)
		m.nowFn = func() time.Time { return now }

		want := &Job{
			Ticker:          "fusd",
			Address:         "iZAddr",
			PaymentID:       "cafe01",
			ExpectedAmount:  "200",
			MinConf:         6,
			ClientReference: "ref",
		}
		require.NoError(t, m.Create(ctx, want, 0))

		got, err := m.Get(ctx, "fusd", "cafe01")
		require.NoError(t, err)
		assert.Equal(t, want.Ticker, got.Ticker)
		assert.Equal(t, want.Address, got.Address)
		assert.Equal(t, want.PaymentID, got.PaymentID)
		assert.Equal(t, want.ExpectedAmount, got.ExpectedAmount)
		assert.Equal(t, want.MinConf, got.MinConf)
		assert.Equal(t, want.ClientReference, got.ClientReference)
		assert.True(t, got.CreatedAt.Equal(now))
		assert.False(t, got.DynamicMinConfApplied)
		assert.False(t, got.WebhookSent)
		assert.Zero(t, got.WebhookAttempts)
		assert.Zero(t, got.WebhookNextAttemptAt)
	})

	t.Run("decode tolerates junk written by older deployments", func(t *testing.T) {
		store := kvtest.NewStore()
		m := newTestModels(t, store, Config{}).Jobs

		require.NoError(t, store.HSet(ctx, m.Key("zano", "legacy"), map[string]string{
			"ticker":          "zano",
			"address":         "A",
			"minConf":         "not-a-number",
			"webhookSent":     "yes-please",
			"createdAt":       "last tuesday",
			"webhookAttempts": "",
		}))

		got, err := m.Get(ctx, "zano", "legacy")
		require.NoError(t, err)
		assert.Equal(t, "A", got.Address)
		assert.Empty(t, got.PaymentID) // worker backfills from the key
		assert.Zero(t, got.MinConf)
		assert.False(t, got.WebhookSent)
		assert.True(t, got.CreatedAt.IsZero())
	})
}

func Test_JobModel_partialUpdates(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) (*kvtest.Store, *JobModel, string) {
		t.Helper()
		store := kvtest.NewStore()
		m := newTestModels(t, store, Config{}).Jobs
		job := &Job{Ticker: "zano", Address: "A", PaymentID: "pid", MinConf: 1, ClientReference: "r"}
		require.NoError(t, m.Create(ctx, job, 0))
		return store, m, m.Key("zano", "pid")
	}

	t.Run("ApplyDynamicMinConf writes threshold and latch together", func(t *testing.T) {
		store, m, key := seed(t)
		require.NoError(t, m.ApplyDynamicMinConf(ctx, "zano", "pid", 6))

		fields, err := store.HGetAll(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "6", fields["minConf"])
		assert.Equal(t, "true", fields["dynamicMinConfApplied"])
		assert.Equal(t, "A", fields["address"]) // untouched
	})

	t.Run("SetPaymentID backfills only the id field", func(t *testing.T) {
		store, m, key := seed(t)
		require.NoError(t, store.HSet(ctx, key, map[string]string{"paymentId": ""}))
		require.NoError(t, m.SetPaymentID(ctx, "zano", "pid"))

		fields, err := store.HGetAll(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "pid", fields["paymentId"])
	})

	t.Run("consolidation latch and outcome", func(t *testing.T) {
		store, m, key := seed(t)
		require.NoError(t, m.RecordConsolidationAttempt(ctx, "zano", "pid"))
		require.NoError(t, m.RecordConsolidationOutcome(ctx, "zano", "pid", "sweep-tx-1", ""))

		fields, err := store.HGetAll(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "true", fields["consolidationAttempted"])
		assert.Equal(t, "sweep-tx-1", fields["consolidationTxId"])
		assert.NotContains(t, fields, "consolidationError")
	})

	t.Run("consolidation failure stores the clamped error", func(t *testing.T) {
		store, m, key := seed(t)
		long := strings.Repeat("x", 900)
		require.NoError(t, m.RecordConsolidationOutcome(ctx, "zano", "pid", "", long))

		fields, err := store.HGetAll(ctx, key)
		require.NoError(t, err)
		assert.Len(t, fields["consolidationError"], maxStoredErrorLen)
	})

	t.Run("MarkWebhookDelivered latches and clears the schedule", func(t *testing.T) {
		store, m, key := seed(t)
		require.NoError(t, m.RecordWebhookFailure(ctx, "zano", "pid", WebhookFailure{
			Attempts:       2,
			FirstAttemptAt: 1_000,
			LastAttemptAt:  2_000,
			NextAttemptAt:  4_000,
			LastError:      "status 500",
		}))
		require.NoError(t, m.MarkWebhookDelivered(ctx, "zano", "pid"))

		fields, err := store.HGetAll(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "true", fields["webhookSent"])
		assert.Equal(t, "0", fields["webhookNextAttemptAt"])
		assert.Empty(t, fields["webhookLastError"])
		assert.Equal(t, "2", fields["webhookAttempts"]) // history is kept
	})

	t.Run("RecordWebhookFailure persists the whole schedule", func(t *testing.T) {
		store, m, key := seed(t)
		require.NoError(t, m.RecordWebhookFailure(ctx, "zano", "pid", WebhookFailure{
			Attempts:       1,
			FirstAttemptAt: 1_700_000_000_000,
			LastAttemptAt:  1_700_000_000_000,
			NextAttemptAt:  1_700_000_001_000,
			LastError:      strings.Repeat("e", 600),
		}))

		fields, err := store.HGetAll(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "1", fields["webhookAttempts"])
		assert.Equal(t, "1700000000000", fields["webhookFirstAttemptAt"])
		assert.Equal(t, "1700000000000", fields["webhookLastAttemptAt"])
		assert.Equal(t, "1700000001000", fields["webhookNextAttemptAt"])
		assert.Len(t, fields["webhookLastError"], maxStoredErrorLen)

		got, err := m.Get(ctx, "zano", "pid")
		require.NoError(t, err)
		assert.Equal(t, 1, got.WebhookAttempts)
		assert.Equal(t, int64(1_700_000_001_000), got.WebhookNextAttemptAt)
	})

	t.Run("Delete removes the hash", func(t *testing.T) {
		store, m, key := seed(t)
		require.NoError(t, m.Delete(ctx, "zano", "pid"))

		exists, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists)
	})
}
