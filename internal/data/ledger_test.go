package data

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zanopay/zano-deposit-watcher/internal/kvstore/kvtest"
)

func Test_ParseLedgerMode(t *testing.T) {
	for _, s := range []string{"off", "KV", " disk "} {
		mode, err := ParseLedgerMode(s)
		require.NoError(t, err)
		assert.NoError(t, mode.Validate())
	}

	_, err := ParseLedgerMode("paper")
	assert.ErrorContains(t, err, `invalid ledger mode "paper"`)
}

func Test_LedgerModel_offMode(t *testing.T) {
	ctx := context.Background()
	store := kvtest.NewStore()
	m := newTestModels(t, store, Config{}).Ledger

	require.NoError(t, m.UpsertObservation(ctx, LedgerObservation{Ticker: "zano", TxHash: "H"}))
	require.NoError(t, m.RecordWebhookDelivered(ctx, "zano", "H", "pid"))
	require.NoError(t, m.RecordFailed(ctx, "zano", "H", "pid", "window exhausted"))

	assert.Empty(t, store.Keys())
}

func Test_LedgerModel_kvMode(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC)

	store := kvtest.NewStore()
	m := newTestModels(t, store, Config{LedgerMode: LedgerModeKV, LedgerTTL: time.Hour}).Ledger
	current := t0
	m.nowFn = func() time.Time { return current }
	store.Now = func() time.Time { return current }

	obs := LedgerObservation{
		Ticker:        "zano",
		TxHash:        "H",
		PaymentID:     "pid",
		Address:       "A",
		AmountAtomic:  "60000000000000",
		Confirmations: 1,
	}
	require.NoError(t, m.UpsertObservation(ctx, obs))

	key := "zano:deposit:ledger:zano:H"
	fields, err := store.HGetAll(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, t0.Format(time.RFC3339), fields["firstSeenAt"])
	assert.Equal(t, t0.Format(time.RFC3339), fields["lastSeenAt"])
	assert.Equal(t, "1", fields["confirmations"])

	// A later sighting refreshes last-seen but keeps first-seen.
	current = t0.Add(30 * time.Second)
	obs.Confirmations = 3
	require.NoError(t, m.UpsertObservation(ctx, obs))

	fields, err = store.HGetAll(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, t0.Format(time.RFC3339), fields["firstSeenAt"])
	assert.Equal(t, current.Format(time.RFC3339), fields["lastSeenAt"])
	assert.Equal(t, "3", fields["confirmations"])

	require.NoError(t, m.RecordWebhookDelivered(ctx, "zano", "H", "pid"))
	require.NoError(t, m.RecordFailed(ctx, "zano", "H", "pid", "window exhausted"))

	fields, err = store.HGetAll(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, current.Format(time.RFC3339), fields["webhookDeliveredAt"])
	assert.Equal(t, current.Format(time.RFC3339), fields["failedAt"])
	assert.Equal(t, "window exhausted", fields["failureReason"])

	ttl, ok := store.TTL(key)
	require.True(t, ok)
	assert.Equal(t, time.Hour, ttl)
}

func Test_LedgerModel_diskMode(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store := kvtest.NewStore()
	m := newTestModels(t, store, Config{LedgerMode: LedgerModeDisk, LedgerDir: dir}).Ledger

	require.NoError(t, m.UpsertObservation(ctx, LedgerObservation{
		Ticker:        "fusd",
		TxHash:        "H",
		PaymentID:     "pid",
		AmountAtomic:  "200000000000000",
		Confirmations: 2,
	}))
	require.NoError(t, m.RecordWebhookDelivered(ctx, "fusd", "H", "pid"))

	raw, err := os.ReadFile(filepath.Join(dir, "fusd.ledger.jsonl"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)

	var first, second ledgerLine
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))

	assert.Equal(t, "observed", first.Event)
	assert.Equal(t, "200000000000000", first.AmountAtomic)
	assert.Equal(t, int64(2), first.Confirmations)
	assert.Equal(t, "webhook_delivered", second.Event)
	assert.Equal(t, "pid", second.PaymentID)

	// Nothing leaks into the KV store in disk mode.
	assert.Empty(t, store.Keys())
}
