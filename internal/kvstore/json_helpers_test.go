package kvstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zanopay/zano-deposit-watcher/internal/kvstore"
	"github.com/zanopay/zano-deposit-watcher/internal/kvstore/kvtest"
)

type statusDoc struct {
	Status        string `json:"status"`
	Confirmations int64  `json:"confirmations"`
}

func Test_SetJSON_GetJSON(t *testing.T) {
	ctx := context.Background()
	store := kvtest.NewStore()

	err := kvstore.SetJSON(ctx, store, "zano:transaction:status:zano:p1", statusDoc{Status: "CONFIRMING", Confirmations: 2}, 7*24*time.Hour)
	require.NoError(t, err)

	var got statusDoc
	found, err := kvstore.GetJSON(ctx, store, "zano:transaction:status:zano:p1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, statusDoc{Status: "CONFIRMING", Confirmations: 2}, got)

	ttl, ok := store.TTL("zano:transaction:status:zano:p1")
	require.True(t, ok)
	assert.InDelta(t, (7 * 24 * time.Hour).Seconds(), ttl.Seconds(), 5)
}

func Test_GetJSON_missingKey(t *testing.T) {
	ctx := context.Background()
	store := kvtest.NewStore()

	var got statusDoc
	found, err := kvstore.GetJSON(ctx, store, "nope", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func Test_GetJSON_malformedPayloadIsTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	store := kvtest.NewStore()

	err := store.Set(ctx, "poisoned", `{"status": CONFIRMING`, 0)
	require.NoError(t, err)

	var got statusDoc
	found, err := kvstore.GetJSON(ctx, store, "poisoned", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func Test_kvtestStore_scanPaging(t *testing.T) {
	ctx := context.Background()
	store := kvtest.NewStore()

	for _, key := range []string{
		"zano:deposit:zano:p1",
		"zano:deposit:zano:p2",
		"zano:deposit:zano:p3",
		"zano:deposit:fusd:p4",
		"zano:seen:hash1",
	} {
		require.NoError(t, store.Set(ctx, key, "x", 0))
	}

	var collected []string
	cursor := "0"
	pages := 0
	for {
		next, keys, err := store.Scan(ctx, cursor, "zano:deposit:zano:*", 2)
		require.NoError(t, err)
		collected = append(collected, keys...)
		pages++
		if next == "0" {
			break
		}
		cursor = next
	}

	assert.Equal(t, 2, pages)
	assert.Equal(t, []string{"zano:deposit:zano:p1", "zano:deposit:zano:p2", "zano:deposit:zano:p3"}, collected)
}
