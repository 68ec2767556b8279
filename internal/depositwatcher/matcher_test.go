package depositwatcher

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zanopay/zano-deposit-watcher/internal/data"
	"github.com/zanopay/zano-deposit-watcher/internal/wallet"
)

const testAssetID = "86143388462d047b1b462293fdc4bae8b34b2605a72ce980225e44bbf6b0d709"

func Test_NewMatcher(t *testing.T) {
	t.Run("returns an error when the wallet client is nil", func(t *testing.T) {
		matcher, err := NewMatcher(nil, 100)
		require.EqualError(t, err, "wallet client cannot be nil")
		assert.Nil(t, matcher)
	})

	t.Run("non-positive scan count falls back to the wallet default", func(t *testing.T) {
		matcher, err := NewMatcher(&wallet.MockClient{}, 0)
		require.NoError(t, err)
		assert.Equal(t, wallet.DefaultRecentTxsCount, matcher.scanCount)
	})
}

func Test_Matcher_Match_baseCoin(t *testing.T) {
	ctx := context.Background()
	job := &data.Job{Ticker: "zano", Address: "ZxDeposit", PaymentID: "a1b2c3d4"}

	t.Run("🎉 payment feed entries become observations", func(t *testing.T) {
		mClient := &wallet.MockClient{}
		defer mClient.AssertExpectations(t)
		mClient.
			On("GetPayments", ctx, "a1b2c3d4").
			Return([]wallet.DepositEntry{
				{Hash: "txhash1", AmountAtomic: big.NewInt(1_000_000), BlockHeight: 100},
				{Hash: "txhash2", AmountAtomic: big.NewInt(2_000_000), Confirmations: 9},
			}, nil).
			Once()

		matcher, err := NewMatcher(mClient, 100)
		require.NoError(t, err)

		observations, err := matcher.Match(ctx, job, "", 105)
		require.NoError(t, err)
		require.Len(t, observations, 2)

		byHash := map[string]wallet.DepositObservation{}
		for _, obs := range observations {
			byHash[obs.Hash] = obs
		}

		// height arithmetic: 105 - 100 + 1
		assert.Equal(t, int64(6), byHash["txhash1"].Confirmations)
		assert.Equal(t, "1000000", byHash["txhash1"].AmountAtomic.String())
		assert.Equal(t, "ZxDeposit", byHash["txhash1"].Address)
		assert.Equal(t, "zano", byHash["txhash1"].Ticker)

		// no block height, the feed's own count survives
		assert.Equal(t, int64(9), byHash["txhash2"].Confirmations)
	})

	t.Run("empty payment feed falls back to the recent-txs feed", func(t *testing.T) {
		mClient := &wallet.MockClient{}
		defer mClient.AssertExpectations(t)
		mClient.
			On("GetPayments", ctx, "a1b2c3d4").
			Return([]wallet.DepositEntry{}, nil).
			Once()
		mClient.
			On("GetRecentTxs", ctx, wallet.RecentTxsParams{
				Count:               100,
				ExcludeMiningTxs:    true,
				Order:               wallet.OrderFromEndToBegin,
				UpdateProvisionInfo: true,
			}).
			Return(&wallet.RecentTxsResult{Transfers: []wallet.TxEntry{
				{
					PaymentID: "a1b2c3d4",
					TxHash:    "txhash3",
					Height:    101,
					Subtransfers: []wallet.Subtransfer{
						{Amount: wallet.NewAtomic(big.NewInt(5_000_000)), AssetID: "", IsIncome: true},
					},
				},
			}}, nil).
			Once()

		matcher, err := NewMatcher(mClient, 100)
		require.NoError(t, err)

		observations, err := matcher.Match(ctx, job, "", 105)
		require.NoError(t, err)
		require.Len(t, observations, 1)
		assert.Equal(t, "txhash3", observations[0].Hash)
		assert.Equal(t, "5000000", observations[0].AmountAtomic.String())
		assert.Equal(t, int64(5), observations[0].Confirmations)
	})

	t.Run("zero-amount and hashless entries are skipped", func(t *testing.T) {
		mClient := &wallet.MockClient{}
		defer mClient.AssertExpectations(t)
		mClient.
			On("GetPayments", ctx, "a1b2c3d4").
			Return([]wallet.DepositEntry{
				{Hash: "", AmountAtomic: big.NewInt(1_000_000)},
				{Hash: "txhash4", AmountAtomic: nil},
				{Hash: "txhash5", AmountAtomic: big.NewInt(0)},
			}, nil).
			Once()
		mClient.
			On("GetRecentTxs", ctx, mockRecentTxsParams(100)).
			Return(&wallet.RecentTxsResult{}, nil).
			Once()

		matcher, err := NewMatcher(mClient, 100)
		require.NoError(t, err)

		observations, err := matcher.Match(ctx, job, "", 105)
		require.NoError(t, err)
		assert.Empty(t, observations)
	})

	t.Run("duplicate hashes keep the highest confirmation count", func(t *testing.T) {
		mClient := &wallet.MockClient{}
		defer mClient.AssertExpectations(t)
		mClient.
			On("GetPayments", ctx, "a1b2c3d4").
			Return([]wallet.DepositEntry{
				{Hash: "txhash6", AmountAtomic: big.NewInt(1_000_000), Confirmations: 2},
				{Hash: "txhash6", AmountAtomic: big.NewInt(1_000_000), Confirmations: 7},
				{Hash: "txhash6", AmountAtomic: big.NewInt(1_000_000), Confirmations: 4},
			}, nil).
			Once()

		matcher, err := NewMatcher(mClient, 100)
		require.NoError(t, err)

		observations, err := matcher.Match(ctx, job, "", 0)
		require.NoError(t, err)
		require.Len(t, observations, 1)
		assert.Equal(t, int64(7), observations[0].Confirmations)
	})

	t.Run("payment feed errors bubble up", func(t *testing.T) {
		mClient := &wallet.MockClient{}
		defer mClient.AssertExpectations(t)
		mClient.
			On("GetPayments", ctx, "a1b2c3d4").
			Return(nil, &wallet.RPCError{Method: "get_payments", StatusCode: 500}).
			Once()

		matcher, err := NewMatcher(mClient, 100)
		require.NoError(t, err)

		_, err = matcher.Match(ctx, job, "", 105)
		require.Error(t, err)

		var rpcErr *wallet.RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, "get_payments", rpcErr.Method)
	})
}

func Test_Matcher_Match_asset(t *testing.T) {
	ctx := context.Background()
	job := &data.Job{Ticker: "fusd", Address: "ZxDeposit", PaymentID: "a1b2c3d4"}

	t.Run("🎉 sums the income legs matching the asset id", func(t *testing.T) {
		mClient := &wallet.MockClient{}
		defer mClient.AssertExpectations(t)
		mClient.
			On("GetRecentTxs", ctx, mockRecentTxsParams(100)).
			Return(&wallet.RecentTxsResult{Transfers: []wallet.TxEntry{
				{
					PaymentID: "a1b2c3d4",
					TxHash:    "txhash1",
					Height:    100,
					Subtransfers: []wallet.Subtransfer{
						{Amount: wallet.NewAtomic(big.NewInt(300)), AssetID: testAssetID, IsIncome: true},
						{Amount: wallet.NewAtomic(big.NewInt(200)), AssetID: testAssetID, IsIncome: true},
						// outgoing change leg, ignored
						{Amount: wallet.NewAtomic(big.NewInt(999)), AssetID: testAssetID, IsIncome: false},
						// base-coin leg, ignored in asset mode
						{Amount: wallet.NewAtomic(big.NewInt(50)), AssetID: "", IsIncome: true},
					},
				},
				// different payment id, ignored
				{
					PaymentID: "ffff0000",
					TxHash:    "txhash2",
					Height:    100,
					Subtransfers: []wallet.Subtransfer{
						{Amount: wallet.NewAtomic(big.NewInt(777)), AssetID: testAssetID, IsIncome: true},
					},
				},
			}}, nil).
			Once()

		matcher, err := NewMatcher(mClient, 100)
		require.NoError(t, err)

		observations, err := matcher.Match(ctx, job, testAssetID, 105)
		require.NoError(t, err)
		require.Len(t, observations, 1)
		assert.Equal(t, "txhash1", observations[0].Hash)
		assert.Equal(t, "500", observations[0].AmountAtomic.String())
		assert.Equal(t, int64(6), observations[0].Confirmations)

		// asset mode never touches the payment feed
		mClient.AssertNotCalled(t, "GetPayments", ctx, "a1b2c3d4")
	})

	t.Run("transfers without matching income legs produce nothing", func(t *testing.T) {
		mClient := &wallet.MockClient{}
		defer mClient.AssertExpectations(t)
		mClient.
			On("GetRecentTxs", ctx, mockRecentTxsParams(100)).
			Return(&wallet.RecentTxsResult{Transfers: []wallet.TxEntry{
				{
					PaymentID: "a1b2c3d4",
					TxHash:    "txhash3",
					Height:    100,
					Subtransfers: []wallet.Subtransfer{
						{Amount: wallet.NewAtomic(big.NewInt(300)), AssetID: "other-asset", IsIncome: true},
					},
				},
			}}, nil).
			Once()

		matcher, err := NewMatcher(mClient, 100)
		require.NoError(t, err)

		observations, err := matcher.Match(ctx, job, testAssetID, 105)
		require.NoError(t, err)
		assert.Empty(t, observations)
	})
}

func mockRecentTxsParams(count int) wallet.RecentTxsParams {
	return wallet.RecentTxsParams{
		Count:               count,
		ExcludeMiningTxs:    true,
		Order:               wallet.OrderFromEndToBegin,
		UpdateProvisionInfo: true,
	}
}

func Test_confirmationsAt(t *testing.T) {
	testCases := []struct {
		name          string
		currentHeight int64
		blockHeight   int64
		reported      int64
		want          int64
	}{
		{name: "height arithmetic", currentHeight: 105, blockHeight: 100, reported: 1, want: 6},
		{name: "tip block counts as one confirmation", currentHeight: 100, blockHeight: 100, want: 1},
		{name: "block ahead of a stale tip floors at zero", currentHeight: 100, blockHeight: 105, reported: 9, want: 0},
		{name: "unknown current height keeps the reported count", currentHeight: 0, blockHeight: 100, reported: 4, want: 4},
		{name: "unknown block height keeps the reported count", currentHeight: 105, blockHeight: 0, reported: 2, want: 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, confirmationsAt(tc.currentHeight, tc.blockHeight, tc.reported))
		})
	}
}

func Test_BestObservation(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, BestObservation(nil))
		assert.Nil(t, BestObservation([]wallet.DepositObservation{}))
	})

	t.Run("highest confirmations wins", func(t *testing.T) {
		best := BestObservation([]wallet.DepositObservation{
			{Hash: "aaa", Confirmations: 2},
			{Hash: "bbb", Confirmations: 8},
			{Hash: "ccc", Confirmations: 5},
		})
		require.NotNil(t, best)
		assert.Equal(t, "bbb", best.Hash)
	})

	t.Run("ties break on the lower hash", func(t *testing.T) {
		best := BestObservation([]wallet.DepositObservation{
			{Hash: "zzz", Confirmations: 5},
			{Hash: "aaa", Confirmations: 5},
			{Hash: "mmm", Confirmations: 5},
		})
		require.NotNil(t, best)
		assert.Equal(t, "aaa", best.Hash)
	})
}
