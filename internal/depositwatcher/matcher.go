package depositwatcher

import (
	"context"
	"fmt"
	"math/big"

	"github.com/zanopay/zano-deposit-watcher/internal/data"
	"github.com/zanopay/zano-deposit-watcher/internal/wallet"
)

// Matcher recognizes incoming on-chain transfers for a job. Base-coin
// tickers use the wallet's payment feed; asset tickers scan the recent-txs
// feed instead, because the payment feed does not attribute asset legs.
type Matcher struct {
	client    wallet.ClientInterface
	scanCount int
}

func NewMatcher(client wallet.ClientInterface, scanCount int) (*Matcher, error) {
	if client == nil {
		return nil, fmt.Errorf("wallet client cannot be nil")
	}
	if scanCount <= 0 {
		scanCount = wallet.DefaultRecentTxsCount
	}
	return &Matcher{client: client, scanCount: scanCount}, nil
}

// Match returns at most one observation per transaction hash for the job's
// payment id, highest confirmations winning. currentHeight drives the
// confirmation arithmetic; entries without a usable height keep whatever
// count the feed reported.
func (m *Matcher) Match(ctx context.Context, job *data.Job, assetID string, currentHeight int64) ([]wallet.DepositObservation, error) {
	byHash := map[string]wallet.DepositObservation{}

	if assetID == "" {
		entries, err := m.client.GetPayments(ctx, job.PaymentID)
		if err != nil {
			return nil, fmt.Errorf("fetching payments for %s/%s: %w", job.Ticker, job.PaymentID, err)
		}
		for _, entry := range entries {
			collect(byHash, job, entry.Hash, entry.AmountAtomic, confirmationsAt(currentHeight, entry.BlockHeight, entry.Confirmations))
		}
	}

	// Asset deposits only show up in the recent-txs feed; for the base coin
	// the same feed is the fallback when the payment feed came back empty.
	if assetID != "" || len(byHash) == 0 {
		if err := m.matchRecentTxs(ctx, byHash, job, assetID, currentHeight); err != nil {
			return nil, err
		}
	}

	observations := make([]wallet.DepositObservation, 0, len(byHash))
	for _, obs := range byHash {
		observations = append(observations, obs)
	}
	return observations, nil
}

func (m *Matcher) matchRecentTxs(ctx context.Context, byHash map[string]wallet.DepositObservation, job *data.Job, assetID string, currentHeight int64) error {
	result, err := m.client.GetRecentTxs(ctx, wallet.RecentTxsParams{
		Offset:              0,
		Count:               m.scanCount,
		ExcludeMiningTxs:    true,
		Order:               wallet.OrderFromEndToBegin,
		UpdateProvisionInfo: true,
	})
	if err != nil {
		return fmt.Errorf("fetching recent txs for %s/%s: %w", job.Ticker, job.PaymentID, err)
	}

	for _, tx := range result.Transfers {
		if tx.PaymentID != job.PaymentID {
			continue
		}
		amount := incomeAmount(tx.Subtransfers, assetID)
		if amount.Sign() <= 0 {
			continue
		}
		collect(byHash, job, tx.TxHash, amount, confirmationsAt(currentHeight, tx.Height, 0))
	}
	return nil
}

// incomeAmount sums the income legs matching assetID. An empty assetID
// selects the base coin, whose subtransfers carry an empty asset id.
func incomeAmount(subtransfers []wallet.Subtransfer, assetID string) *big.Int {
	total := new(big.Int)
	for i := range subtransfers {
		st := &subtransfers[i]
		if !st.IsIncome || st.AssetID != assetID {
			continue
		}
		total.Add(total, st.Amount.BigInt())
	}
	return total
}

func collect(byHash map[string]wallet.DepositObservation, job *data.Job, hash string, amount *big.Int, confirmations int64) {
	if hash == "" || amount == nil || amount.Sign() <= 0 {
		return
	}
	if existing, ok := byHash[hash]; ok && existing.Confirmations >= confirmations {
		return
	}
	byHash[hash] = wallet.DepositObservation{
		Hash:          hash,
		AmountAtomic:  new(big.Int).Set(amount),
		Confirmations: confirmations,
		Address:       job.Address,
		Ticker:        job.Ticker,
	}
}

// confirmationsAt computes currentHeight - blockHeight + 1, floored at zero.
// Unknown heights fall back to the feed's own count.
func confirmationsAt(currentHeight, blockHeight, reported int64) int64 {
	if currentHeight <= 0 || blockHeight <= 0 {
		return reported
	}
	confirmations := currentHeight - blockHeight + 1
	if confirmations < 0 {
		return 0
	}
	return confirmations
}

// BestObservation picks the observation with the most confirmations. Ties
// break on hash so iteration over a map cannot flap between passes.
func BestObservation(observations []wallet.DepositObservation) *wallet.DepositObservation {
	var best *wallet.DepositObservation
	for i := range observations {
		obs := &observations[i]
		if best == nil || obs.Confirmations > best.Confirmations ||
			(obs.Confirmations == best.Confirmations && obs.Hash < best.Hash) {
			best = obs
		}
	}
	return best
}
