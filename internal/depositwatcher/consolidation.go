package depositwatcher

import (
	"context"
	"fmt"
	"math/big"

	"github.com/zanopay/zano-deposit-watcher/internal/amount"
	"github.com/zanopay/zano-deposit-watcher/internal/wallet"
)

// Consolidator sweeps confirmed deposit funds to a treasury address. The
// caller persists the single-shot attempt latch before Sweep is invoked, so
// even a crash mid-call cannot lead to a second spend.
type Consolidator struct {
	client wallet.ClientInterface
}

func NewConsolidator(client wallet.ClientInterface) (*Consolidator, error) {
	if client == nil {
		return nil, fmt.Errorf("wallet client cannot be nil")
	}
	return &Consolidator{client: client}, nil
}

// Sweep transfers the observed amount minus the rule fee to the rule's
// address and returns the broadcast tx hash. Asset sweeps carry the asset id
// on the destination; the fee is always paid in the native coin.
func (c *Consolidator) Sweep(ctx context.Context, rule ConsolidationRule, obs wallet.DepositObservation) (string, error) {
	if rule.Address == "" {
		return "", fmt.Errorf("consolidation rule for %s has no address", obs.Ticker)
	}

	fee := new(big.Int)
	if rule.FeeAtomic != "" {
		parsed, err := amount.ParseAtomic(rule.FeeAtomic)
		if err != nil {
			return "", fmt.Errorf("parsing consolidation fee for %s: %w", obs.Ticker, err)
		}
		fee = parsed
	}

	sweepAmount := new(big.Int).Sub(obs.AmountAtomic, fee)
	if sweepAmount.Sign() <= 0 {
		return "", fmt.Errorf("deposit amount %s does not cover the consolidation fee %s", obs.AmountAtomic, fee)
	}

	mixin := rule.Mixin
	if mixin <= 0 {
		mixin = wallet.DefaultMixin
	}

	result, err := c.client.Transfer(ctx, wallet.TransferParams{
		Destinations: []wallet.TransferDestination{{
			Address: rule.Address,
			Amount:  wallet.NewAtomic(sweepAmount),
			AssetID: rule.AssetID,
		}},
		Fee:      wallet.NewAtomic(fee),
		Mixin:    mixin,
		Priority: rule.Priority,
	})
	if err != nil {
		return "", fmt.Errorf("submitting consolidation transfer: %w", err)
	}
	return result.TxHash, nil
}
