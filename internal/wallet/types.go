package wallet

import (
	"fmt"
	"math/big"
	"strings"
)

// Atomic is an arbitrary-precision atomic amount. Wire payloads spell these
// as bare JSON numbers (which can exceed float64 precision) or as strings,
// so it carries its own codec.
type Atomic struct {
	big.Int
}

// NewAtomic wraps v in an Atomic. A nil v yields zero.
func NewAtomic(v *big.Int) Atomic {
	var a Atomic
	if v != nil {
		a.Int.Set(v)
	}
	return a
}

func (a *Atomic) BigInt() *big.Int {
	return &a.Int
}

func (a Atomic) MarshalJSON() ([]byte, error) {
	return []byte(a.Int.String()), nil
}

func (a *Atomic) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		a.Int.SetInt64(0)
		return nil
	}
	if _, ok := a.Int.SetString(s, 10); !ok {
		return fmt.Errorf("invalid atomic amount %q", s)
	}
	return nil
}

// WalletInfo is the per-pass chain view used for confirmation arithmetic.
type WalletInfo struct {
	CurrentHeight  int64 `json:"current_height"`
	DaemonHeight   int64 `json:"daemon_height"`
	IsSynchronized bool  `json:"is_synchronized"`
}

// OrderFromEndToBegin asks the wallet for newest transfers first.
const OrderFromEndToBegin = "FROM_END_TO_BEGIN"

// RecentTxsParams parameterizes get_recent_txs_and_info2.
type RecentTxsParams struct {
	Offset              int    `json:"offset"`
	Count               int    `json:"count"`
	ExcludeMiningTxs    bool   `json:"exclude_mining_txs"`
	ExcludeUnconfirmed  bool   `json:"exclude_unconfirmed_txs"`
	Order               string `json:"order"`
	UpdateProvisionInfo bool   `json:"update_provision_info"`
}

// Subtransfer is one asset movement inside a wallet transfer entry. Income
// legs carry the deposited amount; the asset id is empty for the base coin.
type Subtransfer struct {
	Amount   Atomic `json:"amount"`
	AssetID  string `json:"asset_id"`
	IsIncome bool   `json:"is_income"`
}

// TxEntry is one transfer from the recent-txs feed.
type TxEntry struct {
	PaymentID    string        `json:"payment_id"`
	TxHash       string        `json:"tx_hash"`
	Height       int64         `json:"height"`
	Subtransfers []Subtransfer `json:"subtransfers"`
}

// RecentTxsResult is the get_recent_txs_and_info2 response.
type RecentTxsResult struct {
	Transfers      []TxEntry `json:"transfers"`
	TotalTransfers int64     `json:"total_transfers"`
	LastItemIndex  int64     `json:"last_item_index"`
}

// TransferDestination is one output of a transfer. AssetID is set for
// non-base assets; the fee is always paid in the native coin.
type TransferDestination struct {
	Address string `json:"address"`
	Amount  Atomic `json:"amount"`
	AssetID string `json:"asset_id,omitempty"`
}

// TransferParams parameterizes the transfer method. Zero Mixin falls back
// to DefaultMixin before the call goes out.
type TransferParams struct {
	Destinations []TransferDestination `json:"destinations"`
	Fee          Atomic                `json:"fee"`
	Mixin        int                   `json:"mixin"`
	PaymentID    string                `json:"payment_id,omitempty"`
	Priority     int                   `json:"priority"`
	UnlockTime   int64                 `json:"unlock_time"`
	DoNotRelay   bool                  `json:"do_not_relay"`
}

// TransferResult carries the broadcast transaction hash.
type TransferResult struct {
	TxHash string `json:"tx_hash"`
}

// IntegratedAddress is a wallet-synthesized address with an embedded payment
// id, so deposits to it can be attributed without a dedicated subaddress.
type IntegratedAddress struct {
	IntegratedAddress string `json:"integrated_address"`
	PaymentID         string `json:"payment_id"`
}
