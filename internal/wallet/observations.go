package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/zanopay/zano-deposit-watcher/internal/utils"
)

// DepositEntry is one normalized deposit-feed entry before confirmation
// arithmetic: the hash and amount are required, confirmations and block
// height are whatever the feed offered (zero when absent).
type DepositEntry struct {
	Hash          string
	AmountAtomic  *big.Int
	Confirmations int64
	BlockHeight   int64
}

// DepositObservation is the matcher's canonical view of one incoming
// transfer for a job: at most one per hash, highest confirmations wins.
type DepositObservation struct {
	Hash          string
	AmountAtomic  *big.Int
	Confirmations int64
	Address       string
	Ticker        string
}

// depositArrayKeys are tried in priority order when hunting for the entries
// array inside a deposit feed payload. Different wallet builds and proxy
// layers have shipped most of these spellings at some point.
var depositArrayKeys = []string{"payments", "deposits", "transactions", "items", "entries", "in", "transfers"}

// NormalizeDeposits flattens a deposit feed payload of any of the known
// shapes into entries, deduplicated per hash with the highest confirmation
// count kept. Fragments that cannot be mapped are logged and skipped; an
// empty or absent array is not an error.
func NormalizeDeposits(ctx context.Context, raw []byte) []DepositEntry {
	if len(raw) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber() // atomic amounts overflow float64
	var payload any
	if err := dec.Decode(&payload); err != nil {
		log.Ctx(ctx).Warnf("%v", &ParseError{Reason: err.Error(), Raw: clampRaw(raw)})
		return nil
	}

	items, perr := findDepositArray(payload)
	if perr != nil {
		perr.Raw = clampRaw(raw)
		log.Ctx(ctx).Warnf("%v", perr)
		return nil
	}

	entries := make([]DepositEntry, 0, len(items))
	byHash := make(map[string]int, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			log.Ctx(ctx).Warnf("%v", &ParseError{Reason: fmt.Sprintf("entry is %T, expected object", item)})
			continue
		}
		entry, entryErr := decodeDepositEntry(obj)
		if entryErr != nil {
			log.Ctx(ctx).Warnf("%v", entryErr)
			continue
		}
		if i, dup := byHash[entry.Hash]; dup {
			if entry.Confirmations > entries[i].Confirmations {
				entries[i] = entry
			}
			continue
		}
		byHash[entry.Hash] = len(entries)
		entries = append(entries, entry)
	}
	return entries
}

func findDepositArray(payload any) ([]any, *ParseError) {
	switch v := payload.(type) {
	case []any:
		return v, nil
	case map[string]any:
		for _, key := range depositArrayKeys {
			val, ok := v[key]
			if !ok || val == nil {
				continue
			}
			arr, isArr := val.([]any)
			if !isArr {
				return nil, &ParseError{Reason: fmt.Sprintf("field %q is not an array", key)}
			}
			return arr, nil
		}
		if nested, ok := v["result"]; ok {
			return findDepositArray(nested)
		}
		return nil, nil
	case nil:
		return nil, nil
	default:
		return nil, &ParseError{Reason: fmt.Sprintf("payload is %T, expected object or array", payload)}
	}
}

func decodeDepositEntry(obj map[string]any) (DepositEntry, *ParseError) {
	hash := firstString(obj, "hash", "tx_hash", "txHash", "txid", "transactionHash")
	if hash == "" {
		return DepositEntry{}, &ParseError{Reason: "entry has no transaction hash"}
	}

	amount := firstBigInt(obj, "amountAtomic", "amount_atomic", "amount", "value")
	if amount == nil {
		return DepositEntry{}, &ParseError{Reason: fmt.Sprintf("entry %s has no parseable amount", hash)}
	}

	return DepositEntry{
		Hash:          hash,
		AmountAtomic:  amount,
		Confirmations: firstInt64(obj, "confirmations", "conf", "num_confirmations", "confirmations_count", "confirmed"),
		BlockHeight:   firstInt64(obj, "block_height", "height", "blockHeight"),
	}, nil
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstBigInt(obj map[string]any, keys ...string) *big.Int {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case json.Number:
			if i, parsed := new(big.Int).SetString(n.String(), 10); parsed {
				return i
			}
		case string:
			if n == "" {
				continue
			}
			if i, parsed := new(big.Int).SetString(n, 10); parsed {
				return i
			}
		}
	}
	return nil
}

func firstInt64(obj map[string]any, keys ...string) int64 {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case json.Number:
			if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
				return i
			}
		case string:
			if i, err := strconv.ParseInt(n, 10, 64); err == nil {
				return i
			}
		}
	}
	return 0
}

func clampRaw(raw []byte) string {
	return utils.ClampString(string(raw), 200)
}
