// Package amount converts between atomic (smallest-unit) integer amounts and
// human-readable decimal strings. Zano amounts are 64-bit-plus integers, so
// all arithmetic goes through big.Int and shopspring/decimal.
package amount

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatAtomic renders an atomic amount as a decimal string using the given
// number of decimal places. Trailing zeros are trimmed, so 1500000000000 with
// 12 decimals renders as "1.5" and 60000000000000 as "60". With decimals=0
// the result is the bare integer.
func FormatAtomic(atomic *big.Int, decimals int) (string, error) {
	if atomic == nil {
		return "", fmt.Errorf("atomic amount cannot be nil")
	}
	if atomic.Sign() < 0 {
		return "", fmt.Errorf("atomic amount cannot be negative, got %s", atomic.String())
	}
	if decimals < 0 {
		return "", fmt.Errorf("decimals cannot be negative, got %d", decimals)
	}

	return decimal.NewFromBigInt(atomic, -int32(decimals)).String(), nil
}

// FormatAtomicString is FormatAtomic for amounts already encoded as integer
// strings, which is how they travel through the KV store and RPC payloads.
func FormatAtomicString(atomic string, decimals int) (string, error) {
	value, err := ParseAtomic(atomic)
	if err != nil {
		return "", err
	}
	return FormatAtomic(value, decimals)
}

// ParseAtomic parses an atomic amount encoded as a base-10 integer string.
func ParseAtomic(s string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid atomic amount %q", s)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("atomic amount cannot be negative, got %q", s)
	}
	return value, nil
}

// ParseToAtomic converts a decimal string such as "1.5" into atomic units.
// Values with more fractional digits than decimals allows are rejected rather
// than silently rounded.
func ParseToAtomic(value string, decimals int) (*big.Int, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("decimals cannot be negative, got %d", decimals)
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative, got %q", value)
	}

	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", value, decimals)
	}

	return shifted.BigInt(), nil
}
