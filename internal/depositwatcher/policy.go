package depositwatcher

import "math/big"

// Dynamic policy breakpoints in whole coins.
var (
	policyLowCeiling = big.NewInt(50)
	policyMidCeiling = big.NewInt(100)
)

// DynamicMinConf returns the confirmation threshold for a deposit of the
// given atomic amount: below 50 coins clears on one confirmation, below 100
// on three, anything larger waits for six. Arbitrary precision so amounts
// beyond 64 bits behave.
func DynamicMinConf(amountAtomic *big.Int, decimals int) int {
	if amountAtomic == nil {
		return 1
	}
	if decimals < 0 {
		decimals = 0
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	if amountAtomic.Cmp(new(big.Int).Mul(policyLowCeiling, scale)) < 0 {
		return 1
	}
	if amountAtomic.Cmp(new(big.Int).Mul(policyMidCeiling, scale)) < 0 {
		return 3
	}
	return 6
}
