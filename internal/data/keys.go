package data

import (
	"fmt"
	"strings"
)

// Key builders for the shared KV namespace. Every record this service owns
// lives under a caller-supplied prefix so several tenants can share one
// store without colliding.

func JobKey(prefix, ticker, paymentID string) string {
	return fmt.Sprintf("%s:deposit:%s:%s", prefix, ticker, paymentID)
}

func StatusKey(prefix, ticker, paymentID string) string {
	return fmt.Sprintf("%s:transaction:status:%s:%s", prefix, ticker, paymentID)
}

func SeenKey(prefix, txHash string) string {
	return fmt.Sprintf("%s:seen:%s", prefix, txHash)
}

func LedgerKey(prefix, ticker, txHash string) string {
	return fmt.Sprintf("%s:deposit:ledger:%s:%s", prefix, ticker, txHash)
}

// JobScanPattern is the glob handed to SCAN when walking a ticker's live
// jobs.
func JobScanPattern(prefix, ticker string) string {
	return fmt.Sprintf("%s:deposit:%s:*", prefix, ticker)
}

// PaymentIDFromJobKey recovers the payment id from a scanned job key. The
// payment id is the final segment and never contains a colon, so this works
// regardless of what the operator put in the prefix.
func PaymentIDFromJobKey(key string) string {
	idx := strings.LastIndex(key, ":")
	if idx < 0 || idx == len(key)-1 {
		return ""
	}
	return key[idx+1:]
}
