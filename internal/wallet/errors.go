package wallet

import (
	"fmt"
)

// RPCError covers everything that makes the wallet endpoint untrustworthy
// for the rest of the pass: transport failures, HTTP >= 400, and JSON-RPC
// error members. The scheduler treats it as a signal to back the whole
// ticker off rather than a per-job failure.
type RPCError struct {
	Method string
	// StatusCode is the HTTP status; 0 when the request never completed.
	StatusCode int
	// Code is the JSON-RPC error code, when the wallet returned one.
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("wallet rpc %s failed: status=%d code=%d message=%q", e.Method, e.StatusCode, e.Code, e.Message)
}

// ParseError describes a deposit feed fragment the normalizer could not map
// to an observation. It is logged, never silently dropped, so malformed
// feeds stay visible without interrupting the polling pass.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("unrecognized deposit payload: %s", e.Reason)
	}
	return fmt.Sprintf("unrecognized deposit payload: %s (payload: %s)", e.Reason, e.Raw)
}
