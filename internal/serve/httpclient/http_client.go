// Package httpclient provides the outbound HTTP client shared by the wallet
// RPC client, the webhook dispatcher and the REST KV backend.
package httpclient

import (
	"net/http"
	"time"
)

type HTTPClientInterface interface {
	Do(*http.Request) (*http.Response, error)
}

// DefaultTimeout caps every outbound call so a stalled webhook endpoint or
// wallet RPC cannot wedge a watcher pass.
const DefaultTimeout = 40 * time.Second

func DefaultClient() HTTPClientInterface {
	return &http.Client{Timeout: DefaultTimeout}
}

var _ HTTPClientInterface = DefaultClient()
