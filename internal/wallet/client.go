package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zanopay/zano-deposit-watcher/internal/serve/httpclient"
	"github.com/zanopay/zano-deposit-watcher/internal/utils"
)

const (
	// DefaultTimeout bounds a single RPC round trip.
	DefaultTimeout = 10 * time.Second
	// DefaultMixin is the decoy count used when the caller leaves it unset.
	DefaultMixin = 3
	// DefaultRecentTxsCount is the page size for the recent-txs feed.
	DefaultRecentTxsCount = 100
)

// ClientInterface defines the wallet JSON-RPC surface the watcher consumes.
type ClientInterface interface {
	GetWalletInfo(ctx context.Context) (*WalletInfo, error)
	GetPayments(ctx context.Context, paymentID string) ([]DepositEntry, error)
	GetRecentTxs(ctx context.Context, params RecentTxsParams) (*RecentTxsResult, error)
	Transfer(ctx context.Context, params TransferParams) (*TransferResult, error)
	MakeIntegratedAddress(ctx context.Context, paymentID string) (*IntegratedAddress, error)
}

// Options configures the wallet RPC client.
type Options struct {
	// RPCURL is the full JSON-RPC endpoint, e.g. http://127.0.0.1:11212/json_rpc.
	RPCURL string
	// Username/Password enable HTTP basic auth when either is set.
	Username string
	Password string
	// Timeout bounds each call; <= 0 falls back to DefaultTimeout.
	Timeout time.Duration
}

func (o Options) Validate() error {
	if o.RPCURL == "" {
		return fmt.Errorf("wallet rpc url cannot be empty")
	}
	return nil
}

// Client speaks JSON-RPC 2.0 to a single wallet endpoint. Request ids are
// monotonically increasing per client.
type Client struct {
	rpcURL     string
	username   string
	password   string
	timeout    time.Duration
	httpClient httpclient.HTTPClientInterface
	requestID  atomic.Int64
}

func NewClient(opts Options) (*Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("validating wallet rpc options: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Client{
		rpcURL:     opts.RPCURL,
		username:   opts.Username,
		password:   opts.Password,
		timeout:    opts.Timeout,
		httpClient: httpclient.DefaultClient(),
	}, nil
}

// GetWalletInfo reports the wallet's chain view. Called once per polling
// pass; heights feed the confirmation arithmetic.
func (c *Client) GetWalletInfo(ctx context.Context) (*WalletInfo, error) {
	var info WalletInfo
	if err := c.call(ctx, "get_wallet_info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetPayments lists incoming payments attributed to a payment id. Safe only
// for the chain's base coin: asset deposits must go through GetRecentTxs.
func (c *Client) GetPayments(ctx context.Context, paymentID string) ([]DepositEntry, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("paymentID is required")
	}

	var raw json.RawMessage
	if err := c.call(ctx, "get_payments", map[string]string{"payment_id": paymentID}, &raw); err != nil {
		return nil, err
	}
	return NormalizeDeposits(ctx, raw), nil
}

// GetRecentTxs pages through the wallet transfer history, subtransfers
// included, newest first by default.
func (c *Client) GetRecentTxs(ctx context.Context, params RecentTxsParams) (*RecentTxsResult, error) {
	if params.Count <= 0 {
		params.Count = DefaultRecentTxsCount
	}
	if params.Order == "" {
		params.Order = OrderFromEndToBegin
	}

	var result RecentTxsResult
	if err := c.call(ctx, "get_recent_txs_and_info2", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Transfer broadcasts a transaction. Only the consolidation sweep uses it;
// callers are responsible for their own at-most-once guarding.
func (c *Client) Transfer(ctx context.Context, params TransferParams) (*TransferResult, error) {
	if len(params.Destinations) == 0 {
		return nil, fmt.Errorf("at least one destination is required")
	}
	if params.Mixin == 0 {
		params.Mixin = DefaultMixin
	}

	var result TransferResult
	if err := c.call(ctx, "transfer", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MakeIntegratedAddress synthesizes an address embedding the payment id. An
// empty id asks the wallet to generate one.
func (c *Client) MakeIntegratedAddress(ctx context.Context, paymentID string) (*IntegratedAddress, error) {
	var result IntegratedAddress
	if err := c.call(ctx, "make_integrated_address", map[string]string{"payment_id": paymentID}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcErrorBody   `json:"error"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call runs one JSON-RPC round trip and decodes the result member into
// result (skipped when nil). Every failure mode maps to *RPCError.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshalling %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RPCError{Method: method, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RPCError{Method: method, StatusCode: resp.StatusCode, Message: fmt.Sprintf("reading response: %v", err)}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &RPCError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Message:    utils.ClampString(strings.TrimSpace(string(body)), 500),
		}
	}

	var rpcResp rpcResponse
	if err = json.Unmarshal(body, &rpcResp); err != nil {
		return &RPCError{Method: method, StatusCode: resp.StatusCode, Message: fmt.Sprintf("decoding response: %v", err)}
	}
	if rpcResp.Error != nil {
		return &RPCError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Code:       rpcResp.Error.Code,
			Message:    rpcResp.Error.Message,
		}
	}

	if result == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	if err = json.Unmarshal(rpcResp.Result, result); err != nil {
		return &RPCError{Method: method, StatusCode: resp.StatusCode, Message: fmt.Sprintf("decoding result: %v", err)}
	}
	return nil
}

var _ ClientInterface = (*Client)(nil)
