package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/zanopay/zano-deposit-watcher/internal/serve/httpclient"
)

// SecretHeader carries the shared secret on outbound webhooks and, for
// symmetry, authenticates the inbound callback endpoint.
const SecretHeader = "X-Zano-Secret"

// DeliveryIDHeader carries a fresh UUID per delivery attempt so receivers can
// correlate retries of the same deposit in their logs.
const DeliveryIDHeader = "X-Zano-Delivery"

// DefaultTimeout bounds one delivery attempt.
const DefaultTimeout = 10 * time.Second

// Result reports one delivery attempt. OK is true iff the receiver answered
// 2xx; network failures leave StatusCode at zero.
type Result struct {
	OK         bool
	StatusCode int
	Err        error
}

// DispatcherInterface is what the job state machine dispatches through.
type DispatcherInterface interface {
	Dispatch(ctx context.Context, url, secret string, payload Payload) Result
}

type Dispatcher struct {
	httpClient httpclient.HTTPClientInterface
	timeout    time.Duration
}

func NewDispatcher(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		httpClient: httpclient.DefaultClient(),
		timeout:    timeout,
	}
}

// Dispatch POSTs the payload once. Retrying is the caller's business: the
// schedule lives on the job so it survives restarts.
func (d *Dispatcher) Dispatch(ctx context.Context, url, secret string, payload Payload) Result {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Err: fmt.Errorf("marshalling webhook payload: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{Err: fmt.Errorf("building webhook request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SecretHeader, secret)
	req.Header.Set(DeliveryIDHeader, uuid.NewString())

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return Result{Err: fmt.Errorf("delivering webhook: %w", err)}
	}
	defer resp.Body.Close()
	// Drain a bounded slice of the body so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	result := Result{
		OK:         resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices,
		StatusCode: resp.StatusCode,
	}
	if !result.OK {
		result.Err = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return result
}

var _ DispatcherInterface = (*Dispatcher)(nil)
