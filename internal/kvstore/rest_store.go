package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/zanopay/zano-deposit-watcher/internal/serve/httpclient"
)

const restRetryAttempts = 3

// CommandError is a command rejected by the REST backend, e.g. a malformed
// key or an authorization failure. Not retryable.
type CommandError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("kv command %s rejected (status %d): %s", e.Op, e.StatusCode, e.Message)
}

type restStore struct {
	baseURL    string
	token      string
	httpClient httpclient.HTTPClientInterface
}

// NewRESTStore builds the HTTPS backend. Each operation is a single Redis
// command POSTed as a JSON array to the base URL with a bearer token, the
// protocol spoken by Upstash-style hosted stores. Transient failures retry
// with exponential backoff before surfacing a TransientError.
func NewRESTStore(opts Options) (Store, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("kv url cannot be empty")
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("kv token cannot be empty")
	}

	return &restStore{
		baseURL:    opts.URL,
		token:      opts.Token,
		httpClient: httpclient.DefaultClient(),
	}, nil
}

var _ Store = (*restStore)(nil)

type restResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func (s *restStore) command(ctx context.Context, args ...string) (json.RawMessage, error) {
	op := args[0]
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s command: %w", op, err)
	}

	var result json.RawMessage
	err = retry.Do(
		func() error {
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(payload))
			if reqErr != nil {
				return retry.Unrecoverable(fmt.Errorf("building request: %w", reqErr))
			}
			req.Header.Set("Authorization", "Bearer "+s.token)
			req.Header.Set("Content-Type", "application/json")

			resp, doErr := s.httpClient.Do(req)
			if doErr != nil {
				return doErr
			}
			defer resp.Body.Close()

			body, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				return readErr
			}

			if resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
			}

			var cmdResp restResponse
			if jsonErr := json.Unmarshal(body, &cmdResp); jsonErr != nil {
				return fmt.Errorf("unmarshalling %s response: %w", op, jsonErr)
			}
			if cmdResp.Error != "" {
				return retry.Unrecoverable(&CommandError{Op: op, StatusCode: resp.StatusCode, Message: cmdResp.Error})
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(&CommandError{Op: op, StatusCode: resp.StatusCode, Message: string(body)})
			}

			result = cmdResp.Result
			return nil
		},
		retry.Attempts(restRetryAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) {
			return nil, cmdErr
		}
		return nil, &TransientError{Op: op, Err: err}
	}

	return result, nil
}

func (s *restStore) Scan(ctx context.Context, cursor, match string, count int64) (string, []string, error) {
	result, err := s.command(ctx, "SCAN", cursor, "MATCH", match, "COUNT", strconv.FormatInt(count, 10))
	if err != nil {
		return "", nil, err
	}

	var parts []json.RawMessage
	if err = json.Unmarshal(result, &parts); err != nil || len(parts) != 2 {
		return "", nil, fmt.Errorf("unexpected SCAN result shape: %s", string(result))
	}

	next, err := decodeCursor(parts[0])
	if err != nil {
		return "", nil, err
	}

	var keys []string
	if err = json.Unmarshal(parts[1], &keys); err != nil {
		return "", nil, fmt.Errorf("unexpected SCAN key list: %s", string(parts[1]))
	}

	return next, keys, nil
}

// decodeCursor tolerates backends that return the scan cursor as a JSON
// number instead of a string, and always hands back a string.
func decodeCursor(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("unexpected SCAN cursor shape: %s", string(raw))
}

func (s *restStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	result, err := s.command(ctx, "HGETALL", key)
	if err != nil {
		return nil, err
	}

	// The wire format is a flat [field, value, ...] array, but some proxies
	// collapse it into an object.
	var flat []string
	if err = json.Unmarshal(result, &flat); err == nil {
		if len(flat)%2 != 0 {
			return nil, fmt.Errorf("HGETALL returned odd-length array for key %s", key)
		}
		fields := make(map[string]string, len(flat)/2)
		for i := 0; i+1 < len(flat); i += 2 {
			fields[flat[i]] = flat[i+1]
		}
		return fields, nil
	}

	var fields map[string]string
	if err = json.Unmarshal(result, &fields); err != nil {
		return nil, fmt.Errorf("unexpected HGETALL result shape: %s", string(result))
	}
	return fields, nil
}

func (s *restStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	args := make([]string, 0, 2+2*len(fields))
	args = append(args, "HSET", key)
	for field, value := range fields {
		args = append(args, field, value)
	}

	_, err := s.command(ctx, args...)
	return err
}

func (s *restStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.command(ctx, "EXPIRE", key, strconv.FormatInt(int64(ttl/time.Second), 10))
	return err
}

func (s *restStore) Get(ctx context.Context, key string) (string, error) {
	result, err := s.command(ctx, "GET", key)
	if err != nil {
		return "", err
	}

	var value *string
	if err = json.Unmarshal(result, &value); err != nil {
		return "", fmt.Errorf("unexpected GET result shape: %s", string(result))
	}
	if value == nil {
		return "", ErrNotFound
	}
	return *value, nil
}

func (s *restStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var err error
	if ttl > 0 {
		_, err = s.command(ctx, "SET", key, value, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
	} else {
		_, err = s.command(ctx, "SET", key, value)
	}
	return err
}

func (s *restStore) Exists(ctx context.Context, key string) (bool, error) {
	result, err := s.command(ctx, "EXISTS", key)
	if err != nil {
		return false, err
	}

	var n int64
	if err = json.Unmarshal(result, &n); err != nil {
		return false, fmt.Errorf("unexpected EXISTS result shape: %s", string(result))
	}
	return n > 0, nil
}

func (s *restStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.command(ctx, append([]string{"DEL"}, keys...)...)
	return err
}

func (s *restStore) Ping(ctx context.Context) error {
	result, err := s.command(ctx, "PING")
	if err != nil {
		return err
	}

	var pong string
	if err = json.Unmarshal(result, &pong); err != nil || pong != "PONG" {
		return fmt.Errorf("unexpected PING result: %s", string(result))
	}
	return nil
}
