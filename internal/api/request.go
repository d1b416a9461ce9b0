package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rickgao/douniu-client/internal/model"
	"github.com/rickgao/douniu-client/internal/stomp"
)

// APIError represents an HTTP-level failure from the game server.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("game api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// ResponseError is an envelope whose code is not 200.
type ResponseError struct {
	Code    int
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("game api response %d: %s", e.Code, e.Message)
}

// IsUnauthorized reports whether err means the session token was rejected.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized
	}
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return respErr.Code == http.StatusUnauthorized
	}
	return false
}

// maxRetryInterval caps a single wait between retries.
const maxRetryInterval = 30 * time.Second

type request struct {
	method string
	path   string
	token  string
	query  url.Values
	body   []byte
}

// doRequest performs a single HTTP request.
func (c *Client) doRequest(ctx context.Context, r request) ([]byte, error) {
	fullURL := c.baseURL + r.path
	if len(r.query) > 0 {
		fullURL += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set(stomp.HdrToken, r.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       respBody,
		}
	}

	return respBody, nil
}

// doWithRetry performs a request, retrying 5xx and 429 responses with
// jittered exponential backoff. Any other failure is returned at once.
func (c *Client) doWithRetry(ctx context.Context, r request) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryBackoff
	policy.RandomizationFactor = 0.5
	policy.Multiplier = 2
	policy.MaxInterval = maxRetryInterval
	policy.MaxElapsedTime = 0

	var (
		body      []byte
		retryable bool
	)
	op := func() error {
		var err error
		body, err = c.doRequest(ctx, r)
		if err == nil {
			return nil
		}

		var apiErr *APIError
		retryable = errors.As(err, &apiErr) && apiErr.IsRetryable()
		if !retryable {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Debug("retrying request",
			"backoff", wait,
			"path", r.path,
			"error", err,
		)
	}

	b := backoff.WithMaxRetries(backoff.WithContext(policy, ctx), uint64(max(c.maxRetries, 0)))
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if retryable && ctx.Err() == nil {
			return nil, fmt.Errorf("max retries exceeded: %w", err)
		}
		return nil, err
	}
	return body, nil
}

// call performs a request and unwraps the envelope into T.
func call[T any](ctx context.Context, c *Client, method, path, token string, payload any) (T, error) {
	var zero T

	r := request{method: method, path: path, token: token}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return zero, fmt.Errorf("marshal request: %w", err)
		}
		r.body = data
	}

	body, err := c.doWithRetry(ctx, r)
	if err != nil {
		return zero, err
	}

	var env model.Envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return zero, fmt.Errorf("unmarshal response: %w", err)
	}
	if !env.OK() {
		return zero, &ResponseError{Code: env.Code, Message: env.Message}
	}

	return env.Data, nil
}
