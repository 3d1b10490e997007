// Package chain provides the fullnode REST client for the Move chain the
// protocol is deployed on.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/stream-indexer/internal/circuitbreaker"
	"github.com/stream-indexer/internal/config"
	"github.com/stream-indexer/internal/retry"
	"github.com/stream-indexer/internal/types"
)

// Common error types for the fullnode client

var (
	// ErrNodeUnavailable indicates the fullnode is unreachable or returned 5xx
	ErrNodeUnavailable = fmt.Errorf("fullnode unavailable")

	// ErrNodeRateLimit indicates the fullnode rate limit was exceeded
	ErrNodeRateLimit = fmt.Errorf("fullnode rate limit exceeded")

	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = fmt.Errorf("resource not found")
)

// Client talks to a fullnode's REST API. All calls go through a shared
// token-bucket rate limiter and a circuit breaker; transient failures are
// retried with backoff before surfacing.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker
}

// NewClient creates a new fullnode client
func NewClient(cfg *config.ChainConfig) *Client {
	return &Client{
		baseURL: cfg.NodeURL,
		http: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1),
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("fullnode")),
	}
}

// GetLedgerInfo returns the node's ledger summary, including the chain tip
func (c *Client) GetLedgerInfo(ctx context.Context) (*LedgerInfo, error) {
	var info LedgerInfo
	if err := c.getJSON(ctx, "/", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetTransactions returns up to limit transactions from the global
// transaction log starting at version start. The node caps limit at
// types.MaxBatchSize regardless of what is requested.
func (c *Client) GetTransactions(ctx context.Context, start uint64, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > types.MaxBatchSize {
		limit = types.MaxBatchSize
	}
	params := url.Values{}
	params.Set("start", strconv.FormatUint(start, 10))
	params.Set("limit", strconv.Itoa(limit))

	var txs []Transaction
	if err := c.getJSON(ctx, "/transactions", params, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// GetAccountTransactions returns up to limit transactions submitted by the
// given account, starting at transaction version start.
func (c *Client) GetAccountTransactions(ctx context.Context, address string, start uint64, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > types.MaxBatchSize {
		limit = types.MaxBatchSize
	}
	params := url.Values{}
	params.Set("start", strconv.FormatUint(start, 10))
	params.Set("limit", strconv.Itoa(limit))

	var txs []Transaction
	if err := c.getJSON(ctx, "/accounts/"+url.PathEscape(address)+"/transactions", params, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// ModuleExists probes whether an account publishes a module with the given
// name. A 404 is a negative answer, not an error.
func (c *Client) ModuleExists(ctx context.Context, address, name string) (bool, error) {
	path := "/accounts/" + url.PathEscape(address) + "/module/" + url.PathEscape(name)
	var ignored json.RawMessage
	err := c.getJSON(ctx, path, nil, &ignored)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// View executes a read-only Move view function and returns its results
func (c *Client) View(ctx context.Context, function string, typeArgs []string, args []any) ([]json.RawMessage, error) {
	req := ViewRequest{Function: function, TypeArguments: typeArgs, Arguments: args}
	if req.TypeArguments == nil {
		req.TypeArguments = []string{}
	}
	if req.Arguments == nil {
		req.Arguments = []any{}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode view request: %w", err)
	}

	var out []json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/view", nil, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// getJSON performs a rate-limited GET and decodes the JSON response
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, params, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte, out any) error {
	var permanent error
	err := retry.WithRetry(ctx, func(ctx context.Context, attempt int) error {
		err := c.breaker.Execute(ctx, func() error {
			return c.doOnce(ctx, method, path, params, body, out)
		})
		if err != nil && !isTransient(err) {
			// A 404 or decode failure will not improve on retry
			permanent = err
			return nil
		}
		return err
	})
	if permanent != nil {
		return permanent
	}
	return err
}

func isTransient(err error) bool {
	return errors.Is(err, ErrNodeUnavailable) ||
		errors.Is(err, ErrNodeRateLimit) ||
		errors.Is(err, circuitbreaker.ErrCircuitOpen)
}

func (c *Client) doOnce(ctx context.Context, method, path string, params url.Values, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNodeUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrNodeRateLimit
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrNodeUnavailable, resp.StatusCode, string(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
