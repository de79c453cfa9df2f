// Package rpc is a JSON-RPC 2.0 client for a Substrate node over HTTP.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/selendra/selendra-explorer-sub000/internal/chain/ratelimit"
	"github.com/selendra/selendra-explorer-sub000/internal/circuitbreaker"
	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
)

const chainLabel = "substrate"

type Client struct {
	httpClient *http.Client
	rpcURL     string
	requestID  atomic.Int64
	limiter    *ratelimit.Limiter
	breaker    *circuitbreaker.Breaker
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

func NewClient(rpcURL string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		rpcURL:     rpcURL,
		limiter:    ratelimit.NewLimiter(0, 1, chainLabel),
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:      chainLabel,
			IsFailure: func(err error) bool { return !errors.Is(err, model.ErrNotFound) },
		}),
		logger: logger.With("component", "substrate_rpc"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) newRequest(method string, params []interface{}) Request {
	if params == nil {
		params = []interface{}{}
	}
	return Request{
		JSONRPC: "2.0",
		ID:      int(c.requestID.Add(1)),
		Method:  method,
		Params:  params,
	}
}

// call performs one request. Transport and node failures come back as
// *model.ProviderError.
func (c *Client) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	var result json.RawMessage
	err := c.guard(ctx, method, func() error {
		var resp Response
		if err := c.post(ctx, c.newRequest(method, params), &resp); err != nil {
			return err
		}
		if resp.Error != nil {
			return resp.Error
		}
		result = resp.Result
		return nil
	})
	return result, err
}

// callBatch sends requests as one JSON-RPC batch and returns the responses
// in request order.
func (c *Client) callBatch(ctx context.Context, requests []Request) ([]Response, error) {
	if len(requests) == 0 {
		return []Response{}, nil
	}
	method := requests[0].Method + "_batch"

	var ordered []Response
	err := c.guard(ctx, method, func() error {
		var responses []Response
		if err := c.post(ctx, requests, &responses); err != nil {
			return err
		}
		byID := make(map[int]Response, len(responses))
		for _, r := range responses {
			byID[r.ID] = r
		}
		ordered = make([]Response, len(requests))
		for i, req := range requests {
			r, ok := byID[req.ID]
			if !ok {
				return fmt.Errorf("missing batch response for id %d (%s)", req.ID, req.Method)
			}
			ordered[i] = r
		}
		return nil
	})
	return ordered, err
}

func (c *Client) guard(ctx context.Context, method string, fn func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.NewProviderError(method, err)
	}
	start := time.Now()
	err := c.breaker.Do(fn)
	ratelimit.ObserveRPCCall(chainLabel, method, start, err)
	if err != nil {
		c.logger.Debug("rpc call failed", "method", method, "error", err)
		return model.NewProviderError(method, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
