package rpc

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

	"github.com/fystack/contract-bridge/pkg/common/logger"
	"github.com/fystack/contract-bridge/pkg/ratelimiter"
)

// HTTPClient is the request/response transport.
type HTTPClient struct {
	httpClient  *http.Client
	baseURL     string
	auth        *AuthConfig
	rateLimiter *ratelimiter.Limiter

	rpcID atomic.Int64
}

var _ Transport = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, auth *AuthConfig, timeout time.Duration, rl *ratelimiter.Limiter) *HTTPClient {
	return &HTTPClient{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		auth:        auth,
		rateLimiter: rl,
	}
}

func (c *HTTPClient) NextRequestIDs(n int) []int64 {
	last := c.rpcID.Add(int64(n))
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = last - int64(n) + int64(i) + 1
	}
	return ids
}

func (c *HTTPClient) CallRPC(ctx context.Context, method string, params any) (*RPCResponse, error) {
	req := NewRequest(c, method, params)
	raw, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal RPC response: %w", err)
	}
	if rpcResp.Error != nil {
		return &rpcResp, rpcResp.Error
	}
	return &rpcResp, nil
}

func (c *HTTPClient) DoBatch(ctx context.Context, requests []*RPCRequest) ([]*RPCResponse, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	raw, err := c.post(ctx, requests)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	// Some nodes reject a whole batch with a single error object.
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var single RPCResponse
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("unmarshal batch response: %w", err)
		}
		if single.Error != nil {
			return nil, single.Error
		}
		return nil, fmt.Errorf("unexpected non-array batch response")
	}

	var responses []*RPCResponse
	if err := json.Unmarshal(trimmed, &responses); err != nil {
		return nil, fmt.Errorf("unmarshal batch response: %w", err)
	}
	return alignResponses(requests, responses), nil
}

func (c *HTTPClient) post(ctx context.Context, body any) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth.Apply(req.Header)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	logger.Debug("HTTP request completed", "url", c.baseURL, "elapsed", time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return data, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, c.baseURL, string(data))
	}
	return data, nil
}

func (c *HTTPClient) Kind() string { return TransportHTTP }
func (c *HTTPClient) URL() string  { return c.baseURL }
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
