package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Transport kinds.
const (
	TransportHTTP = "http"
	TransportWS   = "ws"
)

var (
	ErrUnsupportedTransport = errors.New("operation requires a streaming transport")
	ErrClosed               = errors.New("transport closed")
	ErrMissingResponse      = errors.New("no response for request id")
)

// RPCRequest represents a JSON-RPC request
type RPCRequest struct {
	ID      int64  `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// RPCResponse represents a JSON-RPC response
type RPCResponse struct {
	ID      any             `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

func (r *RPCResponse) IDInt64() (int64, bool) {
	switch v := r.ID.(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return n, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// IsNull reports whether the result is absent or JSON null.
func (r *RPCResponse) IsNull() bool {
	return len(r.Result) == 0 || string(r.Result) == "null"
}

// RPCError represents a JSON-RPC error
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Transport submits JSON-RPC requests to one node.
type Transport interface {
	CallRPC(ctx context.Context, method string, params any) (*RPCResponse, error)
	// DoBatch sends every request in one round-trip and returns responses
	// aligned with the requests. A slot is nil when the node sent nothing for
	// that id.
	DoBatch(ctx context.Context, requests []*RPCRequest) ([]*RPCResponse, error)
	NextRequestIDs(n int) []int64
	Kind() string
	URL() string
	Close() error
}

// Subscriber is implemented by transports that can push notifications.
type Subscriber interface {
	Subscribe(ctx context.Context, namespace string, params ...any) (*Subscription, error)
}

// NewRequest builds a request with the next id of t.
func NewRequest(t Transport, method string, params any) *RPCRequest {
	return &RPCRequest{ID: t.NextRequestIDs(1)[0], JSONRPC: "2.0", Method: method, Params: params}
}

// alignResponses orders responses to match requests by id.
func alignResponses(requests []*RPCRequest, responses []*RPCResponse) []*RPCResponse {
	byID := make(map[int64]*RPCResponse, len(responses))
	for _, r := range responses {
		if id, ok := r.IDInt64(); ok {
			byID[id] = r
		}
	}
	out := make([]*RPCResponse, len(requests))
	for i, req := range requests {
		out[i] = byID[req.ID]
	}
	return out
}
