package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fystack/contract-bridge/pkg/common/logger"
	"github.com/fystack/contract-bridge/pkg/ratelimiter"
)

const (
	subscriptionBuffer = 128
	earlyBufferLimit   = 64
	handshakeTimeout   = 10 * time.Second
)

// WSClient is the streaming transport. One read loop demultiplexes responses
// by id and notifications by subscription id.
type WSClient struct {
	url         string
	conn        *websocket.Conn
	rateLimiter *ratelimiter.Limiter

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]chan *RPCResponse
	subs    map[string]*Subscription
	// early holds notifications that arrive before Subscribe has registered
	// the subscription id.
	early map[string][]json.RawMessage

	rpcID     atomic.Int64
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var (
	_ Transport  = (*WSClient)(nil)
	_ Subscriber = (*WSClient)(nil)
)

type wsMessage struct {
	ID      json.RawMessage `json:"id,omitempty"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// DialWS opens a streaming connection to url.
func DialWS(ctx context.Context, url string, auth *AuthConfig, rl *ratelimiter.Limiter) (*WSClient, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	header := http.Header{}
	auth.Apply(header)

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}

	c := &WSClient{
		url:         url,
		conn:        conn,
		rateLimiter: rl,
		pending:     make(map[int64]chan *RPCResponse),
		subs:        make(map[string]*Subscription),
		early:       make(map[string][]json.RawMessage),
		closed:      make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *WSClient) readLoop() {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(fmt.Errorf("websocket read: %w", err))
			return
		}

		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			var batch []*RPCResponse
			if err := json.Unmarshal(raw, &batch); err != nil {
				logger.Warn("Dropping malformed batch frame", "url", c.url, "err", err)
				continue
			}
			for _, r := range batch {
				c.deliver(r)
			}
			continue
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Warn("Dropping malformed frame", "url", c.url, "err", err)
			continue
		}
		if msg.Method != "" && len(msg.ID) == 0 {
			c.notify(&msg)
			continue
		}

		var id any
		_ = json.Unmarshal(msg.ID, &id)
		c.deliver(&RPCResponse{ID: id, JSONRPC: msg.JSONRPC, Result: msg.Result, Error: msg.Error})
	}
}

func (c *WSClient) deliver(r *RPCResponse) {
	id, ok := r.IDInt64()
	if !ok {
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if ok {
		ch <- r
	}
}

func (c *WSClient) notify(msg *wsMessage) {
	var params struct {
		Subscription string          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[params.Subscription]
	if !ok {
		if q := c.early[params.Subscription]; len(q) < earlyBufferLimit {
			c.early[params.Subscription] = append(q, params.Result)
		}
		return
	}
	select {
	case sub.ch <- params.Result:
	default:
		logger.Warn("Subscription buffer full, dropping notification", "subscription", sub.ID)
	}
}

func (c *WSClient) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeErr = err
		for id, sub := range c.subs {
			close(sub.ch)
			delete(c.subs, id)
		}
		c.mu.Unlock()
		close(c.closed)
		c.conn.Close()
	})
}

func (c *WSClient) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeErr != nil {
		return fmt.Errorf("%w: %v", ErrClosed, c.closeErr)
	}
	return ErrClosed
}

func (c *WSClient) register(ids []int64) []chan *RPCResponse {
	chans := make([]chan *RPCResponse, len(ids))
	c.mu.Lock()
	for i, id := range ids {
		chans[i] = make(chan *RPCResponse, 1)
		c.pending[id] = chans[i]
	}
	c.mu.Unlock()
	return chans
}

func (c *WSClient) unregister(ids []int64) {
	c.mu.Lock()
	for _, id := range ids {
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

func (c *WSClient) write(ctx context.Context, v any) error {
	select {
	case <-c.closed:
		return c.err()
	default:
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
	} else {
		c.conn.SetWriteDeadline(time.Time{})
	}
	return c.conn.WriteJSON(v)
}

func (c *WSClient) NextRequestIDs(n int) []int64 {
	last := c.rpcID.Add(int64(n))
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = last - int64(n) + int64(i) + 1
	}
	return ids
}

func (c *WSClient) CallRPC(ctx context.Context, method string, params any) (*RPCResponse, error) {
	req := NewRequest(c, method, params)
	ids := []int64{req.ID}
	ch := c.register(ids)[0]

	if err := c.write(ctx, req); err != nil {
		c.unregister(ids)
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return resp, resp.Error
		}
		return resp, nil
	case <-ctx.Done():
		c.unregister(ids)
		return nil, ctx.Err()
	case <-c.closed:
		return nil, c.err()
	}
}

func (c *WSClient) DoBatch(ctx context.Context, requests []*RPCRequest) ([]*RPCResponse, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(requests))
	for i, r := range requests {
		ids[i] = r.ID
	}
	chans := c.register(ids)

	if err := c.write(ctx, requests); err != nil {
		c.unregister(ids)
		return nil, err
	}

	out := make([]*RPCResponse, len(requests))
	for i, ch := range chans {
		select {
		case out[i] = <-ch:
		case <-ctx.Done():
			c.unregister(ids)
			return nil, ctx.Err()
		case <-c.closed:
			return nil, c.err()
		}
	}
	return out, nil
}

// Subscribe issues <namespace>_subscribe and returns the live subscription.
func (c *WSClient) Subscribe(ctx context.Context, namespace string, params ...any) (*Subscription, error) {
	resp, err := c.CallRPC(ctx, namespace+"_subscribe", params)
	if err != nil {
		return nil, err
	}
	var id string
	if err := json.Unmarshal(resp.Result, &id); err != nil {
		return nil, fmt.Errorf("decode subscription id: %w", err)
	}

	sub := &Subscription{
		ID:        id,
		namespace: namespace,
		ch:        make(chan json.RawMessage, subscriptionBuffer),
		client:    c,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeErr != nil {
		return nil, ErrClosed
	}
	for _, msg := range c.early[id] {
		sub.ch <- msg
	}
	delete(c.early, id)
	c.subs[id] = sub

	logger.Debug("Subscription established", "namespace", namespace, "id", id)
	return sub, nil
}

func (c *WSClient) Kind() string { return TransportWS }
func (c *WSClient) URL() string  { return c.url }

func (c *WSClient) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	c.shutdown(ErrClosed)
	return nil
}

// Subscription is a stream of raw notification payloads.
type Subscription struct {
	ID        string
	namespace string
	ch        chan json.RawMessage
	client    *WSClient
	once      sync.Once
}

// Next blocks until a notification arrives or ctx is done. It returns
// ErrClosed once the subscription or its connection is gone.
func (s *Subscription) Next(ctx context.Context) (json.RawMessage, error) {
	select {
	case msg, ok := <-s.ch:
		if !ok {
			return nil, ErrClosed
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Unsubscribe cancels the subscription on the node and closes the stream.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		c := s.client
		c.mu.Lock()
		_, live := c.subs[s.ID]
		delete(c.subs, s.ID)
		if live {
			close(s.ch)
		}
		c.mu.Unlock()

		if live {
			_, err = c.CallRPC(ctx, s.namespace+"_unsubscribe", []any{s.ID})
		}
	})
	return err
}
