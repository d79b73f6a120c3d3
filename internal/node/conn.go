package node

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fystack/contract-bridge/internal/rpc"
	"github.com/fystack/contract-bridge/internal/rpc/evm"
	"github.com/fystack/contract-bridge/pkg/common/logger"
	"github.com/fystack/contract-bridge/pkg/common/types"
	"github.com/fystack/contract-bridge/pkg/ratelimiter"
)

type State int32

const (
	Uninitialized State = iota
	Connecting
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

var (
	ErrNotReady   = errors.New("connection not ready")
	ErrClosed     = errors.New("connection closed")
	ErrDialFailed = errors.New("could not connect to node")
)

// Options controls how a connection is dialed.
type Options struct {
	// Transport restricts dialing to rpc.TransportWS or rpc.TransportHTTP.
	// Empty tries streaming first and falls back to HTTP.
	Transport string
	Auth      *rpc.AuthConfig
	// Timeout bounds the websocket handshake and each HTTP exchange.
	Timeout time.Duration
	Limiter *ratelimiter.Limiter
}

// Job is a unit of network work run on a connection's scheduler.
type Job func(ctx context.Context, client *evm.Client) error

type job struct {
	ctx    context.Context
	fn     Job
	result chan error
}

// Conn is one live node connection. Every job submitted through Do runs on a
// single scheduler goroutine owned by the connection, so jobs never overlap.
type Conn struct {
	url       string
	state     atomic.Int32
	transport rpc.Transport
	client    *evm.Client

	jobs      chan job
	done      chan struct{}
	closeOnce sync.Once
}

// New wraps an established transport and starts its scheduler.
func New(t rpc.Transport) *Conn {
	c := &Conn{url: t.URL()}
	c.attach(t)
	return c
}

func (c *Conn) attach(t rpc.Transport) {
	c.transport = t
	c.client = evm.NewClient(t)
	c.jobs = make(chan job)
	c.done = make(chan struct{})
	c.state.Store(int32(Ready))
	go c.run()
}

// Dial connects to url. Unless opts.Transport pins one, the streaming
// transport is tried first and HTTP second. On failure the returned Conn is
// in the Failed state; it cannot be retried.
//
// The HTTP transport is stateless and is not contacted here: any http(s) URL
// yields a Ready connection, and an unreachable node surfaces on the first
// call.
// Failed is only reached when the websocket dial fails and no HTTP URL can
// be derived.
func Dial(ctx context.Context, url string, opts Options) (*Conn, error) {
	c := &Conn{url: url}
	c.state.Store(int32(Connecting))

	var errs types.MultiError
	if opts.Transport != rpc.TransportHTTP {
		ws, err := rpc.DialWS(ctx, toScheme(url, "ws"), opts.Auth, opts.Limiter)
		if err == nil {
			logger.Debug("Connected to node", "url", url, "transport", rpc.TransportWS)
			c.attach(ws)
			return c, nil
		}
		errs.Add(fmt.Errorf("ws: %w", err))
		if opts.Transport == "" {
			logger.Warn("Streaming transport unavailable, falling back to HTTP", "url", url, "err", err)
		}
	}

	if opts.Transport != rpc.TransportWS {
		httpURL := toScheme(url, "http")
		if strings.HasPrefix(httpURL, "http://") || strings.HasPrefix(httpURL, "https://") {
			logger.Debug("Connected to node", "url", url, "transport", rpc.TransportHTTP)
			c.attach(rpc.NewHTTPClient(httpURL, opts.Auth, opts.Timeout, opts.Limiter))
			return c, nil
		}
		errs.Add(fmt.Errorf("http: unsupported url %q", url))
	}

	c.state.Store(int32(Failed))
	return c, fmt.Errorf("%w %s: %w", ErrDialFailed, url, &errs)
}

// toScheme swaps the scheme family of url: http(s) <-> ws(s).
func toScheme(url, family string) string {
	swaps := map[string][2]string{
		"ws":   {"http", "ws"},
		"http": {"ws", "http"},
	}
	pair := swaps[family]
	for _, secure := range []string{"s://", "://"} {
		if strings.HasPrefix(url, pair[0]+secure) {
			return pair[1] + secure + strings.TrimPrefix(url, pair[0]+secure)
		}
	}
	return url
}

func (c *Conn) run() {
	for {
		select {
		case j := <-c.jobs:
			select {
			case <-c.done:
				j.result <- ErrClosed
				return
			default:
			}
			j.result <- j.fn(j.ctx, c.client)
		case <-c.done:
			return
		}
	}
}

// Do runs fn on the scheduler and blocks until it returns or ctx is done.
// fn must not call Do on the same connection.
func (c *Conn) Do(ctx context.Context, fn Job) error {
	if s := c.State(); s != Ready {
		return fmt.Errorf("%w: %s", ErrNotReady, s)
	}

	j := job{ctx: ctx, fn: fn, result: make(chan error, 1)}
	select {
	case c.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) State() State { return State(c.state.Load()) }
func (c *Conn) URL() string  { return c.url }

// Kind reports rpc.TransportWS or rpc.TransportHTTP.
func (c *Conn) Kind() string {
	if c.transport == nil {
		return ""
	}
	return c.transport.Kind()
}

// Streaming reports whether the connection can carry subscriptions.
func (c *Conn) Streaming() bool {
	_, ok := c.transport.(rpc.Subscriber)
	return ok
}

// Close stops the scheduler and the transport. Jobs still queued fail with
// ErrClosed.
func (c *Conn) Close() error {
	if c.transport == nil {
		return nil
	}
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.transport.Close()
	})
	return err
}
