package node

import (
	"context"
	"fmt"
	"sync"

	"github.com/fystack/contract-bridge/pkg/common/logger"
)

// DialFunc establishes a connection for a registry entry.
type DialFunc func(ctx context.Context, url string) (*Conn, error)

// Registry shares one Conn per name among every holder. The connection is
// dialed on first Acquire and closed when the last holder releases it.
type Registry struct {
	dial DialFunc

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	url   string
	refs  int
	ready chan struct{}
	conn  *Conn
	err   error
}

func NewRegistry(opts Options) *Registry {
	return NewRegistryWithDialer(func(ctx context.Context, url string) (*Conn, error) {
		return Dial(ctx, url, opts)
	})
}

func NewRegistryWithDialer(dial DialFunc) *Registry {
	return &Registry{dial: dial, entries: make(map[string]*entry)}
}

// Acquire returns the shared connection for name, dialing url if needed, and
// a release func that must be called exactly once. A failed dial is not
// cached; the next Acquire dials again.
func (r *Registry) Acquire(ctx context.Context, name, url string) (*Conn, func(), error) {
	r.mu.Lock()
	e, ok := r.entries[name]
	if ok && e.url != url {
		r.mu.Unlock()
		return nil, nil, fmt.Errorf("connection %q is bound to %s, not %s", name, e.url, url)
	}
	if !ok {
		e = &entry{url: url, ready: make(chan struct{})}
		r.entries[name] = e
	}
	e.refs++
	r.mu.Unlock()

	if !ok {
		e.conn, e.err = r.dial(ctx, url)
		if e.err != nil {
			r.mu.Lock()
			delete(r.entries, name)
			r.mu.Unlock()
		}
		close(e.ready)
	}

	select {
	case <-e.ready:
	case <-ctx.Done():
		r.drop(name, e)
		return nil, nil, ctx.Err()
	}
	if e.err != nil {
		return nil, nil, e.err
	}

	var once sync.Once
	release := func() {
		once.Do(func() { r.drop(name, e) })
	}
	return e.conn, release, nil
}

func (r *Registry) drop(name string, e *entry) {
	r.mu.Lock()
	e.refs--
	last := e.refs == 0
	if last && r.entries[name] == e {
		delete(r.entries, name)
	}
	r.mu.Unlock()

	if last && e.conn != nil {
		logger.Debug("Closing connection", "name", name, "url", e.url)
		if err := e.conn.Close(); err != nil {
			logger.Warn("Close connection failed", "name", name, "err", err)
		}
	}
}

// Refs reports the holder count of name, zero when absent.
func (r *Registry) Refs(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		return e.refs
	}
	return 0
}
