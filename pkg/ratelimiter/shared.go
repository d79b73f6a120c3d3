package ratelimiter

import (
	"fmt"
	"sync"
)

var (
	sharedMu sync.Mutex
	shared   = map[string]*Limiter{}
)

// Shared returns the process-wide limiter for a node URL, so every
// connection to the same node draws from one budget.
func Shared(url string, rps, burst int) *Limiter {
	key := fmt.Sprintf("%s_%d_%d", url, rps, burst)

	sharedMu.Lock()
	defer sharedMu.Unlock()
	if l, ok := shared[key]; ok {
		return l
	}
	l := New(rps, burst)
	shared[key] = l
	return l
}

// SharedStats reports every shared limiter keyed by url_rps_burst.
func SharedStats() map[string]Stats {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	out := make(map[string]Stats, len(shared))
	for k, l := range shared {
		out[k] = l.Stats()
	}
	return out
}

// ResetShared drops every shared limiter.
func ResetShared() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	shared = map[string]*Limiter{}
}
