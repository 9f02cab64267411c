package toa

import (
	"sync"
)

// Response is a TOA payload delivered to a waiter.
type Response struct {
	Prefix byte
	Data   []byte
}

// waiter is a single-shot completion handle. It may be registered under
// several prefixes; the first matching response completes it and removes
// every registration.
type waiter struct {
	ch       chan Response
	prefixes []byte
}

// waiters is the per-connection prefix registry. The notification path is its
// only writer of completions.
type waiters struct {
	mu      sync.Mutex
	pending map[byte]*waiter
}

func newWaiters() *waiters {
	return &waiters{pending: make(map[byte]*waiter)}
}

// register installs a waiter for prefixes, replacing any earlier waiter on
// the same prefix.
func (r *waiters) register(prefixes ...byte) *waiter {
	w := &waiter{ch: make(chan Response, 1), prefixes: prefixes}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range prefixes {
		if old, ok := r.pending[p]; ok {
			r.dropLocked(old)
		}
		r.pending[p] = w
	}
	return w
}

// deliver completes the waiter registered for prefix, if any.
func (r *waiters) deliver(prefix byte, data []byte) bool {
	r.mu.Lock()
	w, ok := r.pending[prefix]
	if ok {
		r.dropLocked(w)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	w.ch <- Response{Prefix: prefix, Data: data}
	return true
}

// cancel removes w without completing it.
func (r *waiters) cancel(w *waiter) {
	r.mu.Lock()
	r.dropLocked(w)
	r.mu.Unlock()
}

func (r *waiters) dropLocked(w *waiter) {
	for _, p := range w.prefixes {
		if r.pending[p] == w {
			delete(r.pending, p)
		}
	}
}

func (r *waiters) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
