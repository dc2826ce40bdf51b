// Package registry tracks in-flight requests and fans out unsolicited
// events to listeners, the two correlation mechanisms a cast channel
// needs once a single TCP connection carries many concurrent
// request/response exchanges and asynchronous status pushes (spec §4.5).
package registry

import (
	"context"
	"fmt"
	"sync"
)

// ErrClosed is returned by Register once Cancel has closed the registry,
// until Reset reopens it. Waiters still outstanding at Cancel receive the
// error passed to Cancel instead.
var ErrClosed = fmt.Errorf("cast: registry closed")

// result is what a pending request resolves to: either a decoded
// response or the error that ended the wait.
type result struct {
	msg any
	err error
}

// Pending correlates outgoing requestIds with the goroutine blocked
// waiting for the matching response (spec §4.5's "look up the waiting
// caller by requestId"). It plays the same role the teacher's TTLStore
// plays for call state, but keyed transactions only live until their
// one reply arrives, so entries are removed eagerly rather than on a
// cleanup tick.
type Pending struct {
	mu     sync.Mutex
	waiter map[int64]chan result
	closed bool
}

// NewPending creates an empty request registry.
func NewPending() *Pending {
	return &Pending{waiter: make(map[int64]chan result)}
}

// Register reserves requestId and returns a function the caller uses to
// block for the matching response. Calling the returned function more
// than once is not supported.
func (p *Pending) Register(requestID int64) (wait func(ctx context.Context) (any, error), err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	ch := make(chan result, 1)
	p.waiter[requestID] = ch
	p.mu.Unlock()

	return func(ctx context.Context) (any, error) {
		select {
		case r := <-ch:
			return r.msg, r.err
		case <-ctx.Done():
			p.mu.Lock()
			delete(p.waiter, requestID)
			p.mu.Unlock()
			return nil, ctx.Err()
		}
	}, nil
}

// Fulfill delivers msg to the caller waiting on requestID, if any. It
// reports whether a waiter was found; an unmatched requestId is not an
// error; the reader loop simply routes it nowhere further.
func (p *Pending) Fulfill(requestID int64, msg any) bool {
	p.mu.Lock()
	ch, ok := p.waiter[requestID]
	if ok {
		delete(p.waiter, requestID)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- result{msg: msg}
	return true
}

// Cancel aborts every outstanding wait with err, used when the
// underlying transport disconnects (spec §4.7: "every outstanding
// request must be failed, never left hanging").
func (p *Pending) Cancel(err error) {
	p.mu.Lock()
	waiters := p.waiter
	p.waiter = make(map[int64]chan result)
	p.closed = true
	p.mu.Unlock()

	for _, ch := range waiters {
		ch <- result{err: err}
	}
}

// Len reports the number of outstanding requests, for tests and
// diagnostics.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiter)
}

// Reset reopens the registry after Cancel, so a reconnecting channel
// (spec §4.7's auto-reconnect) can keep reusing the same Pending
// instance instead of allocating a fresh one per attempt.
func (p *Pending) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = false
}
