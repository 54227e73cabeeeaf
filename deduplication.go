package lumengo

import (
	"context"
	"sync"
)

// pendingCall is one upstream call currently in flight, shared between every
// caller that arrived with the same fingerprint. The call runs under an
// internally-owned context; it is aborted only when the last remaining waiter
// gives up, never by an individual caller's cancellation.
type pendingCall struct {
	mu      sync.Mutex
	result  *Result
	err     error
	done    chan struct{}
	waiters int
	cancel  context.CancelFunc
}

// Deduplicator coalesces concurrent identical requests so exactly one
// upstream call is in flight per fingerprint at any instant.
type Deduplicator struct {
	mu    sync.Mutex
	calls map[string]*pendingCall
}

// NewDeduplicator returns an empty in-memory deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{
		calls: make(map[string]*pendingCall),
	}
}

// joinOrRegister returns the in-flight call for key, creating one when none
// exists. The second return value reports ownership: the owner must perform
// the upstream call and settle it via complete, all other callers wait.
// Registration is atomic with respect to concurrent callers.
func (d *Deduplicator) joinOrRegister(key string) (*pendingCall, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if call, exists := d.calls[key]; exists {
		call.mu.Lock()
		call.waiters++
		call.mu.Unlock()
		return call, false
	}

	call := &pendingCall{
		done:    make(chan struct{}),
		waiters: 1,
	}
	d.calls[key] = call
	return call, true
}

// complete settles call with the given outcome, releases every waiter and
// removes the entry immediately so a subsequent request with the same
// fingerprint starts a fresh call instead of replaying a stale failure.
func (d *Deduplicator) complete(key string, call *pendingCall, result *Result, err error) {
	call.mu.Lock()
	call.result = result
	call.err = err
	call.mu.Unlock()
	close(call.done)

	d.mu.Lock()
	if d.calls[key] == call {
		delete(d.calls, key)
	}
	d.mu.Unlock()
}

// inFlight reports the number of distinct fingerprints currently in flight.
func (d *Deduplicator) inFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// setCancel installs the cancel func for the call's internally-owned context.
func (p *pendingCall) setCancel(cancel context.CancelFunc) {
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
}

// wait blocks until the call settles or ctx is cancelled. A cancelled waiter
// detaches from the call; the upstream call itself is aborted only when the
// departing waiter was the last one.
func (p *pendingCall) wait(ctx context.Context) (*Result, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		result := p.result
		err := p.err
		p.mu.Unlock()
		return result, err
	case <-ctx.Done():
		p.abandon()
		return nil, &GatewayError{
			Kind:    KindCancelled,
			Message: "request cancelled while waiting for in-flight call",
			Cause:   ctx.Err(),
		}
	}
}

func (p *pendingCall) abandon() {
	p.mu.Lock()
	p.waiters--
	last := p.waiters <= 0
	cancel := p.cancel
	p.mu.Unlock()

	if last && cancel != nil {
		cancel()
	}
}

// DefaultDeduplicationCondition coalesces every request; identical generation
// payloads are expected to produce identical results.
func DefaultDeduplicationCondition(req *Request) bool {
	return true
}
