package lumengo

import (
	"context"
	"sync"
)

// ConcurrencyLimiter bounds the number of simultaneously executing upstream
// calls. Callers over the bound wait in strict FIFO order: a queued request
// is only woken after every request queued before it.
type ConcurrencyLimiter struct {
	mu      sync.Mutex
	limit   int
	running int
	queue   []chan struct{}
}

// NewConcurrencyLimiter creates a limiter admitting at most limit concurrent
// tasks. A non-positive limit is treated as 1.
func NewConcurrencyLimiter(limit int) *ConcurrencyLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &ConcurrencyLimiter{limit: limit}
}

// Acquire blocks until a slot is free or ctx is cancelled. A request only
// runs immediately when the limiter is under its bound and nothing is queued
// ahead of it; otherwise it joins the tail of the queue.
func (l *ConcurrencyLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.running < l.limit && len(l.queue) == 0 {
		l.running++
		l.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	l.queue = append(l.queue, ready)
	l.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		for i, ch := range l.queue {
			if ch == ready {
				l.queue = append(l.queue[:i], l.queue[i+1:]...)
				l.mu.Unlock()
				return ctx.Err()
			}
		}
		l.mu.Unlock()
		// The slot was granted concurrently with cancellation; hand it back.
		l.Release()
		return ctx.Err()
	}
}

// Release returns a slot. When the queue is non-empty the slot transfers
// directly to the head waiter, preserving FIFO order.
func (l *ConcurrencyLimiter) Release() {
	l.mu.Lock()
	if len(l.queue) > 0 {
		ready := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()
		close(ready)
		return
	}
	if l.running > 0 {
		l.running--
	}
	l.mu.Unlock()
}

// InFlight reports the number of currently running tasks.
func (l *ConcurrencyLimiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Waiting reports the number of queued tasks.
func (l *ConcurrencyLimiter) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}
