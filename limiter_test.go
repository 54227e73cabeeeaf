package lumengo

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestConcurrencyLimiterBound(t *testing.T) {
	limiter := NewConcurrencyLimiter(3)

	var current, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Acquire(context.Background()); err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			defer limiter.Release()

			n := atomic.AddInt64(&current, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&current, -1)
		}()
	}
	wg.Wait()

	if p := atomic.LoadInt64(&peak); p > 3 {
		t.Errorf("concurrency bound violated: peak %d > 3", p)
	}
	if limiter.InFlight() != 0 || limiter.Waiting() != 0 {
		t.Errorf("limiter not drained: inFlight=%d waiting=%d", limiter.InFlight(), limiter.Waiting())
	}
}

func TestConcurrencyLimiterFIFOOrder(t *testing.T) {
	limiter := NewConcurrencyLimiter(1)

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("initial acquire failed: %v", err)
	}

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	// Enqueue waiters one at a time so the queue order is deterministic.
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := limiter.Acquire(context.Background()); err != nil {
				t.Errorf("waiter %d failed: %v", n, err)
				return
			}
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			limiter.Release()
		}(i)
		n := i
		waitFor(t, func() bool { return limiter.Waiting() == n }, "waiter did not enqueue")
	}

	limiter.Release()
	wg.Wait()

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("expected FIFO wake order [1 2 3], got %v", order)
	}
}

func TestConcurrencyLimiterQueueBlocksNewArrivals(t *testing.T) {
	limiter := NewConcurrencyLimiter(2)

	// Fill both slots, then queue one waiter.
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	go limiter.Acquire(context.Background())
	waitFor(t, func() bool { return limiter.Waiting() == 1 }, "waiter did not enqueue")

	// Release one slot: it must transfer to the queued waiter, not sit free.
	limiter.Release()
	waitFor(t, func() bool { return limiter.Waiting() == 0 }, "queued waiter was not woken")

	// With the transferred slot still held, a new arrival over the bound queues.
	acquired := make(chan struct{})
	go func() {
		limiter.Acquire(context.Background())
		close(acquired)
	}()
	select {
	case <-acquired:
		t.Fatal("arrival over the bound must queue, not run")
	case <-time.After(20 * time.Millisecond):
	}

	limiter.Release()
	<-acquired
}

func TestConcurrencyLimiterCancelWhileQueued(t *testing.T) {
	limiter := NewConcurrencyLimiter(1)

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- limiter.Acquire(ctx)
	}()
	waitFor(t, func() bool { return limiter.Waiting() == 1 }, "waiter did not enqueue")

	cancel()
	if err := <-errCh; err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if limiter.Waiting() != 0 {
		t.Errorf("cancelled waiter must be removed from the queue, waiting=%d", limiter.Waiting())
	}

	// The held slot is unaffected and still transfers correctly afterwards.
	limiter.Release()
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Errorf("acquire after cancel failed: %v", err)
	}
	limiter.Release()
}

func TestConcurrencyLimiterNonPositiveLimit(t *testing.T) {
	limiter := NewConcurrencyLimiter(0)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if limiter.InFlight() != 1 {
		t.Errorf("non-positive limit must behave as 1, inFlight=%d", limiter.InFlight())
	}
	limiter.Release()
}
