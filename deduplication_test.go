package lumengo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDeduplicatorOwnerAndJoiners(t *testing.T) {
	d := NewDeduplicator()

	call, owner := d.joinOrRegister("fp1")
	if !owner {
		t.Fatal("first caller must become the owner")
	}

	joined, joinedOwner := d.joinOrRegister("fp1")
	if joinedOwner {
		t.Fatal("second caller must join, not own")
	}
	if joined != call {
		t.Fatal("joiner must receive the owner's pending call")
	}

	other, otherOwner := d.joinOrRegister("fp2")
	if !otherOwner {
		t.Fatal("a distinct fingerprint must get its own call")
	}
	if other == call {
		t.Fatal("distinct fingerprints must not share a pending call")
	}
}

func TestDeduplicatorSharedResult(t *testing.T) {
	d := NewDeduplicator()

	call, _ := d.joinOrRegister("fp")
	want := &Result{TextContent: "shared", RequestID: "req-1"}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		d.joinOrRegister("fp")
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := call.wait(context.Background())
			if err != nil {
				t.Errorf("waiter got error: %v", err)
				return
			}
			if res != want {
				t.Error("waiter must observe the settled result")
			}
		}()
	}

	d.complete("fp", call, want, nil)
	wg.Wait()
}

func TestDeduplicatorSharedError(t *testing.T) {
	d := NewDeduplicator()

	call, _ := d.joinOrRegister("fp")
	d.joinOrRegister("fp")

	upstreamErr := &GatewayError{Kind: KindServer, Message: "upstream exploded"}
	d.complete("fp", call, nil, upstreamErr)

	res, err := call.wait(context.Background())
	if res != nil {
		t.Error("failed call must not carry a result")
	}
	var gerr *GatewayError
	if !errors.As(err, &gerr) || gerr.Kind != KindServer {
		t.Errorf("waiter must observe the shared failure, got %v", err)
	}
}

func TestDeduplicatorEntryRemovedOnSettle(t *testing.T) {
	d := NewDeduplicator()

	call, _ := d.joinOrRegister("fp")
	if d.inFlight() != 1 {
		t.Fatalf("expected 1 in-flight call, got %d", d.inFlight())
	}

	d.complete("fp", call, &Result{}, nil)
	if d.inFlight() != 0 {
		t.Fatalf("entry must be removed when the call settles, got %d in flight", d.inFlight())
	}

	// A fresh request with the same fingerprint must start a new call.
	next, owner := d.joinOrRegister("fp")
	if !owner {
		t.Error("post-settle caller must become a new owner")
	}
	if next == call {
		t.Error("post-settle caller must not reuse the settled call")
	}
}

func TestDeduplicatorWaiterCancellation(t *testing.T) {
	d := NewDeduplicator()

	call, _ := d.joinOrRegister("fp")
	var cancelled atomic.Bool
	call.setCancel(func() { cancelled.Store(true) })

	// Two additional waiters join (owner counts as the first).
	d.joinOrRegister("fp")
	d.joinOrRegister("fp")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := call.wait(ctx)
	var gerr *GatewayError
	if !errors.As(err, &gerr) || gerr.Kind != KindCancelled {
		t.Fatalf("cancelled waiter must get a Cancelled error, got %v", err)
	}
	if cancelled.Load() {
		t.Fatal("upstream call must not be aborted while other waiters remain")
	}

	// Second waiter departs; the owner is still interested.
	call.abandon()
	if cancelled.Load() {
		t.Fatal("upstream call must not be aborted while the owner remains")
	}

	// The owner gives up too; now nobody is waiting.
	call.abandon()
	if !cancelled.Load() {
		t.Fatal("upstream call must be aborted when the last waiter departs")
	}
}

func TestDeduplicatorWaitAfterSettle(t *testing.T) {
	d := NewDeduplicator()

	call, _ := d.joinOrRegister("fp")
	want := &Result{TextContent: "done"}
	d.complete("fp", call, want, nil)

	// Waiting on an already-settled call returns immediately even with a
	// cancelled context; the done channel wins the race deterministically
	// here because it is already closed.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := call.wait(ctx)
	if err != nil || res != want {
		t.Errorf("settled call must return its outcome, got (%v, %v)", res, err)
	}
}
