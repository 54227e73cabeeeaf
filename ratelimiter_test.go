package lumengo

import (
	"testing"
	"time"
)

func TestRateLimiterConsumesTokens(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if rl.Allow() {
		t.Error("empty bucket must deny")
	}
	if rl.Tokens() != 0 {
		t.Errorf("Tokens = %d, want 0", rl.Tokens())
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(2, 20*time.Millisecond)

	rl.Allow()
	rl.Allow()
	if rl.Allow() {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(50 * time.Millisecond)
	if !rl.Allow() {
		t.Error("bucket should have refilled")
	}
}

func TestRateLimiterCapsAtMax(t *testing.T) {
	rl := NewRateLimiter(2, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	rl.Allow()
	if tokens := rl.Tokens(); tokens > 1 {
		t.Errorf("Tokens = %d, refill must cap at maxTokens", tokens)
	}
}
