package lumengo

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status    int
		kind      ErrorKind
		retryable bool
	}{
		{401, KindAuth, false},
		{402, KindPaymentRequired, false},
		{403, KindClient, false},
		{404, KindClient, false},
		{422, KindClient, false},
		{429, KindRateLimited, true},
		{500, KindServer, true},
		{502, KindServer, true},
		{503, KindServer, true},
	}
	for _, tt := range tests {
		kind, retryable := classifyStatus(tt.status)
		if kind != tt.kind || retryable != tt.retryable {
			t.Errorf("classifyStatus(%d) = (%s, %v), want (%s, %v)",
				tt.status, kind, retryable, tt.kind, tt.retryable)
		}
	}
}

func TestGatewayErrorMessage(t *testing.T) {
	err := &GatewayError{
		Kind:       KindServer,
		Message:    "upstream returned 503",
		StatusCode: 503,
		RequestID:  "req-42",
		Attempt:    2,
		MaxRetries: 3,
	}

	msg := err.Error()
	for _, part := range []string{"ServerError", "upstream returned 503", "req-42", "attempt 2/3"} {
		if !strings.Contains(msg, part) {
			t.Errorf("error message %q missing %q", msg, part)
		}
	}
}

func TestGatewayErrorCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := &GatewayError{Kind: KindNetwork, Message: "request failed", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is must see through to the cause")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error message %q must include the cause", err.Error())
	}
}

func TestGatewayErrorIsMatchesKind(t *testing.T) {
	err := &GatewayError{Kind: KindRateLimited, Message: "slow down", RetryAfter: 5 * time.Second}

	if !errors.Is(err, &GatewayError{Kind: KindRateLimited}) {
		t.Error("errors.Is must match on Kind")
	}
	if errors.Is(err, &GatewayError{Kind: KindAuth}) {
		t.Error("errors.Is must not match a different Kind")
	}
}

func TestIsTransient(t *testing.T) {
	transient := []ErrorKind{KindRateLimited, KindServer, KindTimeout, KindNetwork, KindInvalidResponse, KindCircuitOpen}
	for _, kind := range transient {
		if !IsTransient(&GatewayError{Kind: kind}) {
			t.Errorf("kind %s should be transient", kind)
		}
	}

	permanent := []ErrorKind{KindAuth, KindPaymentRequired, KindClient, KindCancelled, KindConfig}
	for _, kind := range permanent {
		if IsTransient(&GatewayError{Kind: kind}) {
			t.Errorf("kind %s should not be transient", kind)
		}
	}

	if IsTransient(nil) {
		t.Error("nil is not transient")
	}
	if IsTransient(fmt.Errorf("plain error")) {
		t.Error("untyped errors are not transient")
	}
}

func TestIsTransientWrapped(t *testing.T) {
	inner := &GatewayError{Kind: KindTimeout}
	wrapped := fmt.Errorf("doing work: %w", inner)
	if !IsTransient(wrapped) {
		t.Error("IsTransient must unwrap to find the GatewayError")
	}
}
