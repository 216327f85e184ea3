// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	derrors "github.com/jllopis/docket/pkg/errors"
)

func TestRetrySuccess(t *testing.T) {
	attempts := 0
	config := DefaultRetryConfig().WithMaxAttempts(3).WithInitialDelay(time.Millisecond)
	err := config.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected success, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryDefaultIsSingleAttempt(t *testing.T) {
	attempts := 0
	err := DefaultRetryConfig().Do(context.Background(), func() error {
		attempts++
		return errors.New("always fails")
	})
	if err == nil {
		t.Errorf("expected error")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetryNonRecoverable(t *testing.T) {
	attempts := 0
	config := DefaultRetryConfig().WithMaxAttempts(5).WithIsRecoverable(func(error) bool {
		return false
	})
	err := config.Do(context.Background(), func() error {
		attempts++
		return errors.New("non-recoverable error")
	})

	if err == nil {
		t.Errorf("expected error")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetryHonoursTypedRecoverable(t *testing.T) {
	attempts := 0
	config := DefaultRetryConfig().WithMaxAttempts(3).WithInitialDelay(time.Millisecond)
	err := config.Do(context.Background(), func() error {
		attempts++
		return derrors.New(derrors.CodeModelNotAvailable, "missing", nil)
	})
	if !derrors.HasCode(err, derrors.CodeModelNotAvailable) {
		t.Fatalf("expected model not available, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("non-recoverable typed errors must not retry, got %d attempts", attempts)
	}
}

func TestRetryContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := DefaultRetryConfig().WithMaxAttempts(5).WithInitialDelay(100 * time.Millisecond)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := config.Do(ctx, func() error {
		return errors.New("transient error")
	})
	if !derrors.HasCode(err, derrors.CodeTimeout) {
		t.Errorf("expected timeout code, got %v", err)
	}
}

func TestStaticFallback(t *testing.T) {
	got, err := WithFallback(context.Background(), func() (string, error) {
		return "", errors.New("down")
	}, StaticFallback[string]{Value: "fallback"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "fallback" {
		t.Errorf("expected fallback value, got %q", got)
	}

	got, _ = WithFallback(context.Background(), func() (string, error) {
		return "primary", nil
	}, StaticFallback[string]{Value: "fallback"})
	if got != "primary" {
		t.Errorf("expected primary value, got %q", got)
	}
}

func TestCircuitBreakerClosed(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, Name: "test"})

	for i := 0; i < 5; i++ {
		if err := cb.Call(context.Background(), func() error { return nil }); err != nil {
			t.Errorf("call %d failed: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("expected state to remain Closed after success")
	}
}

func TestCircuitBreakerOpen(t *testing.T) {
	var transitions []CircuitBreakerState
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		Name:             "test",
		OnStateChange: func(_ string, _, to CircuitBreakerState) {
			transitions = append(transitions, to)
		},
	})

	for i := 0; i < 2; i++ {
		_ = cb.Call(context.Background(), func() error { return errors.New("failure") })
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected state Open after 2 failures")
	}

	err := cb.Call(context.Background(), func() error {
		t.Fatalf("should not execute in open state")
		return nil
	})
	if !derrors.HasCode(err, derrors.CodeBackendUnreachable) {
		t.Errorf("expected backend unreachable, got %v", err)
	}
	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Errorf("unexpected transitions: %v", transitions)
	}
}

func TestCircuitBreakerHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          50 * time.Millisecond,
		Name:             "test",
	})

	_ = cb.Call(context.Background(), func() error { return errors.New("fail") })
	if cb.State() != StateOpen {
		t.Fatalf("expected circuit to be open")
	}

	time.Sleep(80 * time.Millisecond)
	_ = cb.Call(context.Background(), func() error { return nil })
	if cb.State() != StateHalfOpen {
		t.Errorf("expected state HalfOpen after timeout")
	}

	_ = cb.Call(context.Background(), func() error { return nil })
	if cb.State() != StateClosed {
		t.Errorf("expected state Closed after successes in half-open")
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, Name: "test"})
	_ = cb.Call(context.Background(), func() error { return errors.New("fail") })
	if cb.State() != StateOpen {
		t.Fatalf("expected circuit to be open")
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("expected state Closed after reset")
	}
	if err := cb.Call(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("call failed after reset: %v", err)
	}
}
