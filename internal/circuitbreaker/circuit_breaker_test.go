package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(&Config{Name: "test", MaxFailures: 3, Timeout: time.Minute, HalfOpenMaxCalls: 1})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func() error { return errBoom })
	}

	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	err := cb.Execute(ctx, func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() while open = %v, want ErrCircuitOpen", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(&Config{Name: "test", MaxFailures: 3, Timeout: time.Minute, HalfOpenMaxCalls: 1})
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errBoom })
	_ = cb.Execute(ctx, func() error { return errBoom })
	_ = cb.Execute(ctx, func() error { return nil })
	_ = cb.Execute(ctx, func() error { return errBoom })
	_ = cb.Execute(ctx, func() error { return errBoom })

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(&Config{Name: "test", MaxFailures: 1, Timeout: time.Millisecond, HalfOpenMaxCalls: 2})
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errBoom })
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	time.Sleep(5 * time.Millisecond)

	// Two successful half-open probes close the circuit
	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Fatalf("half-open probe = %v, want nil", err)
	}
	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Fatalf("half-open probe = %v, want nil", err)
	}

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(&Config{Name: "test", MaxFailures: 1, Timeout: time.Millisecond, HalfOpenMaxCalls: 2})
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errBoom })
	time.Sleep(5 * time.Millisecond)

	_ = cb.Execute(ctx, func() error { return errBoom })
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open after half-open failure", cb.State())
	}
}
