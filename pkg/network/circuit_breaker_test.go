// pkg/network/circuit_breaker_test.go
package network

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/opd-ai/go-orbit/pkg/config"
)

func testEnvConfig() *config.EnvironmentConfig {
	return &config.EnvironmentConfig{
		CircuitBreakerMaxRequests:         3,
		CircuitBreakerInterval:            time.Minute,
		CircuitBreakerTimeout:             time.Second,
		CircuitBreakerMaxConsecutiveFails: 3,
	}
}

func TestExecuteSuccess(t *testing.T) {
	ns := NewNetworkService(testEnvConfig())

	calls := 0
	err := ns.Execute(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if calls != 1 {
		t.Errorf("operation ran %d times, want 1", calls)
	}
	if ns.GetState() != gobreaker.StateClosed {
		t.Errorf("state = %v, want closed", ns.GetState())
	}
}

func TestExecutePropagatesOperationError(t *testing.T) {
	ns := NewNetworkService(testEnvConfig())
	opErr := errors.New("connection refused")

	err := ns.Execute(context.Background(), func() error { return opErr })
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, opErr) {
		t.Errorf("err = %v, want wrapped %v", err, opErr)
	}
}

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	ns := NewNetworkService(testEnvConfig())
	opErr := errors.New("connection refused")

	for i := 0; i < 3; i++ {
		ns.Execute(context.Background(), func() error { return opErr })
	}

	if ns.GetState() != gobreaker.StateOpen {
		t.Fatalf("state = %v after 3 consecutive failures, want open", ns.GetState())
	}

	// An open circuit must fail fast without invoking the operation.
	called := false
	err := ns.Execute(context.Background(), func() error {
		called = true
		return nil
	})
	if err == nil {
		t.Error("expected an error from the open circuit")
	}
	if called {
		t.Error("operation invoked while the circuit was open")
	}
}

func TestCircuitRecoversAfterTimeout(t *testing.T) {
	cfg := testEnvConfig()
	cfg.CircuitBreakerTimeout = 50 * time.Millisecond
	ns := NewNetworkService(cfg)

	opErr := errors.New("connection refused")
	for i := 0; i < 3; i++ {
		ns.Execute(context.Background(), func() error { return opErr })
	}
	if ns.GetState() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", ns.GetState())
	}

	time.Sleep(100 * time.Millisecond)

	if err := ns.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("Execute after recovery window: %v", err)
	}
}

func TestExecuteWithRetryEventuallySucceeds(t *testing.T) {
	ns := NewNetworkService(testEnvConfig())

	calls := 0
	err := ns.ExecuteWithRetry(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithRetry: %v", err)
	}
	if calls != 2 {
		t.Errorf("operation ran %d times, want 2", calls)
	}
}

func TestExecuteWithRetryRespectsContextCancellation(t *testing.T) {
	ns := NewNetworkService(testEnvConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := ns.ExecuteWithRetry(ctx, func() error { return errors.New("always fails") })
	if err == nil {
		t.Fatal("expected an error")
	}
	// Cancellation must cut the backoff short, well under the full
	// three-attempt schedule.
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("retry loop ran %v after cancellation", elapsed)
	}
}

func TestExecuteWithRetryStopsWhenCircuitOpens(t *testing.T) {
	ns := NewNetworkService(testEnvConfig())
	opErr := errors.New("connection refused")

	// Exhaust the failure budget so the circuit opens mid-retry.
	for i := 0; i < 3; i++ {
		ns.Execute(context.Background(), func() error { return opErr })
	}

	calls := 0
	err := ns.ExecuteWithRetry(context.Background(), func() error {
		calls++
		return opErr
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 0 {
		t.Errorf("operation invoked %d times against an open circuit, want 0", calls)
	}
}
