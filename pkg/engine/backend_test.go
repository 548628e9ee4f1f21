// pkg/engine/backend_test.go
package engine

import (
	"io"
	"testing"
	"time"

	"github.com/opd-ai/go-orbit/pkg/config"
	"github.com/opd-ai/go-orbit/pkg/entity"
	"github.com/opd-ai/go-orbit/pkg/logging"
)

func TestNewBackendSelectsImplementation(t *testing.T) {
	logger := logging.NewLoggerWithOutput(io.Discard)

	cfg := config.DefaultConfig()
	if _, ok := NewBackend(cfg, logger).(*InProcessBackend); !ok {
		t.Error("default config should select the in-process backend")
	}

	cfg.PhysicsConfig.OffloadedBackend = true
	backend := NewBackend(cfg, logger)
	offloaded, ok := backend.(*OffloadedBackend)
	if !ok {
		t.Fatal("offloaded config should select the offloaded backend")
	}
	offloaded.Close()
}

func TestInProcessBackendLifecycle(t *testing.T) {
	cfg := config.DefaultConfig()
	backend := NewInProcessBackend(cfg, logging.NewLoggerWithOutput(io.Discard))

	id := entity.GenerateID()
	backend.Spawn(id, 0, 1000)
	backend.Enqueue(id, Command{Seq: 1, Input: ThrustStart})
	backend.Update(cfg.PhysicsConfig.FixedTimeStep)

	states := backend.WorldState()
	if len(states) != 1 {
		t.Fatalf("world holds %d bodies, want 1", len(states))
	}
	if states[0].ID != id {
		t.Errorf("body id = %d, want caller-assigned %d", states[0].ID, id)
	}
	// Gravity has pulled the body off its spawn Y after one step.
	if states[0].Y == 1000 {
		t.Error("body did not integrate")
	}
	if !states[0].IsThrusting {
		t.Error("enqueued thrust command not applied")
	}

	backend.Clear()
	if n := len(backend.WorldState()); n != 0 {
		t.Errorf("world holds %d bodies after clear, want 0", n)
	}
	if err := backend.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestInProcessBackendRemove(t *testing.T) {
	cfg := config.DefaultConfig()
	backend := NewInProcessBackend(cfg, logging.NewLoggerWithOutput(io.Discard))

	a := entity.GenerateID()
	b := entity.GenerateID()
	backend.Spawn(a, 0, 1000)
	backend.Spawn(b, 100, 1000)

	backend.Remove(a)

	states := backend.WorldState()
	if len(states) != 1 {
		t.Fatalf("world holds %d bodies after remove, want 1", len(states))
	}
	if states[0].ID != b {
		t.Errorf("remaining body = %d, want %d", states[0].ID, b)
	}
}

// waitForBodies polls the offloaded backend until the expected body count
// appears or the deadline passes. The worker is asynchronous, so the test
// observes eventual consistency rather than a synchronous result.
func waitForBodies(t *testing.T, backend *OffloadedBackend, want int) []BodyState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		backend.Update(0)
		if states := backend.WorldState(); len(states) == want {
			return states
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("offloaded backend never reached %d bodies", want)
	return nil
}

func TestOffloadedBackendEventualConsistency(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PhysicsConfig.OffloadedBackend = true
	backend := NewOffloadedBackend(cfg, logging.NewLoggerWithOutput(io.Discard))
	defer backend.Close()

	id := entity.GenerateID()
	backend.Spawn(id, 0, 1000)
	backend.Enqueue(id, Command{Seq: 1, Input: ThrustStart})
	backend.Update(cfg.PhysicsConfig.FixedTimeStep)

	states := waitForBodies(t, backend, 1)
	if states[0].ID != id {
		t.Errorf("body id = %d, want %d", states[0].ID, id)
	}
}

func TestOffloadedBackendClear(t *testing.T) {
	cfg := config.DefaultConfig()
	backend := NewOffloadedBackend(cfg, logging.NewLoggerWithOutput(io.Discard))
	defer backend.Close()

	backend.Spawn(entity.GenerateID(), 0, 1000)
	backend.Update(cfg.PhysicsConfig.FixedTimeStep)
	waitForBodies(t, backend, 1)

	backend.Clear()
	waitForBodies(t, backend, 0)
}

func TestOffloadedBackendCloseIdempotent(t *testing.T) {
	cfg := config.DefaultConfig()
	backend := NewOffloadedBackend(cfg, logging.NewLoggerWithOutput(io.Discard))

	if err := backend.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := backend.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	// Posts after close are dropped, not panics.
	backend.Spawn(entity.GenerateID(), 0, 0)
	backend.Update(1.0 / 60.0)
}
