// pkg/engine/backend.go
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/opd-ai/go-orbit/pkg/config"
	"github.com/opd-ai/go-orbit/pkg/entity"
	"github.com/opd-ai/go-orbit/pkg/event"
	"github.com/opd-ai/go-orbit/pkg/logging"
	"github.com/opd-ai/go-orbit/pkg/physics"
)

// PhysicsBackend runs an observer-side simulation either on the calling
// goroutine or offloaded to a worker goroutine. Both implementations expose
// the same surface; the offloaded variant is an eventually-consistent
// mirror whose WorldState reflects the most recently completed update, and
// no method ever blocks waiting for the worker.
type PhysicsBackend interface {
	// Spawn adds a body at the given coordinates.
	Spawn(id entity.ID, x, y float64)
	// Remove deletes a body.
	Remove(id entity.ID)
	// Enqueue buffers a command for a body.
	Enqueue(id entity.ID, cmd Command)
	// Update advances simulated time by an elapsed wall-clock interval.
	Update(delta float64)
	// WorldState returns the latest completed per-body state.
	WorldState() []BodyState
	// Clear removes all bodies.
	Clear()
	// Close stops the backend. Further calls are no-ops.
	Close() error
}

// NewBackend selects a backend from configuration.
func NewBackend(cfg *config.SimConfig, logger *logging.Logger) PhysicsBackend {
	if cfg.PhysicsConfig.OffloadedBackend {
		return NewOffloadedBackend(cfg, logger)
	}
	return NewInProcessBackend(cfg, logger)
}

// InProcessBackend runs the simulation synchronously on the caller's
// goroutine.
type InProcessBackend struct {
	sim   *Simulation
	sched *FixedStepScheduler
}

// NewInProcessBackend creates an in-process backend from configuration.
func NewInProcessBackend(cfg *config.SimConfig, logger *logging.Logger) *InProcessBackend {
	bus := event.NewBus()
	return &InProcessBackend{
		sim:   NewSimulation(cfg, bus, logger),
		sched: NewFixedStepScheduler(cfg.PhysicsConfig.FixedTimeStep, logger, bus),
	}
}

// Spawn adds a body with the caller's id at the given coordinates.
func (b *InProcessBackend) Spawn(id entity.ID, x, y float64) {
	b.sim.SpawnBodyAt(id, physics.Vector2D{X: x, Y: y})
}

// Remove deletes a body.
func (b *InProcessBackend) Remove(id entity.ID) {
	b.sim.RemoveBody(id)
}

// Enqueue buffers a command for a body.
func (b *InProcessBackend) Enqueue(id entity.ID, cmd Command) {
	b.sim.EnqueueCommand(id, cmd)
}

// Update advances simulated time by delta seconds.
func (b *InProcessBackend) Update(delta float64) {
	b.sched.AdvanceBy(delta)
	b.sched.Drain(b.sim.Step)
}

// WorldState returns the current per-body state.
func (b *InProcessBackend) WorldState() []BodyState {
	snap := b.sim.Snapshot()
	out := make([]BodyState, 0, len(snap.Bodies))
	for _, state := range snap.Bodies {
		out = append(out, state)
	}
	return out
}

// Clear removes all bodies.
func (b *InProcessBackend) Clear() {
	snap := b.sim.Snapshot()
	for id := range snap.Bodies {
		b.sim.RemoveBody(id)
	}
}

// Close is a no-op for the in-process backend.
func (b *InProcessBackend) Close() error {
	return nil
}

// Worker protocol messages. Each request variant is one struct; the worker
// replies on its result channel with updateCompleteMsg, clearCompleteMsg, or
// errorMsg. The compiler enforces the payload shape per variant.
type (
	spawnMsg struct {
		id   entity.ID
		x, y float64
	}
	removeMsg struct {
		id entity.ID
	}
	enqueueMsg struct {
		id  entity.ID
		cmd Command
	}
	updateMsg struct {
		delta float64
	}
	clearMsg struct{}
	closeMsg struct{}

	updateCompleteMsg struct {
		worldState []BodyState
	}
	clearCompleteMsg struct{}
	errorMsg         struct {
		err error
	}
)

// OffloadedBackend runs the simulation on a dedicated worker goroutine.
// Requests are posted to a buffered channel; results are drained
// opportunistically, so the main goroutine's proxies trail the worker by
// however many updates are in flight. Worker errors are logged; there is no
// automatic restart or resynchronization.
type OffloadedBackend struct {
	requests chan interface{}
	results  chan interface{}

	mu      sync.Mutex
	proxies []BodyState
	closed  bool

	logger *logging.Logger
}

// offloadQueueDepth bounds in-flight requests. A full queue drops the
// request rather than blocking the caller.
const offloadQueueDepth = 64

// NewOffloadedBackend creates an offloaded backend and starts its worker.
func NewOffloadedBackend(cfg *config.SimConfig, logger *logging.Logger) *OffloadedBackend {
	b := &OffloadedBackend{
		requests: make(chan interface{}, offloadQueueDepth),
		results:  make(chan interface{}, offloadQueueDepth),
		logger:   logger,
	}
	go b.worker(cfg)
	return b
}

// worker owns the simulation. It is the only goroutine touching it, so the
// single-timeline model holds inside the worker exactly as on the server.
func (b *OffloadedBackend) worker(cfg *config.SimConfig) {
	bus := event.NewBus()
	sim := NewSimulation(cfg, bus, b.logger)
	sched := NewFixedStepScheduler(cfg.PhysicsConfig.FixedTimeStep, b.logger, bus)
	inProc := &InProcessBackend{sim: sim, sched: sched}

	for raw := range b.requests {
		switch msg := raw.(type) {
		case spawnMsg:
			inProc.Spawn(msg.id, msg.x, msg.y)
		case removeMsg:
			inProc.Remove(msg.id)
		case enqueueMsg:
			inProc.Enqueue(msg.id, msg.cmd)
		case updateMsg:
			inProc.Update(msg.delta)
			b.postResult(updateCompleteMsg{worldState: inProc.WorldState()})
		case clearMsg:
			inProc.Clear()
			b.postResult(clearCompleteMsg{})
		case closeMsg:
			return
		default:
			b.postResult(errorMsg{err: fmt.Errorf("unknown worker message %T", raw)})
		}
	}
}

// postResult delivers a worker result without blocking the worker; if the
// main goroutine has fallen far behind, the oldest result is displaced.
func (b *OffloadedBackend) postResult(result interface{}) {
	for {
		select {
		case b.results <- result:
			return
		default:
			select {
			case <-b.results:
			default:
			}
		}
	}
}

// post sends a request without blocking. Dropped requests are logged.
func (b *OffloadedBackend) post(msg interface{}) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}

	select {
	case b.requests <- msg:
	default:
		b.logger.Warn(context.Background(), "offloaded physics queue full, dropping request",
			"message_type", fmt.Sprintf("%T", msg),
		)
	}
}

// Spawn adds a body at the given coordinates.
func (b *OffloadedBackend) Spawn(id entity.ID, x, y float64) {
	b.post(spawnMsg{id: id, x: x, y: y})
}

// Remove deletes a body.
func (b *OffloadedBackend) Remove(id entity.ID) {
	b.post(removeMsg{id: id})
}

// Enqueue buffers a command for a body.
func (b *OffloadedBackend) Enqueue(id entity.ID, cmd Command) {
	b.post(enqueueMsg{id: id, cmd: cmd})
}

// Update requests an advance of simulated time. The proxies update when the
// worker's updateComplete arrives; the caller never waits for it.
func (b *OffloadedBackend) Update(delta float64) {
	b.post(updateMsg{delta: delta})
}

// WorldState drains any completed results and returns the latest proxies.
func (b *OffloadedBackend) WorldState() []BodyState {
	for {
		select {
		case raw := <-b.results:
			switch result := raw.(type) {
			case updateCompleteMsg:
				b.mu.Lock()
				b.proxies = result.worldState
				b.mu.Unlock()
			case clearCompleteMsg:
				b.mu.Lock()
				b.proxies = nil
				b.mu.Unlock()
			case errorMsg:
				b.logger.Error(context.Background(), "offloaded physics worker error", result.err)
			}
		default:
			b.mu.Lock()
			defer b.mu.Unlock()
			return b.proxies
		}
	}
}

// Clear removes all bodies.
func (b *OffloadedBackend) Clear() {
	b.post(clearMsg{})
}

// Close stops the worker.
func (b *OffloadedBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.requests <- closeMsg{}
	return nil
}
