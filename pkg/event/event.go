// pkg/event/event.go
package event

import (
	"sync"
)

// Type represents the type of event.
type Type string

// Simulation lifecycle and entity events.
const (
	SimulationStarted Type = "simulation_started"
	SimulationStopped Type = "simulation_stopped"
	PlayerJoined      Type = "player_joined"
	PlayerLeft        Type = "player_left"
	BodySpawned       Type = "body_spawned"
	BodyRemoved       Type = "body_removed"
	BodySlept         Type = "body_slept"
	BodyWoke          Type = "body_woke"
	PlanetMassChanged Type = "planet_mass_changed"
	SchedulerOverrun  Type = "scheduler_overrun"
)

// Event is the base interface for all events.
type Event interface {
	GetType() Type
	GetSource() interface{}
}

// BaseEvent provides common functionality for all events.
type BaseEvent struct {
	EventType Type
	Source    interface{}
}

// GetType returns the event type.
func (e *BaseEvent) GetType() Type {
	return e.EventType
}

// GetSource returns the event source.
func (e *BaseEvent) GetSource() interface{} {
	return e.Source
}

// Handler is a function that handles events.
type Handler func(Event)

// Bus manages event subscriptions and dispatching. Handlers run
// synchronously on the publishing goroutine, so simulation handlers execute
// inside the tick and see a consistent world.
type Bus struct {
	handlers map[Type][]Handler
	mu       sync.RWMutex
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]Handler),
	}
}

// Subscribe registers a handler for a specific event type.
func (b *Bus) Subscribe(eventType Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish sends an event to all subscribed handlers.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers, ok := b.handlers[event.GetType()]
	b.mu.RUnlock()

	if !ok {
		return
	}

	for _, handler := range handlers {
		handler(event)
	}
}

// BodyEvent carries information about dynamic-body lifecycle events.
type BodyEvent struct {
	BaseEvent
	BodyID uint64
}

// NewBodyEvent creates a body lifecycle event.
func NewBodyEvent(eventType Type, source interface{}, bodyID uint64) *BodyEvent {
	return &BodyEvent{
		BaseEvent: BaseEvent{EventType: eventType, Source: source},
		BodyID:    bodyID,
	}
}

// PlayerEvent carries information about player join/leave events.
type PlayerEvent struct {
	BaseEvent
	PlayerName string
	BodyID     uint64
}

// NewPlayerEvent creates a player lifecycle event.
func NewPlayerEvent(eventType Type, source interface{}, playerName string, bodyID uint64) *PlayerEvent {
	return &PlayerEvent{
		BaseEvent:  BaseEvent{EventType: eventType, Source: source},
		PlayerName: playerName,
		BodyID:     bodyID,
	}
}

// PlanetEvent carries information about massive-body changes.
type PlanetEvent struct {
	BaseEvent
	PlanetID uint64
	OldMass  float64
	NewMass  float64
}

// NewPlanetEvent creates a planet change event.
func NewPlanetEvent(eventType Type, source interface{}, planetID uint64, oldMass, newMass float64) *PlanetEvent {
	return &PlanetEvent{
		BaseEvent: BaseEvent{EventType: eventType, Source: source},
		PlanetID:  planetID,
		OldMass:   oldMass,
		NewMass:   newMass,
	}
}

// OverrunEvent reports a scheduler catch-up overrun: the step cap was hit
// and the remaining backlog was discarded.
type OverrunEvent struct {
	BaseEvent
	StepsExecuted    int
	DiscardedBacklog float64 // seconds
}

// NewOverrunEvent creates a scheduler overrun event.
func NewOverrunEvent(source interface{}, steps int, discarded float64) *OverrunEvent {
	return &OverrunEvent{
		BaseEvent:        BaseEvent{EventType: SchedulerOverrun, Source: source},
		StepsExecuted:    steps,
		DiscardedBacklog: discarded,
	}
}
