// pkg/event/event_test.go
package event

import (
	"testing"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()
	received := 0

	bus.Subscribe(BodySpawned, func(e Event) {
		received++
		be, ok := e.(*BodyEvent)
		if !ok {
			t.Fatalf("expected *BodyEvent, got %T", e)
		}
		if be.BodyID != 7 {
			t.Errorf("BodyID = %d, expected 7", be.BodyID)
		}
	})

	bus.Publish(NewBodyEvent(BodySpawned, nil, 7))
	if received != 1 {
		t.Errorf("handler called %d times, expected 1", received)
	}
}

func TestBusIgnoresUnsubscribedTypes(t *testing.T) {
	bus := NewBus()
	called := false
	bus.Subscribe(PlayerJoined, func(Event) { called = true })

	bus.Publish(NewBodyEvent(BodyRemoved, nil, 1))
	if called {
		t.Error("handler for PlayerJoined fired for BodyRemoved")
	}
}

func TestBusMultipleHandlers(t *testing.T) {
	bus := NewBus()
	var order []int
	bus.Subscribe(PlanetMassChanged, func(Event) { order = append(order, 1) })
	bus.Subscribe(PlanetMassChanged, func(Event) { order = append(order, 2) })

	bus.Publish(NewPlanetEvent(PlanetMassChanged, nil, 3, 100, 200))

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("handlers ran in order %v, expected [1 2]", order)
	}
}

func TestOverrunEventPayload(t *testing.T) {
	e := NewOverrunEvent(nil, 10, 0.25)
	if e.GetType() != SchedulerOverrun {
		t.Errorf("type = %v, expected SchedulerOverrun", e.GetType())
	}
	if e.StepsExecuted != 10 || e.DiscardedBacklog != 0.25 {
		t.Errorf("payload %+v not preserved", e)
	}
}
