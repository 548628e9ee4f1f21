// pkg/engine/simulation.go
package engine

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/opd-ai/go-orbit/pkg/config"
	"github.com/opd-ai/go-orbit/pkg/entity"
	"github.com/opd-ai/go-orbit/pkg/event"
	"github.com/opd-ai/go-orbit/pkg/logging"
	"github.com/opd-ai/go-orbit/pkg/physics"
)

// Simulation is the authoritative world state: dynamic bodies in a gravity
// field with atmospheres, advanced in fixed steps. All mutation is
// serialized through the entity lock; the tick holds it for a whole step, so
// join/leave and hot mass updates land exactly at tick boundaries, never
// mid-step.
type Simulation struct {
	Config *config.SimConfig

	gravity    *physics.GravityField
	atmosphere *physics.AtmosphereModel
	inputs     *InputSequencer
	params     physics.MotionParams

	bodies    map[entity.ID]*entity.Body
	bodyOrder []entity.ID
	planets   map[entity.ID]*entity.Planet

	tick    uint64
	running bool

	entityLock sync.RWMutex
	events     *event.Bus
	logger     *logging.Logger
}

// NewSimulation creates a simulation from configuration, registering every
// configured planet as a gravity source and, where configured, an
// atmosphere.
func NewSimulation(cfg *config.SimConfig, events *event.Bus, logger *logging.Logger) *Simulation {
	pc := cfg.PhysicsConfig
	sim := &Simulation{
		Config:     cfg,
		gravity:    physics.NewGravityField(pc.Gravity, pc.MinGravityDistance),
		atmosphere: physics.NewAtmosphereModel(pc.DragCoefficient, pc.AngularDragCoeff),
		inputs:     NewInputSequencer(logger),
		params: physics.MotionParams{
			ThrustAccel: pc.ThrustAccel,
			TurnRate:    pc.TurnRate,
			MaxSpeed:    pc.MaxSpeed,
		},
		bodies:  make(map[entity.ID]*entity.Body),
		planets: make(map[entity.ID]*entity.Planet),
		events:  events,
		logger:  logger,
	}

	for _, planetCfg := range cfg.Planets {
		planet := entity.NewPlanet(
			entity.GenerateID(),
			planetCfg.Name,
			physics.Vector2D{X: planetCfg.X, Y: planetCfg.Y},
			planetCfg.Mass,
			planetCfg.Radius,
		).WithAtmosphere(planetCfg.AtmosphereHeight, planetCfg.SurfaceDensity)
		planet.DeriveVisuals(planetCfg.Seed)
		sim.addPlanet(planet)
	}

	return sim
}

// addPlanet registers a planet with the gravity field and atmosphere model.
// Registration order fixes the gravity summation order.
func (s *Simulation) addPlanet(p *entity.Planet) {
	s.planets[p.ID] = p
	s.gravity.Register(uint64(p.ID), p.Position, p.Mass)
	if p.HasAtmosphere() {
		s.atmosphere.Register(uint64(p.ID), p.Position, p.Radius, p.AtmosphereHeight, p.SurfaceDensity)
	}
}

// Start marks the simulation running and publishes the start event.
func (s *Simulation) Start() {
	s.entityLock.Lock()
	s.running = true
	s.entityLock.Unlock()
	s.events.Publish(&event.BaseEvent{EventType: event.SimulationStarted, Source: s})
}

// Stop halts the simulation and publishes the stop event.
func (s *Simulation) Stop() {
	s.entityLock.Lock()
	s.running = false
	s.entityLock.Unlock()
	s.events.Publish(&event.BaseEvent{EventType: event.SimulationStopped, Source: s})
}

// Running reports whether the simulation is active.
func (s *Simulation) Running() bool {
	s.entityLock.RLock()
	defer s.entityLock.RUnlock()
	return s.running
}

// Tick returns the current authoritative tick counter.
func (s *Simulation) Tick() uint64 {
	s.entityLock.RLock()
	defer s.entityLock.RUnlock()
	return s.tick
}

// SpawnBody creates a dynamic body at the configured spawn point, attaches
// its input queue, and publishes BodySpawned. Safe to call from network
// goroutines; the body appears at the next tick boundary.
func (s *Simulation) SpawnBody() *entity.Body {
	return s.SpawnBodyAt(entity.GenerateID(), s.spawnPoint())
}

// SpawnBodyAt creates a dynamic body with a caller-assigned id at the given
// position. The BodySpawned event carries that id.
func (s *Simulation) SpawnBodyAt(id entity.ID, position physics.Vector2D) *entity.Body {
	body := entity.NewBody(id, position, s.Config.PhysicsConfig.BodyMass)

	s.entityLock.Lock()
	s.bodies[body.ID] = body
	s.bodyOrder = append(s.bodyOrder, body.ID)
	s.entityLock.Unlock()

	s.inputs.Attach(body.ID)
	s.events.Publish(event.NewBodyEvent(event.BodySpawned, s, uint64(body.ID)))
	return body
}

// RemoveBody tears down a body: its input queue stops accepting commands and
// the body disappears from the world at the next tick boundary. Removing an
// unknown body is a logged no-op.
func (s *Simulation) RemoveBody(id entity.ID) {
	s.inputs.Detach(id)

	s.entityLock.Lock()
	_, ok := s.bodies[id]
	if ok {
		delete(s.bodies, id)
		for i, bid := range s.bodyOrder {
			if bid == id {
				s.bodyOrder = append(s.bodyOrder[:i], s.bodyOrder[i+1:]...)
				break
			}
		}
	}
	s.entityLock.Unlock()

	if !ok {
		s.logger.Warn(context.Background(), "remove of unknown body", "body_id", uint64(id))
		return
	}
	s.events.Publish(event.NewBodyEvent(event.BodyRemoved, s, uint64(id)))
}

// EnqueueCommand buffers a player command for the owning body. Safe from any
// goroutine; the command takes effect at the start of the body's next step.
func (s *Simulation) EnqueueCommand(bodyID entity.ID, cmd Command) {
	s.inputs.Enqueue(bodyID, cmd)
}

// SetPlanetMass hot-updates a planet's mass and its gravity registration.
func (s *Simulation) SetPlanetMass(id entity.ID, mass float64) error {
	s.entityLock.Lock()
	planet, ok := s.planets[id]
	var oldMass float64
	if ok {
		oldMass = planet.Mass
		planet.Mass = mass
		s.gravity.SetMass(uint64(id), mass)
	}
	s.entityLock.Unlock()

	if !ok {
		return fmt.Errorf("planet %d not found", id)
	}
	s.events.Publish(event.NewPlanetEvent(event.PlanetMassChanged, s, uint64(id), oldMass, mass))
	return nil
}

// Step advances the simulation by exactly one fixed step. For each body, in
// spawn order: drain buffered commands, compute gravity and drag from the
// state at the start of the step, integrate, and update the sleeping flag.
// The tick counter increases by exactly 1.
func (s *Simulation) Step(dt float64) {
	s.entityLock.Lock()

	// Sleep transitions are published after the lock is released so
	// handlers may call back into simulation accessors.
	var transitions []event.Event
	for _, id := range s.bodyOrder {
		body := s.bodies[id]
		s.inputs.Drain(id, body)
		if ev := s.stepBody(body, dt); ev != nil {
			transitions = append(transitions, ev)
		}
	}

	s.tick++
	s.entityLock.Unlock()

	for _, ev := range transitions {
		s.events.Publish(ev)
	}
}

// stepBody integrates one body for one fixed step and returns its sleep
// transition event, if any.
func (s *Simulation) stepBody(body *entity.Body, dt float64) event.Event {
	var environmental physics.Vector2D
	var angularAccel float64

	// Bodies without positive mass receive no environmental forces but still
	// respond to their own commands.
	if body.Mass > 0 {
		environmental = s.gravity.AccelerationAt(body.Position).
			Add(s.atmosphere.DragAcceleration(body.Position, body.Velocity))
		angularAccel = s.atmosphere.AngularDragAcceleration(body.Position, body.AngularVelocity)
	}

	state := body.MotionState()
	physics.Step(&state, body.Controls(), environmental, angularAccel, s.params, dt)
	body.ApplyMotionState(state)

	return s.updateSleep(body)
}

// updateSleep marks a body sleeping when its motion is negligible and no
// command toggle is active, and wakes it otherwise. A transition returns
// the event for the caller to publish outside the entity lock.
func (s *Simulation) updateSleep(body *entity.Body) event.Event {
	pc := s.Config.PhysicsConfig
	idle := !body.Thrusting && !body.TurningCW && !body.TurningCCW
	still := body.Velocity.Length() < pc.SleepLinearSpeed &&
		math.Abs(body.AngularVelocity) < pc.SleepAngularSpeed

	asleep := idle && still
	if asleep == body.Sleeping {
		return nil
	}
	body.Sleeping = asleep
	if asleep {
		return event.NewBodyEvent(event.BodySlept, s, uint64(body.ID))
	}
	return event.NewBodyEvent(event.BodyWoke, s, uint64(body.ID))
}

// Snapshot returns a read-only projection of the current state.
func (s *Simulation) Snapshot() StateSnapshot {
	s.entityLock.RLock()
	defer s.entityLock.RUnlock()

	bodies := make(map[entity.ID]BodyState, len(s.bodies))
	for id, body := range s.bodies {
		bodies[id] = bodyStateOf(body)
	}
	return StateSnapshot{Tick: s.tick, Bodies: bodies}
}

// PlanetStates returns the massive-body projections, sent to clients at join
// and on mass changes.
func (s *Simulation) PlanetStates() []PlanetState {
	s.entityLock.RLock()
	defer s.entityLock.RUnlock()

	states := make([]PlanetState, 0, len(s.planets))
	for _, planet := range s.planets {
		states = append(states, planetStateOf(planet))
	}
	return states
}

// BodyCount returns the number of dynamic bodies.
func (s *Simulation) BodyCount() int {
	s.entityLock.RLock()
	defer s.entityLock.RUnlock()
	return len(s.bodies)
}

// Gravity exposes the gravity field for observer-side prediction, which
// must use the same field configuration as the authority.
func (s *Simulation) Gravity() *physics.GravityField {
	return s.gravity
}

// Atmosphere exposes the atmosphere model for observer-side prediction.
func (s *Simulation) Atmosphere() *physics.AtmosphereModel {
	return s.atmosphere
}

// MotionParams returns the propulsion parameters shared with prediction.
func (s *Simulation) MotionParams() physics.MotionParams {
	return s.params
}

// spawnPoint places new bodies above the first configured planet, outside
// its atmosphere, or at the origin in an empty system.
func (s *Simulation) spawnPoint() physics.Vector2D {
	if len(s.Config.Planets) == 0 {
		return physics.Vector2D{}
	}
	first := s.Config.Planets[0]
	return physics.Vector2D{
		X: first.X,
		Y: first.Y + first.Radius + first.AtmosphereHeight + s.Config.PhysicsConfig.SpawnDistance,
	}
}
