// pkg/entity/entity.go
package entity

import (
	"sync/atomic"

	"github.com/opd-ai/go-orbit/pkg/physics"
)

// ID is a unique identifier for an entity.
type ID uint64

// nextID backs GenerateID. Atomic so network goroutines can spawn entities
// without coordinating with the tick.
var nextID uint64

// GenerateID returns a process-unique entity ID.
func GenerateID() ID {
	return ID(atomic.AddUint64(&nextID, 1))
}

// Body is a dynamic body driven by the simulation: a player craft or any
// other entity subject to gravity and drag. A Body is exclusively owned by
// the simulation that created it; clients hold mirrored or predicted copies
// keyed by the same ID, never the authoritative instance.
type Body struct {
	ID              ID
	Position        physics.Vector2D
	Velocity        physics.Vector2D
	Angle           float64
	AngularVelocity float64
	Mass            float64

	// Command-derived toggles, mutated only by the input sequencer drain.
	Thrusting  bool
	TurningCW  bool
	TurningCCW bool

	// Sleeping is set by the authority when the body's motion is negligible,
	// signalling observers that interpolation can freeze.
	Sleeping bool
}

// NewBody creates a dynamic body at the given position.
func NewBody(id ID, position physics.Vector2D, mass float64) *Body {
	return &Body{
		ID:       id,
		Position: position,
		Mass:     mass,
	}
}

// MotionState extracts the kinematic state for one integration step.
func (b *Body) MotionState() physics.State {
	return physics.State{
		Position:        b.Position,
		Velocity:        b.Velocity,
		Angle:           b.Angle,
		AngularVelocity: b.AngularVelocity,
	}
}

// ApplyMotionState writes an integrated kinematic state back to the body.
func (b *Body) ApplyMotionState(s physics.State) {
	b.Position = s.Position
	b.Velocity = s.Velocity
	b.Angle = s.Angle
	b.AngularVelocity = s.AngularVelocity
}

// Controls returns the command-derived toggles for the integrator.
func (b *Body) Controls() physics.Controls {
	return physics.Controls{
		Thrusting:  b.Thrusting,
		TurningCW:  b.TurningCW,
		TurningCCW: b.TurningCCW,
	}
}
