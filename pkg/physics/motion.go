// pkg/physics/motion.go
package physics

import "math"

// State is the kinematic state of a craft for one integration step. The same
// Step function drives the authoritative simulation and client-side
// prediction, so both sides stay numerically identical given identical
// inputs.
type State struct {
	Position        Vector2D
	Velocity        Vector2D
	Angle           float64
	AngularVelocity float64
}

// Controls are the command-derived toggles applied during a step.
type Controls struct {
	Thrusting  bool
	TurningCW  bool
	TurningCCW bool
}

// MotionParams configure craft propulsion and handling.
type MotionParams struct {
	ThrustAccel float64 // acceleration along heading while thrusting
	TurnRate    float64 // radians/second applied while a turn toggle is held
	MaxSpeed    float64 // speed clamp, 0 disables
}

// Step advances one fixed timestep using semi-implicit Euler: velocity is
// updated from acceleration first, then position from the new velocity.
// environmental is the summed gravity and drag acceleration computed from
// state at the start of the step; angularAccel is the angular drag term.
func Step(s *State, c Controls, environmental Vector2D, angularAccel float64, p MotionParams, dt float64) {
	stepAngular(s, c, angularAccel, p, dt)

	accel := environmental
	if c.Thrusting {
		accel = accel.Add(FromAngle(s.Angle, p.ThrustAccel))
	}

	s.Velocity = s.Velocity.Add(accel.Scale(dt))
	if p.MaxSpeed > 0 && s.Velocity.Length() > p.MaxSpeed {
		s.Velocity = s.Velocity.Normalize().Scale(p.MaxSpeed)
	}

	s.Position = s.Position.Add(s.Velocity.Scale(dt))
}

// stepAngular applies turn toggles and angular drag. An active turn toggle
// commands a constant angular velocity; angular drag only damps free spin,
// never a commanded turn. Damping is clamped so it cannot flip the spin
// direction within a single step.
func stepAngular(s *State, c Controls, angularAccel float64, p MotionParams, dt float64) {
	switch {
	case c.TurningCW && !c.TurningCCW:
		s.AngularVelocity = p.TurnRate
	case c.TurningCCW && !c.TurningCW:
		s.AngularVelocity = -p.TurnRate
	case c.TurningCW && c.TurningCCW:
		s.AngularVelocity = 0
	default:
		next := s.AngularVelocity + angularAccel*dt
		if s.AngularVelocity > 0 && next < 0 || s.AngularVelocity < 0 && next > 0 {
			next = 0
		}
		s.AngularVelocity = next
	}

	s.Angle = NormalizeAngle(s.Angle + s.AngularVelocity*dt)
}

// NormalizeAngle wraps an angle into the range [-π, π].
func NormalizeAngle(angle float64) float64 {
	for angle > math.Pi {
		angle -= 2 * math.Pi
	}
	for angle < -math.Pi {
		angle += 2 * math.Pi
	}
	return angle
}
