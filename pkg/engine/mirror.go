// pkg/engine/mirror.go
package engine

import (
	"context"
	"sync"

	"github.com/opd-ai/go-orbit/pkg/entity"
	"github.com/opd-ai/go-orbit/pkg/logging"
	"github.com/opd-ai/go-orbit/pkg/physics"
)

// ApplyPolicy selects how a mirrored body merges received authoritative
// state with its locally rendered transform.
type ApplyPolicy int

const (
	// DirectApply overwrites the rendered transform with each received
	// transform. Used for reference markers and debugging overlays.
	DirectApply ApplyPolicy = iota

	// Interpolate stores received transforms as a target and blends the
	// rendered transform toward it each frame, hiding network jitter for
	// remote bodies.
	Interpolate

	// PredictCorrect advances the rendered transform locally with the shared
	// integrator and keeps the received transform only as a correction
	// reference. Used for the locally controlled body.
	PredictCorrect
)

// DefaultBlendFactor is the per-frame interpolation fraction toward the
// target transform.
const DefaultBlendFactor = 0.2

// MirrorBody is one observer-side body: the rendered transform the
// presentation layer reads, plus per-policy authoritative references.
type MirrorBody struct {
	ID       entity.ID
	Policy   ApplyPolicy
	Rendered physics.State

	// Target is the latest received transform (Interpolate, DirectApply).
	Target physics.State

	// Correction is the retained authoritative reference (PredictCorrect).
	// It is never applied to Rendered by the mirror itself; snap-back policy
	// is the caller's extension point.
	Correction physics.State

	Sleeping    bool
	Thrusting   bool
	HasReceived bool
	LastTick    uint64
}

// Mirror maintains the observer's view of remote simulation state. It is
// the receiving half of the reconciliation protocol: updates arrive from
// the network goroutine, frames advance on the render loop.
type Mirror struct {
	mu          sync.Mutex
	bodies      map[entity.ID]*MirrorBody
	blendFactor float64
	logger      *logging.Logger
}

// NewMirror creates a mirror. blendFactor ≤ 0 selects DefaultBlendFactor.
func NewMirror(blendFactor float64, logger *logging.Logger) *Mirror {
	if blendFactor <= 0 || blendFactor > 1 {
		blendFactor = DefaultBlendFactor
	}
	return &Mirror{
		bodies:      make(map[entity.ID]*MirrorBody),
		blendFactor: blendFactor,
		logger:      logger,
	}
}

// Track registers a body with the given policy. Tracking an existing body
// changes its policy and keeps its transforms.
func (m *Mirror) Track(id entity.ID, policy ApplyPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mb, ok := m.bodies[id]; ok {
		mb.Policy = policy
		return
	}
	m.bodies[id] = &MirrorBody{ID: id, Policy: policy}
}

// Forget removes a body from the mirror.
func (m *Mirror) Forget(id entity.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bodies, id)
}

// ApplyUpdate merges one received StateUpdate. Bodies not yet tracked are
// tracked with the Interpolate policy; removed ids are forgotten. Updates
// older than the last seen tick for a body are ignored.
func (m *Mirror) ApplyUpdate(update StateUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, state := range update.Bodies {
		mb, ok := m.bodies[id]
		if !ok {
			mb = &MirrorBody{ID: id, Policy: Interpolate}
			m.bodies[id] = mb
		}
		if mb.HasReceived && update.Tick < mb.LastTick {
			m.logger.Debug(context.Background(), "ignoring stale state update",
				"body_id", uint64(id),
				"update_tick", update.Tick,
				"last_tick", mb.LastTick,
			)
			continue
		}
		m.applyBodyState(mb, state, update.Tick)
	}

	for _, id := range update.Removed {
		delete(m.bodies, id)
	}
}

// applyBodyState merges one body's received transform per its policy.
func (m *Mirror) applyBodyState(mb *MirrorBody, state BodyState, tick uint64) {
	received := physics.State{
		Position:        physics.Vector2D{X: state.X, Y: state.Y},
		Velocity:        physics.Vector2D{X: state.VX, Y: state.VY},
		Angle:           state.Angle,
		AngularVelocity: state.AngularVelocity,
	}

	switch mb.Policy {
	case DirectApply:
		mb.Rendered = received
		mb.Target = received
	case Interpolate:
		mb.Target = received
		if !mb.HasReceived {
			// First transform seeds the rendered state so a newly visible
			// body does not glide in from the origin.
			mb.Rendered = received
		}
	case PredictCorrect:
		mb.Correction = received
		if !mb.HasReceived {
			mb.Rendered = received
		}
	}

	mb.Sleeping = state.IsSleeping
	mb.Thrusting = state.IsThrusting
	mb.HasReceived = true
	mb.LastTick = tick
}

// FrameBlend advances interpolated bodies one render frame: each blends a
// fixed fraction toward its target, never snapping. Sleeping bodies freeze
// instead of chasing numerical noise.
func (m *Mirror) FrameBlend() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mb := range m.bodies {
		if mb.Policy != Interpolate || !mb.HasReceived || mb.Sleeping {
			continue
		}
		mb.Rendered.Position = blendVec(mb.Rendered.Position, mb.Target.Position, m.blendFactor)
		mb.Rendered.Velocity = blendVec(mb.Rendered.Velocity, mb.Target.Velocity, m.blendFactor)
		mb.Rendered.Angle = blendAngle(mb.Rendered.Angle, mb.Target.Angle, m.blendFactor)
		mb.Rendered.AngularVelocity += (mb.Target.AngularVelocity - mb.Rendered.AngularVelocity) * m.blendFactor
	}
}

// PredictLocal advances a PredictCorrect body one fixed step with the same
// integrator the authority uses, from locally tracked controls.
func (m *Mirror) PredictLocal(id entity.ID, controls physics.Controls, gravity *physics.GravityField, atmosphere *physics.AtmosphereModel, params physics.MotionParams, dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mb, ok := m.bodies[id]
	if !ok || mb.Policy != PredictCorrect {
		return
	}

	environmental := gravity.AccelerationAt(mb.Rendered.Position).
		Add(atmosphere.DragAcceleration(mb.Rendered.Position, mb.Rendered.Velocity))
	angular := atmosphere.AngularDragAcceleration(mb.Rendered.Position, mb.Rendered.AngularVelocity)
	physics.Step(&mb.Rendered, controls, environmental, angular, params, dt)
}

// CorrectionError returns the positional divergence between a predicted
// body's rendered transform and its authoritative correction reference.
// Returns false if the body is unknown or has no correction yet.
func (m *Mirror) CorrectionError(id entity.ID) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mb, ok := m.bodies[id]
	if !ok || !mb.HasReceived {
		return 0, false
	}
	return mb.Rendered.Position.Distance(mb.Correction.Position), true
}

// Body returns a copy of one mirrored body's current state.
func (m *Mirror) Body(id entity.ID) (MirrorBody, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mb, ok := m.bodies[id]
	if !ok {
		return MirrorBody{}, false
	}
	return *mb, true
}

// Bodies returns copies of all mirrored bodies for the presentation layer.
func (m *Mirror) Bodies() []MirrorBody {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]MirrorBody, 0, len(m.bodies))
	for _, mb := range m.bodies {
		out = append(out, *mb)
	}
	return out
}

// blendVec moves a fraction of the way from current toward target.
func blendVec(current, target physics.Vector2D, factor float64) physics.Vector2D {
	return current.Add(target.Sub(current).Scale(factor))
}

// blendAngle blends along the shortest arc so a wrap at ±π does not spin
// the body the long way around.
func blendAngle(current, target, factor float64) float64 {
	delta := physics.NormalizeAngle(target - current)
	return physics.NormalizeAngle(current + delta*factor)
}
