// pkg/engine/state.go
package engine

import (
	"github.com/opd-ai/go-orbit/pkg/entity"
)

// BodyState is the per-body projection published to observers. It carries
// everything a receiver needs to mirror, interpolate, or correct a body,
// and nothing serialization-specific: the wire encoding lives in the
// network layer.
type BodyState struct {
	ID              entity.ID `msgpack:"id" json:"id"`
	X               float64   `msgpack:"x" json:"x"`
	Y               float64   `msgpack:"y" json:"y"`
	VX              float64   `msgpack:"vx" json:"vx"`
	VY              float64   `msgpack:"vy" json:"vy"`
	Angle           float64   `msgpack:"angle" json:"angle"`
	AngularVelocity float64   `msgpack:"angularVelocity" json:"angularVelocity"`
	IsSleeping      bool      `msgpack:"isSleeping" json:"isSleeping"`
	IsThrusting     bool      `msgpack:"isThrusting" json:"isThrusting"`
}

// PlanetState is the massive-body projection. Colors and noise parameters
// are visual-only, consumed by rendering layers outside this module.
type PlanetState struct {
	ID               entity.ID          `msgpack:"id" json:"id"`
	Name             string             `msgpack:"name" json:"name"`
	X                float64            `msgpack:"x" json:"x"`
	Y                float64            `msgpack:"y" json:"y"`
	Radius           float64            `msgpack:"radius" json:"radius"`
	Mass             float64            `msgpack:"mass" json:"mass"`
	AtmosphereHeight float64            `msgpack:"atmosphereHeight" json:"atmosphereHeight"`
	SurfaceDensity   float64            `msgpack:"surfaceDensity" json:"surfaceDensity"`
	Seed             int64              `msgpack:"seed" json:"seed"`
	Colors           []string           `msgpack:"colors" json:"colors"`
	NoiseParams      entity.NoiseParams `msgpack:"noiseParams" json:"noiseParams"`
}

// StateSnapshot is a read-only projection of the authoritative simulation at
// one tick.
type StateSnapshot struct {
	Tick   uint64                  `msgpack:"tick" json:"tick"`
	Bodies map[entity.ID]BodyState `msgpack:"bodies" json:"bodies"`
}

// bodyStateOf projects one dynamic body.
func bodyStateOf(b *entity.Body) BodyState {
	return BodyState{
		ID:              b.ID,
		X:               b.Position.X,
		Y:               b.Position.Y,
		VX:              b.Velocity.X,
		VY:              b.Velocity.Y,
		Angle:           b.Angle,
		AngularVelocity: b.AngularVelocity,
		IsSleeping:      b.Sleeping,
		IsThrusting:     b.Thrusting,
	}
}

// planetStateOf projects one massive body.
func planetStateOf(p *entity.Planet) PlanetState {
	return PlanetState{
		ID:               p.ID,
		Name:             p.Name,
		X:                p.Position.X,
		Y:                p.Position.Y,
		Radius:           p.Radius,
		Mass:             p.Mass,
		AtmosphereHeight: p.AtmosphereHeight,
		SurfaceDensity:   p.SurfaceDensity,
		Seed:             p.Seed,
		Colors:           p.Colors,
		NoiseParams:      p.NoiseParams,
	}
}
