// pkg/entity/planet.go
package entity

import (
	"fmt"
	"math/rand"

	"github.com/opd-ai/go-orbit/pkg/physics"
)

// Planet is a massive static body: a gravity source with an optional
// atmosphere. Position, radius, and atmosphere parameters are immutable for
// the lifetime of a session; only Mass may be hot-updated, via the owning
// simulation.
type Planet struct {
	ID       ID
	Name     string
	Position physics.Vector2D
	Mass     float64
	Radius   float64

	// AtmosphereHeight ≤ 0 or SurfaceDensity ≤ 0 means no atmosphere.
	AtmosphereHeight float64
	SurfaceDensity   float64

	// Seed drives derived visual-only properties. It never affects physics.
	Seed        int64
	Colors      []string
	NoiseParams NoiseParams
}

// NoiseParams are procedural-texture inputs consumed by rendering layers.
type NoiseParams struct {
	Scale       float64 `json:"scale"`
	Octaves     int     `json:"octaves"`
	Persistence float64 `json:"persistence"`
}

// NewPlanet creates a planet and derives its visual properties from seed.
func NewPlanet(id ID, name string, position physics.Vector2D, mass, radius float64) *Planet {
	p := &Planet{
		ID:       id,
		Name:     name,
		Position: position,
		Mass:     mass,
		Radius:   radius,
	}
	p.DeriveVisuals(0)
	return p
}

// WithAtmosphere configures the planet's atmosphere and returns the planet.
func (p *Planet) WithAtmosphere(height, surfaceDensity float64) *Planet {
	p.AtmosphereHeight = height
	p.SurfaceDensity = surfaceDensity
	return p
}

// HasAtmosphere reports whether the planet contributes atmospheric density.
func (p *Planet) HasAtmosphere() bool {
	return p.AtmosphereHeight > 0 && p.SurfaceDensity > 0
}

// DeriveVisuals deterministically derives colors and noise parameters from
// the seed. The same seed always yields the same visuals, so the authority
// only ships the derived values for clients that skip local generation.
func (p *Planet) DeriveVisuals(seed int64) {
	p.Seed = seed
	rng := rand.New(rand.NewSource(seed))

	p.Colors = make([]string, 3)
	for i := range p.Colors {
		p.Colors[i] = fmt.Sprintf("#%02x%02x%02x",
			rng.Intn(256), rng.Intn(256), rng.Intn(256))
	}
	p.NoiseParams = NoiseParams{
		Scale:       0.5 + rng.Float64()*3.5,
		Octaves:     2 + rng.Intn(5),
		Persistence: 0.3 + rng.Float64()*0.4,
	}
}
