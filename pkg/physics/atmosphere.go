// pkg/physics/atmosphere.go
package physics

// AtmosphereModel computes local atmospheric density around massive bodies
// and the drag forces opposing motion through it. Density falls off linearly
// from the surface: surfaceDensity · (1 − altitude/height), clamped to zero.
// Where atmospheres overlap, the effective density is the maximum of the
// per-body contributions, so a craft inside two atmospheres experiences the
// denser one rather than an additive composite.
type AtmosphereModel struct {
	dragCoefficient        float64
	angularDragCoefficient float64
	layers                 []atmosphereLayer
	index                  map[uint64]int
}

// atmosphereLayer is the model's record of one body's atmosphere.
type atmosphereLayer struct {
	id             uint64
	center         Vector2D
	radius         float64
	height         float64
	surfaceDensity float64
}

// NewAtmosphereModel creates an atmosphere model. dragCoefficient scales the
// quadratic velocity drag; angularDragCoefficient scales the spin-damping
// torque.
func NewAtmosphereModel(dragCoefficient, angularDragCoefficient float64) *AtmosphereModel {
	return &AtmosphereModel{
		dragCoefficient:        dragCoefficient,
		angularDragCoefficient: angularDragCoefficient,
		index:                  make(map[uint64]int),
	}
}

// Register adds or updates a body's atmosphere. A body with height ≤ 0 or
// surfaceDensity ≤ 0 contributes no atmosphere anywhere and is skipped.
func (m *AtmosphereModel) Register(id uint64, center Vector2D, radius, height, surfaceDensity float64) {
	if height <= 0 || surfaceDensity <= 0 {
		m.Unregister(id)
		return
	}
	layer := atmosphereLayer{
		id:             id,
		center:         center,
		radius:         radius,
		height:         height,
		surfaceDensity: surfaceDensity,
	}
	if i, ok := m.index[id]; ok {
		m.layers[i] = layer
		return
	}
	m.index[id] = len(m.layers)
	m.layers = append(m.layers, layer)
}

// Unregister removes a body's atmosphere. Unknown ids are ignored.
func (m *AtmosphereModel) Unregister(id uint64) {
	i, ok := m.index[id]
	if !ok {
		return
	}
	m.layers = append(m.layers[:i], m.layers[i+1:]...)
	delete(m.index, id)
	for j := i; j < len(m.layers); j++ {
		m.index[m.layers[j].id] = j
	}
}

// DensityAt returns the effective atmospheric density at a point: the
// maximum over all overlapping atmospheres, zero outside all of them.
func (m *AtmosphereModel) DensityAt(position Vector2D) float64 {
	density := 0.0
	for _, layer := range m.layers {
		altitude := position.Distance(layer.center) - layer.radius
		if altitude < 0 || altitude > layer.height {
			continue
		}
		local := layer.surfaceDensity * (1 - altitude/layer.height)
		if local > density {
			density = local
		}
	}
	return density
}

// DragAcceleration returns the acceleration from quadratic drag opposing the
// given velocity at the given position. A zero velocity produces zero drag.
func (m *AtmosphereModel) DragAcceleration(position, velocity Vector2D) Vector2D {
	speedSq := velocity.LengthSquared()
	if speedSq == 0 {
		return Vector2D{}
	}
	density := m.DensityAt(position)
	if density == 0 {
		return Vector2D{}
	}
	magnitude := m.dragCoefficient * density * speedSq
	return velocity.Normalize().Scale(-magnitude)
}

// AngularDragAcceleration returns the angular acceleration opposing the given
// angular velocity, scaled by local density.
func (m *AtmosphereModel) AngularDragAcceleration(position Vector2D, angularVelocity float64) float64 {
	if angularVelocity == 0 {
		return 0
	}
	density := m.DensityAt(position)
	if density == 0 {
		return 0
	}
	return -m.angularDragCoefficient * density * angularVelocity
}
