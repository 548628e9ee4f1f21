// pkg/physics/gravity.go
package physics

// GravityField computes gravitational acceleration from a set of registered
// massive bodies. Sources are kept in registration order so that summing
// their contributions is deterministic across runs; the server and any
// client-side prediction that registers the same sources in the same order
// produce identical accelerations.
type GravityField struct {
	g           float64
	minDistance float64
	sources     []gravitySource
	index       map[uint64]int
}

// gravitySource is the field's record of one massive body.
type gravitySource struct {
	id       uint64
	position Vector2D
	mass     float64
}

// NewGravityField creates a gravity field with the given gravitational
// constant and minimum interaction distance. The minimum distance floors r
// in the G·M/r² term so nearly coincident bodies do not produce explosive
// accelerations.
func NewGravityField(g, minDistance float64) *GravityField {
	if minDistance <= 0 {
		minDistance = 1
	}
	return &GravityField{
		g:           g,
		minDistance: minDistance,
		index:       make(map[uint64]int),
	}
}

// Register adds a gravity source. Registering an existing id updates its
// position and mass in place, preserving its position in the summation order.
func (f *GravityField) Register(id uint64, position Vector2D, mass float64) {
	if i, ok := f.index[id]; ok {
		f.sources[i].position = position
		f.sources[i].mass = mass
		return
	}
	f.index[id] = len(f.sources)
	f.sources = append(f.sources, gravitySource{id: id, position: position, mass: mass})
}

// Unregister removes a gravity source, preserving the order of the rest.
// Unknown ids are ignored.
func (f *GravityField) Unregister(id uint64) {
	i, ok := f.index[id]
	if !ok {
		return
	}
	f.sources = append(f.sources[:i], f.sources[i+1:]...)
	delete(f.index, id)
	for j := i; j < len(f.sources); j++ {
		f.index[f.sources[j].id] = j
	}
}

// SetMass hot-updates the mass of a registered source. Returns false if the
// id is not registered.
func (f *GravityField) SetMass(id uint64, mass float64) bool {
	i, ok := f.index[id]
	if !ok {
		return false
	}
	f.sources[i].mass = mass
	return true
}

// SourceCount returns the number of registered sources.
func (f *GravityField) SourceCount() int {
	return len(f.sources)
}

// AccelerationAt sums the gravitational acceleration at a point over all
// registered sources, in registration order. Sources with non-positive mass
// contribute nothing.
func (f *GravityField) AccelerationAt(position Vector2D) Vector2D {
	var accel Vector2D
	for _, src := range f.sources {
		if src.mass <= 0 {
			continue
		}
		toSource := src.position.Sub(position)
		r := toSource.Length()
		if r < f.minDistance {
			r = f.minDistance
		}
		magnitude := f.g * src.mass / (r * r)
		accel = accel.Add(toSource.Normalize().Scale(magnitude))
	}
	return accel
}
