// pkg/physics/gravity_test.go
package physics

import (
	"math"
	"testing"
)

const gravityTolerance = 1e-4

func TestGravityField_ClosedFormFreeFall(t *testing.T) {
	// One massive body at the origin, a test point at distance r: the
	// acceleration magnitude must match g = G·M/r².
	const (
		g = 100.0
		m = 5000.0
		r = 200.0
	)
	field := NewGravityField(g, 1)
	field.Register(1, Vector2D{}, m)

	accel := field.AccelerationAt(Vector2D{X: r, Y: 0})
	expected := g * m / (r * r)

	if math.Abs(accel.Length()-expected) > gravityTolerance {
		t.Errorf("acceleration magnitude = %v, expected %v", accel.Length(), expected)
	}
	// Directed toward the source: negative X.
	if accel.X >= 0 || math.Abs(accel.Y) > gravityTolerance {
		t.Errorf("acceleration should point toward origin, got %v", accel)
	}
}

func TestGravityField_SumsAllSources(t *testing.T) {
	field := NewGravityField(1, 1)
	field.Register(1, Vector2D{X: -100, Y: 0}, 1e4)
	field.Register(2, Vector2D{X: 100, Y: 0}, 1e4)

	// Symmetric sources cancel at the midpoint.
	accel := field.AccelerationAt(Vector2D{})
	if accel.Length() > gravityTolerance {
		t.Errorf("expected zero net acceleration at midpoint, got %v", accel)
	}
}

func TestGravityField_MinimumDistanceFloor(t *testing.T) {
	field := NewGravityField(1, 10)
	field.Register(1, Vector2D{}, 1e6)

	// A point nearly on top of the source must be floored to minDistance,
	// not diverge.
	near := field.AccelerationAt(Vector2D{X: 0.001, Y: 0})
	atFloor := 1.0 * 1e6 / (10.0 * 10.0)
	if near.Length() > atFloor+gravityTolerance {
		t.Errorf("acceleration %v exceeds floor-limited value %v", near.Length(), atFloor)
	}
}

func TestGravityField_NonPositiveMassContributesNothing(t *testing.T) {
	tests := []struct {
		name string
		mass float64
	}{
		{name: "zero_mass", mass: 0},
		{name: "negative_mass", mass: -500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field := NewGravityField(1, 1)
			field.Register(1, Vector2D{}, tt.mass)

			if accel := field.AccelerationAt(Vector2D{X: 50, Y: 0}); accel.Length() != 0 {
				t.Errorf("expected zero acceleration, got %v", accel)
			}
		})
	}
}

func TestGravityField_SetMass(t *testing.T) {
	field := NewGravityField(1, 1)
	field.Register(1, Vector2D{}, 100)

	if !field.SetMass(1, 400) {
		t.Fatal("SetMass on registered source returned false")
	}
	accel := field.AccelerationAt(Vector2D{X: 10, Y: 0})
	if math.Abs(accel.Length()-4.0) > gravityTolerance {
		t.Errorf("acceleration after mass update = %v, expected 4", accel.Length())
	}

	if field.SetMass(99, 1) {
		t.Error("SetMass on unknown source returned true")
	}
}

func TestGravityField_UnregisterPreservesOrder(t *testing.T) {
	field := NewGravityField(1, 1)
	field.Register(1, Vector2D{X: 0, Y: 0}, 100)
	field.Register(2, Vector2D{X: 10, Y: 0}, 200)
	field.Register(3, Vector2D{X: 20, Y: 0}, 300)

	field.Unregister(2)
	if field.SourceCount() != 2 {
		t.Fatalf("expected 2 sources after unregister, got %d", field.SourceCount())
	}

	// Remaining sources still addressable and effective.
	if !field.SetMass(3, 600) {
		t.Error("source 3 lost after unregistering source 2")
	}
	field.Unregister(42) // unknown id is a no-op
	if field.SourceCount() != 2 {
		t.Errorf("unregistering unknown id changed source count")
	}
}

func TestGravityField_Determinism(t *testing.T) {
	build := func() *GravityField {
		f := NewGravityField(0.5, 2)
		f.Register(10, Vector2D{X: -300, Y: 120}, 7.5e4)
		f.Register(11, Vector2D{X: 450, Y: -80}, 2.2e5)
		f.Register(12, Vector2D{X: 0, Y: 900}, 9.9e3)
		return f
	}

	a, b := build(), build()
	points := []Vector2D{{X: 1, Y: 1}, {X: -50, Y: 300}, {X: 400, Y: -400}}
	for _, p := range points {
		accelA, accelB := a.AccelerationAt(p), b.AccelerationAt(p)
		if accelA != accelB {
			t.Errorf("acceleration at %v differs between identical fields: %v vs %v", p, accelA, accelB)
		}
	}
}
