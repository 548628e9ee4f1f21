// pkg/entity/entity_test.go
package entity

import (
	"sync"
	"testing"

	"github.com/opd-ai/go-orbit/pkg/physics"
)

func TestGenerateIDUnique(t *testing.T) {
	const n = 1000
	seen := make(map[ID]bool, n)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < n/4; j++ {
				id := GenerateID()
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate ID %d", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

func TestBodyMotionStateRoundTrip(t *testing.T) {
	body := NewBody(GenerateID(), physics.Vector2D{X: 5, Y: -3}, 10)
	body.Velocity = physics.Vector2D{X: 1, Y: 2}
	body.Angle = 0.75
	body.AngularVelocity = -0.25

	state := body.MotionState()
	state.Position.X += 100
	state.Angle = 1.5
	body.ApplyMotionState(state)

	if body.Position.X != 105 {
		t.Errorf("position.X = %v, expected 105", body.Position.X)
	}
	if body.Angle != 1.5 {
		t.Errorf("angle = %v, expected 1.5", body.Angle)
	}
}

func TestBodyControls(t *testing.T) {
	body := NewBody(1, physics.Vector2D{}, 1)
	body.Thrusting = true
	body.TurningCCW = true

	c := body.Controls()
	if !c.Thrusting || c.TurningCW || !c.TurningCCW {
		t.Errorf("controls %+v do not match body toggles", c)
	}
}
