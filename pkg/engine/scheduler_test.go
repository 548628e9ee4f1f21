// pkg/engine/scheduler_test.go
package engine

import (
	"io"
	"math"
	"testing"
	"time"

	"github.com/opd-ai/go-orbit/pkg/event"
	"github.com/opd-ai/go-orbit/pkg/logging"
)

func testScheduler(step float64) *FixedStepScheduler {
	return NewFixedStepScheduler(step, logging.NewLoggerWithOutput(io.Discard), nil)
}

func TestFixedStepSchedulerFirstFrameSeedsOneStep(t *testing.T) {
	s := testScheduler(1.0 / 60.0)
	s.Advance(time.Now())

	steps := s.Drain(func(dt float64) {})
	if steps != 1 {
		t.Errorf("first frame executed %d steps, want 1", steps)
	}
}

func TestFixedStepSchedulerClampsLongFrame(t *testing.T) {
	const step = 1.0 / 60.0
	s := testScheduler(step)

	// A 500ms stall must contribute at most MaxElapsedFactor steps of
	// backlog; the excess wall-clock time is discarded on accumulation.
	s.AdvanceBy(0.5)

	var simulated float64
	steps := s.Drain(func(dt float64) { simulated += dt })

	if steps != MaxElapsedFactor {
		t.Errorf("drained %d steps after 500ms frame, want %d", steps, MaxElapsedFactor)
	}
	if max := step * MaxElapsedFactor; simulated > max+1e-12 {
		t.Errorf("simulated %v seconds, want at most %v", simulated, max)
	}
}

func TestFixedStepSchedulerCatchUpCapDiscardsBacklog(t *testing.T) {
	const step = 1.0 / 60.0
	s := testScheduler(step)

	// Two clamped frames accumulate 16 steps of backlog, beyond the
	// per-drain cap.
	s.AdvanceBy(0.5)
	s.AdvanceBy(0.5)

	steps := s.Drain(func(dt float64) {})
	if steps != MaxStepsPerDrain {
		t.Errorf("drained %d steps, want cap of %d", steps, MaxStepsPerDrain)
	}

	// The remainder must have been discarded, not deferred.
	if again := s.Drain(func(dt float64) {}); again != 0 {
		t.Errorf("drain after overrun executed %d steps, want 0", again)
	}
}

func TestFixedStepSchedulerOverrunPublishesEvent(t *testing.T) {
	bus := event.NewBus()
	s := NewFixedStepScheduler(1.0/60.0, logging.NewLoggerWithOutput(io.Discard), bus)

	var overrun *event.OverrunEvent
	bus.Subscribe(event.SchedulerOverrun, func(e event.Event) {
		if oe, ok := e.(*event.OverrunEvent); ok {
			overrun = oe
		}
	})

	s.AdvanceBy(0.5)
	s.AdvanceBy(0.5)
	s.Drain(func(dt float64) {})

	if overrun == nil {
		t.Fatal("expected an overrun event")
	}
	if overrun.StepsExecuted != MaxStepsPerDrain {
		t.Errorf("overrun reported %d steps, want %d", overrun.StepsExecuted, MaxStepsPerDrain)
	}
	if overrun.DiscardedBacklog <= 0 {
		t.Errorf("overrun reported discarded backlog %v, want > 0", overrun.DiscardedBacklog)
	}
}

func TestFixedStepSchedulerDrainLeavesFraction(t *testing.T) {
	const step = 1.0 / 60.0
	s := testScheduler(step)

	s.AdvanceBy(step * 2.5)
	steps := s.Drain(func(dt float64) {})

	if steps != 2 {
		t.Fatalf("drained %d steps from a 2.5-step backlog, want 2", steps)
	}
	if f := s.InterpolationFactor(); math.Abs(f-0.5) > 1e-9 {
		t.Errorf("interpolation factor = %v, want 0.5", f)
	}
}

func TestInterpolationFactorBounds(t *testing.T) {
	const step = 1.0 / 60.0

	tests := []struct {
		name    string
		elapsed []float64
		drain   bool
	}{
		{"fresh scheduler", nil, false},
		{"undrained backlog", []float64{step * 5}, false},
		{"drained fraction", []float64{step * 1.75}, true},
		{"many frames", []float64{step, step * 0.3, step * 2.2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testScheduler(step)
			for _, e := range tt.elapsed {
				s.AdvanceBy(e)
			}
			if tt.drain {
				s.Drain(func(dt float64) {})
			}
			if f := s.InterpolationFactor(); f < 0 || f >= 1 {
				t.Errorf("interpolation factor = %v, want in [0, 1)", f)
			}
		})
	}
}

func TestSchedulerRateMeasurement(t *testing.T) {
	const step = 1.0 / 60.0
	s := testScheduler(step)

	// 120 nominal frames, one step each; the rolling window holds the
	// last 60, so both rates should read close to 60.
	for i := 0; i < 120; i++ {
		s.AdvanceBy(step)
		s.Drain(func(dt float64) {})
	}

	if fps := s.FPS(); math.Abs(fps-60) > 1 {
		t.Errorf("FPS = %v, want about 60", fps)
	}
	if sps := s.StepsPerSecond(); math.Abs(sps-60) > 1 {
		t.Errorf("StepsPerSecond = %v, want about 60", sps)
	}
}

func TestSchedulerNegativeElapsedIgnored(t *testing.T) {
	s := testScheduler(1.0 / 60.0)
	s.AdvanceBy(-1)

	if steps := s.Drain(func(dt float64) {}); steps != 0 {
		t.Errorf("negative elapsed produced %d steps, want 0", steps)
	}
}
