// pkg/engine/scheduler.go
package engine

import (
	"context"
	"time"

	"github.com/opd-ai/go-orbit/pkg/event"
	"github.com/opd-ai/go-orbit/pkg/logging"
)

const (
	// MaxElapsedFactor clamps a single frame's wall-clock contribution to the
	// backlog. A stalled process resumes with at most this many steps' worth
	// of catch-up work; the excess is discarded, not queued.
	MaxElapsedFactor = 8

	// MaxStepsPerDrain hard-caps catch-up steps in one Drain call. Hitting
	// the cap discards the remaining backlog.
	MaxStepsPerDrain = 10

	// rateSampleWindow is the number of frames over which FPS and
	// steps-per-second are averaged.
	rateSampleWindow = 60
)

// FixedStepScheduler converts irregular wall-clock frame callbacks into a
// sequence of constant-size simulation steps. It accumulates clamped elapsed
// time into a backlog and drains it one fixed step at a time, bounding
// worst-case catch-up work on both the accumulate and drain sides.
type FixedStepScheduler struct {
	fixedStep float64 // seconds
	backlog   float64 // seconds of unconsumed simulated time

	lastTime time.Time
	seeded   bool

	// Rolling rate samples: frame intervals and steps executed per frame.
	frameDt  [rateSampleWindow]float64
	frameN   [rateSampleWindow]int
	sampleAt int
	samples  int

	logger *logging.Logger
	events *event.Bus
}

// NewFixedStepScheduler creates a scheduler with the given fixed step in
// seconds. The event bus may be nil; overruns are then only logged.
func NewFixedStepScheduler(fixedStep float64, logger *logging.Logger, events *event.Bus) *FixedStepScheduler {
	return &FixedStepScheduler{
		fixedStep: fixedStep,
		logger:    logger,
		events:    events,
	}
}

// FixedStep returns the fixed step size in seconds.
func (s *FixedStepScheduler) FixedStep() float64 {
	return s.fixedStep
}

// Advance accounts the wall-clock time elapsed since the previous call and
// adds it to the backlog. The first call seeds the previous timestamp, so the
// first frame contributes exactly one nominal step. Elapsed time beyond
// MaxElapsedFactor fixed steps is discarded.
func (s *FixedStepScheduler) Advance(now time.Time) {
	var elapsed float64
	if !s.seeded {
		s.seeded = true
		elapsed = s.fixedStep
	} else {
		elapsed = now.Sub(s.lastTime).Seconds()
	}
	s.lastTime = now

	s.AdvanceBy(elapsed)
}

// AdvanceBy adds an already-measured elapsed interval (seconds) to the
// backlog, applying the same clamp as Advance. Useful when the caller owns
// the clock, such as the offloaded physics worker.
func (s *FixedStepScheduler) AdvanceBy(elapsed float64) {
	if elapsed < 0 {
		elapsed = 0
	}
	maxElapsed := s.fixedStep * MaxElapsedFactor
	if elapsed > maxElapsed {
		elapsed = maxElapsed
	}

	s.backlog += elapsed
	s.recordFrame(elapsed)
}

// Drain runs stepFn once per whole fixed step in the backlog, up to
// MaxStepsPerDrain. If the cap is hit with backlog remaining, the remainder
// is discarded and the overrun is logged as a recoverable condition. Returns
// the number of steps executed.
func (s *FixedStepScheduler) Drain(stepFn func(dt float64)) int {
	steps := 0
	for s.backlog >= s.fixedStep && steps < MaxStepsPerDrain {
		s.backlog -= s.fixedStep
		steps++
		stepFn(s.fixedStep)
	}

	if s.backlog >= s.fixedStep {
		discarded := s.backlog
		s.backlog = 0
		if s.logger != nil {
			s.logger.Warn(context.Background(), "scheduler overrun, discarding backlog",
				"steps_executed", steps,
				"discarded_seconds", discarded,
			)
		}
		if s.events != nil {
			s.events.Publish(event.NewOverrunEvent(s, steps, discarded))
		}
	}

	s.recordSteps(steps)
	return steps
}

// InterpolationFactor returns the fraction of a fixed step left in the
// backlog, in [0, 1), for blending rendering between authoritative steps.
func (s *FixedStepScheduler) InterpolationFactor() float64 {
	factor := s.backlog / s.fixedStep
	if factor < 0 {
		return 0
	}
	if factor >= 1 {
		// Backlog not yet drained; the renderer still needs a valid blend.
		return 0.999999
	}
	return factor
}

// FPS returns the measured frame rate as a rolling average over the sample
// window. Zero until the first frame.
func (s *FixedStepScheduler) FPS() float64 {
	n, total, _ := s.sampleTotals()
	if total <= 0 {
		return 0
	}
	return float64(n) / total
}

// StepsPerSecond returns the measured simulation step rate as a rolling
// average over the sample window.
func (s *FixedStepScheduler) StepsPerSecond() float64 {
	_, total, steps := s.sampleTotals()
	if total <= 0 {
		return 0
	}
	return float64(steps) / total
}

// recordFrame stores one frame interval sample.
func (s *FixedStepScheduler) recordFrame(elapsed float64) {
	s.frameDt[s.sampleAt] = elapsed
	s.frameN[s.sampleAt] = 0
	if s.samples < rateSampleWindow {
		s.samples++
	}
}

// recordSteps attributes executed steps to the current frame sample and
// advances the ring.
func (s *FixedStepScheduler) recordSteps(steps int) {
	s.frameN[s.sampleAt] = steps
	s.sampleAt = (s.sampleAt + 1) % rateSampleWindow
}

// sampleTotals sums the ring buffer: frame count, total frame seconds, and
// total steps executed.
func (s *FixedStepScheduler) sampleTotals() (frames int, seconds float64, steps int) {
	for i := 0; i < s.samples; i++ {
		seconds += s.frameDt[i]
		steps += s.frameN[i]
	}
	return s.samples, seconds, steps
}
