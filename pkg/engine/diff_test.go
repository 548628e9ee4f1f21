// pkg/engine/diff_test.go
package engine

import (
	"testing"

	"github.com/opd-ai/go-orbit/pkg/entity"
)

func snapshotWith(tick uint64, bodies ...BodyState) StateSnapshot {
	snap := StateSnapshot{Tick: tick, Bodies: make(map[entity.ID]BodyState, len(bodies))}
	for _, b := range bodies {
		snap.Bodies[b.ID] = b
	}
	return snap
}

func TestDiffEncoderFirstEncodeSendsEverything(t *testing.T) {
	enc := NewDiffEncoder()
	snap := snapshotWith(1,
		BodyState{ID: 1, X: 10},
		BodyState{ID: 2, X: 20},
	)

	update := enc.Encode(snap)

	if update.Tick != 1 {
		t.Errorf("tick = %d, want 1", update.Tick)
	}
	if len(update.Bodies) != 2 {
		t.Errorf("first encode carried %d bodies, want 2", len(update.Bodies))
	}
}

func TestDiffEncoderOnlyChangedBodies(t *testing.T) {
	enc := NewDiffEncoder()
	enc.Encode(snapshotWith(1,
		BodyState{ID: 1, X: 10},
		BodyState{ID: 2, X: 20},
	))

	update := enc.Encode(snapshotWith(2,
		BodyState{ID: 1, X: 10}, // unchanged
		BodyState{ID: 2, X: 25}, // moved
	))

	if len(update.Bodies) != 1 {
		t.Fatalf("diff carried %d bodies, want 1", len(update.Bodies))
	}
	if got, ok := update.Bodies[2]; !ok || got.X != 25 {
		t.Errorf("diff missing the changed body, got %+v", update.Bodies)
	}
}

func TestDiffEncoderUnchangedWorldIsEmpty(t *testing.T) {
	enc := NewDiffEncoder()
	snap := snapshotWith(1, BodyState{ID: 1, X: 10, Angle: 0.5})

	enc.Encode(snap)
	snap.Tick = 2
	update := enc.Encode(snap)

	if !update.Empty() {
		t.Errorf("unchanged world produced a non-empty update: %+v", update)
	}
}

func TestDiffEncoderTracksRemovals(t *testing.T) {
	enc := NewDiffEncoder()
	enc.Encode(snapshotWith(1,
		BodyState{ID: 1, X: 10},
		BodyState{ID: 2, X: 20},
	))

	update := enc.Encode(snapshotWith(2, BodyState{ID: 1, X: 10}))

	if len(update.Removed) != 1 || update.Removed[0] != 2 {
		t.Errorf("removed = %v, want [2]", update.Removed)
	}

	// The removal must not repeat on the following diff.
	update = enc.Encode(snapshotWith(3, BodyState{ID: 1, X: 10}))
	if len(update.Removed) != 0 {
		t.Errorf("removal repeated: %v", update.Removed)
	}
}

func TestDiffEncoderSleepTransitionIsAChange(t *testing.T) {
	enc := NewDiffEncoder()
	enc.Encode(snapshotWith(1, BodyState{ID: 1, X: 10}))

	update := enc.Encode(snapshotWith(2, BodyState{ID: 1, X: 10, IsSleeping: true}))

	if _, ok := update.Bodies[1]; !ok {
		t.Error("sleep transition with unchanged transform was not encoded")
	}
}

func TestKeyframeCarriesFullStateAndResetsHistory(t *testing.T) {
	enc := NewDiffEncoder()
	enc.Encode(snapshotWith(1,
		BodyState{ID: 1, X: 10},
		BodyState{ID: 2, X: 20},
	))

	key := enc.Keyframe(snapshotWith(2,
		BodyState{ID: 1, X: 10},
		BodyState{ID: 2, X: 20},
	))

	if !key.Keyframe {
		t.Error("keyframe flag not set")
	}
	if len(key.Bodies) != 2 {
		t.Errorf("keyframe carried %d bodies, want full state of 2", len(key.Bodies))
	}

	// After a keyframe the history matches the snapshot exactly, so an
	// identical world diffs to empty.
	if update := enc.Encode(snapshotWith(3, BodyState{ID: 1, X: 10}, BodyState{ID: 2, X: 20})); !update.Empty() {
		t.Errorf("post-keyframe diff of identical world not empty: %+v", update)
	}
}
