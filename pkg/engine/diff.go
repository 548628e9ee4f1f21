// pkg/engine/diff.go
package engine

import (
	"github.com/opd-ai/go-orbit/pkg/entity"
)

// StateUpdate is the unit of reconciliation traffic: the bodies whose
// projections changed since the last update, plus the ids that disappeared.
// Receivers must tolerate missed or coalesced updates; a keyframe carries
// every body and lets a late joiner or a lossy observer resynchronize.
type StateUpdate struct {
	Tick     uint64                  `msgpack:"tick" json:"tick"`
	Keyframe bool                    `msgpack:"keyframe" json:"keyframe"`
	Bodies   map[entity.ID]BodyState `msgpack:"bodies" json:"bodies"`
	Removed  []entity.ID             `msgpack:"removed,omitempty" json:"removed,omitempty"`
}

// Empty reports whether the update carries no changes.
func (u StateUpdate) Empty() bool {
	return len(u.Bodies) == 0 && len(u.Removed) == 0
}

// DiffEncoder turns successive snapshots into StateUpdates. The data model
// stays free of serialization concerns: the encoder compares plain
// projections, and the network layer decides how bytes look on the wire.
// Not safe for concurrent use; the publisher owns one encoder.
type DiffEncoder struct {
	last map[entity.ID]BodyState
}

// NewDiffEncoder creates a diff encoder with no transmission history.
func NewDiffEncoder() *DiffEncoder {
	return &DiffEncoder{last: make(map[entity.ID]BodyState)}
}

// Encode returns the bodies that changed since the previous call and the
// ids removed since then, updating the encoder's history.
func (e *DiffEncoder) Encode(snap StateSnapshot) StateUpdate {
	update := StateUpdate{
		Tick:   snap.Tick,
		Bodies: make(map[entity.ID]BodyState),
	}

	for id, state := range snap.Bodies {
		if prev, ok := e.last[id]; !ok || prev != state {
			update.Bodies[id] = state
			e.last[id] = state
		}
	}

	for id := range e.last {
		if _, ok := snap.Bodies[id]; !ok {
			update.Removed = append(update.Removed, id)
			delete(e.last, id)
		}
	}

	return update
}

// Keyframe returns a full-state update regardless of history and resets the
// history to the snapshot.
func (e *DiffEncoder) Keyframe(snap StateSnapshot) StateUpdate {
	update := StateUpdate{
		Tick:     snap.Tick,
		Keyframe: true,
		Bodies:   make(map[entity.ID]BodyState, len(snap.Bodies)),
	}

	e.last = make(map[entity.ID]BodyState, len(snap.Bodies))
	for id, state := range snap.Bodies {
		update.Bodies[id] = state
		e.last[id] = state
	}

	return update
}
