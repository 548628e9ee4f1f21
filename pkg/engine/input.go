// pkg/engine/input.go
package engine

import (
	"context"
	"sync"

	"github.com/opd-ai/go-orbit/pkg/entity"
	"github.com/opd-ai/go-orbit/pkg/logging"
	"github.com/opd-ai/go-orbit/pkg/physics"
)

// CommandKind identifies a player input command.
type CommandKind string

// Supported command kinds, matching the wire enum.
const (
	ThrustStart    CommandKind = "thrust_start"
	ThrustStop     CommandKind = "thrust_stop"
	SetAngle       CommandKind = "set_angle"
	TurnLeftStart  CommandKind = "turn_left_start"
	TurnLeftStop   CommandKind = "turn_left_stop"
	TurnRightStart CommandKind = "turn_right_start"
	TurnRightStop  CommandKind = "turn_right_stop"
)

// Command is one player input. Commands are immutable once created and are
// consumed exactly once by the sequencer. Seq is assigned by the sender,
// monotonic per connection; it is carried for diagnostics but never used to
// reorder (arrival order over the reliable ordered transport is trusted).
type Command struct {
	Seq       uint64      `json:"seq"`
	Input     CommandKind `json:"input"`
	Value     *float64    `json:"value,omitempty"`
	Timestamp int64       `json:"timestamp,omitempty"` // sender clock, ms
}

// InputSequencer turns the unordered arrival stream of commands into
// deterministic per-tick effects. Each connection owns one FIFO queue;
// enqueue is safe from any goroutine at any time, and the queue is drained
// only at the start of the owning body's fixed-step processing.
type InputSequencer struct {
	mu      sync.Mutex
	queues  map[entity.ID][]Command
	lastSeq map[entity.ID]uint64
	logger  *logging.Logger
}

// NewInputSequencer creates an input sequencer.
func NewInputSequencer(logger *logging.Logger) *InputSequencer {
	return &InputSequencer{
		queues:  make(map[entity.ID][]Command),
		lastSeq: make(map[entity.ID]uint64),
		logger:  logger,
	}
}

// Attach creates the command queue for a body. Must be called before the
// first Enqueue for that body.
func (q *InputSequencer) Attach(bodyID entity.ID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queues[bodyID]; !ok {
		q.queues[bodyID] = nil
	}
}

// Detach removes a body's queue, dropping any still-buffered commands.
// Further enqueues for the body are logged no-ops.
func (q *InputSequencer) Detach(bodyID entity.ID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.queues, bodyID)
	delete(q.lastSeq, bodyID)
}

// Enqueue appends a command to a body's queue. Commands for a detached or
// unknown body are dropped with a warning rather than an error: removal
// between send and arrival is an expected race.
func (q *InputSequencer) Enqueue(bodyID entity.ID, cmd Command) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.queues[bodyID]; !ok {
		q.logger.Warn(context.Background(), "dropping command for unknown body",
			"body_id", uint64(bodyID),
			"input", string(cmd.Input),
			"seq", cmd.Seq,
		)
		return
	}
	q.queues[bodyID] = append(q.queues[bodyID], cmd)
}

// Drain pops and applies every queued command for the body, once, in FIFO
// arrival order. A drain with an empty queue leaves the body's
// command-derived state unchanged. Returns the number of commands applied.
func (q *InputSequencer) Drain(bodyID entity.ID, body *entity.Body) int {
	q.mu.Lock()
	pending := q.queues[bodyID]
	if pending != nil {
		q.queues[bodyID] = nil
	}
	q.mu.Unlock()

	applied := 0
	for _, cmd := range pending {
		q.checkSequence(bodyID, cmd)
		if q.apply(body, cmd) {
			applied++
		}
	}
	return applied
}

// QueueLen reports the number of buffered commands for a body.
func (q *InputSequencer) QueueLen(bodyID entity.ID) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[bodyID])
}

// checkSequence validates sender-assigned sequence numbers for diagnostics.
// Gaps and regressions are logged, never reordered or rejected.
func (q *InputSequencer) checkSequence(bodyID entity.ID, cmd Command) {
	q.mu.Lock()
	last, seen := q.lastSeq[bodyID]
	q.lastSeq[bodyID] = cmd.Seq
	q.mu.Unlock()

	if !seen {
		return
	}
	if cmd.Seq != last+1 {
		q.logger.Debug(context.Background(), "command sequence discontinuity",
			"body_id", uint64(bodyID),
			"last_seq", last,
			"seq", cmd.Seq,
		)
	}
}

// apply mutates the body's command-derived state for one command. Unknown
// kinds are logged and skipped without stalling the queue.
func (q *InputSequencer) apply(body *entity.Body, cmd Command) bool {
	switch cmd.Input {
	case ThrustStart:
		body.Thrusting = true
	case ThrustStop:
		body.Thrusting = false
	case TurnLeftStart:
		body.TurningCCW = true
	case TurnLeftStop:
		body.TurningCCW = false
	case TurnRightStart:
		body.TurningCW = true
	case TurnRightStop:
		body.TurningCW = false
	case SetAngle:
		if cmd.Value == nil {
			q.logger.Warn(context.Background(), "set_angle command without value",
				"body_id", uint64(body.ID),
				"seq", cmd.Seq,
			)
			return false
		}
		body.Angle = physics.NormalizeAngle(*cmd.Value)
	default:
		q.logger.Warn(context.Background(), "ignoring unknown command kind",
			"body_id", uint64(body.ID),
			"input", string(cmd.Input),
			"seq", cmd.Seq,
		)
		return false
	}
	return true
}
