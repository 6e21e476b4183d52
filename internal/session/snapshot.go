// Package session defines recorded execution sessions: immutable snapshots,
// the session timeline that owns them, and the recorder that appends to it.
package session

import (
	"time"

	"github.com/pulsedev/retrace/internal/events"
	"github.com/pulsedev/retrace/internal/types"
)

// Registers is the synthetic register file attached to each snapshot. The
// engine records no real CPU state; these are derived coordinates kept for
// quick display without walking the stack.
type Registers struct {
	// ProgramCounter is the location key of the snapshot
	ProgramCounter string `json:"pc"`
	// StackDepth is the frame count at capture time
	StackDepth int `json:"sp"`
	// FramePointer is the id of the innermost frame
	FramePointer string `json:"fp"`
}

// Snapshot is one immutable instant of recorded execution. Everything inside
// is a structural copy taken at capture time: later mutation of the live
// stack or heap can never reach a captured snapshot.
type Snapshot struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	// Sequence is strictly increasing within a session with no gaps and is
	// the sole ordering key during replay.
	Sequence  int64                     `json:"sequence"`
	Location  types.SourceLocation      `json:"location"`
	Stack     []*types.CallFrame        `json:"stack"`
	Memory    *types.MemoryState        `json:"memory"`
	Registers Registers                 `json:"registers"`
	Event     events.ExecutionEventType `json:"event"`
	Payload   events.Payload            `json:"payload,omitempty"`
}

// Depth returns the snapshot's stack depth.
func (s *Snapshot) Depth() int {
	return len(s.Stack)
}

// TopFrame returns the innermost frame, nil for an empty stack.
func (s *Snapshot) TopFrame() *types.CallFrame {
	if len(s.Stack) == 0 {
		return nil
	}
	return s.Stack[0]
}

// Summary is the lightweight timeline descriptor handed to UIs: everything
// needed to draw a timeline entry without loading frame and heap copies.
type Summary struct {
	Sequence  int64                     `json:"sequence"`
	Timestamp time.Time                 `json:"timestamp"`
	Location  types.SourceLocation      `json:"location"`
	Event     events.ExecutionEventType `json:"event"`
	Depth     int                       `json:"depth"`
}

// Summarize builds the snapshot's timeline descriptor.
func (s *Snapshot) Summarize() Summary {
	return Summary{
		Sequence:  s.Sequence,
		Timestamp: s.Timestamp,
		Location:  s.Location,
		Event:     s.Event,
		Depth:     s.Depth(),
	}
}
