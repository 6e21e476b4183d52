package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulsedev/retrace/internal/breakpoint"
	"github.com/pulsedev/retrace/internal/events"
	"github.com/pulsedev/retrace/internal/types"
)

// Recorder appends snapshots to a session while execution runs. It owns a
// live view of program memory that write events mutate before each capture,
// so every snapshot carries a heap consistent with the writes that preceded
// it. Each capture deep-copies stack and memory; the live structures the
// caller passes in are never retained.
type Recorder struct {
	mu          sync.Mutex
	session     *Session
	memory      *types.MemoryState
	breakpoints *breakpoint.Manager
	nextSeq     int64
	emitter     *events.Emitter[*Snapshot]
}

// NewRecorder returns a recorder ready to start a session. The breakpoint
// manager may be nil when no hit bookkeeping is wanted.
func NewRecorder(breakpoints *breakpoint.Manager) *Recorder {
	return &Recorder{
		memory:      types.NewMemoryState(),
		breakpoints: breakpoints,
		nextSeq:     1,
		emitter:     events.NewEmitter[*Snapshot](),
	}
}

// Start begins a fresh session and returns it. Any prior session is
// abandoned in whatever state it was left.
func (r *Recorder) Start() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = NewSession()
	r.memory = types.NewMemoryState()
	r.nextSeq = 1
	return r.session
}

// Stop marks the current session completed and returns it, capturing the
// active breakpoint registry so exports are self-contained. Returns nil if
// no session is recording.
func (r *Recorder) Stop() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return nil
	}
	now := time.Now().UTC()
	r.session.EndedAt = &now
	r.session.Status = StatusCompleted
	if r.breakpoints != nil {
		r.session.Breakpoints = r.breakpoints.List()
	}
	done := r.session
	r.session = nil
	return done
}

// Session returns the session currently recording, nil when stopped.
func (r *Recorder) Session() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Subscribe registers a callback fired after every capture. The returned
// function unregisters it.
func (r *Recorder) Subscribe(fn func(*Snapshot)) func() {
	return r.emitter.Subscribe(fn)
}

// RecordStep captures an execution step snapshot.
func (r *Recorder) RecordStep(location types.SourceLocation, stack []*types.CallFrame) *Snapshot {
	return r.capture(location, stack, events.EventStep, nil)
}

// RecordFunctionCall captures a call about to happen. The snapshot carries
// the caller's stack; the pushed frame first appears on the following step.
// Backward step-out depends on this: the call event at the shallower depth
// is the landing point.
func (r *Recorder) RecordFunctionCall(location types.SourceLocation, stack []*types.CallFrame, name string, argCount int) *Snapshot {
	payload := events.NewFunctionCallPayload(events.FunctionCallData{
		FunctionName:  name,
		ArgumentCount: argCount,
	})
	return r.capture(location, stack, events.EventFunctionCall, payload)
}

// RecordFunctionReturn captures a return from a function.
func (r *Recorder) RecordFunctionReturn(location types.SourceLocation, stack []*types.CallFrame, name, returnDisplay string) *Snapshot {
	payload := events.NewFunctionReturnPayload(events.FunctionReturnData{
		FunctionName:  name,
		ReturnDisplay: returnDisplay,
	})
	return r.capture(location, stack, events.EventFunctionReturn, payload)
}

// RecordBranch captures a conditional branch decision.
func (r *Recorder) RecordBranch(location types.SourceLocation, stack []*types.CallFrame, condition string, taken bool) *Snapshot {
	payload := events.NewBranchPayload(events.BranchData{
		Condition: condition,
		Taken:     taken,
	})
	return r.capture(location, stack, events.EventBranch, payload)
}

// RecordException captures a thrown exception.
func (r *Recorder) RecordException(location types.SourceLocation, stack []*types.CallFrame, message string, uncaught bool) *Snapshot {
	payload := events.NewExceptionPayload(events.ExceptionData{
		Message:  message,
		Uncaught: uncaught,
	})
	return r.capture(location, stack, events.EventException, payload)
}

// RecordMemoryAccess captures a heap read or write. Writes mutate the live
// memory view first, allocating the object on first touch, so the captured
// snapshot already reflects the new value.
func (r *Recorder) RecordMemoryAccess(location types.SourceLocation, stack []*types.CallFrame, objectID, field string, value types.RuntimeValue, isWrite bool) *Snapshot {
	r.mu.Lock()
	if isWrite {
		obj, ok := r.memory.Heap[objectID]
		if !ok {
			obj = &types.HeapObject{
				ID:                  objectID,
				Type:                types.KindObject,
				Fields:              map[string]types.RuntimeValue{},
				AllocatedAtSequence: r.nextSeq,
			}
			r.memory.Heap[objectID] = obj
			r.memory.AllocationCount++
		}
		obj.Fields[field] = value
	}
	r.mu.Unlock()

	payload := events.NewMemoryAccessPayload(events.MemoryAccessData{
		ObjectID:     objectID,
		Field:        field,
		ValueDisplay: value.Display,
		IsWrite:      isWrite,
	})
	eventType := events.EventMemoryRead
	if isWrite {
		eventType = events.EventMemoryWrite
	}
	return r.capture(location, stack, eventType, payload)
}

// ReleaseObject marks a heap object freed in the live view and captures the
// release. Unknown ids still record the event without touching the heap.
func (r *Recorder) ReleaseObject(location types.SourceLocation, stack []*types.CallFrame, objectID string) *Snapshot {
	r.mu.Lock()
	if obj, ok := r.memory.Heap[objectID]; ok && obj.FreedAtSequence == nil {
		seq := r.nextSeq
		obj.FreedAtSequence = &seq
		r.memory.DeallocationCount++
	}
	r.mu.Unlock()

	payload := events.NewMemoryAccessPayload(events.MemoryAccessData{
		ObjectID: objectID,
		IsWrite:  true,
	})
	return r.capture(location, stack, events.EventMemoryWrite, payload)
}

// SetGlobal updates a global binding in the live memory view without
// capturing a snapshot. The next capture carries the new value.
func (r *Recorder) SetGlobal(name string, value types.RuntimeValue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memory.Globals[name] = value
}

// RecordAsyncOperation captures an async lifecycle event such as an await,
// a resume, or a promise state change.
func (r *Recorder) RecordAsyncOperation(location types.SourceLocation, stack []*types.CallFrame, event events.ExecutionEventType, promiseID, description string) *Snapshot {
	payload := events.NewAsyncOperationPayload(events.AsyncOperationData{
		PromiseID:   promiseID,
		Description: description,
	})
	return r.capture(location, stack, event, payload)
}

// RecordEvent captures an arbitrary event with a prebuilt payload. The
// executor's observer feeds through here.
func (r *Recorder) RecordEvent(location types.SourceLocation, stack []*types.CallFrame, event events.ExecutionEventType, payload events.Payload) *Snapshot {
	return r.capture(location, stack, event, payload)
}

// capture assigns the next sequence number, deep-copies the stack and the
// live memory view, updates breakpoint hit counters, and appends the
// snapshot to the session timeline.
func (r *Recorder) capture(location types.SourceLocation, stack []*types.CallFrame, event events.ExecutionEventType, payload events.Payload) *Snapshot {
	r.mu.Lock()
	if r.session == nil || r.session.Status != StatusRecording {
		r.mu.Unlock()
		return nil
	}

	frames := types.CloneStack(stack)
	snap := &Snapshot{
		ID:        "snap-" + uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Sequence:  r.nextSeq,
		Location:  location,
		Stack:     frames,
		Memory:    r.memory.Clone(),
		Event:     event,
		Payload:   payload,
		Registers: Registers{
			ProgramCounter: location.Key(),
			StackDepth:     len(frames),
		},
	}
	if len(frames) > 0 {
		snap.Registers.FramePointer = frames[0].ID
	}
	r.nextSeq++
	r.session.Snapshots = append(r.session.Snapshots, snap)
	r.mu.Unlock()

	if r.breakpoints != nil {
		r.breakpoints.RecordHit(location)
	}
	r.emitter.Emit(snap)
	return snap
}
