package control

import (
	"sync/atomic"

	"github.com/pulsedev/retrace/internal/breakpoint"
	"github.com/pulsedev/retrace/internal/events"
	"github.com/pulsedev/retrace/internal/expr"
	"github.com/pulsedev/retrace/internal/types"
	"github.com/pulsedev/retrace/internal/watch"
)

// State is one execution state yielded by a debug target: where the debuggee
// is, its full stack, and the event that got it there.
type State struct {
	Location types.SourceLocation
	Stack    []*types.CallFrame
	Memory   *types.MemoryState
	Event    events.ExecutionEventType
	Payload  events.Payload
}

// Depth returns the state's stack depth.
func (s State) Depth() int {
	return len(s.Stack)
}

// Target yields successive execution states from the instrumented debuggee.
// Advance blocks until the debuggee produced its next state and returns
// false once the program ended.
type Target interface {
	Advance() (State, bool)
}

// StepResult is the uniform result of every step/continue/pause operation.
type StepResult struct {
	// Success is false when the target is exhausted or no state is loaded.
	Success bool
	// Frame is the innermost frame after the move.
	Frame *types.CallFrame
	// Location is the debuggee's position after the move.
	Location types.SourceLocation
	// HitBreakpoint is set when the move stopped at a pausing breakpoint.
	HitBreakpoint *breakpoint.Breakpoint
	// Event is the execution event that produced the final state.
	Event events.ExecutionEventType
}

// Executor drives live stepping over a Target, consulting the breakpoint
// manager at every state and keeping the stack view and watches current.
type Executor struct {
	target      Target
	stack       *StackView
	breakpoints *breakpoint.Manager
	watches     *watch.Manager

	// observer sees every consumed state, including states skipped by
	// step-over. The execution recorder attaches here.
	observer func(State)
	// onLog receives interpolated log-point messages.
	onLog func(string)

	paused  atomic.Bool
	current *State
}

// ExecutorConfig wires an Executor's collaborators. Target is required;
// everything else may be nil.
type ExecutorConfig struct {
	Target      Target
	Stack       *StackView
	Breakpoints *breakpoint.Manager
	Watches     *watch.Manager
	Observer    func(State)
	OnLog       func(string)
}

// NewExecutor creates a step executor for one live target.
func NewExecutor(cfg ExecutorConfig) *Executor {
	stack := cfg.Stack
	if stack == nil {
		stack = NewStackView()
	}
	return &Executor{
		target:      cfg.Target,
		stack:       stack,
		breakpoints: cfg.Breakpoints,
		watches:     cfg.Watches,
		observer:    cfg.Observer,
		onLog:       cfg.OnLog,
	}
}

// Stack exposes the executor's stack view.
func (e *Executor) Stack() *StackView {
	return e.stack
}

// Current returns the last consumed state, nil before the first step.
func (e *Executor) Current() *State {
	return e.current
}

// StepInto advances exactly one state, following calls inward. Depth may
// grow by at most one frame per step.
func (e *Executor) StepInto() StepResult {
	state, ok := e.advance()
	if !ok {
		return e.exhausted()
	}
	return e.arrive(state, e.checkBreakpoints(state))
}

// StepOver advances one state and then skips states deeper than the entry
// depth, so a call on the current line completes without surfacing. A
// pausing breakpoint inside the skipped call still stops execution there.
func (e *Executor) StepOver() StepResult {
	entryDepth := e.depth()
	for {
		state, ok := e.advance()
		if !ok {
			return e.exhausted()
		}
		hit := e.checkBreakpoints(state)
		if hit != nil {
			return e.arrive(state, hit)
		}
		if state.Depth() <= entryDepth || e.paused.Load() {
			return e.arrive(state, nil)
		}
	}
}

// StepOut advances until the stack is strictly shallower than at entry.
func (e *Executor) StepOut() StepResult {
	entryDepth := e.depth()
	for {
		state, ok := e.advance()
		if !ok {
			return e.exhausted()
		}
		hit := e.checkBreakpoints(state)
		if hit != nil {
			return e.arrive(state, hit)
		}
		if state.Depth() < entryDepth || e.paused.Load() {
			return e.arrive(state, nil)
		}
	}
}

// Continue advances until a pausing breakpoint, a Pause request or the end
// of the target. The pause flag is polled once per consumed state; pausing
// is cooperative, never preemptive.
func (e *Executor) Continue() StepResult {
	e.paused.Store(false)
	for {
		state, ok := e.advance()
		if !ok {
			return e.exhausted()
		}
		hit := e.checkBreakpoints(state)
		if hit != nil {
			return e.arrive(state, hit)
		}
		if e.paused.Load() {
			return e.arrive(state, nil)
		}
	}
}

// Pause requests a cooperative stop. The current frame identity is
// unchanged; a running Continue observes the flag on its next iteration.
func (e *Executor) Pause() StepResult {
	e.paused.Store(true)
	if e.current == nil {
		return StepResult{Success: false}
	}
	return StepResult{
		Success:  true,
		Frame:    topFrame(e.current.Stack),
		Location: e.current.Location,
		Event:    e.current.Event,
	}
}

func (e *Executor) depth() int {
	if e.current == nil {
		return 0
	}
	return e.current.Depth()
}

func (e *Executor) advance() (State, bool) {
	state, ok := e.target.Advance()
	if !ok {
		return State{}, false
	}
	e.current = &state
	if e.observer != nil {
		e.observer(state)
	}
	return state, true
}

// checkBreakpoints runs the live exact-location check and returns the
// breakpoint to pause at, handling log points inline.
func (e *Executor) checkBreakpoints(state State) *breakpoint.Breakpoint {
	if e.breakpoints == nil {
		return nil
	}
	result := e.breakpoints.CheckHit(state.Location, scopeFor(state))
	if result == nil {
		return nil
	}
	if !result.ShouldPause {
		if e.onLog != nil {
			e.onLog(result.LogMessage)
		}
		return nil
	}
	return result.Breakpoint
}

func (e *Executor) arrive(state State, hit *breakpoint.Breakpoint) StepResult {
	e.stack.SetFrames(state.Stack)

	if e.watches != nil {
		source := watch.SourceStep
		if hit != nil {
			source = watch.SourceBreakpoint
		}
		e.watches.EvaluateAll(scopeFor(state), source)
	}

	return StepResult{
		Success:       true,
		Frame:         topFrame(state.Stack),
		Location:      state.Location,
		HitBreakpoint: hit,
		Event:         state.Event,
	}
}

func (e *Executor) exhausted() StepResult {
	if e.current == nil {
		return StepResult{Success: false}
	}
	return StepResult{
		Success:  false,
		Frame:    topFrame(e.current.Stack),
		Location: e.current.Location,
		Event:    e.current.Event,
	}
}

func scopeFor(state State) *expr.Scope {
	scope := &expr.Scope{Frame: topFrame(state.Stack)}
	if state.Memory != nil {
		scope.Globals = state.Memory.Globals
		scope.Heap = state.Memory.Heap
	}
	return scope
}

func topFrame(stack []*types.CallFrame) *types.CallFrame {
	if len(stack) == 0 {
		return nil
	}
	return stack[0]
}
