// Package retrace is the facade over the record-replay debugging engine.
// An Engine owns one breakpoint registry, one watch list, one recorder and
// one replayer; everything is constructed explicitly and passed down, there
// is no package-level state.
package retrace

import (
	"context"
	"fmt"
	"sync"

	"github.com/pulsedev/retrace/internal/breakpoint"
	"github.com/pulsedev/retrace/internal/config"
	"github.com/pulsedev/retrace/internal/control"
	"github.com/pulsedev/retrace/internal/expr"
	"github.com/pulsedev/retrace/internal/replay"
	"github.com/pulsedev/retrace/internal/session"
	"github.com/pulsedev/retrace/internal/snapshot"
	"github.com/pulsedev/retrace/internal/storage"
	"github.com/pulsedev/retrace/internal/types"
	"github.com/pulsedev/retrace/internal/watch"
)

// Mode is what the engine is currently doing.
type Mode string

const (
	ModeIdle      Mode = "idle"
	ModeRecording Mode = "recording"
	ModeReplaying Mode = "replaying"
)

// Engine ties the pieces together: live stepping feeds the recorder, stopped
// recordings load into the replayer, and breakpoints and watches apply to
// both. The storage backend is optional; a nil store keeps everything in
// memory.
type Engine struct {
	cfg   config.Config
	store storage.Storage

	breakpoints *breakpoint.Manager
	watches     *watch.Manager
	stack       *control.StackView
	recorder    *session.Recorder
	replayer    *replay.Replayer
	captures    *snapshot.Debugger

	mu       sync.Mutex
	mode     Mode
	executor *control.Executor
	onLog    func(string)
}

// New constructs an engine from a validated config. The store may be nil for
// a purely in-memory engine.
func New(cfg config.Config, store storage.Storage) *Engine {
	bps := breakpoint.NewManager()
	e := &Engine{
		cfg:         cfg,
		store:       store,
		breakpoints: bps,
		watches:     watch.NewManager(),
		stack:       control.NewStackView(),
		recorder:    session.NewRecorder(bps),
		replayer:    replay.NewReplayer(bps),
		captures:    snapshot.NewDebugger(),
		mode:        ModeIdle,
	}
	// cfg has passed Validate, which bounds PlaybackSpeed to (0, 100].
	_ = e.replayer.SetSpeed(cfg.PlaybackSpeed)

	// Every replay cursor move refreshes the stack view and the watches
	// against the snapshot under the cursor.
	e.replayer.Subscribe(func(pos replay.Position) {
		e.stack.SetFrames(pos.Snapshot.Stack)
		e.watches.EvaluateAll(scopeForSnapshot(pos.Snapshot), watch.SourceStep)
	})
	return e
}

// Mode returns what the engine is currently doing.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SetLogSink sets the destination for log-point output. Log points with no
// sink are dropped silently.
func (e *Engine) SetLogSink(fn func(string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onLog = fn
}

// Breakpoints exposes the breakpoint registry shared by live execution and
// replay.
func (e *Engine) Breakpoints() *breakpoint.Manager { return e.breakpoints }

// Watches exposes the watch list.
func (e *Engine) Watches() *watch.Manager { return e.watches }

// Stack exposes the call stack view tracking the current frame selection.
func (e *Engine) Stack() *control.StackView { return e.stack }

// Replayer exposes timeline navigation for the loaded session.
func (e *Engine) Replayer() *replay.Replayer { return e.replayer }

// Captures exposes the named snapshot debugger.
func (e *Engine) Captures() *snapshot.Debugger { return e.captures }

// StartRecording attaches the engine to an execution target and begins a
// fresh session. The engine must be idle.
func (e *Engine) StartRecording(target control.Target) (*session.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode != ModeIdle {
		return nil, fmt.Errorf("cannot start recording while %s", e.mode)
	}

	sess := e.recorder.Start()
	e.executor = control.NewExecutor(control.ExecutorConfig{
		Target:      target,
		Stack:       e.stack,
		Breakpoints: e.breakpoints,
		Watches:     e.watches,
		Observer:    e.observeState,
		OnLog:       e.emitLog,
	})
	e.mode = ModeRecording
	return sess, nil
}

// observeState captures every state the executor consumes and enforces the
// recording cap.
func (e *Engine) observeState(state control.State) {
	if state.Memory != nil {
		for name, value := range state.Memory.Globals {
			e.recorder.SetGlobal(name, value)
		}
	}
	e.recorder.RecordEvent(state.Location, state.Stack, state.Event, state.Payload)
	if e.cfg.MaxSnapshots > 0 {
		if sess := e.recorder.Session(); sess != nil && sess.Len() >= e.cfg.MaxSnapshots {
			if exec := e.currentExecutor(); exec != nil {
				exec.Pause()
			}
		}
	}
}

func (e *Engine) currentExecutor() *control.Executor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executor
}

func (e *Engine) emitLog(message string) {
	e.mu.Lock()
	sink := e.onLog
	e.mu.Unlock()
	if sink != nil {
		sink(message)
	}
}

// StopRecording completes the current session, detaches the executor, and
// persists the session when auto-save is on and a store is attached.
func (e *Engine) StopRecording(ctx context.Context) (*session.Session, error) {
	e.mu.Lock()
	if e.mode != ModeRecording {
		e.mu.Unlock()
		return nil, fmt.Errorf("not recording")
	}
	e.executor = nil
	e.mode = ModeIdle
	e.mu.Unlock()

	sess := e.recorder.Stop()
	if sess == nil {
		return nil, fmt.Errorf("recorder had no session")
	}
	if e.store != nil && e.cfg.AutoSaveSessions {
		if err := e.store.SaveSession(ctx, sess); err != nil {
			return sess, fmt.Errorf("session recorded but not saved: %w", err)
		}
	}
	return sess, nil
}

// StepInto advances live execution by one state.
func (e *Engine) StepInto() (control.StepResult, error) {
	return e.liveStep((*control.Executor).StepInto)
}

// StepOver advances live execution past any calls made at the current depth.
func (e *Engine) StepOver() (control.StepResult, error) {
	return e.liveStep((*control.Executor).StepOver)
}

// StepOut advances live execution until the current function returns.
func (e *Engine) StepOut() (control.StepResult, error) {
	return e.liveStep((*control.Executor).StepOut)
}

// Continue advances live execution until a pausing breakpoint, a pause
// request, or the end of the target.
func (e *Engine) Continue() (control.StepResult, error) {
	return e.liveStep((*control.Executor).Continue)
}

// Pause requests a cooperative pause of live execution.
func (e *Engine) Pause() (control.StepResult, error) {
	return e.liveStep((*control.Executor).Pause)
}

func (e *Engine) liveStep(op func(*control.Executor) control.StepResult) (control.StepResult, error) {
	exec := e.currentExecutor()
	if exec == nil {
		return control.StepResult{}, fmt.Errorf("no live execution attached")
	}
	return op(exec), nil
}

// ListSessions lists the sessions in the attached store.
func (e *Engine) ListSessions(ctx context.Context) ([]storage.SessionInfo, error) {
	if e.store == nil {
		return nil, fmt.Errorf("no storage attached")
	}
	return e.store.ListSessions(ctx)
}

// DeleteSession removes a stored session.
func (e *Engine) DeleteSession(ctx context.Context, id string) error {
	if e.store == nil {
		return fmt.Errorf("no storage attached")
	}
	return e.store.DeleteSession(ctx, id)
}

// LoadSession loads a stored session into the replayer.
func (e *Engine) LoadSession(ctx context.Context, id string) error {
	if e.store == nil {
		return fmt.Errorf("no storage attached")
	}
	sess, err := e.store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	return e.loadForReplay(sess)
}

// LoadRecordedSession loads an in-memory session, typically one just
// returned by StopRecording, into the replayer.
func (e *Engine) LoadRecordedSession(sess *session.Session) error {
	return e.loadForReplay(sess)
}

// LoadSessionData loads an exported session payload into the replayer.
func (e *Engine) LoadSessionData(data []byte) (*session.Session, error) {
	sess, err := session.Import(data)
	if err != nil {
		return nil, err
	}
	if err := e.loadForReplay(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (e *Engine) loadForReplay(sess *session.Session) error {
	e.mu.Lock()
	if e.mode == ModeRecording {
		e.mu.Unlock()
		return fmt.Errorf("cannot load a session while recording")
	}
	e.mu.Unlock()

	if err := e.replayer.Load(sess); err != nil {
		return err
	}
	e.mu.Lock()
	e.mode = ModeReplaying
	e.mu.Unlock()
	return nil
}

// UnloadSession detaches the replayer's session and returns the engine to
// idle.
func (e *Engine) UnloadSession() {
	e.replayer.Unload()
	e.mu.Lock()
	if e.mode == ModeReplaying {
		e.mode = ModeIdle
	}
	e.mu.Unlock()
}

// InstallBreakpoints installs breakpoints carried by an imported session or
// restored from storage, skipping ids the registry already has.
func (e *Engine) InstallBreakpoints(bps []*breakpoint.Breakpoint) int {
	installed := 0
	for _, bp := range bps {
		if _, exists := e.breakpoints.Get(bp.ID); exists {
			continue
		}
		if err := e.breakpoints.Install(bp); err == nil {
			installed++
		}
	}
	return installed
}

// RestoreBreakpoints loads persisted breakpoints into the registry.
func (e *Engine) RestoreBreakpoints(ctx context.Context) (int, error) {
	if e.store == nil {
		return 0, fmt.Errorf("no storage attached")
	}
	bps, err := e.store.ListBreakpoints(ctx)
	if err != nil {
		return 0, err
	}
	return e.InstallBreakpoints(bps), nil
}

// SaveBreakpoint persists one breakpoint's current state.
func (e *Engine) SaveBreakpoint(ctx context.Context, id string) error {
	if e.store == nil {
		return fmt.Errorf("no storage attached")
	}
	bp, ok := e.breakpoints.Get(id)
	if !ok {
		return fmt.Errorf("unknown breakpoint: %s", id)
	}
	return e.store.SaveBreakpoint(ctx, bp)
}

// Evaluate runs a debug expression against the engine's current context:
// the snapshot under the replay cursor when replaying, the live executor
// state when recording, and an empty scope otherwise. Unresolved names
// evaluate to undefined; only function calls error.
func (e *Engine) Evaluate(text string) (types.RuntimeValue, error) {
	return expr.EvaluateText(text, e.currentScope())
}

func (e *Engine) currentScope() *expr.Scope {
	switch e.Mode() {
	case ModeReplaying:
		if snap := e.replayer.Current(); snap != nil {
			return scopeForSnapshot(snap)
		}
	case ModeRecording:
		if exec := e.currentExecutor(); exec != nil {
			if state := exec.Current(); state != nil {
				scope := &expr.Scope{}
				if len(state.Stack) > 0 {
					scope.Frame = state.Stack[0]
				}
				if state.Memory != nil {
					scope.Globals = state.Memory.Globals
					scope.Heap = state.Memory.Heap
				}
				return scope
			}
		}
	}
	return &expr.Scope{}
}

func scopeForSnapshot(snap *session.Snapshot) *expr.Scope {
	scope := &expr.Scope{Frame: snap.TopFrame()}
	if snap.Memory != nil {
		scope.Globals = snap.Memory.Globals
		scope.Heap = snap.Memory.Heap
	}
	return scope
}

// ExportSession serializes the currently loaded session.
func (e *Engine) ExportSession() ([]byte, error) {
	sess := e.replayer.Session()
	if sess == nil {
		return nil, fmt.Errorf("no session loaded")
	}
	return session.Export(sess)
}

// ImportSession decodes an exported session payload, persists it when a
// store is attached, and loads it into the replayer.
func (e *Engine) ImportSession(ctx context.Context, data []byte) (*session.Session, error) {
	sess, err := e.LoadSessionData(data)
	if err != nil {
		return nil, err
	}
	if e.store != nil {
		if err := e.store.SaveSession(ctx, sess); err != nil {
			return sess, fmt.Errorf("session imported but not saved: %w", err)
		}
	}
	return sess, nil
}

// Capture takes a named snapshot of the current context, persisting it when
// a store is attached.
func (e *Engine) Capture(ctx context.Context, name string, metadata map[string]string) (*snapshot.Capture, error) {
	var stack []*types.CallFrame
	var memory *types.MemoryState
	switch e.Mode() {
	case ModeReplaying:
		if snap := e.replayer.Current(); snap != nil {
			stack = snap.Stack
			memory = snap.Memory
		}
	case ModeRecording:
		if exec := e.currentExecutor(); exec != nil {
			if state := exec.Current(); state != nil {
				stack = state.Stack
				memory = state.Memory
			}
		}
	}
	c := e.captures.Capture(name, stack, memory, metadata)
	if e.store != nil {
		if err := e.store.SaveCapture(ctx, c); err != nil {
			return c, fmt.Errorf("capture taken but not saved: %w", err)
		}
	}
	return c, nil
}

// ListCaptures lists persisted captures.
func (e *Engine) ListCaptures(ctx context.Context) ([]storage.CaptureInfo, error) {
	if e.store == nil {
		return nil, fmt.Errorf("no storage attached")
	}
	return e.store.ListCaptures(ctx)
}

// LoadCapture pulls a persisted capture into the snapshot debugger so it can
// be compared. Loading an id that is already present is a no-op.
func (e *Engine) LoadCapture(ctx context.Context, id string) (*snapshot.Capture, error) {
	if c, ok := e.captures.Get(id); ok {
		return c, nil
	}
	if e.store == nil {
		return nil, fmt.Errorf("no storage attached")
	}
	c, err := e.store.GetCapture(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.captures.Install(c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCapture removes a capture from the debugger and from storage.
func (e *Engine) DeleteCapture(ctx context.Context, id string) error {
	e.captures.Remove(id)
	if e.store == nil {
		return nil
	}
	return e.store.DeleteCapture(ctx, id)
}

// CompareCaptures diffs two named captures.
func (e *Engine) CompareCaptures(firstID, secondID string) (*snapshot.Comparison, error) {
	return e.captures.Compare(firstID, secondID)
}

// Close releases the storage backend.
func (e *Engine) Close() error {
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}
