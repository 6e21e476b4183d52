package replay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsedev/retrace/internal/breakpoint"
	"github.com/pulsedev/retrace/internal/session"
	"github.com/pulsedev/retrace/internal/types"
)

func loc(line int, fn string) types.SourceLocation {
	return types.SourceLocation{File: "app.js", Line: line, Column: 1, Function: fn}
}

func mainFrame(counter float64) *types.CallFrame {
	return &types.CallFrame{
		ID:       "frame-main",
		Name:     "main",
		Location: loc(1, "main"),
		Locals:   []types.Binding{{Name: "counter", Value: types.Number(counter)}},
	}
}

func helperFrame() *types.CallFrame {
	return &types.CallFrame{ID: "frame-helper", Name: "helper", Location: loc(10, "helper")}
}

// recordedSession builds the fixture timeline:
//
//	seq 1  step             line 1  depth 1  counter=1
//	seq 2  function_call    line 2  depth 1  (call snapshot, caller's stack)
//	seq 3  step             line 10 depth 2  inside helper
//	seq 4  memory_write     line 11 depth 2  obj-1.name = "Ann"
//	seq 5  function_return  line 2  depth 1
//	seq 6  step             line 3  depth 1  counter=2
//	seq 7  memory_write     line 4  depth 1  obj-1.name = "Bob"
//	seq 8  step             line 5  depth 1  counter=3
func recordedSession(t *testing.T) *session.Session {
	t.Helper()
	rec := session.NewRecorder(nil)
	rec.Start()

	rec.RecordStep(loc(1, "main"), []*types.CallFrame{mainFrame(1)})
	rec.RecordFunctionCall(loc(2, "main"), []*types.CallFrame{mainFrame(1)}, "helper", 0)
	rec.RecordStep(loc(10, "helper"), []*types.CallFrame{helperFrame(), mainFrame(1)})
	rec.RecordMemoryAccess(loc(11, "helper"), []*types.CallFrame{helperFrame(), mainFrame(1)}, "obj-1", "name", types.String("Ann"), true)
	rec.RecordFunctionReturn(loc(2, "main"), []*types.CallFrame{mainFrame(1)}, "helper", "undefined")
	rec.RecordStep(loc(3, "main"), []*types.CallFrame{mainFrame(2)})
	rec.RecordMemoryAccess(loc(4, "main"), []*types.CallFrame{mainFrame(2)}, "obj-1", "name", types.String("Bob"), true)
	rec.RecordStep(loc(5, "main"), []*types.CallFrame{mainFrame(3)})

	sess := rec.Stop()
	require.NotNil(t, sess)
	require.Equal(t, 8, sess.Len())
	return sess
}

func loadedReplayer(t *testing.T, bps *breakpoint.Manager) *Replayer {
	t.Helper()
	r := NewReplayer(bps)
	require.NoError(t, r.Load(recordedSession(t)))
	return r
}

func TestReplayer_LoadPositionsAtStart(t *testing.T) {
	r := loadedReplayer(t, nil)
	require.NotNil(t, r.Current())
	assert.Equal(t, int64(1), r.Current().Sequence)
	assert.Equal(t, session.StatusReplaying, r.Session().Status)

	assert.Error(t, NewReplayer(nil).Load(nil))
	assert.Error(t, NewReplayer(nil).Load(session.NewSession()))
}

func TestReplayer_StepForwardThenBackwardRoundTrips(t *testing.T) {
	r := loadedReplayer(t, nil)

	snap, moved := r.StepForward()
	require.True(t, moved)
	assert.Equal(t, int64(2), snap.Sequence)

	snap, moved = r.StepBackward()
	require.True(t, moved)
	assert.Equal(t, int64(1), snap.Sequence)
}

func TestReplayer_StepClampsAtTimelineEdges(t *testing.T) {
	r := loadedReplayer(t, nil)

	snap, moved := r.StepBackward()
	assert.False(t, moved)
	assert.Equal(t, int64(1), snap.Sequence)

	_, err := r.GoToSequence(8)
	require.NoError(t, err)
	snap, moved = r.StepForward()
	assert.False(t, moved)
	assert.Equal(t, int64(8), snap.Sequence)
}

func TestReplayer_GoToSequence(t *testing.T) {
	r := loadedReplayer(t, nil)

	snap, err := r.GoToSequence(5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), snap.Sequence)

	_, err = r.GoToSequence(99)
	assert.Error(t, err)
}

func TestReplayer_GoToTimestamp(t *testing.T) {
	r := loadedReplayer(t, nil)

	snap, err := r.GoToTimestamp(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(8), snap.Sequence)

	snap, err = r.GoToTimestamp(r.Session().StartedAt.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Sequence)
}

func TestReplayer_StepOverForwardSkipsCall(t *testing.T) {
	r := loadedReplayer(t, nil)
	_, err := r.GoToSequence(2)
	require.NoError(t, err)

	snap, moved := r.StepOverForward()
	require.True(t, moved)
	assert.Equal(t, int64(5), snap.Sequence, "step over skips the snapshots inside the call")
}

func TestReplayer_StepOverForwardLandsAtEdgeWhenOnlyDeeper(t *testing.T) {
	rec := session.NewRecorder(nil)
	rec.Start()
	rec.RecordFunctionCall(loc(2, "main"), []*types.CallFrame{mainFrame(1)}, "helper", 0)
	rec.RecordStep(loc(10, "helper"), []*types.CallFrame{helperFrame(), mainFrame(1)})
	rec.RecordStep(loc(11, "helper"), []*types.CallFrame{helperFrame(), mainFrame(1)})
	sess := rec.Stop()

	r := NewReplayer(nil)
	require.NoError(t, r.Load(sess))
	snap, moved := r.StepOverForward()
	require.True(t, moved)
	assert.Equal(t, int64(3), snap.Sequence)
}

func TestReplayer_StepOverBackwardSkipsCall(t *testing.T) {
	r := loadedReplayer(t, nil)
	_, err := r.GoToSequence(5)
	require.NoError(t, err)

	snap, moved := r.StepOverBackward()
	require.True(t, moved)
	assert.Equal(t, int64(2), snap.Sequence)
}

func TestReplayer_StepOutForward(t *testing.T) {
	r := loadedReplayer(t, nil)
	_, err := r.GoToSequence(3)
	require.NoError(t, err)

	snap, moved := r.StepOutForward()
	require.True(t, moved)
	assert.Equal(t, int64(5), snap.Sequence)

	// Already at the outermost depth: nowhere shallower to go.
	_, err = r.GoToSequence(6)
	require.NoError(t, err)
	snap, moved = r.StepOutForward()
	assert.False(t, moved)
	assert.Equal(t, int64(6), snap.Sequence)
}

func TestReplayer_StepOutBackwardLandsOnCallEvent(t *testing.T) {
	r := loadedReplayer(t, nil)
	_, err := r.GoToSequence(4)
	require.NoError(t, err)

	snap, moved := r.StepOutBackward()
	require.True(t, moved)
	assert.Equal(t, int64(2), snap.Sequence, "lands on the call that created the current frame")
}

func TestReplayer_ContinueForwardStopsAtBreakpointLine(t *testing.T) {
	bps := breakpoint.NewManager()
	// Column 99 never matches a recorded column; replay matching is by line.
	bps.Add(types.SourceLocation{File: "app.js", Line: 3, Column: 99})

	r := loadedReplayer(t, bps)
	require.NoError(t, r.SetSpeed(100))

	snap, err := r.ContinueForward(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(6), snap.Sequence)
	assert.Equal(t, 3, snap.Location.Line)
}

func TestReplayer_ContinueForwardIgnoresLogPoints(t *testing.T) {
	bps := breakpoint.NewManager()
	bp := bps.Add(types.SourceLocation{File: "app.js", Line: 3, Column: 1})
	require.NoError(t, bps.SetLogMessage(bp.ID, "counter is {counter}"))

	r := loadedReplayer(t, bps)
	require.NoError(t, r.SetSpeed(1000))

	snap, err := r.ContinueForward(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(8), snap.Sequence, "log points never pause playback")
}

func TestReplayer_ContinueBackwardStopsAtBreakpointLine(t *testing.T) {
	bps := breakpoint.NewManager()
	bps.Add(types.SourceLocation{File: "app.js", Line: 10, Column: 5})

	r := loadedReplayer(t, bps)
	require.NoError(t, r.SetSpeed(100))
	_, err := r.GoToSequence(8)
	require.NoError(t, err)

	snap, err := r.ContinueBackward(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.Sequence)
}

func TestReplayer_ContinueRunsToTimelineEnd(t *testing.T) {
	r := loadedReplayer(t, nil)
	require.NoError(t, r.SetSpeed(1000))

	snap, err := r.ContinueForward(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(8), snap.Sequence)
}

func TestReplayer_StopInterruptsPlayback(t *testing.T) {
	r := loadedReplayer(t, nil)
	// Slow enough that Stop lands before the timeline ends.
	require.NoError(t, r.SetSpeed(0.5))

	done := make(chan *session.Snapshot, 1)
	go func() {
		snap, _ := r.ContinueForward(context.Background())
		done <- snap
	}()
	time.Sleep(50 * time.Millisecond)
	r.Stop()

	select {
	case snap := <-done:
		assert.Less(t, snap.Sequence, int64(8))
	case <-time.After(5 * time.Second):
		t.Fatal("playback did not stop")
	}
}

func TestReplayer_SinglePlaybackTaskAtATime(t *testing.T) {
	r := loadedReplayer(t, nil)
	require.NoError(t, r.SetSpeed(0.5))

	started := make(chan struct{})
	go func() {
		close(started)
		r.ContinueForward(context.Background())
	}()
	<-started
	time.Sleep(50 * time.Millisecond)

	_, err := r.ContinueBackward(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
	r.Stop()
}

func TestReplayer_SetSpeedRejectsNonPositive(t *testing.T) {
	r := NewReplayer(nil)
	assert.Error(t, r.SetSpeed(0))
	assert.Error(t, r.SetSpeed(-1))
	assert.NoError(t, r.SetSpeed(2.5))
}

func TestReplayer_SubscribeSeesCursorMoves(t *testing.T) {
	r := loadedReplayer(t, nil)

	var directions []Direction
	unsubscribe := r.Subscribe(func(p Position) { directions = append(directions, p.Direction) })
	r.StepForward()
	r.StepBackward()
	r.GoToSequence(5)
	unsubscribe()
	r.StepForward()

	assert.Equal(t, []Direction{DirectionForward, DirectionBackward, DirectionJump}, directions)
}

func TestReplayer_FindVariableHistory(t *testing.T) {
	r := loadedReplayer(t, nil)

	history := r.FindVariableHistory("counter")
	require.Len(t, history, 3)
	assert.Equal(t, int64(1), history[0].Sequence)
	assert.Equal(t, float64(1), history[0].Value.NumberValue)
	assert.Equal(t, "main", history[0].FrameName)
	assert.Equal(t, int64(6), history[1].Sequence)
	assert.Equal(t, float64(2), history[1].Value.NumberValue)
	assert.Equal(t, int64(8), history[2].Sequence)
	assert.Equal(t, float64(3), history[2].Value.NumberValue)

	assert.Empty(t, r.FindVariableHistory("no_such_variable"))
}

func TestReplayer_FindVariableHistorySeesCallerFrames(t *testing.T) {
	rec := session.NewRecorder(nil)
	rec.Start()

	// counter changes in main while helper is the innermost frame; the
	// change must surface at that snapshot, attributed to the main frame.
	rec.RecordStep(loc(1, "main"), []*types.CallFrame{mainFrame(1)})
	rec.RecordStep(loc(10, "helper"), []*types.CallFrame{helperFrame(), mainFrame(2)})
	rec.RecordStep(loc(3, "main"), []*types.CallFrame{mainFrame(2)})
	sess := rec.Stop()
	require.NotNil(t, sess)

	r := NewReplayer(nil)
	require.NoError(t, r.Load(sess))

	history := r.FindVariableHistory("counter")
	require.Len(t, history, 2)
	assert.Equal(t, int64(1), history[0].Sequence)
	assert.Equal(t, float64(1), history[0].Value.NumberValue)
	assert.Equal(t, int64(2), history[1].Sequence)
	assert.Equal(t, float64(2), history[1].Value.NumberValue)
	assert.Equal(t, 10, history[1].Location.Line)
	assert.Equal(t, "frame-main", history[1].FrameID)
	assert.Equal(t, "main", history[1].FrameName)
}

func TestReplayer_FindVariableHistoryGlobalHasNoFrame(t *testing.T) {
	rec := session.NewRecorder(nil)
	rec.Start()
	rec.SetGlobal("mode", types.String("fast"))
	rec.RecordStep(loc(1, "main"), []*types.CallFrame{mainFrame(1)})
	sess := rec.Stop()
	require.NotNil(t, sess)

	r := NewReplayer(nil)
	require.NoError(t, r.Load(sess))

	history := r.FindVariableHistory("mode")
	require.Len(t, history, 1)
	assert.Equal(t, "fast", history[0].Value.StringValue)
	assert.Empty(t, history[0].FrameID)
	assert.Empty(t, history[0].FrameName)
}

func TestReplayer_FindObjectHistory(t *testing.T) {
	r := loadedReplayer(t, nil)

	history := r.FindObjectHistory("obj-1")
	require.Len(t, history, 2)
	assert.Equal(t, int64(4), history[0].Sequence)
	assert.Equal(t, "Ann", history[0].Object.Fields["name"].StringValue)
	assert.Equal(t, int64(7), history[1].Sequence)
	assert.Equal(t, "Bob", history[1].Object.Fields["name"].StringValue)

	assert.Empty(t, r.FindObjectHistory("obj-unknown"))
}
