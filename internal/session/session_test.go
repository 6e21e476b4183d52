package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsedev/retrace/internal/breakpoint"
	"github.com/pulsedev/retrace/internal/types"
)

func loc(line int) types.SourceLocation {
	return types.SourceLocation{File: "app.js", Line: line, Column: 1, Function: "main"}
}

func stackWith(counter float64) []*types.CallFrame {
	return []*types.CallFrame{
		{
			ID:       "frame-main",
			Name:     "main",
			Location: loc(1),
			Locals:   []types.Binding{{Name: "counter", Value: types.Number(counter)}},
		},
	}
}

func TestRecorder_AssignsGaplessSequences(t *testing.T) {
	rec := NewRecorder(nil)
	sess := rec.Start()

	rec.RecordStep(loc(1), stackWith(0))
	rec.RecordFunctionCall(loc(2), stackWith(1), "helper", 2)
	rec.RecordFunctionReturn(loc(2), stackWith(2), "helper", "42")
	rec.RecordBranch(loc(3), stackWith(3), "counter > 1", true)

	require.Equal(t, 4, sess.Len())
	for i, snap := range sess.Snapshots {
		assert.Equal(t, int64(i+1), snap.Sequence)
	}
	assert.NoError(t, sess.Validate())
}

func TestRecorder_SnapshotIsolatedFromLiveStack(t *testing.T) {
	rec := NewRecorder(nil)
	rec.Start()

	live := stackWith(1)
	snap := rec.RecordStep(loc(1), live)
	require.NotNil(t, snap)

	live[0].SetLocal("counter", types.Number(99))
	live[0].Name = "renamed"

	got, ok := snap.Stack[0].Lookup("counter")
	require.True(t, ok)
	assert.Equal(t, float64(1), got.NumberValue)
	assert.Equal(t, "main", snap.Stack[0].Name)
}

func TestRecorder_MemoryWriteAllocatesAndIsolates(t *testing.T) {
	rec := NewRecorder(nil)
	rec.Start()

	first := rec.RecordMemoryAccess(loc(1), stackWith(0), "obj-1", "name", types.String("Ann"), true)
	require.NotNil(t, first)

	obj, ok := first.Memory.Heap["obj-1"]
	require.True(t, ok)
	assert.Equal(t, "Ann", obj.Fields["name"].StringValue)
	assert.Equal(t, int64(1), obj.AllocatedAtSequence)
	assert.Equal(t, int64(1), first.Memory.AllocationCount)

	// A later write must not leak into the earlier snapshot.
	second := rec.RecordMemoryAccess(loc(2), stackWith(0), "obj-1", "name", types.String("Bob"), true)
	assert.Equal(t, "Ann", first.Memory.Heap["obj-1"].Fields["name"].StringValue)
	assert.Equal(t, "Bob", second.Memory.Heap["obj-1"].Fields["name"].StringValue)
	assert.Equal(t, int64(1), second.Memory.AllocationCount)
}

func TestRecorder_MemoryReadDoesNotAllocate(t *testing.T) {
	rec := NewRecorder(nil)
	rec.Start()

	snap := rec.RecordMemoryAccess(loc(1), stackWith(0), "obj-missing", "x", types.Undefined(), false)
	require.NotNil(t, snap)
	assert.Empty(t, snap.Memory.Heap)
	assert.Equal(t, int64(0), snap.Memory.AllocationCount)
}

func TestRecorder_ReleaseObject(t *testing.T) {
	rec := NewRecorder(nil)
	rec.Start()

	rec.RecordMemoryAccess(loc(1), stackWith(0), "obj-1", "name", types.String("Ann"), true)
	snap := rec.ReleaseObject(loc(2), stackWith(0), "obj-1")

	obj := snap.Memory.Heap["obj-1"]
	require.NotNil(t, obj.FreedAtSequence)
	assert.Equal(t, int64(2), *obj.FreedAtSequence)
	assert.Equal(t, int64(1), snap.Memory.DeallocationCount)

	// Releasing again is a no-op on the counters.
	again := rec.ReleaseObject(loc(3), stackWith(0), "obj-1")
	assert.Equal(t, int64(1), again.Memory.DeallocationCount)
	assert.Equal(t, int64(2), *again.Memory.Heap["obj-1"].FreedAtSequence)
}

func TestRecorder_StopCapturesBreakpointRegistry(t *testing.T) {
	bps := breakpoint.NewManager()
	bps.Add(loc(5))
	rec := NewRecorder(bps)
	rec.Start()
	rec.RecordStep(loc(5), stackWith(0))

	sess := rec.Stop()
	require.NotNil(t, sess)
	assert.Equal(t, StatusCompleted, sess.Status)
	require.NotNil(t, sess.EndedAt)
	require.Len(t, sess.Breakpoints, 1)
	// The recorder bumps hit counters for every capture at a breakpoint site.
	assert.Equal(t, 1, sess.Breakpoints[0].HitCount)

	assert.Nil(t, rec.Session())
	assert.Nil(t, rec.RecordStep(loc(6), stackWith(0)))
}

func TestRecorder_SubscribeSeesEveryCapture(t *testing.T) {
	rec := NewRecorder(nil)
	rec.Start()

	var seen []int64
	unsubscribe := rec.Subscribe(func(s *Snapshot) { seen = append(seen, s.Sequence) })
	rec.RecordStep(loc(1), stackWith(0))
	rec.RecordStep(loc(2), stackWith(0))
	unsubscribe()
	rec.RecordStep(loc(3), stackWith(0))

	assert.Equal(t, []int64{1, 2}, seen)
}

func TestSession_IndexOfSequence(t *testing.T) {
	rec := NewRecorder(nil)
	sess := rec.Start()
	for i := 0; i < 5; i++ {
		rec.RecordStep(loc(i+1), stackWith(float64(i)))
	}

	assert.Equal(t, 0, sess.IndexOfSequence(1))
	assert.Equal(t, 4, sess.IndexOfSequence(5))
	assert.Equal(t, -1, sess.IndexOfSequence(6))
	assert.Equal(t, -1, sess.IndexOfSequence(0))
}

func TestSession_IndexAtOrBeforeTime(t *testing.T) {
	rec := NewRecorder(nil)
	sess := rec.Start()
	rec.RecordStep(loc(1), stackWith(0))
	rec.RecordStep(loc(2), stackWith(1))

	assert.Equal(t, 1, sess.IndexAtOrBeforeTime(time.Now().Add(time.Hour)))
	assert.Equal(t, -1, sess.IndexAtOrBeforeTime(sess.StartedAt.Add(-time.Hour)))
}

func TestSession_Summaries(t *testing.T) {
	rec := NewRecorder(nil)
	sess := rec.Start()
	rec.RecordFunctionCall(loc(2), stackWith(1), "helper", 0)

	summaries := sess.Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, int64(1), summaries[0].Sequence)
	assert.Equal(t, "app.js", summaries[0].Location.File)
	assert.Equal(t, 1, summaries[0].Depth)
}

func TestCodec_RoundTripPreservesObjectIDs(t *testing.T) {
	rec := NewRecorder(nil)
	rec.Start()
	rec.RecordMemoryAccess(loc(1), stackWith(0), "obj-original-id", "name", types.String("Ann"), true)
	sess := rec.Stop()

	data, err := Export(sess)
	require.NoError(t, err)

	imported, err := Import(data)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, imported.ID)
	require.Equal(t, 1, imported.Len())

	obj, ok := imported.At(0).Memory.Heap["obj-original-id"]
	require.True(t, ok, "object ids must survive export and import verbatim")
	assert.Equal(t, "Ann", obj.Fields["name"].StringValue)
	assert.Equal(t, sess.At(0).Sequence, imported.At(0).Sequence)
	assert.NoError(t, imported.Validate())
}

func TestCodec_RejectsWrongKind(t *testing.T) {
	_, err := Import([]byte(`{"format_version":"v1.0.0","kind":"snapshot_pair","session":{}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a session export")
}

func TestCodec_RejectsIncompatibleMajorVersion(t *testing.T) {
	_, err := Import([]byte(`{"format_version":"v2.0.0","kind":"session","session":{"id":"s","status":"completed","snapshots":[]}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incompatible")
}

func TestCodec_RejectsMalformedPayloads(t *testing.T) {
	_, err := Import([]byte(`not json at all`))
	assert.Error(t, err)

	_, err = Import([]byte(`{"format_version":"1.0","kind":"session"}`))
	assert.Error(t, err)
}

func TestCodec_ImportedRecordingBecomesCompleted(t *testing.T) {
	rec := NewRecorder(nil)
	sess := rec.Start()
	rec.RecordStep(loc(1), stackWith(0))

	data, err := Export(sess)
	require.NoError(t, err)
	imported, err := Import(data)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, imported.Status)
}
