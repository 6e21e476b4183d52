package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsedev/retrace/internal/breakpoint"
	"github.com/pulsedev/retrace/internal/session"
	"github.com/pulsedev/retrace/internal/snapshot"
	"github.com/pulsedev/retrace/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "retrace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func recordedSession(t *testing.T) *session.Session {
	t.Helper()
	rec := session.NewRecorder(nil)
	rec.Start()
	stack := []*types.CallFrame{{
		ID:       "frame-main",
		Name:     "main",
		Location: types.SourceLocation{File: "app.js", Line: 1, Column: 1},
		Locals:   []types.Binding{{Name: "x", Value: types.Number(1)}},
	}}
	rec.RecordStep(types.SourceLocation{File: "app.js", Line: 1, Column: 1}, stack)
	rec.RecordMemoryAccess(types.SourceLocation{File: "app.js", Line: 2, Column: 1}, stack, "obj-1", "name", types.String("Ann"), true)
	sess := rec.Stop()
	require.NotNil(t, sess)
	return sess
}

func TestStore_SessionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sess := recordedSession(t)

	require.NoError(t, store.SaveSession(ctx, sess))

	loaded, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	require.Equal(t, 2, loaded.Len())
	assert.Equal(t, int64(1), loaded.At(0).Sequence)
	_, ok := loaded.At(1).Memory.Heap["obj-1"]
	assert.True(t, ok, "heap object ids survive persistence")

	infos, err := store.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, sess.ID, infos[0].ID)
	assert.Equal(t, 2, infos[0].SnapshotCount)
	assert.NotNil(t, infos[0].EndedAt)
}

func TestStore_GetSessionNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetSession(context.Background(), "session-missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStore_DeleteSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sess := recordedSession(t)
	require.NoError(t, store.SaveSession(ctx, sess))

	require.NoError(t, store.DeleteSession(ctx, sess.ID))
	assert.Error(t, store.DeleteSession(ctx, sess.ID))

	infos, err := store.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestStore_SaveSessionIsUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sess := recordedSession(t)

	require.NoError(t, store.SaveSession(ctx, sess))
	require.NoError(t, store.SaveSession(ctx, sess))

	infos, err := store.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestStore_CaptureRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	d := snapshot.NewDebugger()
	memory := types.NewMemoryState()
	memory.Heap["obj-1"] = &types.HeapObject{
		ID:     "obj-1",
		Type:   types.KindObject,
		Fields: map[string]types.RuntimeValue{"name": types.String("Ann")},
	}
	c := d.Capture("prod-incident", nil, memory, map[string]string{"host": "web-1"})

	require.NoError(t, store.SaveCapture(ctx, c))

	loaded, err := store.GetCapture(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "prod-incident", loaded.Name)
	assert.Equal(t, "web-1", loaded.Metadata["host"])
	assert.Equal(t, "Ann", loaded.Memory.Heap["obj-1"].Fields["name"].StringValue)

	infos, err := store.ListCaptures(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 1, infos[0].ObjectCount)

	require.NoError(t, store.DeleteCapture(ctx, c.ID))
	assert.Error(t, store.DeleteCapture(ctx, c.ID))
}

func TestStore_BreakpointRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := breakpoint.NewManager()
	bp := m.Add(types.SourceLocation{File: "app.js", Line: 10, Column: 4, Function: "main"})
	require.NoError(t, m.SetCondition(bp.ID, "counter > 2"))
	require.NoError(t, m.SetHitCondition(bp.ID, ">= 3"))
	bp.HitCount = 5

	require.NoError(t, store.SaveBreakpoint(ctx, bp))

	bps, err := store.ListBreakpoints(ctx)
	require.NoError(t, err)
	require.Len(t, bps, 1)
	loaded := bps[0]
	assert.Equal(t, bp.ID, loaded.ID)
	assert.Equal(t, "app.js", loaded.Location.File)
	assert.Equal(t, 10, loaded.Location.Line)
	assert.Equal(t, 4, loaded.Location.Column)
	assert.Equal(t, "counter > 2", loaded.ConditionText)
	require.NotNil(t, loaded.HitCondition)
	assert.Equal(t, ">=", loaded.HitCondition.Op)
	assert.Equal(t, 3, loaded.HitCondition.Count)
	assert.Equal(t, 5, loaded.HitCount)
	assert.True(t, loaded.Enabled)

	// A restored breakpoint installs into a fresh manager with its
	// condition recompiled.
	fresh := breakpoint.NewManager()
	require.NoError(t, fresh.Install(loaded))
	got, ok := fresh.Get(bp.ID)
	require.True(t, ok)
	assert.NotNil(t, got.Condition)
}

func TestStore_SaveBreakpointUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := breakpoint.NewManager()
	bp := m.Add(types.SourceLocation{File: "app.js", Line: 1, Column: 1})
	require.NoError(t, store.SaveBreakpoint(ctx, bp))

	bp.HitCount = 2
	require.NoError(t, store.SaveBreakpoint(ctx, bp))

	bps, err := store.ListBreakpoints(ctx)
	require.NoError(t, err)
	require.Len(t, bps, 1)
	assert.Equal(t, 2, bps[0].HitCount)
}

func TestStore_DeleteBreakpoint(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := breakpoint.NewManager()
	bp := m.Add(types.SourceLocation{File: "app.js", Line: 1, Column: 1})
	require.NoError(t, store.SaveBreakpoint(ctx, bp))

	require.NoError(t, store.DeleteBreakpoint(ctx, bp.ID))
	assert.Error(t, store.DeleteBreakpoint(ctx, bp.ID))
}

func TestStore_ListBreakpointsOrderedByCreation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := breakpoint.NewManager()
	first := m.Add(types.SourceLocation{File: "app.js", Line: 1, Column: 1})
	require.NoError(t, store.SaveBreakpoint(ctx, first))
	time.Sleep(2 * time.Millisecond)
	second := m.Add(types.SourceLocation{File: "app.js", Line: 2, Column: 1})
	require.NoError(t, store.SaveBreakpoint(ctx, second))

	bps, err := store.ListBreakpoints(ctx)
	require.NoError(t, err)
	require.Len(t, bps, 2)
	assert.Equal(t, first.ID, bps[0].ID)
	assert.Equal(t, second.ID, bps[1].ID)
}
