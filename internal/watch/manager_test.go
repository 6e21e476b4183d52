package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsedev/retrace/internal/expr"
	"github.com/pulsedev/retrace/internal/types"
)

func TestManager_AddWatch(t *testing.T) {
	m := NewManager()
	w := m.AddWatch("user.name")

	assert.NotEmpty(t, w.ID)
	assert.True(t, w.Enabled)
	assert.Empty(t, w.Error)
	assert.ElementsMatch(t, []string{"user"}, w.Compiled.Dependencies)
	assert.Len(t, m.List(), 1)
}

func TestManager_AddWatch_ImpureGetsError(t *testing.T) {
	m := NewManager()
	w := m.AddWatch("refresh()")
	assert.NotEmpty(t, w.Error)
}

func TestManager_UpdateWatchValue_AppendsOnChange(t *testing.T) {
	m := NewManager()
	w := m.AddWatch("user.name")

	require.NoError(t, m.UpdateWatchValue(w.ID, "Ann", SourceStep))
	require.NoError(t, m.UpdateWatchValue(w.ID, "Ann", SourceStep))
	require.NoError(t, m.UpdateWatchValue(w.ID, "Bob", SourceStep))

	got, _ := m.Get(w.ID)
	require.Len(t, got.History, 2, "unchanged update must not append")

	assert.Equal(t, "Bob", got.LastValue.StringValue)
	assert.Equal(t, "Ann", got.PreviousValue.StringValue)

	first, second := got.History[0], got.History[1]
	assert.Equal(t, types.KindUndefined, first.OldValue.Kind)
	assert.Equal(t, "Ann", first.NewValue.StringValue)
	assert.Equal(t, "Ann", second.OldValue.StringValue)
	assert.Equal(t, "Bob", second.NewValue.StringValue)
	assert.Greater(t, second.Sequence, first.Sequence)
	assert.Equal(t, SourceStep, second.Source)
}

func TestManager_UpdateWatchValue_IdentityFirst(t *testing.T) {
	m := NewManager()
	w := m.AddWatch("order")

	order := types.Object(map[string]types.RuntimeValue{"total": types.Number(1)})
	require.NoError(t, m.UpdateWatchValue(w.ID, order, SourceEvaluation))

	// Same object id with different contents: no change recorded
	mutated := order.Clone()
	mutated.Fields["total"] = types.Number(2)
	require.NoError(t, m.UpdateWatchValue(w.ID, mutated, SourceEvaluation))

	got, _ := m.Get(w.ID)
	assert.Len(t, got.History, 1)
}

func TestManager_UpdateWatchValue_Notifies(t *testing.T) {
	m := NewManager()
	w := m.AddWatch("count")

	var notifications []Notification
	m.Subscribe(func(n Notification) { notifications = append(notifications, n) })

	require.NoError(t, m.UpdateWatchValue(w.ID, 1, SourceBreakpoint))
	require.NoError(t, m.UpdateWatchValue(w.ID, 1, SourceBreakpoint))
	require.NoError(t, m.UpdateWatchValue(w.ID, 2, SourceBreakpoint))

	require.Len(t, notifications, 2)
	assert.Equal(t, w.ID, notifications[0].Watch.ID)
	assert.Equal(t, SourceBreakpoint, notifications[1].Change.Source)
}

func TestManager_DisabledWatchNeverUpdates(t *testing.T) {
	m := NewManager()
	w := m.AddWatch("count")

	enabled, err := m.ToggleWatch(w.ID)
	require.NoError(t, err)
	assert.False(t, enabled)

	notified := false
	m.Subscribe(func(Notification) { notified = true })

	require.NoError(t, m.UpdateWatchValue(w.ID, 5, SourceStep))
	require.NoError(t, m.SetWatchError(w.ID, "nope"))

	got, _ := m.Get(w.ID)
	assert.Nil(t, got.LastValue)
	assert.Empty(t, got.History)
	assert.Empty(t, got.Error)
	assert.False(t, notified)
}

func TestManager_ToggleExpand(t *testing.T) {
	m := NewManager()
	w := m.AddWatch("user")

	expanded, err := m.ToggleExpand(w.ID)
	require.NoError(t, err)
	assert.True(t, expanded)

	expanded, err = m.ToggleExpand(w.ID)
	require.NoError(t, err)
	assert.False(t, expanded)
}

func TestManager_RemoveWatch(t *testing.T) {
	m := NewManager()
	w := m.AddWatch("x")
	assert.True(t, m.RemoveWatch(w.ID))
	assert.False(t, m.RemoveWatch(w.ID))
	assert.Empty(t, m.List())
}

func TestManager_EvaluateAll(t *testing.T) {
	m := NewManager()
	healthy := m.AddWatch("user.name")
	broken := m.AddWatch("load(user)")

	scope := &expr.Scope{
		Frame: &types.CallFrame{
			Locals: []types.Binding{{
				Name: "user",
				Value: types.Object(map[string]types.RuntimeValue{
					"name": types.String("Ann"),
				}),
			}},
		},
	}
	m.EvaluateAll(scope, SourceStep)

	got, _ := m.Get(healthy.ID)
	require.NotNil(t, got.LastValue)
	assert.Equal(t, "Ann", got.LastValue.StringValue)

	bad, _ := m.Get(broken.ID)
	assert.Nil(t, bad.LastValue)
	assert.Contains(t, bad.Error, "not permitted")
}

func TestManager_SetWatchError_IsRecoverable(t *testing.T) {
	m := NewManager()
	w := m.AddWatch("count")

	require.NoError(t, m.UpdateWatchValue(w.ID, 1, SourceStep))
	require.NoError(t, m.SetWatchError(w.ID, "frame gone"))

	got, _ := m.Get(w.ID)
	assert.Equal(t, "frame gone", got.Error)
	assert.NotNil(t, got.LastValue, "error must not clear stored values")

	require.NoError(t, m.UpdateWatchValue(w.ID, 2, SourceStep))
	got, _ = m.Get(w.ID)
	assert.Empty(t, got.Error)
}
