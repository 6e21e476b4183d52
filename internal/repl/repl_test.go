package repl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsedev/retrace"
	"github.com/pulsedev/retrace/internal/config"
	"github.com/pulsedev/retrace/internal/types"
)

func newTestShell(t *testing.T) *Shell {
	t.Helper()
	engine := retrace.New(config.Default(), nil)
	s, err := New(&Config{Engine: engine})
	require.NoError(t, err)
	s.ctx = context.Background()
	return s
}

func TestNew_RequiresEngine(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		input   string
		want    types.SourceLocation
		wantErr bool
	}{
		{"app.js:10", types.SourceLocation{File: "app.js", Line: 10}, false},
		{"app.js:10:4", types.SourceLocation{File: "app.js", Line: 10, Column: 4}, false},
		{"app.js", types.SourceLocation{}, true},
		{"app.js:zero", types.SourceLocation{}, true},
		{"app.js:10:x", types.SourceLocation{}, true},
		{"app.js:0", types.SourceLocation{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseLocation(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDispatch_UnknownCommand(t *testing.T) {
	s := newTestShell(t)
	err := s.dispatch("teleport now")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestDispatch_NavigationNeedsSession(t *testing.T) {
	s := newTestShell(t)
	for _, line := range []string{"step", "back", "over", "out", "info", "continue", "goto 3", "timeline"} {
		assert.Error(t, s.dispatch(line), "command %q should require a loaded session", line)
	}
}

func TestDispatch_BreakpointLifecycle(t *testing.T) {
	s := newTestShell(t)
	require.NoError(t, s.dispatch("break app.js:10:4"))

	bps := s.engine.Breakpoints().List()
	require.Len(t, bps, 1)
	assert.Equal(t, 10, bps[0].Location.Line)

	require.NoError(t, s.dispatch("condition "+bps[0].ID+" count > 2"))
	got, _ := s.engine.Breakpoints().Get(bps[0].ID)
	assert.Equal(t, "count > 2", got.ConditionText)

	require.NoError(t, s.dispatch("delete "+bps[0].ID))
	assert.Empty(t, s.engine.Breakpoints().List())
	assert.Error(t, s.dispatch("delete "+bps[0].ID))
}

func TestDispatch_WatchLifecycle(t *testing.T) {
	s := newTestShell(t)
	require.NoError(t, s.dispatch("watch user.name"))

	watches := s.engine.Watches().List()
	require.Len(t, watches, 1)
	assert.Equal(t, "user.name", watches[0].Expression)

	// Impure expressions are rejected up front.
	assert.Error(t, s.dispatch("watch check()"))

	require.NoError(t, s.dispatch("unwatch "+watches[0].ID))
	assert.Error(t, s.dispatch("unwatch "+watches[0].ID))
}

func TestDispatch_SpeedValidation(t *testing.T) {
	s := newTestShell(t)
	require.NoError(t, s.dispatch("speed 2.5"))
	assert.Equal(t, 2.5, s.engine.Replayer().Speed())
	assert.Error(t, s.dispatch("speed fast"))
	assert.Error(t, s.dispatch("speed 0"))
}
