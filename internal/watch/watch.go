// Package watch maintains the registry of watch expressions and their
// change history.
package watch

import (
	"time"

	"github.com/pulsedev/retrace/internal/expr"
	"github.com/pulsedev/retrace/internal/types"
)

// ChangeSource records what triggered a watch value update.
type ChangeSource string

const (
	// SourceEvaluation is an explicit re-evaluation request
	SourceEvaluation ChangeSource = "evaluation"
	// SourceStep is an update driven by a step operation
	SourceStep ChangeSource = "step"
	// SourceBreakpoint is an update driven by a breakpoint pause
	SourceBreakpoint ChangeSource = "breakpoint"
)

// IsValid checks if the change source value is valid
func (s ChangeSource) IsValid() bool {
	switch s {
	case SourceEvaluation, SourceStep, SourceBreakpoint:
		return true
	}
	return false
}

// Change is one append-only history entry for a watch.
type Change struct {
	Timestamp time.Time          `json:"timestamp"`
	OldValue  types.RuntimeValue `json:"old_value"`
	NewValue  types.RuntimeValue `json:"new_value"`
	// Sequence is monotonic across all watches owned by one manager.
	Sequence int64        `json:"sequence"`
	Source   ChangeSource `json:"source"`
}

// VariableWatch is one registered watch expression.
type VariableWatch struct {
	ID         string                   `json:"id"`
	Expression string                   `json:"expression"`
	Compiled   *expr.CompiledExpression `json:"-"`

	// LastValue is the most recent evaluation result; PreviousValue the one
	// before it. Both are nil until the first update.
	LastValue     *types.RuntimeValue `json:"last_value,omitempty"`
	PreviousValue *types.RuntimeValue `json:"previous_value,omitempty"`

	// History is append-only; entries are never rewritten.
	History []Change `json:"history"`

	Enabled  bool `json:"enabled"`
	Expanded bool `json:"expanded"`
	// Error is the most recent evaluation error, empty when healthy.
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is delivered to subscribers when a watch value changes.
type Notification struct {
	Watch  *VariableWatch
	Change Change
}
