// Package breakpoint implements location-keyed breakpoints with conditions,
// hit-count predicates and log points, evaluated through the expr package.
package breakpoint

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pulsedev/retrace/internal/expr"
	"github.com/pulsedev/retrace/internal/types"
)

// State is the breakpoint lifecycle state.
type State string

const (
	// StatePending means the breakpoint has been requested but not yet
	// matched against loaded source
	StatePending State = "pending"
	// StateVerified means the location resolved to real source
	StateVerified State = "verified"
	// StateBound means the breakpoint is attached to a live session
	StateBound State = "bound"
	// StateError means condition compilation or evaluation failed;
	// the breakpoint never matches while in this state's failing hit,
	// but stays queryable for UI surfacing
	StateError State = "error"
)

// IsValid checks if the state value is valid
func (s State) IsValid() bool {
	switch s {
	case StatePending, StateVerified, StateBound, StateError:
		return true
	}
	return false
}

// Breakpoint is one user-configured breakpoint. Breakpoints are user
// configuration: they outlive sessions and are evaluated against whichever
// frame is active when their location is reached.
type Breakpoint struct {
	ID       string                `json:"id"`
	Location *types.SourceLocation `json:"location,omitempty"`

	// ConditionText is the user's condition source; Condition is its
	// compiled form, nil when no condition is set.
	ConditionText string                   `json:"condition_text,omitempty"`
	Condition     *expr.CompiledExpression `json:"-"`

	// HitCondition gates pausing on how often the location has been reached.
	HitCondition *HitCondition `json:"hit_condition,omitempty"`

	// LogMessage, when set, turns the breakpoint into a log point: instead
	// of pausing it emits the template with {expr} placeholders interpolated.
	LogMessage string `json:"log_message,omitempty"`

	Enabled bool  `json:"enabled"`
	State   State `json:"state"`
	// Message carries the human-readable reason for the current state,
	// notably the compile or evaluation error when State is error.
	Message string `json:"message,omitempty"`

	HitCount  int        `json:"hit_count"`
	LastHitAt *time.Time `json:"last_hit_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// HitCondition is a predicate over the breakpoint's hit counter,
// e.g. ">= 3" pauses from the third hit on.
type HitCondition struct {
	Op    string `json:"op"`
	Count int    `json:"count"`
}

// ParseHitCondition parses "<op> <n>" where op is one of > >= < <= =.
// A bare number means "= n".
func ParseHitCondition(text string) (*HitCondition, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty hit condition")
	}

	op := "="
	for _, candidate := range []string{">=", "<=", ">", "<", "="} {
		if strings.HasPrefix(text, candidate) {
			op = candidate
			text = strings.TrimSpace(text[len(candidate):])
			break
		}
	}

	count, err := strconv.Atoi(text)
	if err != nil {
		return nil, fmt.Errorf("invalid hit condition count %q: %w", text, err)
	}
	return &HitCondition{Op: op, Count: count}, nil
}

// Met evaluates the predicate against the current hit count.
func (h *HitCondition) Met(hits int) bool {
	switch h.Op {
	case ">":
		return hits > h.Count
	case ">=":
		return hits >= h.Count
	case "<":
		return hits < h.Count
	case "<=":
		return hits <= h.Count
	case "=":
		return hits == h.Count
	}
	return false
}

func (h *HitCondition) String() string {
	return fmt.Sprintf("%s %d", h.Op, h.Count)
}
