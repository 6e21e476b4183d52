package breakpoint

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulsedev/retrace/internal/expr"
	"github.com/pulsedev/retrace/internal/types"
)

// HitResult describes the outcome of checking breakpoints at a location.
type HitResult struct {
	// Breakpoint is the first enabled breakpoint whose condition and hit
	// predicate both held.
	Breakpoint *Breakpoint
	// ShouldPause is false for log points, which emit instead of pausing.
	ShouldPause bool
	// LogMessage is the interpolated log-point output, empty otherwise.
	LogMessage string
}

// Manager owns a set of breakpoints keyed by exact file:line:column location.
// Construct one per engine instance and pass it explicitly; there is no
// package-level registry.
type Manager struct {
	mu          sync.Mutex
	breakpoints map[string]*Breakpoint
	// byLocation maps a location key to breakpoint ids in creation order,
	// which decides which breakpoint wins when several share a site.
	byLocation map[string][]string
	order      []string
}

// NewManager returns an empty breakpoint manager.
func NewManager() *Manager {
	return &Manager{
		breakpoints: make(map[string]*Breakpoint),
		byLocation:  make(map[string][]string),
	}
}

// Add creates an enabled, pending breakpoint at the given location.
func (m *Manager) Add(location types.SourceLocation) *Breakpoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	loc := location
	bp := &Breakpoint{
		ID:        uuid.New().String(),
		Location:  &loc,
		Enabled:   true,
		State:     StatePending,
		CreatedAt: time.Now(),
	}
	m.breakpoints[bp.ID] = bp
	m.byLocation[loc.Key()] = append(m.byLocation[loc.Key()], bp.ID)
	m.order = append(m.order, bp.ID)
	return bp
}

// Install inserts a breakpoint restored from persistence or a session
// import, keeping its id and hit statistics. The condition is recompiled
// from its text since compiled expressions do not serialize. Installing an
// id that already exists is an error.
func (m *Manager) Install(bp *Breakpoint) error {
	if bp == nil || bp.ID == "" || bp.Location == nil {
		return fmt.Errorf("install: breakpoint needs an id and a location")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.breakpoints[bp.ID]; exists {
		return fmt.Errorf("install: breakpoint %s already exists", bp.ID)
	}
	if bp.ConditionText != "" {
		compiled := expr.Compile(bp.ConditionText)
		if compiled.Pure {
			bp.Condition = compiled
		} else {
			bp.State = StateError
			bp.Message = fmt.Sprintf("condition %q contains a function call", bp.ConditionText)
		}
	}
	m.breakpoints[bp.ID] = bp
	key := bp.Location.Key()
	m.byLocation[key] = append(m.byLocation[key], bp.ID)
	m.order = append(m.order, bp.ID)
	return nil
}

// Remove deletes a breakpoint. Removing an unknown id is a no-op returning
// false.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	bp, ok := m.breakpoints[id]
	if !ok {
		return false
	}
	delete(m.breakpoints, id)
	if bp.Location != nil {
		key := bp.Location.Key()
		m.byLocation[key] = removeString(m.byLocation[key], id)
		if len(m.byLocation[key]) == 0 {
			delete(m.byLocation, key)
		}
	}
	m.order = removeString(m.order, id)
	return true
}

// Get returns the breakpoint with the given id.
func (m *Manager) Get(id string) (*Breakpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bp, ok := m.breakpoints[id]
	return bp, ok
}

// List returns all breakpoints in creation order.
func (m *Manager) List() []*Breakpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Breakpoint, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.breakpoints[id])
	}
	return out
}

// SetEnabled toggles a breakpoint without losing its hit statistics.
func (m *Manager) SetEnabled(id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bp, ok := m.breakpoints[id]
	if !ok {
		return fmt.Errorf("unknown breakpoint: %s", id)
	}
	bp.Enabled = enabled
	return nil
}

// SetCondition compiles and attaches a condition. An impure expression (one
// containing a call) is a compile failure: the breakpoint moves to the error
// state and will not match until the condition is fixed or cleared.
func (m *Manager) SetCondition(id, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bp, ok := m.breakpoints[id]
	if !ok {
		return fmt.Errorf("unknown breakpoint: %s", id)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		bp.ConditionText = ""
		bp.Condition = nil
		m.clearError(bp)
		return nil
	}

	compiled := expr.Compile(text)
	if !compiled.Pure {
		bp.ConditionText = text
		bp.Condition = nil
		bp.State = StateError
		bp.Message = fmt.Sprintf("condition must be side-effect-free: %s", text)
		return fmt.Errorf("condition must be side-effect-free: %s", text)
	}

	bp.ConditionText = text
	bp.Condition = compiled
	m.clearError(bp)
	return nil
}

// SetHitCondition parses and attaches a hit-count predicate.
func (m *Manager) SetHitCondition(id, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bp, ok := m.breakpoints[id]
	if !ok {
		return fmt.Errorf("unknown breakpoint: %s", id)
	}

	if strings.TrimSpace(text) == "" {
		bp.HitCondition = nil
		return nil
	}
	cond, err := ParseHitCondition(text)
	if err != nil {
		bp.State = StateError
		bp.Message = err.Error()
		return err
	}
	bp.HitCondition = cond
	m.clearError(bp)
	return nil
}

// SetLogMessage attaches a log template, turning the breakpoint into a log
// point. Pass "" to restore pausing behavior.
func (m *Manager) SetLogMessage(id, template string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bp, ok := m.breakpoints[id]
	if !ok {
		return fmt.Errorf("unknown breakpoint: %s", id)
	}
	bp.LogMessage = template
	return nil
}

// MarkVerified moves a pending breakpoint to verified.
func (m *Manager) MarkVerified(id string) error {
	return m.transition(id, StateVerified, "")
}

// MarkBound marks the breakpoint attached to a live session.
func (m *Manager) MarkBound(id string) error {
	return m.transition(id, StateBound, "")
}

func (m *Manager) transition(id string, state State, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bp, ok := m.breakpoints[id]
	if !ok {
		return fmt.Errorf("unknown breakpoint: %s", id)
	}
	bp.State = state
	bp.Message = message
	return nil
}

// CheckHit finds the enabled breakpoints at the exact location, increments
// every one's hit counter, and returns the first whose condition and
// hit-count predicate both hold. A condition evaluation failure is treated
// as "not met" and never interrupts the session, but is recorded on the
// breakpoint's error state for UI surfacing.
//
// Returns nil when nothing matched.
func (m *Manager) CheckHit(location types.SourceLocation, scope *expr.Scope) *HitResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := m.enabledAt(location.Key())
	if len(candidates) == 0 {
		return nil
	}

	// Every breakpoint at the site counts the hit, even those after the
	// first match.
	now := time.Now()
	for _, bp := range candidates {
		bp.HitCount++
		hitAt := now
		bp.LastHitAt = &hitAt
	}

	for _, bp := range candidates {
		if !m.conditionMet(bp, scope) {
			continue
		}
		if bp.HitCondition != nil && !bp.HitCondition.Met(bp.HitCount) {
			continue
		}
		if bp.LogMessage != "" {
			return &HitResult{
				Breakpoint:  bp,
				ShouldPause: false,
				LogMessage:  interpolate(bp.LogMessage, scope),
			}
		}
		return &HitResult{Breakpoint: bp, ShouldPause: true}
	}
	return nil
}

// RecordHit increments hit counters and timestamps for every enabled
// breakpoint at the location without evaluating conditions. The execution
// recorder uses this for bookkeeping: pausing is a live-execution concern.
func (m *Manager) RecordHit(location types.SourceLocation) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := m.enabledAt(location.Key())
	now := time.Now()
	for _, bp := range candidates {
		bp.HitCount++
		hitAt := now
		bp.LastHitAt = &hitAt
	}
	return len(candidates)
}

// EnabledAtLine returns whether any enabled breakpoint sits on the given
// file and line, ignoring the column. Replay-time continue uses this
// statement-granular match because snapshots are captured per statement.
func (m *Manager) EnabledAtLine(location types.SourceLocation) *Breakpoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		bp := m.breakpoints[id]
		if !bp.Enabled || bp.Location == nil {
			continue
		}
		if bp.Location.SameStatement(location) {
			return bp
		}
	}
	return nil
}

func (m *Manager) enabledAt(key string) []*Breakpoint {
	ids := m.byLocation[key]
	out := make([]*Breakpoint, 0, len(ids))
	for _, id := range ids {
		bp := m.breakpoints[id]
		if bp.Enabled {
			out = append(out, bp)
		}
	}
	return out
}

func (m *Manager) conditionMet(bp *Breakpoint, scope *expr.Scope) bool {
	if bp.State == StateError && bp.Condition == nil {
		// Broken condition: never matches, stays queryable
		return false
	}
	if bp.Condition == nil {
		return true
	}
	value, err := expr.Evaluate(bp.Condition, scope)
	if err != nil {
		bp.State = StateError
		bp.Message = err.Error()
		return false
	}
	return value.IsTruthy()
}

func (m *Manager) clearError(bp *Breakpoint) {
	if bp.State == StateError {
		bp.State = StatePending
		bp.Message = ""
	}
}

// interpolate replaces {expr} placeholders with evaluated display strings.
// A failing placeholder renders as {expr} verbatim so the message still
// surfaces.
func interpolate(template string, scope *expr.Scope) string {
	var out strings.Builder
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			out.WriteString(rest)
			return out.String()
		}
		close := strings.IndexByte(rest[open:], '}')
		if close < 0 {
			out.WriteString(rest)
			return out.String()
		}
		close += open

		out.WriteString(rest[:open])
		placeholder := rest[open+1 : close]
		value, err := expr.EvaluateText(placeholder, scope)
		if err != nil {
			out.WriteString(rest[open : close+1])
		} else {
			out.WriteString(value.Display)
		}
		rest = rest[close+1:]
	}
}

func removeString(list []string, target string) []string {
	out := list[:0]
	for _, s := range list {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
