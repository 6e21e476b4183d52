package watch

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulsedev/retrace/internal/events"
	"github.com/pulsedev/retrace/internal/expr"
	"github.com/pulsedev/retrace/internal/types"
)

// Manager owns the watch registry for one engine instance.
type Manager struct {
	mu      sync.Mutex
	watches map[string]*VariableWatch
	order   []string
	// sequence numbers change records monotonically across all watches
	sequence int64
	notifier *events.Emitter[Notification]
}

// NewManager returns an empty watch manager.
func NewManager() *Manager {
	return &Manager{
		watches:  make(map[string]*VariableWatch),
		notifier: events.NewEmitter[Notification](),
	}
}

// Subscribe registers a change callback; notifications fire synchronously
// after the watch's stored values have been updated.
func (m *Manager) Subscribe(fn func(Notification)) func() {
	return m.notifier.Subscribe(fn)
}

// AddWatch registers an expression. The expression compiles even when
// malformed (the parser degrades to an identifier); an impure expression is
// registered with its error recorded, so the UI can show why it never
// produces a value.
func (m *Manager) AddWatch(expression string) *VariableWatch {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := &VariableWatch{
		ID:         uuid.New().String(),
		Expression: expression,
		Compiled:   expr.Compile(expression),
		Enabled:    true,
		CreatedAt:  time.Now(),
	}
	if !w.Compiled.Pure {
		w.Error = fmt.Sprintf("expression contains a function call: %s", expression)
	}
	m.watches[w.ID] = w
	m.order = append(m.order, w.ID)
	return w
}

// RemoveWatch deletes a watch and its history.
func (m *Manager) RemoveWatch(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.watches[id]; !ok {
		return false
	}
	delete(m.watches, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the watch with the given id.
func (m *Manager) Get(id string) (*VariableWatch, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.watches[id]
	return w, ok
}

// List returns all watches in creation order.
func (m *Manager) List() []*VariableWatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*VariableWatch, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.watches[id])
	}
	return out
}

// UpdateWatchValue converts a raw value and stores it. When the converted
// value differs from the previous one (identity-first comparison: same
// objectId means equal, otherwise display-string equality), a history entry
// is appended and subscribers are notified. Disabled watches never update
// or notify.
func (m *Manager) UpdateWatchValue(id string, raw interface{}, source ChangeSource) error {
	m.mu.Lock()
	w, ok := m.watches[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown watch: %s", id)
	}
	if !w.Enabled {
		m.mu.Unlock()
		return nil
	}

	value := types.FromRaw(raw)

	var old types.RuntimeValue
	changed := true
	if w.LastValue != nil {
		old = *w.LastValue
		changed = !old.Equal(value)
	} else {
		old = types.Undefined()
	}

	w.Error = ""
	if !changed {
		m.mu.Unlock()
		return nil
	}

	m.sequence++
	change := Change{
		Timestamp: time.Now(),
		OldValue:  old,
		NewValue:  value,
		Sequence:  m.sequence,
		Source:    source,
	}
	w.PreviousValue = w.LastValue
	stored := value
	w.LastValue = &stored
	w.History = append(w.History, change)
	m.mu.Unlock()

	// Notify outside the lock: subscribers may call back into the manager
	m.notifier.Emit(Notification{Watch: w, Change: change})
	return nil
}

// SetWatchError records an evaluation failure on the watch. The stored
// values and history are left untouched; failures are recoverable.
func (m *Manager) SetWatchError(id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.watches[id]
	if !ok {
		return fmt.Errorf("unknown watch: %s", id)
	}
	if !w.Enabled {
		return nil
	}
	w.Error = message
	return nil
}

// ToggleWatch flips the enabled flag and returns the new state.
func (m *Manager) ToggleWatch(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.watches[id]
	if !ok {
		return false, fmt.Errorf("unknown watch: %s", id)
	}
	w.Enabled = !w.Enabled
	return w.Enabled, nil
}

// ToggleExpand flips the UI expansion flag and returns the new state.
func (m *Manager) ToggleExpand(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.watches[id]
	if !ok {
		return false, fmt.Errorf("unknown watch: %s", id)
	}
	w.Expanded = !w.Expanded
	return w.Expanded, nil
}

// EvaluateAll re-evaluates every enabled watch against the scope, updating
// values or recording per-watch errors. Expression failures never propagate:
// a broken watch must not take the session down.
func (m *Manager) EvaluateAll(scope *expr.Scope, source ChangeSource) {
	for _, w := range m.List() {
		if !w.Enabled {
			continue
		}
		value, err := expr.Evaluate(w.Compiled, scope)
		if err != nil {
			_ = m.SetWatchError(w.ID, err.Error())
			continue
		}
		_ = m.UpdateWatchValue(w.ID, value, source)
	}
}
