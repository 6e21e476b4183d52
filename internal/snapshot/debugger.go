// Package snapshot implements named production snapshots: one-off captures
// of stack and heap taken outside any replay session, stored by id and
// diffable against each other.
package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulsedev/retrace/internal/types"
)

// Capture is one named snapshot of the debuggee, deep-copied at capture time
// the same way the session recorder copies, so the caller's live structures
// never alias the stored capture.
type Capture struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Timestamp time.Time          `json:"timestamp"`
	Stack     []*types.CallFrame `json:"stack"`
	Memory    *types.MemoryState `json:"memory"`
	Metadata  map[string]string  `json:"metadata,omitempty"`
}

// Depth returns the capture's stack depth.
func (c *Capture) Depth() int {
	return len(c.Stack)
}

// Comparison is the diff between two captures. Object ids appear in exactly
// one of the three sets.
type Comparison struct {
	FirstID  string `json:"first_id"`
	SecondID string `json:"second_id"`
	// AddedObjects exist only in the second capture.
	AddedObjects []string `json:"added_objects"`
	// RemovedObjects exist only in the first capture.
	RemovedObjects []string `json:"removed_objects"`
	// ModifiedObjects exist in both with different field sets.
	ModifiedObjects []string `json:"modified_objects"`
	// StackDelta is second depth minus first depth.
	StackDelta int `json:"stack_delta"`
}

// Debugger stores named captures and diffs them. It is independent of replay
// sessions; captures have no sequence numbers and no timeline.
type Debugger struct {
	mu       sync.Mutex
	captures map[string]*Capture
	order    []string
}

// NewDebugger returns an empty snapshot debugger.
func NewDebugger() *Debugger {
	return &Debugger{captures: make(map[string]*Capture)}
}

// Capture deep-copies the given stack and memory and stores the result under
// a generated id.
func (d *Debugger) Capture(name string, stack []*types.CallFrame, memory *types.MemoryState, metadata map[string]string) *Capture {
	c := &Capture{
		ID:        "capture-" + uuid.New().String(),
		Name:      name,
		Timestamp: time.Now().UTC(),
		Stack:     types.CloneStack(stack),
	}
	if memory != nil {
		c.Memory = memory.Clone()
	} else {
		c.Memory = types.NewMemoryState()
	}
	if len(metadata) > 0 {
		c.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}

	d.mu.Lock()
	d.captures[c.ID] = c
	d.order = append(d.order, c.ID)
	d.mu.Unlock()
	return c
}

// Install registers an existing capture under its own id, typically one
// loaded from storage. Installing an id the debugger already holds is an
// error.
func (d *Debugger) Install(c *Capture) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("install: capture has no id")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.captures[c.ID]; exists {
		return fmt.Errorf("install: capture %s already exists", c.ID)
	}
	d.captures[c.ID] = c
	d.order = append(d.order, c.ID)
	return nil
}

// Get returns the capture with the given id.
func (d *Debugger) Get(id string) (*Capture, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.captures[id]
	return c, ok
}

// List returns all captures in capture order.
func (d *Debugger) List() []*Capture {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Capture, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.captures[id])
	}
	return out
}

// Remove deletes a capture. Returns false when the id is unknown.
func (d *Debugger) Remove(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.captures[id]; !ok {
		return false
	}
	delete(d.captures, id)
	for i, existing := range d.order {
		if existing == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return true
}

// Compare diffs two captures by id. Objects are compared by field-set
// serialization: same id with a different serialized field set counts as
// modified. The stack delta is signed, second minus first.
func (d *Debugger) Compare(firstID, secondID string) (*Comparison, error) {
	d.mu.Lock()
	first, okFirst := d.captures[firstID]
	second, okSecond := d.captures[secondID]
	d.mu.Unlock()
	if !okFirst {
		return nil, fmt.Errorf("compare: unknown capture %s", firstID)
	}
	if !okSecond {
		return nil, fmt.Errorf("compare: unknown capture %s", secondID)
	}

	cmp := &Comparison{
		FirstID:         firstID,
		SecondID:        secondID,
		AddedObjects:    []string{},
		RemovedObjects:  []string{},
		ModifiedObjects: []string{},
		StackDelta:      second.Depth() - first.Depth(),
	}
	for id, obj := range second.Memory.Heap {
		prev, existed := first.Memory.Heap[id]
		if !existed {
			cmp.AddedObjects = append(cmp.AddedObjects, id)
			continue
		}
		if fieldSet(prev) != fieldSet(obj) {
			cmp.ModifiedObjects = append(cmp.ModifiedObjects, id)
		}
	}
	for id := range first.Memory.Heap {
		if _, exists := second.Memory.Heap[id]; !exists {
			cmp.RemovedObjects = append(cmp.RemovedObjects, id)
		}
	}
	sort.Strings(cmp.AddedObjects)
	sort.Strings(cmp.RemovedObjects)
	sort.Strings(cmp.ModifiedObjects)
	return cmp, nil
}

// fieldSet serializes an object's fields for equality. JSON marshaling
// writes map keys sorted, so equal field sets always serialize identically,
// including nested objects and arrays.
func fieldSet(obj *types.HeapObject) string {
	data, err := json.Marshal(obj.Fields)
	if err != nil {
		return obj.ID
	}
	return string(data)
}
