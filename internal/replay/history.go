package replay

import (
	"encoding/json"
	"time"

	"github.com/pulsedev/retrace/internal/session"
	"github.com/pulsedev/retrace/internal/types"
)

// VariableSample is one point in a variable's recorded history: the snapshot
// where its value first became what it is, and the frame that bound it.
type VariableSample struct {
	Sequence  int64                `json:"sequence"`
	Timestamp time.Time            `json:"timestamp"`
	Location  types.SourceLocation `json:"location"`
	Value     types.RuntimeValue   `json:"value"`
	// FrameID and FrameName identify the frame whose local matched. Both are
	// empty when the variable resolved as a global.
	FrameID   string `json:"frame_id,omitempty"`
	FrameName string `json:"frame_name,omitempty"`
}

// FindVariableHistory walks the whole timeline and returns the snapshots
// where the named variable changed value. Every frame of every snapshot is
// scanned, innermost first, then globals; a local in a caller frame stays
// visible while deeper frames are on top. Snapshots where the variable is
// not bound at all are skipped. Change detection is identity-first: two
// values with the same object id are the same value regardless of contents.
func (r *Replayer) FindVariableHistory(name string) []VariableSample {
	r.mu.Lock()
	s := r.session
	r.mu.Unlock()
	if s == nil {
		return nil
	}

	var history []VariableSample
	var prev *types.RuntimeValue
	for _, snap := range s.Snapshots {
		value, frame, ok := lookupVariable(snap, name)
		if !ok {
			continue
		}
		if prev != nil && prev.Equal(value) {
			continue
		}
		v := value
		prev = &v
		sample := VariableSample{
			Sequence:  snap.Sequence,
			Timestamp: snap.Timestamp,
			Location:  snap.Location,
			Value:     value,
		}
		if frame != nil {
			sample.FrameID = frame.ID
			sample.FrameName = frame.Name
		}
		history = append(history, sample)
	}
	return history
}

// lookupVariable resolves a name in a snapshot: locals of each frame from
// the innermost out, then globals. A global match returns a nil frame.
func lookupVariable(snap *session.Snapshot, name string) (types.RuntimeValue, *types.CallFrame, bool) {
	for _, frame := range snap.Stack {
		if value, ok := frame.Lookup(name); ok {
			return value, frame, true
		}
	}
	if snap.Memory != nil {
		if value, ok := snap.Memory.Globals[name]; ok {
			return value, nil, true
		}
	}
	return types.Undefined(), nil, false
}

// ObjectSample is one point in a heap object's recorded history.
type ObjectSample struct {
	Sequence  int64                `json:"sequence"`
	Timestamp time.Time            `json:"timestamp"`
	Location  types.SourceLocation `json:"location"`
	Object    *types.HeapObject    `json:"object"`
	// Freed is true once the object has been released.
	Freed bool `json:"freed,omitempty"`
}

// FindObjectHistory returns the snapshots where the heap object with the
// given id changed shape: its allocation, every field change, and its
// release. Snapshots before the allocation or with an unchanged object are
// skipped.
func (r *Replayer) FindObjectHistory(objectID string) []ObjectSample {
	r.mu.Lock()
	s := r.session
	r.mu.Unlock()
	if s == nil {
		return nil
	}

	var history []ObjectSample
	var prev string
	for _, snap := range s.Snapshots {
		if snap.Memory == nil {
			continue
		}
		obj, ok := snap.Memory.Heap[objectID]
		if !ok {
			continue
		}
		shape := objectShape(obj)
		if shape == prev {
			continue
		}
		prev = shape
		history = append(history, ObjectSample{
			Sequence:  snap.Sequence,
			Timestamp: snap.Timestamp,
			Location:  snap.Location,
			Object:    obj,
			Freed:     obj.FreedAtSequence != nil,
		})
	}
	return history
}

// objectShape serializes the parts of a heap object that count as "changed"
// for history purposes. JSON marshaling of a map is key-sorted, so equal
// field sets always produce equal shapes.
func objectShape(obj *types.HeapObject) string {
	data, err := json.Marshal(struct {
		Fields map[string]types.RuntimeValue `json:"fields"`
		Freed  *int64                        `json:"freed"`
	}{Fields: obj.Fields, Freed: obj.FreedAtSequence})
	if err != nil {
		return obj.ID
	}
	return string(data)
}
