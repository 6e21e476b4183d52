package types

// HeapObject is a reference-typed value tracked by stable identity. The id is
// the only notion of identity: snapshots store structural copies keyed by id,
// never shared pointers, so mutating the live heap can never reach into an
// already-captured snapshot.
type HeapObject struct {
	ID   string    `json:"id"`
	Type ValueKind `json:"type"`
	// Size is the instrumentation's approximate byte size for the object.
	Size   int64                   `json:"size"`
	Fields map[string]RuntimeValue `json:"fields"`
	// AllocatedAtSequence is the snapshot sequence at which the object first
	// appeared. FreedAtSequence is nil while the object is live.
	AllocatedAtSequence int64  `json:"allocated_at_sequence"`
	FreedAtSequence     *int64 `json:"freed_at_sequence,omitempty"`
}

// Clone returns a structural deep copy of the heap object.
func (o *HeapObject) Clone() *HeapObject {
	out := &HeapObject{
		ID:                  o.ID,
		Type:                o.Type,
		Size:                o.Size,
		AllocatedAtSequence: o.AllocatedAtSequence,
	}
	if o.Fields != nil {
		out.Fields = make(map[string]RuntimeValue, len(o.Fields))
		for name, field := range o.Fields {
			out.Fields[name] = field.Clone()
		}
	}
	if o.FreedAtSequence != nil {
		freed := *o.FreedAtSequence
		out.FreedAtSequence = &freed
	}
	return out
}

// MemoryState is the debuggee's heap and global scope at one instant.
type MemoryState struct {
	Heap    map[string]*HeapObject  `json:"heap"`
	Globals map[string]RuntimeValue `json:"globals"`
	// AllocationCount and DeallocationCount are cumulative counters kept by
	// the recorder's live view.
	AllocationCount   int64 `json:"allocation_count"`
	DeallocationCount int64 `json:"deallocation_count"`
}

// NewMemoryState returns an empty memory state.
func NewMemoryState() *MemoryState {
	return &MemoryState{
		Heap:    make(map[string]*HeapObject),
		Globals: make(map[string]RuntimeValue),
	}
}

// Clone returns a structural deep copy of the whole memory state.
func (m *MemoryState) Clone() *MemoryState {
	out := &MemoryState{
		Heap:              make(map[string]*HeapObject, len(m.Heap)),
		Globals:           make(map[string]RuntimeValue, len(m.Globals)),
		AllocationCount:   m.AllocationCount,
		DeallocationCount: m.DeallocationCount,
	}
	for id, obj := range m.Heap {
		out.Heap[id] = obj.Clone()
	}
	for name, value := range m.Globals {
		out.Globals[name] = value.Clone()
	}
	return out
}
