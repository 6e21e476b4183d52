package types

// Binding is one ordered name→value pair in a frame's scope.
//
// Frames keep locals as an ordered slice instead of a map so that the
// declaration order observed by the instrumentation survives capture,
// serialization and import unchanged.
type Binding struct {
	Name  string       `json:"name"`
	Value RuntimeValue `json:"value"`
}

// CallFrame is one frame of the debuggee's call stack.
type CallFrame struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Location  SourceLocation `json:"location"`
	Locals    []Binding      `json:"locals"`
	Arguments []RuntimeValue `json:"arguments,omitempty"`
	This      *RuntimeValue  `json:"this,omitempty"`
}

// Lookup resolves a local by name. Later bindings shadow earlier ones, so the
// scan runs back to front.
func (f *CallFrame) Lookup(name string) (RuntimeValue, bool) {
	for i := len(f.Locals) - 1; i >= 0; i-- {
		if f.Locals[i].Name == name {
			return f.Locals[i].Value, true
		}
	}
	return Undefined(), false
}

// SetLocal replaces the named local in place, appending when absent.
func (f *CallFrame) SetLocal(name string, value RuntimeValue) {
	for i := len(f.Locals) - 1; i >= 0; i-- {
		if f.Locals[i].Name == name {
			f.Locals[i].Value = value
			return
		}
	}
	f.Locals = append(f.Locals, Binding{Name: name, Value: value})
}

// Clone returns a structural deep copy of the frame. Snapshots always store
// cloned frames; a captured frame is never aliased with the live stack.
func (f *CallFrame) Clone() *CallFrame {
	out := &CallFrame{
		ID:       f.ID,
		Name:     f.Name,
		Location: f.Location,
	}
	if f.Locals != nil {
		out.Locals = make([]Binding, len(f.Locals))
		for i, binding := range f.Locals {
			out.Locals[i] = Binding{Name: binding.Name, Value: binding.Value.Clone()}
		}
	}
	if f.Arguments != nil {
		out.Arguments = make([]RuntimeValue, len(f.Arguments))
		for i, arg := range f.Arguments {
			out.Arguments[i] = arg.Clone()
		}
	}
	if f.This != nil {
		this := f.This.Clone()
		out.This = &this
	}
	return out
}

// CloneStack deep-copies a whole call stack. By convention stacks are
// ordered innermost frame first, the way a debug adapter lists them.
func CloneStack(stack []*CallFrame) []*CallFrame {
	if stack == nil {
		return nil
	}
	out := make([]*CallFrame, len(stack))
	for i, frame := range stack {
		out[i] = frame.Clone()
	}
	return out
}
