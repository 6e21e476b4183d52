package events

// ExecutionEventType classifies the runtime event a snapshot records.
type ExecutionEventType string

const (
	// EventStep is a plain statement step with no other significance
	EventStep ExecutionEventType = "step"
	// EventFunctionCall indicates a new frame was pushed
	EventFunctionCall ExecutionEventType = "function_call"
	// EventFunctionReturn indicates the top frame was popped
	EventFunctionReturn ExecutionEventType = "function_return"
	// EventBranch indicates a conditional branch was taken or skipped
	EventBranch ExecutionEventType = "branch"
	// EventException indicates an exception was raised
	EventException ExecutionEventType = "exception"
	// EventMemoryRead indicates a tracked heap read
	EventMemoryRead ExecutionEventType = "memory_read"
	// EventMemoryWrite indicates a tracked heap write
	EventMemoryWrite ExecutionEventType = "memory_write"
	// EventBreakpoint indicates execution paused at a breakpoint
	EventBreakpoint ExecutionEventType = "breakpoint"
	// EventWatchpoint indicates a watched expression changed value
	EventWatchpoint ExecutionEventType = "watchpoint"
	// EventAsyncAwait indicates execution suspended at an await point
	EventAsyncAwait ExecutionEventType = "async_await"
	// EventAsyncResume indicates execution resumed after an await
	EventAsyncResume ExecutionEventType = "async_resume"
	// EventPromiseCreate indicates a promise was created
	EventPromiseCreate ExecutionEventType = "promise_create"
	// EventPromiseResolve indicates a promise was resolved
	EventPromiseResolve ExecutionEventType = "promise_resolve"
	// EventPromiseReject indicates a promise was rejected
	EventPromiseReject ExecutionEventType = "promise_reject"
)

// IsValid checks if the event type value is valid
func (t ExecutionEventType) IsValid() bool {
	switch t {
	case EventStep, EventFunctionCall, EventFunctionReturn, EventBranch,
		EventException, EventMemoryRead, EventMemoryWrite, EventBreakpoint,
		EventWatchpoint, EventAsyncAwait, EventAsyncResume,
		EventPromiseCreate, EventPromiseResolve, EventPromiseReject:
		return true
	}
	return false
}

// ChangesDepth reports whether the event type implies a stack depth change.
func (t ExecutionEventType) ChangesDepth() bool {
	return t == EventFunctionCall || t == EventFunctionReturn
}

// FunctionCallData is the payload for function_call events.
type FunctionCallData struct {
	// FunctionName is the callee's name
	FunctionName string `json:"function_name"`
	// ArgumentCount is the number of arguments passed
	ArgumentCount int `json:"argument_count"`
}

// FunctionReturnData is the payload for function_return events.
type FunctionReturnData struct {
	// FunctionName is the returning function's name
	FunctionName string `json:"function_name"`
	// ReturnDisplay is the display string of the returned value
	ReturnDisplay string `json:"return_display"`
}

// BranchData is the payload for branch events.
type BranchData struct {
	// Condition is the source text of the branch condition
	Condition string `json:"condition"`
	// Taken indicates whether the branch was taken
	Taken bool `json:"taken"`
}

// ExceptionData is the payload for exception events.
type ExceptionData struct {
	// Message is the exception message
	Message string `json:"message"`
	// ExceptionType is the runtime type of the thrown value
	ExceptionType string `json:"exception_type,omitempty"`
	// Uncaught indicates the exception escaped all handlers
	Uncaught bool `json:"uncaught,omitempty"`
}

// MemoryAccessData is the payload for memory_read and memory_write events.
type MemoryAccessData struct {
	// ObjectID is the heap object that was accessed
	ObjectID string `json:"object_id"`
	// Field is the accessed field name, empty for whole-object access
	Field string `json:"field,omitempty"`
	// IsWrite distinguishes writes from reads
	IsWrite bool `json:"is_write"`
	// ValueDisplay is the display string of the value read or written
	ValueDisplay string `json:"value_display,omitempty"`
}

// AsyncOperationData is the payload for async_await, async_resume and
// promise lifecycle events.
type AsyncOperationData struct {
	// PromiseID is the promise's heap identity, when known
	PromiseID string `json:"promise_id,omitempty"`
	// Description is a human-readable label for the suspended operation
	Description string `json:"description,omitempty"`
}

// BreakpointHitData is the payload for breakpoint events.
type BreakpointHitData struct {
	// BreakpointID is the breakpoint that matched
	BreakpointID string `json:"breakpoint_id"`
	// HitCount is the breakpoint's counter after this hit
	HitCount int `json:"hit_count"`
	// LogMessage is the interpolated log-point output, empty for pausing hits
	LogMessage string `json:"log_message,omitempty"`
}
