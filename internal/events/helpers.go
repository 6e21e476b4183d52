package events

import (
	"encoding/json"
	"fmt"
)

// Payload is the schemaless event payload carried by a snapshot. Typed
// accessors below keep the map JSON-serializable while giving callers
// structured views.
type Payload map[string]interface{}

// NewFunctionCallPayload builds the payload for a function_call event.
func NewFunctionCallPayload(data FunctionCallData) Payload {
	return mustStructToMap(data)
}

// NewFunctionReturnPayload builds the payload for a function_return event.
func NewFunctionReturnPayload(data FunctionReturnData) Payload {
	return mustStructToMap(data)
}

// NewBranchPayload builds the payload for a branch event.
func NewBranchPayload(data BranchData) Payload {
	return mustStructToMap(data)
}

// NewExceptionPayload builds the payload for an exception event.
func NewExceptionPayload(data ExceptionData) Payload {
	return mustStructToMap(data)
}

// NewMemoryAccessPayload builds the payload for a memory access event.
func NewMemoryAccessPayload(data MemoryAccessData) Payload {
	return mustStructToMap(data)
}

// NewAsyncOperationPayload builds the payload for an async lifecycle event.
func NewAsyncOperationPayload(data AsyncOperationData) Payload {
	return mustStructToMap(data)
}

// NewBreakpointHitPayload builds the payload for a breakpoint event.
func NewBreakpointHitPayload(data BreakpointHitData) Payload {
	return mustStructToMap(data)
}

// FunctionCallData parses the payload of a function_call event.
func (p Payload) FunctionCallData() (*FunctionCallData, error) {
	var data FunctionCallData
	if err := mapToStruct(p, &data); err != nil {
		return nil, fmt.Errorf("failed to parse FunctionCallData: %w", err)
	}
	return &data, nil
}

// ExceptionData parses the payload of an exception event.
func (p Payload) ExceptionData() (*ExceptionData, error) {
	var data ExceptionData
	if err := mapToStruct(p, &data); err != nil {
		return nil, fmt.Errorf("failed to parse ExceptionData: %w", err)
	}
	return &data, nil
}

// MemoryAccessData parses the payload of a memory access event.
func (p Payload) MemoryAccessData() (*MemoryAccessData, error) {
	var data MemoryAccessData
	if err := mapToStruct(p, &data); err != nil {
		return nil, fmt.Errorf("failed to parse MemoryAccessData: %w", err)
	}
	return &data, nil
}

// BreakpointHitData parses the payload of a breakpoint event.
func (p Payload) BreakpointHitData() (*BreakpointHitData, error) {
	var data BreakpointHitData
	if err := mapToStruct(p, &data); err != nil {
		return nil, fmt.Errorf("failed to parse BreakpointHitData: %w", err)
	}
	return &data, nil
}

// mustStructToMap converts a payload struct to a map via JSON round-trip.
// The payload structs contain only JSON-serializable fields, so failure here
// is a programming error.
func mustStructToMap(data interface{}) Payload {
	bytes, err := json.Marshal(data)
	if err != nil {
		panic(fmt.Sprintf("unserializable event payload: %v", err))
	}
	var result Payload
	if err := json.Unmarshal(bytes, &result); err != nil {
		panic(fmt.Sprintf("unserializable event payload: %v", err))
	}
	return result
}

func mapToStruct(payload Payload, target interface{}) error {
	bytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, target)
}
