package types

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ValueKind categorizes a runtime value captured from the instrumented program.
//
// The kind set mirrors what the instrumentation layer can extract from a
// dynamic-language runtime. Scalar kinds carry their value inline; reference
// kinds carry a stable ObjectID that correlates the same logical object
// across snapshots (see HeapObject).
type ValueKind string

const (
	KindUndefined ValueKind = "undefined"
	KindNull      ValueKind = "null"
	KindBoolean   ValueKind = "boolean"
	KindNumber    ValueKind = "number"
	KindString    ValueKind = "string"
	KindBigInt    ValueKind = "bigint"
	KindSymbol    ValueKind = "symbol"
	KindObject    ValueKind = "object"
	KindArray     ValueKind = "array"
	KindFunction  ValueKind = "function"
	KindDate      ValueKind = "date"
	KindRegExp    ValueKind = "regexp"
	KindMap       ValueKind = "map"
	KindSet       ValueKind = "set"
	KindWeakMap   ValueKind = "weakmap"
	KindWeakSet   ValueKind = "weakset"
	KindPromise   ValueKind = "promise"
	KindError     ValueKind = "error"
	KindClass     ValueKind = "class"
	KindProxy     ValueKind = "proxy"
)

// IsValid checks if the value kind is valid
func (k ValueKind) IsValid() bool {
	switch k {
	case KindUndefined, KindNull, KindBoolean, KindNumber, KindString,
		KindBigInt, KindSymbol, KindObject, KindArray, KindFunction,
		KindDate, KindRegExp, KindMap, KindSet, KindWeakMap, KindWeakSet,
		KindPromise, KindError, KindClass, KindProxy:
		return true
	}
	return false
}

// IsReference reports whether values of this kind are identified by ObjectID
// rather than by inline value.
func (k ValueKind) IsReference() bool {
	switch k {
	case KindObject, KindArray, KindFunction, KindDate, KindRegExp,
		KindMap, KindSet, KindWeakMap, KindWeakSet, KindPromise,
		KindError, KindClass, KindProxy:
		return true
	}
	return false
}

// RuntimeValue is a single captured value.
//
// Scalars store their payload in the field matching their kind; unused payload
// fields stay zero. Reference kinds carry ObjectID plus an optional structural
// copy of their members (Fields for named members, Elements for array slots)
// so that watch and breakpoint expressions can traverse them without the live
// heap.
type RuntimeValue struct {
	Kind     ValueKind `json:"kind"`
	Display  string    `json:"display"`
	ObjectID string    `json:"object_id,omitempty"`

	BoolValue   bool    `json:"bool_value,omitempty"`
	NumberValue float64 `json:"number_value,omitempty"`
	StringValue string  `json:"string_value,omitempty"`

	Fields   map[string]RuntimeValue `json:"fields,omitempty"`
	Elements []RuntimeValue          `json:"elements,omitempty"`
}

// Undefined returns the undefined value.
func Undefined() RuntimeValue {
	return RuntimeValue{Kind: KindUndefined, Display: "undefined"}
}

// Null returns the null value.
func Null() RuntimeValue {
	return RuntimeValue{Kind: KindNull, Display: "null"}
}

// Boolean wraps a bool.
func Boolean(b bool) RuntimeValue {
	return RuntimeValue{Kind: KindBoolean, Display: strconv.FormatBool(b), BoolValue: b}
}

// Number wraps a float64.
func Number(n float64) RuntimeValue {
	return RuntimeValue{Kind: KindNumber, Display: formatNumber(n), NumberValue: n}
}

// String wraps a string.
func String(s string) RuntimeValue {
	return RuntimeValue{Kind: KindString, Display: s, StringValue: s}
}

// Object wraps a set of named fields under a fresh object identity.
func Object(fields map[string]RuntimeValue) RuntimeValue {
	return RuntimeValue{
		Kind:     KindObject,
		Display:  describeFields(fields),
		ObjectID: NewObjectID(),
		Fields:   fields,
	}
}

// Array wraps an element slice under a fresh object identity.
func Array(elements []RuntimeValue) RuntimeValue {
	return RuntimeValue{
		Kind:     KindArray,
		Display:  fmt.Sprintf("Array(%d)", len(elements)),
		ObjectID: NewObjectID(),
		Elements: elements,
	}
}

// FromRaw converts a plain Go value delivered by the instrumentation layer
// into a RuntimeValue. Composite values get fresh object identities; nested
// members are converted recursively.
func FromRaw(raw interface{}) RuntimeValue {
	switch v := raw.(type) {
	case nil:
		return Null()
	case RuntimeValue:
		return v
	case *RuntimeValue:
		if v == nil {
			return Undefined()
		}
		return *v
	case bool:
		return Boolean(v)
	case int:
		return Number(float64(v))
	case int32:
		return Number(float64(v))
	case int64:
		return Number(float64(v))
	case float32:
		return Number(float64(v))
	case float64:
		return Number(v)
	case string:
		return String(v)
	case []interface{}:
		elements := make([]RuntimeValue, len(v))
		for i, elem := range v {
			elements[i] = FromRaw(elem)
		}
		return Array(elements)
	case map[string]interface{}:
		fields := make(map[string]RuntimeValue, len(v))
		for name, field := range v {
			fields[name] = FromRaw(field)
		}
		return Object(fields)
	case error:
		return RuntimeValue{
			Kind:     KindError,
			Display:  v.Error(),
			ObjectID: NewObjectID(),
		}
	default:
		return RuntimeValue{Kind: KindObject, Display: fmt.Sprintf("%v", v), ObjectID: NewObjectID()}
	}
}

// Equal compares two values identity-first: reference values with the same
// ObjectID are equal regardless of captured members; everything else falls
// back to display-string equality.
func (v RuntimeValue) Equal(other RuntimeValue) bool {
	if v.ObjectID != "" && v.ObjectID == other.ObjectID {
		return true
	}
	return v.Kind == other.Kind && v.Display == other.Display
}

// IsTruthy evaluates the value under the usual dynamic-language rules:
// undefined, null, false, 0, NaN and "" are falsy, everything else truthy.
func (v RuntimeValue) IsTruthy() bool {
	switch v.Kind {
	case KindUndefined, KindNull:
		return false
	case KindBoolean:
		return v.BoolValue
	case KindNumber:
		return v.NumberValue != 0 && !math.IsNaN(v.NumberValue)
	case KindString:
		return v.StringValue != ""
	default:
		return true
	}
}

// TypeName returns the typeof-style name for the value.
func (v RuntimeValue) TypeName() string {
	switch v.Kind {
	case KindUndefined:
		return "undefined"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindBigInt:
		return "bigint"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	case KindFunction, KindClass:
		return "function"
	default:
		// null and every reference kind report "object"
		return "object"
	}
}

// Member resolves a named member (or numeric index for arrays). The second
// return is false when no such member was captured.
func (v RuntimeValue) Member(name string) (RuntimeValue, bool) {
	if v.Kind == KindArray {
		if idx, err := strconv.Atoi(name); err == nil {
			if idx >= 0 && idx < len(v.Elements) {
				return v.Elements[idx], true
			}
			return Undefined(), false
		}
		if name == "length" {
			return Number(float64(len(v.Elements))), true
		}
	}
	if v.Kind == KindString && name == "length" {
		return Number(float64(len(v.StringValue))), true
	}
	if v.Fields != nil {
		if field, ok := v.Fields[name]; ok {
			return field, true
		}
	}
	return Undefined(), false
}

// Clone returns a structural deep copy. The ObjectID is preserved: identity
// is carried by the id, never by Go pointer equality.
func (v RuntimeValue) Clone() RuntimeValue {
	out := v
	if v.Fields != nil {
		out.Fields = make(map[string]RuntimeValue, len(v.Fields))
		for name, field := range v.Fields {
			out.Fields[name] = field.Clone()
		}
	}
	if v.Elements != nil {
		out.Elements = make([]RuntimeValue, len(v.Elements))
		for i, elem := range v.Elements {
			out.Elements[i] = elem.Clone()
		}
	}
	return out
}

// NewObjectID generates an opaque heap-object identity. Ids survive deep
// copies and export/import so that the same logical object can be tracked
// across snapshots and sessions.
func NewObjectID() string {
	return "obj-" + uuid.New().String()
}

func formatNumber(n float64) string {
	if n == math.Trunc(n) && !math.IsInf(n, 0) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func describeFields(fields map[string]RuntimeValue) string {
	if len(fields) == 0 {
		return "{}"
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 3 {
		names = names[:3]
		return fmt.Sprintf("{%s, …}", strings.Join(names, ", "))
	}
	return fmt.Sprintf("{%s}", strings.Join(names, ", "))
}
