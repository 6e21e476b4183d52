package expr

import (
	"fmt"
	"math"
	"strconv"

	"github.com/pulsedev/retrace/internal/types"
)

// Scope is the name-resolution context an expression evaluates against.
// Resolution order for a bare identifier: frame locals, closure, globals,
// then members of `this`. Unresolved names evaluate to undefined rather than
// erroring, so watch evaluation stays non-fatal.
type Scope struct {
	Frame   *types.CallFrame
	Closure map[string]types.RuntimeValue
	Globals map[string]types.RuntimeValue
	This    *types.RuntimeValue
	// Heap lets member access follow an ObjectID when a value carries no
	// structural copy of its fields.
	Heap map[string]*types.HeapObject
}

// Resolve looks up a bare identifier in the scope.
func (s *Scope) Resolve(name string) types.RuntimeValue {
	if s == nil {
		return types.Undefined()
	}
	if name == "this" {
		if s.This != nil {
			return *s.This
		}
		return types.Undefined()
	}
	if s.Frame != nil {
		if value, ok := s.Frame.Lookup(name); ok {
			return value
		}
	}
	if value, ok := s.Closure[name]; ok {
		return value
	}
	if value, ok := s.Globals[name]; ok {
		return value
	}
	if s.This != nil {
		if value, ok := s.This.Member(name); ok {
			return value
		}
	}
	return types.Undefined()
}

// Evaluate runs a compiled expression against a scope. The only evaluation
// error is a call expression: the language is side-effect-free by
// construction, so calls parse but never run.
func Evaluate(compiled *CompiledExpression, scope *Scope) (types.RuntimeValue, error) {
	if compiled == nil || compiled.Root == nil {
		return types.Undefined(), fmt.Errorf("no compiled expression")
	}
	return evalNode(compiled.Root, scope)
}

// EvaluateText is a convenience for one-shot evaluation of raw text.
func EvaluateText(text string, scope *Scope) (types.RuntimeValue, error) {
	return Evaluate(Compile(text), scope)
}

func evalNode(n *Node, scope *Scope) (types.RuntimeValue, error) {
	switch n.Kind {
	case NodeLiteral:
		return n.Value, nil

	case NodeIdentifier:
		return scope.Resolve(n.Name), nil

	case NodeMember:
		return evalMember(n, scope)

	case NodeCall:
		name := n.Callee.Name
		if name == "" {
			name = "expression"
		}
		return types.Undefined(), fmt.Errorf("function calls are not permitted in debug expressions: %s()", name)

	case NodeBinary:
		return evalBinary(n, scope)

	case NodeUnary:
		return evalUnary(n, scope)

	case NodeConditional:
		test, err := evalNode(n.Test, scope)
		if err != nil {
			return types.Undefined(), err
		}
		if test.IsTruthy() {
			return evalNode(n.Consequent, scope)
		}
		return evalNode(n.Alternate, scope)

	default:
		return types.Undefined(), nil
	}
}

func evalMember(n *Node, scope *Scope) (types.RuntimeValue, error) {
	object, err := evalNode(n.Object, scope)
	if err != nil {
		return types.Undefined(), err
	}

	var key string
	if n.Computed {
		prop, err := evalNode(n.Property, scope)
		if err != nil {
			return types.Undefined(), err
		}
		key = memberKey(prop)
	} else {
		key = n.Property.Name
	}

	if value, ok := object.Member(key); ok {
		return value, nil
	}
	// Fall back to the heap when the value carries only an id
	if object.ObjectID != "" && scope != nil && scope.Heap != nil {
		if obj, ok := scope.Heap[object.ObjectID]; ok && obj.Fields != nil {
			if value, ok := obj.Fields[key]; ok {
				return value, nil
			}
		}
	}
	return types.Undefined(), nil
}

func memberKey(v types.RuntimeValue) string {
	if v.Kind == types.KindString {
		return v.StringValue
	}
	return v.Display
}

func evalUnary(n *Node, scope *Scope) (types.RuntimeValue, error) {
	operand, err := evalNode(n.Operand, scope)
	if err != nil {
		return types.Undefined(), err
	}
	switch n.Operator {
	case "!":
		return types.Boolean(!operand.IsTruthy()), nil
	case "-":
		return types.Number(-toNumber(operand)), nil
	case "+":
		return types.Number(toNumber(operand)), nil
	case "typeof":
		return types.String(operand.TypeName()), nil
	default:
		return types.Undefined(), nil
	}
}

func evalBinary(n *Node, scope *Scope) (types.RuntimeValue, error) {
	left, err := evalNode(n.Left, scope)
	if err != nil {
		return types.Undefined(), err
	}

	// Short-circuit before touching the right side
	switch n.Operator {
	case "&&":
		if !left.IsTruthy() {
			return left, nil
		}
		return evalNode(n.Right, scope)
	case "||":
		if left.IsTruthy() {
			return left, nil
		}
		return evalNode(n.Right, scope)
	}

	right, err := evalNode(n.Right, scope)
	if err != nil {
		return types.Undefined(), err
	}

	switch n.Operator {
	case "+":
		if left.Kind == types.KindString || right.Kind == types.KindString {
			return types.String(concatString(left) + concatString(right)), nil
		}
		return types.Number(toNumber(left) + toNumber(right)), nil
	case "-":
		return types.Number(toNumber(left) - toNumber(right)), nil
	case "*":
		return types.Number(toNumber(left) * toNumber(right)), nil
	case "/":
		return types.Number(toNumber(left) / toNumber(right)), nil
	case "%":
		return types.Number(math.Mod(toNumber(left), toNumber(right))), nil
	case "==":
		return types.Boolean(looseEqual(left, right)), nil
	case "!=":
		return types.Boolean(!looseEqual(left, right)), nil
	case "===":
		return types.Boolean(strictEqual(left, right)), nil
	case "!==":
		return types.Boolean(!strictEqual(left, right)), nil
	case "<", "<=", ">", ">=":
		return types.Boolean(compare(n.Operator, left, right)), nil
	default:
		return types.Undefined(), nil
	}
}

func concatString(v types.RuntimeValue) string {
	if v.Kind == types.KindString {
		return v.StringValue
	}
	return v.Display
}

func toNumber(v types.RuntimeValue) float64 {
	switch v.Kind {
	case types.KindNumber:
		return v.NumberValue
	case types.KindBoolean:
		if v.BoolValue {
			return 1
		}
		return 0
	case types.KindString:
		if n, err := strconv.ParseFloat(v.StringValue, 64); err == nil {
			return n
		}
		return math.NaN()
	case types.KindNull:
		return 0
	default:
		return math.NaN()
	}
}

func strictEqual(a, b types.RuntimeValue) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case types.KindUndefined, types.KindNull:
		return true
	case types.KindBoolean:
		return a.BoolValue == b.BoolValue
	case types.KindNumber:
		return a.NumberValue == b.NumberValue
	case types.KindString:
		return a.StringValue == b.StringValue
	default:
		if a.ObjectID != "" || b.ObjectID != "" {
			return a.ObjectID == b.ObjectID
		}
		return a.Display == b.Display
	}
}

func looseEqual(a, b types.RuntimeValue) bool {
	if a.Kind == b.Kind {
		return strictEqual(a, b)
	}
	nullish := func(v types.RuntimeValue) bool {
		return v.Kind == types.KindUndefined || v.Kind == types.KindNull
	}
	if nullish(a) && nullish(b) {
		return true
	}
	if nullish(a) || nullish(b) {
		return false
	}
	// Mixed scalar kinds compare numerically
	an, bn := toNumber(a), toNumber(b)
	if !math.IsNaN(an) && !math.IsNaN(bn) {
		return an == bn
	}
	return false
}

func compare(op string, a, b types.RuntimeValue) bool {
	if a.Kind == types.KindString && b.Kind == types.KindString {
		switch op {
		case "<":
			return a.StringValue < b.StringValue
		case "<=":
			return a.StringValue <= b.StringValue
		case ">":
			return a.StringValue > b.StringValue
		case ">=":
			return a.StringValue >= b.StringValue
		}
		return false
	}
	an, bn := toNumber(a), toNumber(b)
	if math.IsNaN(an) || math.IsNaN(bn) {
		return false
	}
	switch op {
	case "<":
		return an < bn
	case "<=":
		return an <= bn
	case ">":
		return an > bn
	case ">=":
		return an >= bn
	}
	return false
}
