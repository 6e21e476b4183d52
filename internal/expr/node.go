// Package expr implements the restricted expression language used by watch
// expressions, breakpoint conditions and log-message interpolation.
//
// The language is a side-effect-free subset of a dynamic scripting language:
// member access, binary and unary operators, the conditional operator,
// literals and identifiers. Call expressions parse but refuse to evaluate, so
// a compiled expression can never mutate the debuggee.
package expr

import (
	"strings"

	"github.com/pulsedev/retrace/internal/types"
)

// NodeKind discriminates the AST node union.
type NodeKind string

const (
	NodeLiteral     NodeKind = "literal"
	NodeIdentifier  NodeKind = "identifier"
	NodeMember      NodeKind = "member"
	NodeCall        NodeKind = "call"
	NodeBinary      NodeKind = "binary"
	NodeUnary       NodeKind = "unary"
	NodeConditional NodeKind = "conditional"
)

// IsValid checks if the node kind is valid
func (k NodeKind) IsValid() bool {
	switch k {
	case NodeLiteral, NodeIdentifier, NodeMember, NodeCall, NodeBinary,
		NodeUnary, NodeConditional:
		return true
	}
	return false
}

// Node is one AST node. Only the fields for the node's kind are populated.
type Node struct {
	Kind NodeKind `json:"kind"`

	// literal
	Value types.RuntimeValue `json:"value,omitempty"`

	// identifier
	Name string `json:"name,omitempty"`

	// member: Object.Property, or Object[Property] when Computed
	Object   *Node `json:"object,omitempty"`
	Property *Node `json:"property,omitempty"`
	Computed bool  `json:"computed,omitempty"`

	// call
	Callee    *Node   `json:"callee,omitempty"`
	Arguments []*Node `json:"arguments,omitempty"`

	// binary and unary
	Operator string `json:"operator,omitempty"`
	Left     *Node  `json:"left,omitempty"`
	Right    *Node  `json:"right,omitempty"`
	Operand  *Node  `json:"operand,omitempty"`

	// conditional
	Test       *Node `json:"test,omitempty"`
	Consequent *Node `json:"consequent,omitempty"`
	Alternate  *Node `json:"alternate,omitempty"`
}

// CompiledExpression is a parsed expression plus the metadata the watch and
// breakpoint managers need: the free identifiers it reads and whether it is
// pure (contains no call nodes).
type CompiledExpression struct {
	Text         string   `json:"text"`
	Root         *Node    `json:"root"`
	Dependencies []string `json:"dependencies"`
	Pure         bool     `json:"pure"`
}

// Compile parses text and extracts dependency and purity metadata.
func Compile(text string) *CompiledExpression {
	root := Parse(text)
	deps := make([]string, 0, 4)
	seen := make(map[string]bool)
	collectDependencies(root, seen, &deps)
	return &CompiledExpression{
		Text:         text,
		Root:         root,
		Dependencies: deps,
		Pure:         !containsCall(root),
	}
}

// collectDependencies gathers the free identifiers an expression reads. For a
// member chain only the root identifier counts: evaluating "user.name" depends
// on "user".
func collectDependencies(n *Node, seen map[string]bool, out *[]string) {
	if n == nil {
		return
	}
	switch n.Kind {
	case NodeIdentifier:
		name := strings.TrimSpace(n.Name)
		if name != "" && !seen[name] {
			seen[name] = true
			*out = append(*out, name)
		}
	case NodeMember:
		collectDependencies(n.Object, seen, out)
		if n.Computed {
			collectDependencies(n.Property, seen, out)
		}
	case NodeCall:
		collectDependencies(n.Callee, seen, out)
		for _, arg := range n.Arguments {
			collectDependencies(arg, seen, out)
		}
	case NodeBinary:
		collectDependencies(n.Left, seen, out)
		collectDependencies(n.Right, seen, out)
	case NodeUnary:
		collectDependencies(n.Operand, seen, out)
	case NodeConditional:
		collectDependencies(n.Test, seen, out)
		collectDependencies(n.Consequent, seen, out)
		collectDependencies(n.Alternate, seen, out)
	}
}

func containsCall(n *Node) bool {
	if n == nil {
		return false
	}
	if n.Kind == NodeCall {
		return true
	}
	children := []*Node{
		n.Object, n.Property, n.Callee, n.Left, n.Right,
		n.Operand, n.Test, n.Consequent, n.Alternate,
	}
	for _, child := range children {
		if containsCall(child) {
			return true
		}
	}
	for _, arg := range n.Arguments {
		if containsCall(arg) {
			return true
		}
	}
	return false
}
