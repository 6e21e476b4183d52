package expr

import (
	"strconv"
	"strings"

	"github.com/pulsedev/retrace/internal/types"
)

// binaryOperators is ordered longest-first so that multi-character operators
// win at any scan position.
var binaryOperators = []string{
	"===", "!==", "==", "!=", ">=", "<=", "&&", "||",
	">", "<", "+", "-", "*", "/", "%",
}

const operatorChars = "=!<>&|+-*/%"

// Parse turns expression text into an AST. Parse never fails: malformed input
// degrades to a best-effort identifier node so that a mistyped watch
// expression stays visible (and editable) instead of disappearing.
//
// Detection order: member chain, binary operator, unary operator, conditional,
// call, literal, identifier. Binary operators are matched by a
// rightmost-occurrence scan rather than standard precedence, so "a + b * c"
// parses right-heavy. Stored breakpoint conditions depend on this shape;
// do not "fix" it to precedence climbing.
func Parse(text string) *Node {
	text = strings.TrimSpace(text)
	if text == "" {
		return &Node{Kind: NodeIdentifier, Name: ""}
	}

	// Parenthesized group covering the whole expression
	if strings.HasPrefix(text, "(") && matchingParen(text, 0) == len(text)-1 {
		return Parse(text[1 : len(text)-1])
	}

	if node := parseMemberChain(text); node != nil {
		return node
	}
	if node := parseBinary(text); node != nil {
		return node
	}
	if node := parseUnary(text); node != nil {
		return node
	}
	if node := parseConditional(text); node != nil {
		return node
	}
	if node := parseCall(text); node != nil {
		return node
	}
	if node := parseLiteral(text); node != nil {
		return node
	}
	return &Node{Kind: NodeIdentifier, Name: text}
}

// parseMemberChain parses expressions whose entirety is a chain of member
// accesses rooted at an identifier: "a.b", "a[0].c", "user.profile.name".
func parseMemberChain(text string) *Node {
	if !strings.ContainsAny(text, ".[") {
		return nil
	}

	root := scanIdentifier(text)
	if root == "" {
		return nil
	}
	node := &Node{Kind: NodeIdentifier, Name: root}
	rest := text[len(root):]

	for len(rest) > 0 {
		switch rest[0] {
		case '.':
			name := scanIdentifier(rest[1:])
			if name == "" {
				return nil
			}
			node = &Node{
				Kind:     NodeMember,
				Object:   node,
				Property: &Node{Kind: NodeIdentifier, Name: name},
			}
			rest = rest[1+len(name):]
		case '[':
			end := matchingBracket(rest, 0)
			if end < 0 {
				return nil
			}
			node = &Node{
				Kind:     NodeMember,
				Object:   node,
				Property: Parse(rest[1:end]),
				Computed: true,
			}
			rest = rest[end+1:]
		default:
			return nil
		}
	}
	return node
}

// parseBinary finds the rightmost top-level binary operator and splits there.
func parseBinary(text string) *Node {
	op, idx := findRightmostOperator(text)
	if idx < 0 {
		return nil
	}
	left := strings.TrimSpace(text[:idx])
	right := strings.TrimSpace(text[idx+len(op):])
	return &Node{
		Kind:     NodeBinary,
		Operator: op,
		Left:     Parse(left),
		Right:    Parse(right),
	}
}

func parseUnary(text string) *Node {
	if rest, ok := strings.CutPrefix(text, "typeof "); ok {
		return &Node{Kind: NodeUnary, Operator: "typeof", Operand: Parse(rest)}
	}
	if len(text) > 1 {
		switch text[0] {
		case '!', '-', '+':
			return &Node{Kind: NodeUnary, Operator: string(text[0]), Operand: Parse(text[1:])}
		}
	}
	return nil
}

// parseConditional handles "test ? consequent : alternate", splitting at the
// first top-level '?' and its matching ':'.
func parseConditional(text string) *Node {
	question := -1
	for _, pos := range topLevelPositions(text, '?') {
		question = pos
		break
	}
	if question < 0 {
		return nil
	}

	depth := 0
	colon := -1
	for _, pos := range topLevelPositions(text[question+1:], '?', ':') {
		if text[question+1+pos] == '?' {
			depth++
			continue
		}
		if depth == 0 {
			colon = question + 1 + pos
			break
		}
		depth--
	}
	if colon < 0 {
		return nil
	}

	return &Node{
		Kind:       NodeConditional,
		Test:       Parse(text[:question]),
		Consequent: Parse(text[question+1 : colon]),
		Alternate:  Parse(text[colon+1:]),
	}
}

// parseCall parses "callee(arg, arg)" where the argument list closes the
// expression. Calls parse so they can be rejected with a useful error at
// evaluation time instead of degrading to an identifier.
func parseCall(text string) *Node {
	open := strings.IndexByte(text, '(')
	if open <= 0 || matchingParen(text, open) != len(text)-1 {
		return nil
	}
	callee := strings.TrimSpace(text[:open])
	if scanIdentifier(callee) == "" {
		return nil
	}

	node := &Node{Kind: NodeCall, Callee: Parse(callee)}
	inner := strings.TrimSpace(text[open+1 : len(text)-1])
	if inner == "" {
		return node
	}
	for _, arg := range splitTopLevel(inner, ',') {
		node.Arguments = append(node.Arguments, Parse(arg))
	}
	return node
}

func parseLiteral(text string) *Node {
	switch text {
	case "true":
		return &Node{Kind: NodeLiteral, Value: types.Boolean(true)}
	case "false":
		return &Node{Kind: NodeLiteral, Value: types.Boolean(false)}
	case "null":
		return &Node{Kind: NodeLiteral, Value: types.Null()}
	case "undefined":
		return &Node{Kind: NodeLiteral, Value: types.Undefined()}
	}
	if len(text) >= 2 {
		if (text[0] == '\'' && text[len(text)-1] == '\'') ||
			(text[0] == '"' && text[len(text)-1] == '"') {
			return &Node{Kind: NodeLiteral, Value: types.String(text[1 : len(text)-1])}
		}
	}
	if n, err := strconv.ParseFloat(text, 64); err == nil {
		return &Node{Kind: NodeLiteral, Value: types.Number(n)}
	}
	return nil
}

// findRightmostOperator scans right to left for a binary operator outside
// quotes, parentheses and brackets. Occurrences with an empty operand on
// either side (unary minus, a trailing operator) are skipped.
func findRightmostOperator(text string) (string, int) {
	for i := len(text) - 1; i >= 0; i-- {
		if !atTopLevel(text, i) {
			continue
		}
		for _, op := range binaryOperators {
			if !strings.HasPrefix(text[i:], op) {
				continue
			}
			// Don't split in the middle of a longer operator
			if i > 0 && strings.ContainsRune(operatorChars, rune(text[i-1])) {
				continue
			}
			if i+len(op) < len(text) && strings.ContainsRune(operatorChars, rune(text[i+len(op)])) {
				continue
			}
			left := strings.TrimSpace(text[:i])
			right := strings.TrimSpace(text[i+len(op):])
			if left == "" || right == "" {
				continue
			}
			if strings.ContainsRune(operatorChars, rune(left[len(left)-1])) {
				continue
			}
			return op, i
		}
	}
	return "", -1
}

// atTopLevel reports whether position i sits outside quotes, parens and
// brackets.
func atTopLevel(text string, i int) bool {
	depth := 0
	var quote byte
	for j := 0; j < i; j++ {
		c := text[j]
		if quote != 0 {
			if c == '\\' {
				j++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		}
	}
	return depth == 0 && quote == 0
}

// topLevelPositions returns the positions of the given bytes outside quotes,
// parens and brackets, left to right.
func topLevelPositions(text string, targets ...byte) []int {
	var positions []int
	depth := 0
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
			continue
		case '(', '[':
			depth++
			continue
		case ')', ']':
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		for _, target := range targets {
			if c == target {
				positions = append(positions, i)
				break
			}
		}
	}
	return positions
}

func splitTopLevel(text string, sep byte) []string {
	var parts []string
	last := 0
	for _, pos := range topLevelPositions(text, sep) {
		parts = append(parts, strings.TrimSpace(text[last:pos]))
		last = pos + 1
	}
	parts = append(parts, strings.TrimSpace(text[last:]))
	return parts
}

// matchingParen returns the index of the ')' closing the '(' at open, or -1.
func matchingParen(text string, open int) int {
	return matchingDelim(text, open, '(', ')')
}

// matchingBracket returns the index of the ']' closing the '[' at open, or -1.
func matchingBracket(text string, open int) int {
	return matchingDelim(text, open, '[', ']')
}

func matchingDelim(text string, open int, openCh, closeCh byte) int {
	depth := 0
	var quote byte
	for i := open; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// scanIdentifier returns the identifier prefix of text ("" when text does not
// start with one).
func scanIdentifier(text string) string {
	for i := 0; i < len(text); i++ {
		c := text[i]
		alpha := c == '_' || c == '$' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		digit := c >= '0' && c <= '9'
		if alpha || (i > 0 && digit) {
			continue
		}
		return text[:i]
	}
	return text
}
