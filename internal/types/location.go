package types

import "fmt"

// SourceLocation identifies a point in the debuggee's source. It is both the
// breakpoint key and the timeline coordinate of a snapshot.
type SourceLocation struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Function string `json:"function,omitempty"`
}

// Key returns the exact-match breakpoint key for this location.
// Live breakpoints bind to the full file:line:column triple.
func (l SourceLocation) Key() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// LineKey returns the statement-granular file:line key. Replay-time breakpoint
// matching ignores the column because snapshots are captured per statement.
func (l SourceLocation) LineKey() string {
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// SameStatement reports whether two locations share file and line.
func (l SourceLocation) SameStatement(other SourceLocation) bool {
	return l.File == other.File && l.Line == other.Line
}

func (l SourceLocation) String() string {
	if l.Function != "" {
		return fmt.Sprintf("%s (%s)", l.Key(), l.Function)
	}
	return l.Key()
}
