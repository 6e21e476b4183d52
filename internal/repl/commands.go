package repl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/pulsedev/retrace/internal/session"
	"github.com/pulsedev/retrace/internal/types"
)

func (s *Shell) cmdSessions(args []string) error {
	infos, err := s.engine.ListSessions(s.ctx)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No stored sessions")
		return nil
	}
	for _, info := range infos {
		ended := "still recording"
		if info.EndedAt != nil {
			ended = info.EndedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("  %s  %s  %d snapshots  (%s)\n", info.ID, info.Status, info.SnapshotCount, ended)
	}
	return nil
}

func (s *Shell) cmdLoad(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: load <session-id>")
	}
	if err := s.engine.LoadSession(s.ctx, args[0]); err != nil {
		return err
	}
	green := color.New(color.FgGreen).SprintFunc()
	sess := s.engine.Replayer().Session()
	fmt.Printf("%s Loaded %s (%d snapshots)\n", green("✓"), sess.ID, sess.Len())
	s.printCursor()
	return nil
}

func (s *Shell) cmdUnload(args []string) error {
	s.engine.UnloadSession()
	fmt.Println("Session unloaded")
	return nil
}

func (s *Shell) cmdInfo(args []string) error {
	snap := s.engine.Replayer().Current()
	if snap == nil {
		return fmt.Errorf("no session loaded")
	}
	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("%s sequence %d of %d\n", cyan("●"), snap.Sequence, s.engine.Replayer().Session().Len())
	fmt.Printf("  event:     %s\n", snap.Event)
	fmt.Printf("  location:  %s\n", snap.Location)
	fmt.Printf("  depth:     %d\n", snap.Depth())
	fmt.Printf("  time:      %s\n", snap.Timestamp.Format("15:04:05.000"))
	fmt.Printf("  heap:      %d objects, %d allocs, %d frees\n",
		len(snap.Memory.Heap), snap.Memory.AllocationCount, snap.Memory.DeallocationCount)
	return nil
}

func (s *Shell) cmdTimeline(args []string) error {
	r := s.engine.Replayer()
	sess := r.Session()
	if sess == nil {
		return fmt.Errorf("no session loaded")
	}
	window := 10
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("usage: timeline [n]")
		}
		window = n
	}

	cursor := r.Cursor()
	start := cursor - window/2
	if start < 0 {
		start = 0
	}
	end := start + window
	if end > sess.Len() {
		end = sess.Len()
	}
	cyan := color.New(color.FgCyan).SprintFunc()
	for i := start; i < end; i++ {
		summary := sess.At(i).Summarize()
		marker := "  "
		if i == cursor {
			marker = cyan("▶ ")
		}
		fmt.Printf("%s%4d  %-16s  depth %d  %s\n",
			marker, summary.Sequence, summary.Event, summary.Depth, summary.Location)
	}
	return nil
}

func (s *Shell) cmdStepForward(args []string) error {
	_, moved := s.engine.Replayer().StepForward()
	return s.afterMove(moved, "already at the end of the timeline")
}

func (s *Shell) cmdStepBackward(args []string) error {
	_, moved := s.engine.Replayer().StepBackward()
	return s.afterMove(moved, "already at the start of the timeline")
}

func (s *Shell) cmdOverForward(args []string) error {
	_, moved := s.engine.Replayer().StepOverForward()
	return s.afterMove(moved, "already at the end of the timeline")
}

func (s *Shell) cmdOverBackward(args []string) error {
	_, moved := s.engine.Replayer().StepOverBackward()
	return s.afterMove(moved, "already at the start of the timeline")
}

func (s *Shell) cmdOutForward(args []string) error {
	_, moved := s.engine.Replayer().StepOutForward()
	return s.afterMove(moved, "no shallower snapshot ahead")
}

func (s *Shell) cmdOutBackward(args []string) error {
	_, moved := s.engine.Replayer().StepOutBackward()
	return s.afterMove(moved, "no enclosing call behind")
}

func (s *Shell) afterMove(moved bool, edgeMessage string) error {
	if s.engine.Replayer().Current() == nil {
		return fmt.Errorf("no session loaded")
	}
	if !moved {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s %s\n", yellow("!"), edgeMessage)
		return nil
	}
	s.printCursor()
	return nil
}

func (s *Shell) cmdContinueForward(args []string) error {
	return s.play(true)
}

func (s *Shell) cmdContinueBackward(args []string) error {
	return s.play(false)
}

// play runs continuous playback in the background so that 'stop' and Ctrl+C
// stay responsive, then reports the landing snapshot.
func (s *Shell) play(forward bool) error {
	if s.engine.Replayer().Current() == nil {
		return fmt.Errorf("no session loaded")
	}
	go func() {
		var snap *session.Snapshot
		var err error
		if forward {
			snap, err = s.engine.Replayer().ContinueForward(s.ctx)
		} else {
			snap, err = s.engine.Replayer().ContinueBackward(s.ctx)
		}
		if err != nil {
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("\n%s %v\n", red("Error:"), err)
			return
		}
		if snap != nil {
			fmt.Println()
			s.printCursor()
		}
	}()
	return nil
}

func (s *Shell) cmdStop(args []string) error {
	s.engine.Replayer().Stop()
	return nil
}

func (s *Shell) cmdGoto(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: goto <sequence>")
	}
	seq, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid sequence number %q", args[0])
	}
	if _, err := s.engine.Replayer().GoToSequence(seq); err != nil {
		return err
	}
	s.printCursor()
	return nil
}

func (s *Shell) cmdSpeed(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: speed <multiplier>")
	}
	speed, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid speed %q", args[0])
	}
	if err := s.engine.Replayer().SetSpeed(speed); err != nil {
		return err
	}
	fmt.Printf("Playback speed set to %gx\n", speed)
	return nil
}

func (s *Shell) cmdStack(args []string) error {
	frames := s.engine.Stack().Frames()
	if len(frames) == 0 {
		return fmt.Errorf("no stack available")
	}
	_, selected := s.engine.Stack().Current()
	cyan := color.New(color.FgCyan).SprintFunc()
	for i, f := range frames {
		marker := "  "
		if i == selected {
			marker = cyan("▶ ")
		}
		fmt.Printf("%s#%d  %s  %s\n", marker, i, f.Name, f.Location)
	}
	return nil
}

func (s *Shell) cmdFrame(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: frame <index>")
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid frame index %q", args[0])
	}
	s.engine.Stack().SelectFrame(index)
	frame, selected := s.engine.Stack().Current()
	if frame == nil {
		return fmt.Errorf("no stack available")
	}
	fmt.Printf("Frame #%d  %s  %s\n", selected, frame.Name, frame.Location)
	for _, binding := range frame.Locals {
		fmt.Printf("  %s = %s\n", binding.Name, binding.Value.Display)
	}
	return nil
}

func (s *Shell) cmdEval(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: eval <expression>")
	}
	text := strings.Join(args, " ")
	value, err := s.engine.Evaluate(text)
	if err != nil {
		return err
	}
	fmt.Printf("%s = %s  (%s)\n", text, value.Display, value.TypeName())
	return nil
}

func (s *Shell) cmdHistory(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: history <variable>")
	}
	samples := s.engine.Replayer().FindVariableHistory(args[0])
	if len(samples) == 0 {
		fmt.Printf("No recorded values for %q\n", args[0])
		return nil
	}
	for _, sample := range samples {
		fmt.Printf("  seq %4d  %s  %s = %s\n",
			sample.Sequence, sample.Location, args[0], sample.Value.Display)
	}
	return nil
}

func (s *Shell) cmdBreak(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: break <file:line[:column]>")
	}
	location, err := parseLocation(args[0])
	if err != nil {
		return err
	}
	bp := s.engine.Breakpoints().Add(location)
	if err := s.engine.SaveBreakpoint(s.ctx, bp.ID); err != nil {
		// The breakpoint still works for this run; only persistence failed.
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s breakpoint not persisted: %v\n", yellow("!"), err)
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s Breakpoint %s at %s\n", green("✓"), bp.ID, bp.Location)
	return nil
}

func (s *Shell) cmdBreaks(args []string) error {
	bps := s.engine.Breakpoints().List()
	if len(bps) == 0 {
		fmt.Println("No breakpoints")
		return nil
	}
	for _, bp := range bps {
		status := "enabled"
		if !bp.Enabled {
			status = "disabled"
		}
		detail := ""
		if bp.ConditionText != "" {
			detail = "  if " + bp.ConditionText
		}
		if bp.LogMessage != "" {
			detail += "  log " + strconv.Quote(bp.LogMessage)
		}
		fmt.Printf("  %s  %s  %s  %s  hits=%d%s\n",
			bp.ID, bp.Location, bp.State, status, bp.HitCount, detail)
	}
	return nil
}

func (s *Shell) cmdDelete(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: delete <breakpoint-id>")
	}
	if !s.engine.Breakpoints().Remove(args[0]) {
		return fmt.Errorf("unknown breakpoint: %s", args[0])
	}
	fmt.Printf("Removed %s\n", args[0])
	return nil
}

func (s *Shell) cmdCondition(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: condition <breakpoint-id> <expression>")
	}
	return s.engine.Breakpoints().SetCondition(args[0], strings.Join(args[1:], " "))
}

func (s *Shell) cmdLogpoint(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: logpoint <breakpoint-id> <message template>")
	}
	return s.engine.Breakpoints().SetLogMessage(args[0], strings.Join(args[1:], " "))
}

func (s *Shell) cmdWatch(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: watch <expression>")
	}
	w := s.engine.Watches().AddWatch(strings.Join(args, " "))
	if w.Error != "" {
		return fmt.Errorf("watch added but unusable: %s", w.Error)
	}
	fmt.Printf("Watch %s on %q\n", w.ID, w.Expression)
	return nil
}

func (s *Shell) cmdWatches(args []string) error {
	watches := s.engine.Watches().List()
	if len(watches) == 0 {
		fmt.Println("No watches")
		return nil
	}
	for _, w := range watches {
		value := "<not evaluated>"
		if w.LastValue != nil {
			value = w.LastValue.Display
		}
		if w.Error != "" {
			value = "error: " + w.Error
		}
		status := ""
		if !w.Enabled {
			status = "  (disabled)"
		}
		fmt.Printf("  %s  %s = %s  changes=%d%s\n", w.ID, w.Expression, value, len(w.History), status)
	}
	return nil
}

func (s *Shell) cmdUnwatch(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: unwatch <watch-id>")
	}
	if !s.engine.Watches().RemoveWatch(args[0]) {
		return fmt.Errorf("unknown watch: %s", args[0])
	}
	fmt.Printf("Removed %s\n", args[0])
	return nil
}

func (s *Shell) cmdCapture(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: capture <name>")
	}
	c, err := s.engine.Capture(s.ctx, args[0], nil)
	if err != nil {
		return err
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s Captured %s as %s (%d objects)\n", green("✓"), c.Name, c.ID, len(c.Memory.Heap))
	return nil
}

func (s *Shell) cmdCaptures(args []string) error {
	captures := s.engine.Captures().List()
	if len(captures) == 0 {
		fmt.Println("No captures")
		return nil
	}
	for _, c := range captures {
		fmt.Printf("  %s  %s  %s  %d objects\n",
			c.ID, c.Name, c.Timestamp.Format("15:04:05"), len(c.Memory.Heap))
	}
	return nil
}

func (s *Shell) cmdCompare(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: compare <capture-id> <capture-id>")
	}
	cmp, err := s.engine.CompareCaptures(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("  added:    %s\n", joinOrNone(cmp.AddedObjects))
	fmt.Printf("  removed:  %s\n", joinOrNone(cmp.RemovedObjects))
	fmt.Printf("  modified: %s\n", joinOrNone(cmp.ModifiedObjects))
	fmt.Printf("  stack:    %+d frames\n", cmp.StackDelta)
	return nil
}

// printCursor shows the snapshot under the cursor in one line.
func (s *Shell) printCursor() {
	snap := s.engine.Replayer().Current()
	if snap == nil {
		return
	}
	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("%s seq %d  %s  %s  depth %d\n",
		cyan("●"), snap.Sequence, snap.Event, snap.Location, snap.Depth())
}

// parseLocation parses "file:line" or "file:line:column".
func parseLocation(text string) (types.SourceLocation, error) {
	parts := strings.Split(text, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return types.SourceLocation{}, fmt.Errorf("invalid location %q, want file:line[:column]", text)
	}
	line, err := strconv.Atoi(parts[1])
	if err != nil || line < 1 {
		return types.SourceLocation{}, fmt.Errorf("invalid line number %q", parts[1])
	}
	location := types.SourceLocation{File: parts[0], Line: line}
	if len(parts) == 3 {
		column, err := strconv.Atoi(parts[2])
		if err != nil || column < 0 {
			return types.SourceLocation{}, fmt.Errorf("invalid column %q", parts[2])
		}
		location.Column = column
	}
	return location, nil
}

func joinOrNone(ids []string) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(ids, ", ")
}
