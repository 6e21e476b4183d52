// Package repl is the interactive replay shell: a readline loop over a
// loaded engine for navigating recorded sessions, managing breakpoints and
// watches, and evaluating expressions at the cursor.
package repl

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/pulsedev/retrace"
)

// CommandHandler handles a specific command.
type CommandHandler func(args []string) error

// Config holds shell configuration.
type Config struct {
	Engine *retrace.Engine
	// HistoryFile persists readline history between runs. Empty keeps
	// history in memory only.
	HistoryFile string
}

// Shell is the interactive replay shell.
type Shell struct {
	engine      *retrace.Engine
	historyFile string
	rl          *readline.Instance
	ctx         context.Context
	commands    map[string]CommandHandler
}

// New creates a shell over an engine.
func New(cfg *Config) (*Shell, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	s := &Shell{
		engine:      cfg.Engine,
		historyFile: cfg.HistoryFile,
		commands:    make(map[string]CommandHandler),
	}
	s.registerCommands()
	return s, nil
}

// Run starts the shell loop and blocks until exit.
func (s *Shell) Run(ctx context.Context) error {
	s.ctx = ctx

	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("retrace> "),
		HistoryFile:       s.historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	s.rl = rl

	s.printWelcome()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				// Ctrl+C interrupts playback if one is running,
				// otherwise just reprompts.
				s.engine.Replayer().Stop()
				continue
			} else if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := s.dispatch(line); err != nil {
			if err == io.EOF {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s %v\n", red("Error:"), err)
		}
	}
}

// dispatch routes one line of input to its command handler.
func (s *Shell) dispatch(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	command := parts[0]
	args := parts[1:]

	if handler, ok := s.commands[command]; ok {
		return handler(args)
	}
	return fmt.Errorf("unknown command %q, type 'help' for the command list", command)
}

func (s *Shell) registerCommands() {
	s.commands["help"] = s.cmdHelp
	s.commands["?"] = s.cmdHelp
	s.commands["exit"] = s.cmdExit
	s.commands["quit"] = s.cmdExit

	s.commands["sessions"] = s.cmdSessions
	s.commands["load"] = s.cmdLoad
	s.commands["unload"] = s.cmdUnload
	s.commands["info"] = s.cmdInfo
	s.commands["timeline"] = s.cmdTimeline

	s.commands["step"] = s.cmdStepForward
	s.commands["s"] = s.cmdStepForward
	s.commands["back"] = s.cmdStepBackward
	s.commands["b"] = s.cmdStepBackward
	s.commands["over"] = s.cmdOverForward
	s.commands["rover"] = s.cmdOverBackward
	s.commands["out"] = s.cmdOutForward
	s.commands["rout"] = s.cmdOutBackward
	s.commands["continue"] = s.cmdContinueForward
	s.commands["c"] = s.cmdContinueForward
	s.commands["rcontinue"] = s.cmdContinueBackward
	s.commands["rc"] = s.cmdContinueBackward
	s.commands["stop"] = s.cmdStop
	s.commands["goto"] = s.cmdGoto
	s.commands["speed"] = s.cmdSpeed

	s.commands["stack"] = s.cmdStack
	s.commands["frame"] = s.cmdFrame

	s.commands["eval"] = s.cmdEval
	s.commands["p"] = s.cmdEval
	s.commands["history"] = s.cmdHistory

	s.commands["break"] = s.cmdBreak
	s.commands["breaks"] = s.cmdBreaks
	s.commands["delete"] = s.cmdDelete
	s.commands["condition"] = s.cmdCondition
	s.commands["logpoint"] = s.cmdLogpoint

	s.commands["watch"] = s.cmdWatch
	s.commands["watches"] = s.cmdWatches
	s.commands["unwatch"] = s.cmdUnwatch

	s.commands["capture"] = s.cmdCapture
	s.commands["captures"] = s.cmdCaptures
	s.commands["compare"] = s.cmdCompare
}

func (s *Shell) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n", cyan("retrace - time-travel debugger"))
	fmt.Println("Navigate recorded sessions forward and backward in time")
	fmt.Println()
	fmt.Println("Type 'help' for available commands, 'exit' to quit")
	fmt.Println()
}

func (s *Shell) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan("Available Commands:"))
	fmt.Println("  Sessions")
	fmt.Println("    sessions              List stored sessions")
	fmt.Println("    load <id>             Load a session for replay")
	fmt.Println("    unload                Unload the current session")
	fmt.Println("    info                  Show the snapshot under the cursor")
	fmt.Println("    timeline [n]          Show n timeline entries around the cursor (default 10)")
	fmt.Println()
	fmt.Println("  Navigation")
	fmt.Println("    step / s              One snapshot forward")
	fmt.Println("    back / b              One snapshot backward")
	fmt.Println("    over, rover           Step over forward / backward")
	fmt.Println("    out, rout             Step out forward / backward")
	fmt.Println("    continue / c          Play forward until a breakpoint (Ctrl+C or 'stop' to interrupt)")
	fmt.Println("    rcontinue / rc        Play backward until a breakpoint")
	fmt.Println("    goto <seq>            Jump to a sequence number")
	fmt.Println("    speed <x>             Set the playback multiplier")
	fmt.Println()
	fmt.Println("  Inspection")
	fmt.Println("    stack                 Show the call stack at the cursor")
	fmt.Println("    frame <i>             Select stack frame i (0 = innermost)")
	fmt.Println("    eval / p <expr>       Evaluate an expression at the cursor")
	fmt.Println("    history <name>        Show where a variable changed value")
	fmt.Println()
	fmt.Println("  Breakpoints and watches")
	fmt.Println("    break <file:line>     Add a breakpoint")
	fmt.Println("    breaks                List breakpoints")
	fmt.Println("    delete <id>           Remove a breakpoint")
	fmt.Println("    condition <id> <e>    Attach a condition")
	fmt.Println("    logpoint <id> <msg>   Turn a breakpoint into a log point")
	fmt.Println("    watch <expr>          Add a watch expression")
	fmt.Println("    watches               List watches")
	fmt.Println("    unwatch <id>          Remove a watch")
	fmt.Println()
	fmt.Println("  Captures")
	fmt.Println("    capture <name>        Take a named snapshot at the cursor")
	fmt.Println("    captures              List named snapshots")
	fmt.Println("    compare <id1> <id2>   Diff two named snapshots")
	fmt.Println()
	return nil
}

func (s *Shell) cmdExit(args []string) error {
	fmt.Println("Goodbye!")
	return io.EOF
}
