package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pulsedev/retrace/internal/repl"
)

var shellCmd = &cobra.Command{
	Use:   "shell [session-id]",
	Short: "Start the interactive replay shell",
	Long: `Start an interactive shell for navigating recorded sessions.

The shell supports bidirectional stepping (step/back, over/rover,
out/rout), continuous playback with breakpoints in both directions,
expression evaluation at the cursor, variable history, watches, and
named snapshot captures.

Pass a session id to load it immediately, or use 'sessions' and
'load <id>' inside the shell.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if len(args) == 1 {
			if err := engine.LoadSession(ctx, args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		s, err := repl.New(&repl.Config{
			Engine:      engine,
			HistoryFile: cfg.HistoryFile,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create shell: %v\n", err)
			os.Exit(1)
		}
		if err := s.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
