package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	Run: func(cmd *cobra.Command, args []string) {
		infos, err := engine.ListSessions(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(infos) == 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s No recorded sessions\n\n", yellow("✨"))
			return
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Println()
		for _, info := range infos {
			duration := "…"
			if info.EndedAt != nil {
				duration = info.EndedAt.Sub(info.StartedAt).Round(time.Millisecond).String()
			}
			fmt.Printf("  %s  %s  %6d snapshots  %8s  %s\n",
				cyan(info.ID), info.StartedAt.Format("2006-01-02 15:04:05"),
				info.SnapshotCount, duration, info.Status)
		}
		fmt.Println()
	},
}

var deleteSessionCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a recorded session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := engine.DeleteSession(context.Background(), args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Deleted %s\n", green("✓"), args[0])
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(deleteSessionCmd)
}
